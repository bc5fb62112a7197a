// Package classify turns free-form sports questions into exactly one of the
// two structured query shapes. Every scan is case-insensitive and
// deterministic: tables are consulted in declared order and the first rule
// that matches wins. Optional fields that do not match stay unset.
package classify

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/arbiterlab/sportsresolve/core"
)

var spaceRe = regexp.MustCompile(`\s+`)

// Classify parses raw question text. Exactly one of the two returned
// queries is non-nil on success: the statistic shape when a statistic
// synonym matches, else the outcome shape.
func Classify(raw string) (*core.OutcomeQuery, *core.StatisticQuery, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil, core.NewError(core.KindClassificationFailure, "", "empty query text")
	}
	scan := strings.ToLower(spaceRe.ReplaceAllString(trimmed, " "))

	teams := DetectTeams(scan)
	date := ExtractDate(trimmed)

	if sq := classifyStatistic(raw, scan, date, teams); sq != nil {
		return nil, sq, nil
	}
	return classifyOutcome(raw, scan, date, teams), nil, nil
}

func classifyStatistic(raw, scan, date string, teams []TeamMatch) *core.StatisticQuery {
	statType, ok := MatchStatisticType(scan)
	if !ok {
		return nil
	}

	q := &core.StatisticQuery{
		QueryType:     core.QueryMatchStatistic,
		StatisticType: statType,
		Aggregation:   detectAggregation(scan),
		Period:        detectPeriod(scan),
		RawText:       raw,
	}

	home, away := splitMatchup(scan, teams)
	if home != "" && away != "" {
		q.Entities.Match = &core.MatchRef{
			Home:        home,
			Away:        away,
			Date:        date,
			Competition: detectCompetition(scan),
		}
	}
	if len(teams) == 1 {
		q.Entities.Team = teams[0].Name
	}
	q.Entities.Player = extractPlayer(raw, teams)

	if value, cmp, found := matchThreshold(scan); found {
		q.Threshold = &value
		q.Comparator = cmp
		q.QueryType = core.QueryThreshold
	} else if q.Entities.Player != "" {
		q.QueryType = core.QueryPlayerStatistic
	} else if len(teams) == 1 || (statType == core.StatTotalCards && len(teams) > 0) {
		q.QueryType = core.QueryTeamAggregate
	}

	if date != "" {
		q.EventEndTime = EndOfDayUTC(date)
	}
	q.CanResolveNow = core.ResolvableAt(q.EventEndTime, time.Now().UTC())
	return q
}

var didResultRe = regexp.MustCompile(`\bdid\b.*\b(win|wins|won|lose|loses|lost|draw|drew|tie|tied|happen|happened|beat|beaten)\b`)

func classifyOutcome(raw, scan, date string, teams []TeamMatch) *core.OutcomeQuery {
	q := &core.OutcomeQuery{
		Sport:        detectSport(scan, teams),
		Date:         date,
		Competition:  detectCompetition(scan),
		Matchday:     detectMatchday(scan),
		Player:       extractPlayer(raw, teams),
		QuestionType: core.QuestionOther,
		RawText:      raw,
	}
	for _, m := range teams {
		q.Teams = append(q.Teams, m.Name)
	}

	switch {
	case didResultRe.MatchString(scan):
		// A result question without any recognized team cannot be graded
		// against a subject, so it stays "other".
		if len(q.Teams) > 0 {
			q.QuestionType = core.QuestionDidResultHappen
		}
	case containsWord(scan, "who won") || containsWord(scan, "winner") || strings.Contains(scan, "victor"):
		q.QuestionType = core.QuestionWhoWon
	case containsWord(scan, "score") || containsWord(scan, "scoreline") || containsWord(scan, "final score") || containsWord(scan, "points"):
		q.QuestionType = core.QuestionScoreline
	case containsWord(scan, "mvp") || containsWord(scan, "award") || containsWord(scan, "player of the match") || containsWord(scan, "golden boot") || containsWord(scan, "top scorer"):
		q.QuestionType = core.QuestionPlayerAward
	}
	return q
}

var basketballKeywords = []string{"nba", "basketball"}

var soccerKeywords = []string{
	"premier league", "la liga", "serie a", "bundesliga", "ligue 1",
	"champions league", "europa league", "world cup", "fa cup",
	"mls", "soccer", "fc", "uefa",
}

func detectSport(scan string, teams []TeamMatch) core.Sport {
	for _, kw := range basketballKeywords {
		if containsWord(scan, kw) {
			return core.SportBasketball
		}
	}
	for _, m := range teams {
		if m.Sport == core.SportBasketball {
			return core.SportBasketball
		}
	}
	for _, kw := range soccerKeywords {
		if containsWord(scan, kw) {
			return core.SportSoccer
		}
	}
	for _, m := range teams {
		if m.Sport == core.SportSoccer {
			return core.SportSoccer
		}
	}
	return core.SportGeneral
}

var competitions = []struct {
	phrase string
	name   string
}{
	{"premier league", "Premier League"},
	{"champions league", "Champions League"},
	{"europa league", "Europa League"},
	{"la liga", "La Liga"},
	{"serie a", "Serie A"},
	{"bundesliga", "Bundesliga"},
	{"ligue 1", "Ligue 1"},
	{"world cup", "World Cup"},
	{"fa cup", "FA Cup"},
	{"nba finals", "NBA Finals"},
	{"nba", "NBA"},
	{"mls", "MLS"},
}

func detectCompetition(scan string) string {
	for _, c := range competitions {
		if containsWord(scan, c.phrase) {
			return c.name
		}
	}
	return ""
}

var matchdayRe = regexp.MustCompile(`\b(?:matchday|gameweek|game week|week)\s+(\d{1,2})\b`)

func detectMatchday(scan string) string {
	if m := matchdayRe.FindStringSubmatch(scan); m != nil {
		return m[1]
	}
	return ""
}

func detectAggregation(scan string) core.Aggregation {
	switch {
	case containsWord(scan, "per team"):
		return core.AggPerTeam
	case containsWord(scan, "per player"):
		return core.AggPerPlayer
	case containsWord(scan, "average"):
		return core.AggAverage
	case containsWord(scan, "difference"):
		return core.AggDifference
	}
	return core.AggTotal
}

func detectPeriod(scan string) core.Period {
	switch {
	case containsWord(scan, "first half"):
		return core.PeriodFirstHalf
	case containsWord(scan, "second half"):
		return core.PeriodSecondHalf
	case containsWord(scan, "extra time"):
		return core.PeriodExtraTime
	case containsWord(scan, "overtime"):
		return core.PeriodOvertime
	case containsWord(scan, "quarter"):
		return core.PeriodQuarter
	}
	return core.PeriodFullTime
}

// statSynonyms maps question phrases to statistic types. Scanned in order,
// so compound phrases must precede the bare words they contain.
var statSynonyms = []struct {
	phrase string
	typ    core.StatisticType
}{
	{"time of possession", core.StatTimeOfPossession},
	{"third down conversions", core.StatThirdDownConversions},
	{"third-down conversions", core.StatThirdDownConversions},
	{"red zone efficiency", core.StatRedZoneEfficiency},
	{"red-zone efficiency", core.StatRedZoneEfficiency},
	{"penalty yards", core.StatPenaltyYards},
	{"penalties awarded", core.StatPenaltiesAwarded},
	{"penalty awarded", core.StatPenaltiesAwarded},
	{"penalties scored", core.StatPenaltiesScored},
	{"penalties converted", core.StatPenaltiesScored},
	{"penalty scored", core.StatPenaltiesScored},
	{"pass accuracy", core.StatPassAccuracy},
	{"passing accuracy", core.StatPassAccuracy},
	{"pass completion", core.StatPassAccuracy},
	{"key passes", core.StatKeyPasses},
	{"shots on target", core.StatShotsOnTarget},
	{"shots on goal", core.StatShotsOnTarget},
	{"total shots", core.StatShotsTotal},
	{"shots total", core.StatShotsTotal},
	{"yellow cards", core.StatYellowCards},
	{"yellow card", core.StatYellowCards},
	{"bookings", core.StatYellowCards},
	{"red cards", core.StatRedCards},
	{"red card", core.StatRedCards},
	{"total cards", core.StatTotalCards},
	{"cards total", core.StatTotalCards},
	{"corner kicks", core.StatCorners},
	{"corners", core.StatCorners},
	{"offensive rebounds", core.StatReboundsOffensive},
	{"defensive rebounds", core.StatReboundsDefensive},
	{"total rebounds", core.StatReboundsTotal},
	{"rebounds", core.StatReboundsTotal},
	{"three pointers attempted", core.StatThreePointersAttempted},
	{"three point attempts", core.StatThreePointersAttempted},
	{"3 pointers attempted", core.StatThreePointersAttempted},
	{"three pointers made", core.StatThreePointersMade},
	{"three-pointers", core.StatThreePointersMade},
	{"three pointers", core.StatThreePointersMade},
	{"3 pointers", core.StatThreePointersMade},
	{"threes", core.StatThreePointersMade},
	{"free throws attempted", core.StatFreeThrowsAttempted},
	{"free throw attempts", core.StatFreeThrowsAttempted},
	{"free throws made", core.StatFreeThrowsMade},
	{"free throws", core.StatFreeThrowsMade},
	{"technical fouls", core.StatTechnicalFouls},
	{"flagrant fouls", core.StatFlagrantFouls},
	{"minutes played", core.StatMinutesPlayed},
	{"ball possession", core.StatPossession},
	{"possession", core.StatPossession},
	{"turnovers", core.StatTurnovers},
	{"blocked shots", core.StatBlocks},
	{"blocks", core.StatBlocks},
	{"steals", core.StatSteals},
	{"saves", core.StatSaves},
	{"tackles", core.StatTackles},
	{"interceptions", core.StatInterceptions},
	{"free kicks", core.StatFreeKicks},
	{"fumbles", core.StatFumbles},
	{"sacks", core.StatSacks},
	{"fouls", core.StatFouls},
	{"goals scored", core.StatGoals},
	{"goals", core.StatGoals},
	{"assists", core.StatAssists},
	{"passes", core.StatPasses},
	{"shots", core.StatShotsTotal},
	{"cards", core.StatTotalCards},
	{"penalties", core.StatPenalties},
	{"minutes", core.StatMinutesPlayed},
}

// MatchStatisticType scans lowercased text for the first statistic synonym.
func MatchStatisticType(scan string) (core.StatisticType, bool) {
	for _, s := range statSynonyms {
		if containsWord(scan, s.phrase) {
			return s.typ, true
		}
	}
	return "", false
}

var labelIndex = buildLabelIndex()

func buildLabelIndex() map[string]core.StatisticType {
	idx := make(map[string]core.StatisticType, len(core.AllStatisticTypes)+len(statSynonyms))
	for _, t := range core.AllStatisticTypes {
		idx[core.Normalize(string(t))] = t
	}
	for _, s := range statSynonyms {
		k := core.Normalize(s.phrase)
		if _, ok := idx[k]; !ok {
			idx[k] = s.typ
		}
	}
	return idx
}

// TypeFromLabel resolves a provider field label, in any casing or separator
// style, to a statistic type. Payload normalization shares this table so
// field names like "yellowCards" and question phrases resolve identically.
func TypeFromLabel(label string) (core.StatisticType, bool) {
	t, ok := labelIndex[core.Normalize(label)]
	return t, ok
}

const numberPattern = `(\d+(?:\.\d+)?)`

// thresholdPatterns in priority order; the first hit wins.
var thresholdPatterns = []struct {
	re  *regexp.Regexp
	cmp core.Comparator
}{
	{regexp.MustCompile(`\bover\s+` + numberPattern + `\b`), core.CmpGT},
	{regexp.MustCompile(`\bunder\s+` + numberPattern + `\b`), core.CmpLT},
	{regexp.MustCompile(`\bmore than\s+` + numberPattern + `\b`), core.CmpGT},
	{regexp.MustCompile(`\bless than\s+` + numberPattern + `\b`), core.CmpLT},
	{regexp.MustCompile(`\bat least\s+` + numberPattern + `\b`), core.CmpGTE},
	{regexp.MustCompile(`\bat most\s+` + numberPattern + `\b`), core.CmpLTE},
	{regexp.MustCompile(`\b` + numberPattern + `\+\s*(?:line|cards|corners|goals|points)\b`), core.CmpGTE},
	{regexp.MustCompile(`>=\s*` + numberPattern), core.CmpGTE},
	{regexp.MustCompile(`≥\s*` + numberPattern), core.CmpGTE},
	{regexp.MustCompile(`<=\s*` + numberPattern), core.CmpLTE},
	{regexp.MustCompile(`≤\s*` + numberPattern), core.CmpLTE},
}

func matchThreshold(scan string) (float64, core.Comparator, bool) {
	for _, p := range thresholdPatterns {
		m := p.re.FindStringSubmatch(scan)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return v, p.cmp, true
	}
	return 0, "", false
}

var matchupSeps = []string{"versus", "vs", "against"}

// splitMatchup extracts home and away entities around a vs/versus/against
// separator. Known teams adjacent to the separator win; otherwise raw words
// around it are used.
func splitMatchup(scan string, teams []TeamMatch) (home, away string) {
	sep := -1
	for _, word := range matchupSeps {
		if i := indexWord(scan, word, 0); i >= 0 {
			sep = i
			break
		}
	}

	if sep >= 0 {
		for _, m := range teams {
			if m.Pos < sep {
				home = m.Name
			} else if m.Pos > sep && away == "" {
				away = m.Name
			}
		}
	} else if len(teams) >= 2 {
		return teams[0].Name, teams[1].Name
	}

	if home == "" || away == "" {
		fh, fa := fallbackMatchup(scan)
		if home == "" {
			home = fh
		}
		if away == "" && fa != home {
			away = fa
		}
	}
	return home, away
}

var matchupStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true, "at": true,
	"of": true, "for": true, "by": true, "from": true, "how": true,
	"many": true, "much": true, "what": true, "did": true, "do": true,
	"does": true, "will": true, "total": true, "over": true, "under": true,
	"more": true, "less": true, "least": true, "most": true, "than": true,
	"between": true, "game": true, "match": true, "and": true, "were": true,
	"was": true, "there": true,
}

// fallbackMatchup reads up to three plain words on each side of the
// separator when no known team matched.
func fallbackMatchup(scan string) (string, string) {
	fields := strings.Fields(scan)
	sep := -1
	for i, f := range fields {
		w := strings.Trim(f, ".,?!")
		if w == "vs" || w == "versus" || w == "against" {
			sep = i
			break
		}
	}
	if sep < 0 {
		return "", ""
	}

	var home []string
	for i := sep - 1; i >= 0 && len(home) < 3; i-- {
		w := nameWord(fields[i])
		if w == "" {
			break
		}
		home = append([]string{w}, home...)
	}
	var away []string
	for i := sep + 1; i < len(fields) && len(away) < 3; i++ {
		w := nameWord(fields[i])
		if w == "" {
			break
		}
		away = append(away, w)
	}
	return strings.Join(home, " "), strings.Join(away, " ")
}

// nameWord strips punctuation and rejects stop words and anything numeric.
func nameWord(f string) string {
	w := strings.Trim(f, ".,?!()")
	if w == "" || matchupStopWords[w] {
		return ""
	}
	for _, r := range w {
		if r >= '0' && r <= '9' {
			return ""
		}
	}
	return w
}

var (
	properNameSeq = `[A-Z][A-Za-z'.-]*(?:\s+[A-Z][A-Za-z'.-]*)*`
	playerDidRe   = regexp.MustCompile(`\b[Dd]id\s+(` + properNameSeq + `)`)
	playerPrepRe  = regexp.MustCompile(`\b(?:[Bb]y|[Ff]rom|[Ff]or)\s+(` + properNameSeq + `)`)
)

// extractPlayer pulls a proper-noun player candidate from "did <Name>" or
// "by|from|for <Name>", rejecting team names, competitions, and months.
func extractPlayer(raw string, teams []TeamMatch) string {
	for _, re := range []*regexp.Regexp{playerDidRe, playerPrepRe} {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		if c := cleanPlayerCandidate(m[1], teams); c != "" {
			return c
		}
	}
	return ""
}

func cleanPlayerCandidate(cand string, teams []TeamMatch) string {
	cand = strings.TrimSpace(cand)
	norm := core.Normalize(cand)
	if norm == "" {
		return ""
	}

	first := strings.ToLower(strings.Fields(cand)[0])
	if _, isMonth := monthNumbers[first]; isMonth {
		return ""
	}
	for _, t := range teams {
		tn := core.Normalize(t.Name)
		if norm == tn || strings.Contains(tn, norm) || strings.Contains(norm, tn) {
			return ""
		}
	}
	for _, c := range competitions {
		if norm == core.Normalize(c.name) {
			return ""
		}
	}
	return cand
}
