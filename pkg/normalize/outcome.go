// Package normalize reduces raw provider payloads to the pipeline's common
// shapes: NormalizedFact for the outcome path and NormalizedStatistic for
// the statistic path. Adapters are keyed by provider id and tolerate
// missing or oddly typed fields; rows that cannot produce a groupable claim
// are dropped rather than guessed at.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/arbiterlab/sportsresolve/core"
)

// Facts normalizes one outcome-pipeline envelope into zero or more facts.
// Envelopes that were skipped or failed produce nothing.
func Facts(resp core.ProviderResponse, q core.OutcomeQuery) []core.NormalizedFact {
	if !resp.OK() || resp.Payload == nil {
		return nil
	}
	switch {
	case resp.Provider == "THESPORTSDB":
		return sportsDBFacts(resp, q)
	case resp.Provider == "API_SPORTS_SOCCER" || resp.Provider == "API_SPORTS_BASKETBALL":
		return apiSportsFacts(resp, q)
	case resp.Provider == "THE_ODDS_API":
		return oddsAPIFacts(resp, q)
	case strings.HasPrefix(resp.Provider, "rss:"):
		return rssFacts(resp, q)
	}
	return nil
}

func sportsDBFacts(resp core.ProviderResponse, q core.OutcomeQuery) []core.NormalizedFact {
	payload := asMap(resp.Payload)
	if payload == nil {
		return nil
	}
	rows := append(asArray(payload["events"]), asArray(payload["results"])...)

	var facts []core.NormalizedFact
	for _, r := range rows {
		row := asMap(r)
		if row == nil {
			continue
		}
		home := str(row, "strHomeTeam")
		away := str(row, "strAwayTeam")
		if !teamsIntersect(q.Teams, home, away) {
			continue
		}
		date := str(row, "dateEvent")
		if q.Date != "" && date != "" && !strings.HasPrefix(date, q.Date) {
			continue
		}

		hs := intPtr(row["intHomeScore"])
		as := intPtr(row["intAwayScore"])
		winner := winnerFromScores(home, away, hs, as)
		if winner == "" && hs == nil {
			winner = winnerFromText(str(row, "strResult"), home, away)
		}

		f := core.NormalizedFact{
			Provider:     resp.Provider,
			Display:      displayFor(home, away, winner, hs, as),
			Category:     categoryFor(winner, hs, as),
			HomeTeam:     home,
			AwayTeam:     away,
			Winner:       winner,
			HomeScore:    hs,
			AwayScore:    as,
			Status:       str(row, "strStatus"),
			EndTimestamp: sportsDBTimestamp(date, str(row, "strTime")),
			Reliability:  ReliabilityFor(resp.Provider),
			Raw:          row,
		}
		if addKey(&f, factDate(date, q.Date)) {
			facts = append(facts, f)
		}
	}
	return facts
}

func apiSportsFacts(resp core.ProviderResponse, q core.OutcomeQuery) []core.NormalizedFact {
	payload := asMap(resp.Payload)
	if payload == nil {
		return nil
	}

	var facts []core.NormalizedFact
	for _, r := range asArray(payload["response"]) {
		row := asMap(r)
		if row == nil {
			continue
		}
		teams := asMap(row["teams"])
		home := str(asMap(teams["home"]), "name")
		away := str(asMap(teams["away"]), "name")
		if !teamsIntersect(q.Teams, home, away) {
			continue
		}
		date := str(asMap(row["fixture"]), "date")
		if date == "" {
			date = str(row, "date")
		}
		if q.Date != "" && date != "" && !strings.HasPrefix(date, q.Date) {
			continue
		}

		hs, as := apiSportsScores(row)
		winner := winnerFromScores(home, away, hs, as)
		if w, ok := boolField(asMap(teams["home"]), "winner"); ok && w {
			winner = home
		} else if w, ok := boolField(asMap(teams["away"]), "winner"); ok && w {
			winner = away
		}

		f := core.NormalizedFact{
			Provider:     resp.Provider,
			Display:      displayFor(home, away, winner, hs, as),
			Category:     categoryFor(winner, hs, as),
			HomeTeam:     home,
			AwayTeam:     away,
			Winner:       winner,
			HomeScore:    hs,
			AwayScore:    as,
			Status:       apiSportsStatus(row),
			EndTimestamp: parseTimestamp(date),
			Reliability:  ReliabilityFor(resp.Provider),
			Raw:          row,
		}
		if addKey(&f, factDate(date, q.Date)) {
			facts = append(facts, f)
		}
	}
	return facts
}

func oddsAPIFacts(resp core.ProviderResponse, q core.OutcomeQuery) []core.NormalizedFact {
	var facts []core.NormalizedFact
	for _, r := range asArray(resp.Payload) {
		row := asMap(r)
		if row == nil {
			continue
		}
		home := str(row, "home_team")
		away := str(row, "away_team")
		if !teamsIntersect(q.Teams, home, away) {
			continue
		}
		date := str(row, "commence_time")
		if q.Date != "" && date != "" && !strings.HasPrefix(date, q.Date) {
			continue
		}

		var hs, as *int
		for _, s := range asArray(row["scores"]) {
			pair := asMap(s)
			if pair == nil {
				continue
			}
			name := str(pair, "name")
			switch {
			case SameTeam(name, home):
				hs = intPtr(pair["score"])
			case SameTeam(name, away):
				as = intPtr(pair["score"])
			}
		}

		status := ""
		if completed, ok := boolField(row, "completed"); ok && completed {
			status = "finished"
		}

		winner := winnerFromScores(home, away, hs, as)
		f := core.NormalizedFact{
			Provider:     resp.Provider,
			Display:      displayFor(home, away, winner, hs, as),
			Category:     categoryFor(winner, hs, as),
			HomeTeam:     home,
			AwayTeam:     away,
			Winner:       winner,
			HomeScore:    hs,
			AwayScore:    as,
			Status:       status,
			EndTimestamp: parseTimestamp(date),
			Reliability:  ReliabilityFor(resp.Provider),
			Raw:          row,
		}
		if addKey(&f, factDate(date, q.Date)) {
			facts = append(facts, f)
		}
	}
	return facts
}

var (
	resultVerbRe = regexp.MustCompile(`\b(defeat|beat|tops|edges|wins|past|overcome)\b`)
	titleScoreRe = regexp.MustCompile(`\b(\d{1,3})\s*[-–:]\s*(\d{1,3})\b`)
)

// rssFacts extracts winner claims from feed headlines. The rule is
// deliberately conservative: the title must name at least min(2, len(teams))
// of the query's teams, carry a result verb, and place one query team in the
// phrase before the verb.
func rssFacts(resp core.ProviderResponse, q core.OutcomeQuery) []core.NormalizedFact {
	payload := asMap(resp.Payload)
	if payload == nil {
		return nil
	}

	var facts []core.NormalizedFact
	for _, it := range asArray(payload["items"]) {
		item := asMap(it)
		if item == nil {
			continue
		}
		title := str(item, "title")
		if title == "" {
			continue
		}
		lower := strings.ToLower(title)
		normTitle := core.Normalize(lower)

		var present []string
		for _, team := range q.Teams {
			if strings.Contains(normTitle, core.Normalize(team)) {
				present = append(present, team)
			}
		}
		need := len(q.Teams)
		if need > 2 {
			need = 2
		}
		if len(present) < need || len(present) == 0 {
			continue
		}

		loc := resultVerbRe.FindStringIndex(lower)
		if loc == nil {
			continue
		}
		leading := core.Normalize(lower[:loc[0]])

		winner := ""
		for _, team := range present {
			if strings.Contains(leading, core.Normalize(team)) {
				winner = team
				break
			}
		}
		if winner == "" {
			continue
		}

		f := core.NormalizedFact{
			Provider:     resp.Provider,
			Display:      title,
			Category:     core.CategoryNews,
			Winner:       winner,
			SourceURL:    str(item, "link"),
			EndTimestamp: parsePubDate(str(item, "pubDate")),
			Reliability:  newsReliability,
			Raw:          item,
		}
		if len(q.Teams) >= 2 {
			f.HomeTeam = q.Teams[0]
			f.AwayTeam = q.Teams[1]
			if m := titleScoreRe.FindStringSubmatch(title); m != nil {
				high, low := intPtr(m[1]), intPtr(m[2])
				if high != nil && low != nil {
					if *high < *low {
						high, low = low, high
					}
					if winner == f.HomeTeam {
						f.HomeScore, f.AwayScore = high, low
					} else {
						f.HomeScore, f.AwayScore = low, high
					}
				}
			}
		}
		if addKey(&f, q.Date) {
			facts = append(facts, f)
		}
	}
	return facts
}

// addKey computes and stores the canonical key, reporting whether the fact
// is groupable at all.
func addKey(f *core.NormalizedFact, date string) bool {
	f.CanonicalKey = canonicalKey(*f, date)
	return f.CanonicalKey != ""
}

// factDate reduces a provider timestamp to its date prefix, falling back to
// the query date when the provider carried none.
func factDate(providerDate, queryDate string) string {
	if len(providerDate) >= 10 {
		return providerDate[:10]
	}
	if providerDate != "" {
		return providerDate
	}
	return queryDate
}

func teamsIntersect(queryTeams []string, home, away string) bool {
	if len(queryTeams) == 0 {
		return true
	}
	for _, t := range queryTeams {
		if SameTeam(t, home) || SameTeam(t, away) {
			return true
		}
	}
	return false
}

func winnerFromScores(home, away string, hs, as *int) string {
	if hs == nil || as == nil {
		return ""
	}
	switch {
	case *hs > *as:
		return home
	case *as > *hs:
		return away
	}
	return ""
}

// winnerFromText resolves a textual result summary against the two sides.
func winnerFromText(result, home, away string) string {
	if result == "" {
		return ""
	}
	n := core.Normalize(result)
	hn := core.Normalize(canonicalTeam(home))
	an := core.Normalize(canonicalTeam(away))
	hi := strings.Index(n, hn)
	ai := strings.Index(n, an)
	switch {
	case hi >= 0 && (ai < 0 || hi < ai):
		return home
	case ai >= 0:
		return away
	}
	return ""
}

func displayFor(home, away, winner string, hs, as *int) string {
	if hs != nil && as != nil {
		return fmt.Sprintf("%s %d-%d %s", home, *hs, *as, away)
	}
	if winner != "" {
		return fmt.Sprintf("%s win", winner)
	}
	return strings.TrimSpace(home + " vs " + away)
}

func categoryFor(winner string, hs, as *int) core.Category {
	if winner != "" {
		return core.CategoryResult
	}
	if hs != nil && as != nil {
		return core.CategoryScoreline
	}
	return core.CategoryOther
}

func apiSportsStatus(row map[string]any) string {
	for _, m := range []map[string]any{asMap(asMap(row["fixture"])["status"]), asMap(row["status"])} {
		if m == nil {
			continue
		}
		if s := str(m, "short"); s != "" {
			return s
		}
		if s := str(m, "long"); s != "" {
			return s
		}
	}
	return str(row, "status")
}

func apiSportsScores(row map[string]any) (*int, *int) {
	if score := asMap(row["score"]); score != nil {
		for _, k := range []string{"fulltime", "final"} {
			if pair := asMap(score[k]); pair != nil {
				if h, a := intPtr(pair["home"]), intPtr(pair["away"]); h != nil && a != nil {
					return h, a
				}
			}
		}
	}
	if goals := asMap(row["goals"]); goals != nil {
		if h, a := intPtr(goals["home"]), intPtr(goals["away"]); h != nil && a != nil {
			return h, a
		}
	}
	if scores := asMap(row["scores"]); scores != nil {
		if h, a := totalScore(scores["home"]), totalScore(scores["away"]); h != nil && a != nil {
			return h, a
		}
	}
	return nil, nil
}

// totalScore reads a basketball score that may be a bare number or an
// object carrying a total.
func totalScore(v any) *int {
	if m := asMap(v); m != nil {
		if p := intPtr(m["total"]); p != nil {
			return p
		}
		return intPtr(m["points"])
	}
	return intPtr(v)
}

func sportsDBTimestamp(date, clock string) *time.Time {
	if date == "" {
		return nil
	}
	if clock != "" {
		if t, err := time.Parse("2006-01-02 15:04:05", date+" "+clock); err == nil {
			t = t.UTC()
			return &t
		}
	}
	if t, err := time.Parse("2006-01-02", date); err == nil {
		t = t.UTC()
		return &t
	}
	return nil
}

func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func parsePubDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
