package classify

import (
	"sort"
	"strings"

	"github.com/arbiterlab/sportsresolve/core"
)

// TeamMatch is one known team found in the query text.
type TeamMatch struct {
	Name  string
	Sport core.Sport
	Pos   int
}

type knownTeam struct {
	name    string
	sport   core.Sport
	aliases []string
}

// The fixed team table. Aliases are lowercase; the canonical name is the
// short form providers and headlines most commonly use.
var knownTeams = []knownTeam{
	{"Hawks", core.SportBasketball, []string{"hawks", "atlanta hawks"}},
	{"Celtics", core.SportBasketball, []string{"celtics", "boston celtics"}},
	{"Nets", core.SportBasketball, []string{"nets", "brooklyn nets"}},
	{"Hornets", core.SportBasketball, []string{"hornets", "charlotte hornets"}},
	{"Bulls", core.SportBasketball, []string{"bulls", "chicago bulls"}},
	{"Cavaliers", core.SportBasketball, []string{"cavaliers", "cavs", "cleveland cavaliers"}},
	{"Mavericks", core.SportBasketball, []string{"mavericks", "mavs", "dallas mavericks"}},
	{"Nuggets", core.SportBasketball, []string{"nuggets", "denver nuggets"}},
	{"Pistons", core.SportBasketball, []string{"pistons", "detroit pistons"}},
	{"Warriors", core.SportBasketball, []string{"warriors", "golden state warriors", "golden state"}},
	{"Rockets", core.SportBasketball, []string{"rockets", "houston rockets"}},
	{"Pacers", core.SportBasketball, []string{"pacers", "indiana pacers"}},
	{"Clippers", core.SportBasketball, []string{"clippers", "la clippers", "los angeles clippers"}},
	{"Lakers", core.SportBasketball, []string{"lakers", "la lakers", "los angeles lakers"}},
	{"Grizzlies", core.SportBasketball, []string{"grizzlies", "memphis grizzlies"}},
	{"Heat", core.SportBasketball, []string{"heat", "miami heat"}},
	{"Bucks", core.SportBasketball, []string{"bucks", "milwaukee bucks"}},
	{"Timberwolves", core.SportBasketball, []string{"timberwolves", "minnesota timberwolves"}},
	{"Pelicans", core.SportBasketball, []string{"pelicans", "new orleans pelicans"}},
	{"Knicks", core.SportBasketball, []string{"knicks", "new york knicks"}},
	{"Thunder", core.SportBasketball, []string{"thunder", "oklahoma city thunder"}},
	{"Magic", core.SportBasketball, []string{"magic", "orlando magic"}},
	{"76ers", core.SportBasketball, []string{"76ers", "sixers", "philadelphia 76ers"}},
	{"Suns", core.SportBasketball, []string{"suns", "phoenix suns"}},
	{"Trail Blazers", core.SportBasketball, []string{"trail blazers", "blazers", "portland trail blazers"}},
	{"Kings", core.SportBasketball, []string{"kings", "sacramento kings"}},
	{"Spurs", core.SportBasketball, []string{"spurs", "san antonio spurs"}},
	{"Raptors", core.SportBasketball, []string{"raptors", "toronto raptors"}},
	{"Jazz", core.SportBasketball, []string{"jazz", "utah jazz"}},
	{"Wizards", core.SportBasketball, []string{"wizards", "washington wizards"}},

	{"Arsenal", core.SportSoccer, []string{"arsenal"}},
	{"Chelsea", core.SportSoccer, []string{"chelsea"}},
	{"Liverpool", core.SportSoccer, []string{"liverpool"}},
	{"Manchester United", core.SportSoccer, []string{"manchester united", "man united", "man utd"}},
	{"Manchester City", core.SportSoccer, []string{"manchester city", "man city"}},
	{"Tottenham", core.SportSoccer, []string{"tottenham", "tottenham hotspur"}},
	{"Newcastle", core.SportSoccer, []string{"newcastle", "newcastle united"}},
	{"Everton", core.SportSoccer, []string{"everton"}},
	{"Aston Villa", core.SportSoccer, []string{"aston villa"}},
	{"West Ham", core.SportSoccer, []string{"west ham", "west ham united"}},
	{"Leicester", core.SportSoccer, []string{"leicester", "leicester city"}},
	{"Brighton", core.SportSoccer, []string{"brighton"}},
	{"Real Madrid", core.SportSoccer, []string{"real madrid"}},
	{"Barcelona", core.SportSoccer, []string{"barcelona", "fc barcelona", "barca", "barça"}},
	{"Atletico Madrid", core.SportSoccer, []string{"atletico madrid", "atlético madrid", "atletico"}},
	{"Sevilla", core.SportSoccer, []string{"sevilla"}},
	{"Valencia", core.SportSoccer, []string{"valencia"}},
	{"Villarreal", core.SportSoccer, []string{"villarreal"}},
	{"Bayern Munich", core.SportSoccer, []string{"bayern munich", "bayern münchen", "bayern"}},
	{"Borussia Dortmund", core.SportSoccer, []string{"borussia dortmund", "dortmund"}},
	{"RB Leipzig", core.SportSoccer, []string{"rb leipzig", "leipzig"}},
	{"Juventus", core.SportSoccer, []string{"juventus", "juve"}},
	{"Inter Milan", core.SportSoccer, []string{"inter milan", "internazionale", "inter"}},
	{"AC Milan", core.SportSoccer, []string{"ac milan", "milan"}},
	{"Napoli", core.SportSoccer, []string{"napoli"}},
	{"Roma", core.SportSoccer, []string{"roma", "as roma"}},
	{"Lazio", core.SportSoccer, []string{"lazio"}},
	{"PSG", core.SportSoccer, []string{"psg", "paris saint-germain", "paris saint germain"}},
	{"Marseille", core.SportSoccer, []string{"marseille"}},
	{"Lyon", core.SportSoccer, []string{"lyon"}},
	{"Monaco", core.SportSoccer, []string{"monaco"}},
	{"Porto", core.SportSoccer, []string{"porto", "fc porto"}},
	{"Benfica", core.SportSoccer, []string{"benfica"}},
	{"Sporting", core.SportSoccer, []string{"sporting", "sporting cp", "sporting lisbon"}},
	{"Ajax", core.SportSoccer, []string{"ajax"}},
	{"Celtic", core.SportSoccer, []string{"celtic"}},
	{"Rangers", core.SportSoccer, []string{"rangers"}},
	{"Galatasaray", core.SportSoccer, []string{"galatasaray"}},
	{"Fenerbahce", core.SportSoccer, []string{"fenerbahce", "fenerbahçe"}},
}

type teamAlias struct {
	alias string
	name  string
	sport core.Sport
}

// aliasIndex is every alias flattened and sorted longest first so compound
// names win over the nicknames they contain.
var aliasIndex = buildAliasIndex()

func buildAliasIndex() []teamAlias {
	var idx []teamAlias
	for _, t := range knownTeams {
		for _, a := range t.aliases {
			idx = append(idx, teamAlias{alias: a, name: t.name, sport: t.sport})
		}
	}
	sort.SliceStable(idx, func(i, j int) bool { return len(idx[i].alias) > len(idx[j].alias) })
	return idx
}

// DetectTeams scans the lowercased text for known team names, longest alias
// first, and returns up to four matches ordered by position. Spans claimed
// by a longer alias are not re-matched by shorter ones.
func DetectTeams(scan string) []TeamMatch {
	consumed := make([]bool, len(scan))
	best := make(map[string]TeamMatch)

	for _, a := range aliasIndex {
		from := 0
		for {
			pos := indexWord(scan, a.alias, from)
			if pos < 0 {
				break
			}
			end := pos + len(a.alias)
			if !spanConsumed(consumed, pos, end) {
				markConsumed(consumed, pos, end)
				if prev, ok := best[a.name]; !ok || pos < prev.Pos {
					best[a.name] = TeamMatch{Name: a.name, Sport: a.sport, Pos: pos}
				}
			}
			from = end
		}
	}

	matches := make([]TeamMatch, 0, len(best))
	for _, m := range best {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Pos < matches[j].Pos })
	if len(matches) > 4 {
		matches = matches[:4]
	}
	return matches
}

func spanConsumed(consumed []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if consumed[i] {
			return true
		}
	}
	return false
}

func markConsumed(consumed []bool, start, end int) {
	for i := start; i < end; i++ {
		consumed[i] = true
	}
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// indexWord finds phrase in s at a word boundary, starting at from.
func indexWord(s, phrase string, from int) int {
	if phrase == "" || from >= len(s) {
		return -1
	}
	for {
		i := indexFrom(s, phrase, from)
		if i < 0 {
			return -1
		}
		end := i + len(phrase)
		beforeOK := i == 0 || !isAlnum(s[i-1])
		afterOK := end == len(s) || !isAlnum(s[end])
		if beforeOK && afterOK {
			return i
		}
		from = i + 1
	}
}

func indexFrom(s, sub string, from int) int {
	if from >= len(s) {
		return -1
	}
	i := strings.Index(s[from:], sub)
	if i < 0 {
		return -1
	}
	return from + i
}

// containsWord reports whether phrase occurs in s at word boundaries.
func containsWord(s, phrase string) bool {
	return indexWord(s, phrase, 0) >= 0
}
