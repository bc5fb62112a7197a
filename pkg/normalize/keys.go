package normalize

import (
	"fmt"
	"strings"

	"github.com/arbiterlab/sportsresolve/core"
	"github.com/arbiterlab/sportsresolve/pkg/classify"
)

// canonicalTeam maps a provider-reported team name onto the classifier's
// canonical short form so that "Los Angeles Lakers" and "Lakers" build the
// same grouping key. Names outside the known-team table pass through.
func canonicalTeam(name string) string {
	if name == "" {
		return ""
	}
	if m := classify.DetectTeams(strings.ToLower(name)); len(m) == 1 {
		return m[0].Name
	}
	return name
}

// SameTeam reports whether two team names refer to the same side after
// canonicalization. Long unknown names also match by containment so
// "Wrexham AFC" lines up with "Wrexham".
func SameTeam(a, b string) bool {
	na := core.Normalize(canonicalTeam(a))
	nb := core.Normalize(canonicalTeam(b))
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if len(na) >= 4 && len(nb) >= 4 {
		return strings.Contains(na, nb) || strings.Contains(nb, na)
	}
	return false
}

// teamsKeyFor builds the order-independent key segment for the fact's sides.
func teamsKeyFor(home, away string) string {
	return core.TeamsKey(canonicalTeam(home), canonicalTeam(away))
}

// canonicalKey derives the grouping key for a fact, in fixed precedence:
// award claims, then winner claims, then bare scorelines. Facts that carry
// none of the three are not groupable and return "" so the caller drops
// them.
func canonicalKey(f core.NormalizedFact, date string) string {
	teams := teamsKeyFor(f.HomeTeam, f.AwayTeam)

	if f.Award != "" && f.Player != "" {
		return fmt.Sprintf("award:%s:%s:%s:%s", core.Normalize(f.Award), core.Normalize(f.Player), teams, date)
	}
	if f.Winner != "" {
		return fmt.Sprintf("winner:%s:%s:%s", core.Normalize(canonicalTeam(f.Winner)), teams, date)
	}
	if f.HomeScore != nil && f.AwayScore != nil {
		return fmt.Sprintf("score:%s:%d-%d:%s", teams, *f.HomeScore, *f.AwayScore, date)
	}
	return ""
}
