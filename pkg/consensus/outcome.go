// Package consensus reconciles normalized claims into a single accepted
// answer. Outcome facts are grouped by canonical key and the best
// corroborated group wins; statistic values are reconciled by tolerance
// peer counting. Both paths are pure and order-independent.
package consensus

import (
	"sort"
	"strings"

	"github.com/arbiterlab/sportsresolve/core"
)

// MinCorroboratingProviders is the floor of distinct providers an accepted
// group needs before the orchestrator derives a non-null resolution.
const MinCorroboratingProviders = 3

// finalStatusTokens mark a provider status as end-of-match.
var finalStatusTokens = []string{
	"ft", "fulltime", "finished", "final", "completed",
	"after overtime", "aet", "ended", "finale",
}

// SelectGroup groups facts by canonical key and picks the group backed by
// the most distinct providers, breaking ties toward higher average
// reliability and then lexicographically by key. Conflicts counts the
// non-accepted groups that still had at least one provider behind them.
func SelectGroup(facts []core.NormalizedFact) (accepted *core.EvidenceGroup, groups []core.EvidenceGroup, conflicts int) {
	byKey := map[string][]core.NormalizedFact{}
	for _, f := range facts {
		if f.CanonicalKey == "" {
			continue
		}
		byKey[f.CanonicalKey] = append(byKey[f.CanonicalKey], f)
	}
	if len(byKey) == 0 {
		return nil, nil, 0
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups = make([]core.EvidenceGroup, 0, len(keys))
	for _, k := range keys {
		groups = append(groups, buildGroup(k, byKey[k]))
	}

	best := 0
	for i := 1; i < len(groups); i++ {
		b, g := groups[best], groups[i]
		if len(g.Providers) > len(b.Providers) ||
			(len(g.Providers) == len(b.Providers) && g.ReliabilityAverage > b.ReliabilityAverage) {
			best = i
		}
	}
	accepted = &groups[best]

	for i := range groups {
		if i != best && len(groups[i].Providers) > 0 {
			conflicts++
		}
	}
	return accepted, groups, conflicts
}

func buildGroup(key string, facts []core.NormalizedFact) core.EvidenceGroup {
	seen := map[string]bool{}
	var providers []string
	sum := 0.0
	for _, f := range facts {
		sum += f.Reliability
		if !seen[f.Provider] {
			seen[f.Provider] = true
			providers = append(providers, f.Provider)
		}
	}
	sort.Strings(providers)
	return core.EvidenceGroup{
		Key:                key,
		Facts:              facts,
		Providers:          providers,
		ReliabilityAverage: sum / float64(len(facts)),
	}
}

// FinalFacts restricts a group to its end-of-match facts when any exist.
// News facts count as final; others need a final status token.
func FinalFacts(g core.EvidenceGroup) []core.NormalizedFact {
	var finals []core.NormalizedFact
	for _, f := range g.Facts {
		if IsFinal(f) {
			finals = append(finals, f)
		}
	}
	if len(finals) > 0 {
		return finals
	}
	return g.Facts
}

// IsFinal reports whether a fact describes a completed match.
func IsFinal(f core.NormalizedFact) bool {
	if f.Category == core.CategoryNews {
		return true
	}
	s := strings.ToLower(f.Status)
	if s == "" {
		return false
	}
	for _, tok := range finalStatusTokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
