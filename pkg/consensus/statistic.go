package consensus

import (
	"math"
	"sort"
	"strings"

	"github.com/arbiterlab/sportsresolve/core"
	"github.com/arbiterlab/sportsresolve/pkg/odds"
	"github.com/arbiterlab/sportsresolve/pkg/validate"
)

// Reconcile reduces the normalized statistics matching a query to a single
// consensus value. Each provider contributes one effective value (per-team
// rows are summed for match totals), the value with the most peers inside
// the unit tolerance wins, and ties break toward the smaller value so the
// result is independent of input order.
func Reconcile(stats []core.NormalizedStatistic, q core.StatisticQuery, line *odds.MarketLine) core.StatisticConsensus {
	unit := core.UnitFor(q.StatisticType)
	out := core.StatisticConsensus{StatisticType: q.StatisticType, Unit: unit}

	rows := providerValues(filterByQuery(stats, q), q)
	if len(rows) == 0 {
		return out
	}

	tol := core.Tolerance(unit)
	agreed, count := bestValue(rows, tol)
	out.AgreedValue = &agreed
	out.AgreementCount = count
	out.Variance = populationVariance(rows)

	supporting := map[string]bool{}
	for _, r := range rows {
		if math.Abs(r.ParsedValue-agreed) >= tol {
			out.Outliers = append(out.Outliers, r)
			continue
		}
		supporting[r.Source] = true
		if r.Tier == 1 {
			out.Tier1Count++
		}
		if core.IsStatsProvider(r.Source) {
			out.StatsProviderCount++
		}
		if r.Source == "OFFICIAL_LEAGUE" {
			out.OfficialSourcePresent = true
		}
	}
	for name := range supporting {
		out.SupportingSources = append(out.SupportingSources, name)
	}
	sort.Strings(out.SupportingSources)

	out.Agreed = count >= MinCorroboratingProviders &&
		out.StatsProviderCount >= 1 &&
		out.Variance <= tol
	out.BettingMarketAlignment = odds.AlignsWith(line, agreed)
	return out
}

// Rows exposes the per-provider effective values Reconcile works from, so
// confidence scoring and the evidence trail see the same inputs.
func Rows(stats []core.NormalizedStatistic, q core.StatisticQuery) []core.StatisticSource {
	return providerValues(filterByQuery(stats, q), q)
}

// filterByQuery keeps statistics of the queried type whose entity scope is
// compatible with the question. Unscoped rows always pass; scoped rows must
// name the queried player, the queried team, or one of the match sides.
// Rows whose value fails the hard range bounds are dropped here.
func filterByQuery(stats []core.NormalizedStatistic, q core.StatisticQuery) []core.NormalizedStatistic {
	var kept []core.NormalizedStatistic
	for _, s := range stats {
		if s.Type != q.StatisticType {
			continue
		}
		if !validate.WithinRange(s.Type, s.Value) {
			continue
		}
		if q.Entities.Player != "" {
			if s.Player != "" && !entityMatch(s.Player, q.Entities.Player) {
				continue
			}
		}
		if s.Team != "" && !teamInScope(s.Team, q) {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

func teamInScope(team string, q core.StatisticQuery) bool {
	if q.Entities.Team != "" {
		return entityMatch(team, q.Entities.Team)
	}
	if m := q.Entities.Match; m != nil {
		return entityMatch(team, m.Home) || entityMatch(team, m.Away)
	}
	return true
}

// entityMatch compares two entity names after normalization, accepting
// containment for names long enough that a substring is unambiguous.
func entityMatch(a, b string) bool {
	na, nb := core.Normalize(a), core.Normalize(b)
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

// providerValues collapses the filtered statistics to one effective value
// per provider. A provider that reported per-team rows for a match total
// has them summed; a provider that reported an unscoped total keeps it.
func providerValues(stats []core.NormalizedStatistic, q core.StatisticQuery) []core.StatisticSource {
	type entry struct {
		src  core.StatisticSource
		team string
	}
	byProvider := map[string][]entry{}
	var order []string
	for _, s := range stats {
		for _, src := range s.Sources {
			if _, seen := byProvider[src.Source]; !seen {
				order = append(order, src.Source)
			}
			byProvider[src.Source] = append(byProvider[src.Source], entry{src: src, team: s.Team})
		}
	}
	sort.Strings(order)

	scoped := q.Entities.Player != "" || q.Entities.Team != ""
	var rows []core.StatisticSource
	for _, provider := range order {
		entries := byProvider[provider]

		if scoped {
			// Prefer the row naming the queried entity over a bare value.
			pick := entries[0]
			for _, e := range entries {
				if e.team != "" {
					pick = e
					break
				}
			}
			rows = append(rows, pick.src)
			continue
		}

		// Match total: an explicit unscoped row wins; otherwise sum one
		// value per team when the provider split the total by side.
		var unscoped *entry
		perTeam := map[string]float64{}
		var teams []string
		for i, e := range entries {
			if e.team == "" {
				if unscoped == nil {
					unscoped = &entries[i]
				}
				continue
			}
			if _, ok := perTeam[e.team]; !ok {
				perTeam[e.team] = e.src.ParsedValue
				teams = append(teams, e.team)
			}
		}
		switch {
		case unscoped != nil:
			rows = append(rows, unscoped.src)
		case len(teams) >= 2:
			sum := 0.0
			for _, t := range teams {
				sum += perTeam[t]
			}
			src := entries[0].src
			src.ParsedValue = sum
			src.RawValue = nil
			src.Metadata = map[string]string{"derived": "team_sum"}
			rows = append(rows, src)
		default:
			rows = append(rows, entries[0].src)
		}
	}
	return rows
}

// bestValue picks the candidate with the most peers strictly inside the
// tolerance window. Ties break toward the smaller value.
func bestValue(rows []core.StatisticSource, tol float64) (value float64, peers int) {
	peers = -1
	for _, c := range rows {
		count := 0
		for _, r := range rows {
			if math.Abs(r.ParsedValue-c.ParsedValue) < tol {
				count++
			}
		}
		if count > peers || (count == peers && c.ParsedValue < value) {
			value, peers = c.ParsedValue, count
		}
	}
	return value, peers
}

func populationVariance(rows []core.StatisticSource) float64 {
	if len(rows) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range rows {
		mean += r.ParsedValue
	}
	mean /= float64(len(rows))
	sum := 0.0
	for _, r := range rows {
		d := r.ParsedValue - mean
		sum += d * d
	}
	return sum / float64(len(rows))
}
