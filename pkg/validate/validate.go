// Package validate sanity-checks normalized statistics before consensus.
// Range rules bound each statistic type; logical rules catch combinations
// no real match can produce. Validation never drops data itself; it names
// invalid sources and lets consensus decide.
package validate

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/arbiterlab/sportsresolve/core"
)

// Check runs every range and logical rule over the normalized values.
func Check(stats []core.NormalizedStatistic) core.ValidationReport {
	report := core.ValidationReport{WithinRange: true, LogicallyConsistent: true}

	invalid := map[string]bool{}
	for _, s := range stats {
		rule, ok := rangeRules[s.Type]
		if !ok {
			continue
		}
		if s.Value < rule.Min || s.Value > rule.Max {
			report.WithinRange = false
			for _, src := range s.Sources {
				invalid[src.Source] = true
			}
		}
		if s.Value < rule.Typical[0] || s.Value > rule.Typical[1] {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("Unusual value for %s: %s", s.Type, fv(s.Value)))
		}
	}
	for src := range invalid {
		report.InvalidSources = append(report.InvalidSources, src)
	}
	sort.Strings(report.InvalidSources)

	checkLogical(stats, &report)
	return report
}

// WithinRange reports whether a single value sits inside the hard bounds
// for its statistic type. Types without a rule are always in range.
func WithinRange(t core.StatisticType, v float64) bool {
	rule, ok := rangeRules[t]
	if !ok {
		return true
	}
	return v >= rule.Min && v <= rule.Max
}

// checkLogical evaluates cross-statistic rules on the median value each
// (type, team) pair reports, so one outlier source cannot flip a rule.
func checkLogical(stats []core.NormalizedStatistic, report *core.ValidationReport) {
	values := map[string]map[core.StatisticType][]float64{}
	for _, s := range stats {
		if values[s.Team] == nil {
			values[s.Team] = map[core.StatisticType][]float64{}
		}
		values[s.Team][s.Type] = append(values[s.Team][s.Type], s.Value)
	}

	teams := make([]string, 0, len(values))
	for t := range values {
		teams = append(teams, t)
	}
	sort.Strings(teams)

	var possession []float64
	for _, team := range teams {
		m := map[core.StatisticType]float64{}
		for typ, vs := range values[team] {
			m[typ] = median(vs)
		}

		label := team
		if label == "" {
			label = "match"
		}

		if sot, ok := m[core.StatShotsOnTarget]; ok {
			if st, ok2 := m[core.StatShotsTotal]; ok2 && sot > st {
				report.LogicallyConsistent = false
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("shots_on_target %s exceeds shots_total %s for %s", fv(sot), fv(st), label))
			}
			if g, ok2 := m[core.StatGoals]; ok2 && g > sot {
				report.LogicallyConsistent = false
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("goals %s exceeds shots_on_target %s for %s", fv(g), fv(sot), label))
			}
		}

		y, hasY := m[core.StatYellowCards]
		r, hasR := m[core.StatRedCards]
		tc, hasT := m[core.StatTotalCards]
		if hasY && hasR && hasT && math.Abs(y+r-tc) > 1e-9 {
			report.LogicallyConsistent = false
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("yellow_cards %s + red_cards %s does not equal total_cards %s for %s", fv(y), fv(r), fv(tc), label))
		}

		if p, ok := m[core.StatPossession]; ok && team != "" {
			possession = append(possession, p)
		}
	}

	if len(possession) == 2 {
		sum := possession[0] + possession[1]
		if math.Abs(sum-100) > 2 {
			report.LogicallyConsistent = false
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("possession sums to %s, expected 100 within 2", fv(sum)))
		}
	}
}

func median(vs []float64) float64 {
	sorted := append([]float64(nil), vs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func fv(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
