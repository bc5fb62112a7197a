// Package confidence turns consensus figures into a calibrated score.
// A Score keeps every additive factor and multiplicative penalty that
// produced its value so the evidence trail can replay the arithmetic.
package confidence

import (
	"math"
	"strings"
	"time"

	"github.com/arbiterlab/sportsresolve/core"
)

// Factor is one additive contribution to a score.
type Factor struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Penalty is one multiplicative adjustment applied after the factors sum.
type Penalty struct {
	Reason     string  `json:"reason"`
	Multiplier float64 `json:"multiplier"`
}

// Score is a confidence value plus the adjustments that produced it.
type Score struct {
	Value     float64   `json:"value"`
	Factors   []Factor  `json:"factors,omitempty"`
	Penalties []Penalty `json:"penalties,omitempty"`
}

func (s *Score) add(name string, v float64) {
	s.Factors = append(s.Factors, Factor{Name: name, Value: v})
	s.Value += v
}

func (s *Score) multiply(reason string, m float64) {
	s.Penalties = append(s.Penalties, Penalty{Reason: reason, Multiplier: m})
	s.Value *= m
}

// Clamp bounds v to [0, 1].
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// freshnessWindow is how recent an outcome fact must be to count as fresh.
const freshnessWindow = 72 * time.Hour

// OutcomeInputs are the consensus figures an outcome score derives from.
type OutcomeInputs struct {
	Providers      int     // distinct providers in the accepted group
	Conflicts      int     // competing groups disagreeing with it
	AvgReliability float64 // reliability average of the accepted group
	Facts          []core.NormalizedFact
}

// Outcome scores an outcome resolution. Base depends on how many distinct
// providers corroborate, conflicts subtract, reliability above or below 0.7
// adjusts, and recent end timestamps earn a freshness bonus.
func Outcome(in OutcomeInputs, now time.Time) Score {
	var s Score

	base := 0.3
	switch {
	case in.Providers >= 5:
		base = 0.9
	case in.Providers == 4:
		base = 0.75
	case in.Providers == 3:
		base = 0.6
	}
	s.add("provider_base", base)
	s.add("conflict_penalty", -math.Min(0.25, float64(in.Conflicts)*0.1))
	s.add("reliability_adjustment", (in.AvgReliability-0.7)*0.15)
	s.add("freshness_bonus", outcomeFreshness(in.Facts, now))

	s.Value = Clamp(s.Value)
	return s
}

// outcomeFreshness pays +0.05 when every fact ended within the window and
// +0.02 when a majority did. A missing end timestamp counts as stale.
func outcomeFreshness(facts []core.NormalizedFact, now time.Time) float64 {
	if len(facts) == 0 {
		return 0
	}
	fresh := 0
	for _, f := range facts {
		if f.EndTimestamp != nil && now.Sub(*f.EndTimestamp) <= freshnessWindow {
			fresh++
		}
	}
	switch {
	case fresh == len(facts):
		return 0.05
	case fresh*2 > len(facts):
		return 0.02
	}
	return 0
}

// Statistic scores a statistic consensus. The weighted factors reward stats
// provider and tier-1 corroboration, broad agreement, betting market
// alignment, low variance, and fresh sources; penalties multiply the sum
// down when the sources scatter or validation flagged the value.
func Statistic(c core.StatisticConsensus, report core.ValidationReport, sources []core.StatisticSource, now time.Time) Score {
	var s Score
	tol := core.Tolerance(c.Unit)

	s.add("stats_provider_agreement", b01(c.StatsProviderCount >= 1)*0.40)
	s.add("tier1_agreement", b01(c.Tier1Count >= 1)*0.25)

	ratio := float64(c.AgreementCount) / math.Max(3, float64(len(sources)))
	s.add("agreement_ratio", math.Min(1, ratio)*0.15)

	s.add("betting_market_alignment", b01(c.BettingMarketAlignment)*0.10)
	s.add("low_variance", Clamp(1-c.Variance/tol)*0.05)
	s.add("data_freshness", sourceFreshness(sources, now)*0.05)

	if c.Variance > 2 {
		s.multiply("high variance across sources", 0.8)
	}
	if len(c.Outliers) >= 2 {
		s.multiply("multiple outlier sources", 0.9)
	}
	if hasUnusualWarning(report.Warnings) {
		s.multiply("validation flagged unusual value", 0.95)
	}

	s.Value = Clamp(s.Value)
	return s
}

// sourceFreshness maps the average source age onto a 0.2..1 band.
func sourceFreshness(sources []core.StatisticSource, now time.Time) float64 {
	if len(sources) == 0 {
		return 0.2
	}
	var total time.Duration
	for _, src := range sources {
		total += now.Sub(src.Timestamp)
	}
	avg := total / time.Duration(len(sources))
	switch {
	case avg <= 15*time.Minute:
		return 1
	case avg <= 60*time.Minute:
		return 0.8
	case avg <= 180*time.Minute:
		return 0.6
	case avg <= 720*time.Minute:
		return 0.4
	}
	return 0.2
}

func hasUnusualWarning(warnings []string) bool {
	for _, w := range warnings {
		if strings.Contains(w, "Unusual value") {
			return true
		}
	}
	return false
}

func b01(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
