package resolve

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/arbiterlab/sportsresolve/core"
	"github.com/arbiterlab/sportsresolve/pkg/advisor"
	"github.com/arbiterlab/sportsresolve/pkg/confidence"
	"github.com/arbiterlab/sportsresolve/pkg/consensus"
	"github.com/arbiterlab/sportsresolve/pkg/evidence"
	"github.com/arbiterlab/sportsresolve/pkg/normalize"
	"github.com/arbiterlab/sportsresolve/pkg/odds"
	"github.com/arbiterlab/sportsresolve/pkg/providers"
	"github.com/arbiterlab/sportsresolve/pkg/validate"
)

func (e *Engine) resolveStatistic(ctx context.Context, p *evidence.Payload, q core.StatisticQuery) *ResolutionResult {
	res := &ResolutionResult{Resolution: ResolutionInsufficientData, Confidence: 0.30}
	bundle := &evidence.StatisticsBundle{}
	p.Data.Statistics = bundle

	// Statistics keep being corrected right after the final whistle, so a
	// known event end inside the settlement window blocks resolution. An
	// unknown end time proceeds on whatever the providers report.
	if q.EventEndTime == nil {
		bundle.Warnings = append(bundle.Warnings,
			"event end time unknown; settling on provider-reported finals")
	} else if !core.ResolvableAt(q.EventEndTime, time.Now().UTC()) {
		bundle.Warnings = append(bundle.Warnings, fmt.Sprintf(
			"event ends %s; statistics settle 15 minutes after the final whistle",
			q.EventEndTime.UTC().Format(time.RFC3339)))
		res.Reasoning = "the event has not been over for 15 minutes yet"
		return res
	}

	var envelopes []core.ProviderResponse
	e.runStage(p, StageGather, func() error {
		envelopes = e.registry.Gather(ctx, e.client, providers.QueryFromStatistic(q), providers.PipelineStatistic)
		return nil
	})
	e.recordEnvelopes(p, envelopes)

	var stats []core.NormalizedStatistic
	var line *odds.MarketLine
	e.runStage(p, StageNormalize, func() error {
		for _, resp := range envelopes {
			ss := normalize.Statistics(resp, q)
			p.Data.AgentArtifacts = append(p.Data.AgentArtifacts, evidence.ArtifactFrom(resp, len(ss)))
			stats = append(stats, ss...)
			if line == nil && resp.Provider == "THE_ODDS_API" && resp.OK() {
				line = marketLine(resp.Payload, q)
			}
		}
		bundle.NormalizedStatistics = stats
		bundle.Providers = statProviders(stats)
		p.Data.AgentSummary = evidence.GatherSummary(p.Data.AgentArtifacts)
		return nil
	})

	var report core.ValidationReport
	e.runStage(p, StageValidate, func() error {
		report = validate.Check(stats)
		bundle.Validation = report
		return nil
	})

	var cons core.StatisticConsensus
	var rows []core.StatisticSource
	e.runStage(p, StageConsensus, func() error {
		cons = consensus.Reconcile(stats, q, line)
		rows = consensus.Rows(stats, q)
		bundle.Consensus = cons
		return nil
	})

	if !cons.Agreed {
		msg := fmt.Sprintf("statistic consensus rejected: %d corroborating sources across %d, variance %s",
			cons.AgreementCount, len(rows), trimFloat(cons.Variance))
		p.AddError(core.KindInsufficientConsensus, "", "%s", msg)
		bundle.Errors = append(bundle.Errors, msg)
		res.Reasoning = fmt.Sprintf("sources do not agree on %s within tolerance", q.StatisticType)
		return res
	}

	var score confidence.Score
	e.runStage(p, StageConfidence, func() error {
		score = confidence.Statistic(cons, report, rows, time.Now().UTC())
		bundle.Confidence = score
		return nil
	})

	value := *cons.AgreedValue
	display := formatStatValue(value, cons.Unit)
	agree := fmt.Sprintf("%d of %d sources agree %s = %s",
		cons.AgreementCount, len(rows), cons.StatisticType, display)

	if q.QueryType == core.QueryThreshold && q.Threshold != nil {
		res.Resolution = thresholdAnswer(value, *q.Threshold, q.Comparator)
		res.Reasoning = fmt.Sprintf("%s; %s %s %s resolves %s",
			agree, display, q.Comparator, formatStatValue(*q.Threshold, cons.Unit), res.Resolution)
	} else {
		res.Resolution = fmt.Sprintf("%s:%s", cons.StatisticType, display)
		res.Reasoning = agree
	}
	res.Confidence = score.Value
	res.Sources = capSources(cons.SupportingSources)

	e.advise(ctx, p, res, advisor.Input{
		RawQuery:   q.RawText,
		Pipeline:   string(providers.PipelineStatistic),
		Query:      q,
		Resolution: res.Resolution,
		Confidence: res.Confidence,
		Reasoning:  res.Reasoning,
		Consensus:  &cons,
		Providers:  cons.SupportingSources,
	})
	return res
}

func marketLine(payload any, q core.StatisticQuery) *odds.MarketLine {
	home, away := "", ""
	if q.Entities.Match != nil {
		home, away = q.Entities.Match.Home, q.Entities.Match.Away
	}
	return odds.LineFromPayload(payload, home, away)
}

// statProviders lists the distinct sources behind the normalized rows.
func statProviders(stats []core.NormalizedStatistic) []string {
	seen := map[string]bool{}
	for _, s := range stats {
		for _, src := range s.Sources {
			seen[src.Source] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// thresholdAnswer grades a threshold question. Strict and inclusive
// comparators follow their usual meaning; equality tolerates float noise.
func thresholdAnswer(value, threshold float64, cmp core.Comparator) string {
	var hit bool
	switch cmp {
	case core.CmpGT:
		hit = value > threshold
	case core.CmpGTE:
		hit = value >= threshold
	case core.CmpLT:
		hit = value < threshold
	case core.CmpLTE:
		hit = value <= threshold
	case core.CmpEQ:
		hit = math.Abs(value-threshold) <= 1e-9
	}
	if hit {
		return "yes"
	}
	return "no"
}

func formatStatValue(v float64, u core.Unit) string {
	s := trimFloat(v)
	if u == core.UnitPercentage {
		s += "%"
	}
	return s
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
