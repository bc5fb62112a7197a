package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/arbiterlab/sportsresolve/core"
	"github.com/arbiterlab/sportsresolve/pkg/advisor"
	"github.com/arbiterlab/sportsresolve/pkg/confidence"
	"github.com/arbiterlab/sportsresolve/pkg/consensus"
	"github.com/arbiterlab/sportsresolve/pkg/evidence"
	"github.com/arbiterlab/sportsresolve/pkg/normalize"
	"github.com/arbiterlab/sportsresolve/pkg/providers"
)

func (e *Engine) resolveOutcome(ctx context.Context, p *evidence.Payload, q core.OutcomeQuery) *ResolutionResult {
	res := &ResolutionResult{Resolution: ResolutionInsufficientData, Confidence: 0.30}

	var envelopes []core.ProviderResponse
	e.runStage(p, StageGather, func() error {
		envelopes = e.registry.Gather(ctx, e.client, providers.QueryFromOutcome(q), providers.PipelineOutcome)
		return nil
	})
	okCount := e.recordEnvelopes(p, envelopes)

	var facts []core.NormalizedFact
	e.runStage(p, StageNormalize, func() error {
		for _, resp := range envelopes {
			fs := normalize.Facts(resp, q)
			p.Data.AgentArtifacts = append(p.Data.AgentArtifacts, evidence.ArtifactFrom(resp, len(fs)))
			facts = append(facts, fs...)
		}
		p.Data.NormalizedFacts = facts
		p.Data.AgentSummary = evidence.GatherSummary(p.Data.AgentArtifacts)
		return nil
	})

	var accepted *core.EvidenceGroup
	var conflicts int
	e.runStage(p, StageConsensus, func() error {
		var groups []core.EvidenceGroup
		accepted, groups, conflicts = consensus.SelectGroup(facts)
		p.Data.Groups = groups
		if accepted != nil {
			p.Data.AcceptedGroupKey = accepted.Key
		}
		return nil
	})

	if accepted == nil || len(accepted.Providers) < consensus.MinCorroboratingProviders {
		have := 0
		if accepted != nil {
			have = len(accepted.Providers)
		}
		p.AddError(core.KindInsufficientConsensus, "",
			"best outcome group has %d corroborating providers, need %d", have, consensus.MinCorroboratingProviders)
		res.Reasoning = fmt.Sprintf("only %d of the required %d providers corroborate an outcome",
			have, consensus.MinCorroboratingProviders)
		return res
	}

	resolution, ok := deriveOutcome(q, *accepted)
	if !ok {
		p.AddError(core.KindInsufficientConsensus, "",
			"accepted group %q carries no answer for a %s question", accepted.Key, q.QuestionType)
		res.Reasoning = fmt.Sprintf("the corroborated facts do not answer a %s question", q.QuestionType)
		return res
	}

	var score confidence.Score
	e.runStage(p, StageConfidence, func() error {
		score = confidence.Outcome(confidence.OutcomeInputs{
			Providers:      len(accepted.Providers),
			Conflicts:      conflicts,
			AvgReliability: accepted.ReliabilityAverage,
			Facts:          accepted.Facts,
		}, time.Now().UTC())
		return nil
	})

	res.Resolution = resolution
	res.Confidence = score.Value
	res.Reasoning = fmt.Sprintf("%d/%d providers corroborate %s",
		len(accepted.Providers), okCount, accepted.Key)
	res.Sources = capSources(accepted.Providers)

	e.advise(ctx, p, res, advisor.Input{
		RawQuery:    q.RawText,
		Pipeline:    string(providers.PipelineOutcome),
		Query:       q,
		Resolution:  res.Resolution,
		Confidence:  res.Confidence,
		Reasoning:   res.Reasoning,
		AcceptedKey: accepted.Key,
		Providers:   accepted.Providers,
	})
	return res
}

// deriveOutcome turns the accepted evidence group into the literal answer
// for the question shape. ok is false when the group, despite clearing the
// corroboration gate, does not actually answer the question.
func deriveOutcome(q core.OutcomeQuery, g core.EvidenceGroup) (string, bool) {
	finals := consensus.FinalFacts(g)

	switch q.QuestionType {
	case core.QuestionDidResultHappen:
		winner := winnerOf(finals)
		if winner == "" || len(q.Teams) == 0 {
			return "", false
		}
		if normalize.SameTeam(winner, q.Teams[0]) {
			return "yes", true
		}
		return "no", true

	case core.QuestionScoreline:
		for _, f := range finals {
			if f.HomeScore != nil && f.AwayScore != nil && f.HomeTeam != "" && f.AwayTeam != "" {
				return fmt.Sprintf("%s %d-%d %s", f.HomeTeam, *f.HomeScore, *f.AwayScore, f.AwayTeam), true
			}
		}
		return "", false

	case core.QuestionPlayerAward:
		for _, f := range g.Facts {
			if f.Category == core.CategoryAward && f.Player != "" {
				return f.Player, true
			}
		}
		return "", false

	default:
		// who_won and free-form questions both resolve to the winner.
		if w := winnerOf(finals); w != "" {
			return w, true
		}
		return "", false
	}
}

// winnerOf picks the display spelling of the group's winner. All facts in a
// group name the same side; the longest spelling is the most descriptive
// and the tie-break keeps the choice order-independent.
func winnerOf(facts []core.NormalizedFact) string {
	best := ""
	for _, f := range facts {
		if f.Winner == "" {
			continue
		}
		if len(f.Winner) > len(best) || (len(f.Winner) == len(best) && f.Winner < best) {
			best = f.Winner
		}
	}
	return best
}
