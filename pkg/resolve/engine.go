// Package resolve drives a raw question through the full settlement
// pipeline: classification, provider fan-out, normalization, validation,
// consensus, confidence scoring, the optional advisory model pass, and
// evidence assembly. The engine always produces a result; upstream failures
// degrade the answer to insufficient_data instead of surfacing as errors.
package resolve

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arbiterlab/sportsresolve/core"
	"github.com/arbiterlab/sportsresolve/pkg/advisor"
	"github.com/arbiterlab/sportsresolve/pkg/classify"
	"github.com/arbiterlab/sportsresolve/pkg/evidence"
	"github.com/arbiterlab/sportsresolve/pkg/fetch"
	"github.com/arbiterlab/sportsresolve/pkg/metrics"
	"github.com/arbiterlab/sportsresolve/pkg/providers"
)

// ResolutionInsufficientData is the resolution returned whenever a pipeline
// gate fails. It signals "do not settle" to the caller.
const ResolutionInsufficientData = "insufficient_data"

// ResolutionResult is the engine's answer to one question.
type ResolutionResult struct {
	Resolution string           `json:"resolution"`
	Confidence float64          `json:"confidence"`
	Reasoning  string           `json:"reasoning"`
	Sources    []string         `json:"sources,omitempty"`
	Evidence   evidence.Payload `json:"evidence"`
}

// Pipeline stage names, in execution order.
const (
	StageClassify   = "classify"
	StageGather     = "gather"
	StageNormalize  = "normalize"
	StageValidate   = "validate"
	StageConsensus  = "consensus"
	StageConfidence = "confidence"
	StageAdvisor    = "advisor"
	StageEvidence   = "evidence"
)

// StageResult reports one completed pipeline stage to the engine callbacks.
type StageResult struct {
	RequestID string        `json:"request_id"`
	Stage     string        `json:"stage"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Engine resolves questions against the configured provider registry.
type Engine struct {
	registry *providers.Registry
	client   *fetch.Client
	advisor  *advisor.Advisor
	llmName  string
	metrics  *metrics.ResolverMetrics

	// OnStageComplete and OnError observe pipeline progress. Both are
	// optional and must be set before the first Resolve call.
	OnStageComplete func(*StageResult)
	OnError         func(error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithAdvisor wires the advisory model pass. The provider name labels the
// llm call metrics.
func WithAdvisor(a *advisor.Advisor, provider string) Option {
	return func(e *Engine) {
		e.advisor = a
		e.llmName = provider
	}
}

// WithMetrics swaps the metrics sink, mainly for tests.
func WithMetrics(m *metrics.ResolverMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine builds an engine over the given registry and fetch client.
func NewEngine(registry *providers.Registry, client *fetch.Client, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		client:   client,
		metrics:  metrics.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve answers a raw question. The returned error is reserved for
// invariant breaches; provider failures, classification dead ends, and
// consensus rejections all come back as an insufficient_data result with
// the failure recorded in the evidence trail.
func (e *Engine) Resolve(ctx context.Context, raw string) (*ResolutionResult, error) {
	started := time.Now()
	p := evidence.Begin(raw, "")

	var oq *core.OutcomeQuery
	var sq *core.StatisticQuery
	err := e.runStage(p, StageClassify, func() error {
		var cerr error
		oq, sq, cerr = classify.Classify(raw)
		return cerr
	})

	var res *ResolutionResult
	switch {
	case err != nil:
		res = &ResolutionResult{
			Resolution: ResolutionInsufficientData,
			Confidence: 0.25,
			Reasoning:  "the question does not match a supported outcome or statistic shape",
		}
	case sq != nil:
		p.Metadata.Pipeline = string(providers.PipelineStatistic)
		res = e.resolveStatistic(ctx, p, *sq)
	default:
		p.Metadata.Pipeline = string(providers.PipelineOutcome)
		res = e.resolveOutcome(ctx, p, *oq)
	}

	e.runStage(p, StageEvidence, func() error {
		p.Complete(time.Now())
		return nil
	})
	res.Evidence = *p

	pipeline := p.Metadata.Pipeline
	if pipeline == "" {
		pipeline = "unclassified"
	}
	outcome := "resolved"
	if res.Resolution == ResolutionInsufficientData {
		outcome = ResolutionInsufficientData
	}
	e.metrics.RecordResolution(pipeline, outcome, time.Since(started).Seconds(), res.Confidence)

	log.Info().
		Str("resolution_id", p.Metadata.ResolutionID.String()).
		Str("pipeline", pipeline).
		Str("resolution", res.Resolution).
		Float64("confidence", res.Confidence).
		Dur("elapsed", time.Since(started)).
		Msg("resolution complete")
	return res, nil
}

// runStage executes one pipeline stage, recording its timing and outcome.
// Stage errors land in the evidence trail; the error is also returned so
// callers can branch.
func (e *Engine) runStage(p *evidence.Payload, stage string, fn func() error) error {
	started := time.Now()
	err := fn()
	elapsed := time.Since(started)
	e.metrics.RecordStage(stage, elapsed.Seconds())

	sr := &StageResult{
		RequestID: p.Metadata.ResolutionID.String(),
		Stage:     stage,
		Success:   err == nil,
		Duration:  elapsed,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		sr.Error = err.Error()
		p.AddErr(err)
		if e.OnError != nil {
			e.OnError(err)
		}
		log.Warn().Str("stage", stage).Err(err).Msg("pipeline stage failed")
	}
	if e.OnStageComplete != nil {
		e.OnStageComplete(sr)
	}
	return err
}

// recordEnvelopes translates gathered envelopes into metrics and evidence
// error lines, returning how many carried usable payloads.
func (e *Engine) recordEnvelopes(p *evidence.Payload, envelopes []core.ProviderResponse) (okCount int) {
	for _, resp := range envelopes {
		seconds := 0.0
		if ms := resp.Meta["elapsed_ms"]; ms != "" {
			if v, perr := strconv.ParseFloat(ms, 64); perr == nil {
				seconds = v / 1000
			}
		}
		e.metrics.RecordProviderRequest(resp.Provider, resp.Status(), seconds)

		switch resp.Status() {
		case core.EnvelopeOK:
			okCount++
		case core.EnvelopeSkipped:
			p.AddError(core.KindProviderSkipped, resp.Provider, "%s", envelopeReason(resp, "not configured"))
		case core.EnvelopeFailed:
			kind := core.ErrorKind(resp.Meta["kind"])
			if kind == "" {
				kind = core.KindProviderFailure
			}
			p.AddError(kind, resp.Provider, "%s", envelopeReason(resp, "request failed"))
		}
	}
	return okCount
}

func envelopeReason(resp core.ProviderResponse, fallback string) string {
	if r := resp.Meta["reason"]; r != "" {
		return r
	}
	return fallback
}

// advise runs the optional advisory pass over a deterministic result. Gate
// failures are never reviewed: their fixed confidence band must survive.
// A failed model call is dropped silently; a differing resolution is
// recorded but never adopted.
func (e *Engine) advise(ctx context.Context, p *evidence.Payload, res *ResolutionResult, in advisor.Input) {
	if e.advisor == nil || res.Resolution == ResolutionInsufficientData {
		return
	}
	e.runStage(p, StageAdvisor, func() error {
		adv, err := e.advisor.Review(ctx, in)
		if err != nil {
			e.metrics.RecordLLMCall(e.llmName, "error")
			log.Debug().Err(err).Msg("advisory model call failed, keeping deterministic result")
			return nil
		}
		e.metrics.RecordLLMCall(e.llmName, "ok")
		p.ModelOutputRaw = adv.Raw

		view := advisor.Result{
			Resolution: res.Resolution,
			Confidence: res.Confidence,
			Reasoning:  res.Reasoning,
			Sources:    res.Sources,
		}
		if advisor.Merge(&view, adv) {
			p.AddError(core.KindLLMMismatch, "",
				"model proposed %q, deterministic resolution %q stands", adv.Resolution, res.Resolution)
		}
		res.Confidence = view.Confidence
		res.Reasoning = view.Reasoning
		res.Sources = view.Sources
		if adv.Reasoning != "" {
			p.Data.ModelSummary = adv.Reasoning
		}
		return nil
	})
}

// capSources dedupes provider names preserving order and enforces the
// result-wide source cap.
func capSources(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
		if len(out) == advisor.MaxSources {
			break
		}
	}
	return out
}
