package providers

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/arbiterlab/sportsresolve/core"
	"github.com/arbiterlab/sportsresolve/pkg/fetch"
)

// Concurrency caps for the provider fan-out, per pipeline.
const (
	outcomeConcurrency   = 3
	statisticConcurrency = 4
)

// Gather queries every registered provider serving the pipeline and returns
// exactly one envelope per provider. Unconfigured providers produce Skipped
// envelopes without any network traffic, failed fetches produce Failed
// envelopes carrying the error, and the caller's deadline propagates to
// every outstanding request. The result is sorted by tier then provider.
func (r *Registry) Gather(ctx context.Context, client *fetch.Client, q Query, pipeline Pipeline) []core.ProviderResponse {
	out := make([]core.ProviderResponse, 0, 8)

	var tasks []func(context.Context) core.ProviderResponse
	for _, s := range r.Specs(pipeline, q.Sport) {
		base, ok := s.BaseURL()
		if !ok {
			out = append(out, skippedEnvelope(s))
			continue
		}
		tasks = append(tasks, func(ctx context.Context) core.ProviderResponse {
			return fetchProvider(ctx, client, s, base, q)
		})
	}
	if pipeline == PipelineOutcome {
		for _, f := range r.rss.sources() {
			tasks = append(tasks, func(ctx context.Context) core.ProviderResponse {
				return fetchFeed(ctx, client, f)
			})
		}
	}

	limit := outcomeConcurrency
	if pipeline == PipelineStatistic {
		limit = statisticConcurrency
	}

	results := make(chan core.ProviderResponse, len(tasks))
	var g errgroup.Group
	g.SetLimit(limit)
	for _, run := range tasks {
		g.Go(func() error {
			results <- run(ctx)
			return nil
		})
	}
	g.Wait()
	close(results)

	for resp := range results {
		out = append(out, resp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return out[i].Tier < out[j].Tier
		}
		return out[i].Provider < out[j].Provider
	})
	return out
}

func fetchProvider(ctx context.Context, client *fetch.Client, s Spec, base string, q Query) core.ProviderResponse {
	reqURL := s.URL(base, q)
	started := time.Now()

	var payload any
	var err error
	if s.Retry != nil {
		payload, err = client.JSONWithRetry(ctx, reqURL, s.Headers(), *s.Retry)
	} else {
		payload, err = client.JSON(ctx, reqURL, s.Headers())
	}

	resp := core.ProviderResponse{
		Provider:    s.Key,
		Tier:        s.Tier,
		Weight:      s.Weight,
		CollectedAt: time.Now().UTC(),
		Meta: map[string]string{
			"url":        redactURL(reqURL),
			"elapsed_ms": strconv.FormatInt(time.Since(started).Milliseconds(), 10),
		},
	}
	if err != nil {
		log.Warn().Str("provider", s.Key).Str("url", resp.Meta["url"]).Err(err).Msg("provider fetch failed")
		return markFailed(resp, err)
	}
	resp.Payload = payload
	resp.Meta["status"] = core.EnvelopeOK
	return resp
}

func skippedEnvelope(s Spec) core.ProviderResponse {
	return core.ProviderResponse{
		Provider:    s.Key,
		Tier:        s.Tier,
		Weight:      s.Weight,
		CollectedAt: time.Now().UTC(),
		Meta: map[string]string{
			"status": core.EnvelopeSkipped,
			"reason": "not configured",
			"kind":   string(core.KindProviderSkipped),
		},
	}
}

func markFailed(resp core.ProviderResponse, err error) core.ProviderResponse {
	resp.Meta["status"] = core.EnvelopeFailed
	resp.Meta["reason"] = err.Error()
	if k := core.KindOf(err); k != "" {
		resp.Meta["kind"] = string(k)
	}
	return resp
}

// redactURL strips credential query parameters before a URL is logged or
// stored in evidence.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	qs := u.Query()
	changed := false
	for _, k := range []string{"apiKey", "api_key", "apikey", "key", "token"} {
		if qs.Has(k) {
			qs.Del(k)
			changed = true
		}
	}
	if changed {
		u.RawQuery = qs.Encode()
	}
	return u.String()
}
