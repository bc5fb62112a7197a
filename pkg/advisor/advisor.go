// Package advisor runs the optional LLM review of a deterministic
// resolution. The model is a suggestion channel only: it may sharpen the
// reasoning, contribute sources, and nudge confidence by averaging, but it
// can never change the resolution itself.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/arbiterlab/sportsresolve/core"
	"github.com/arbiterlab/sportsresolve/pkg/confidence"
	"github.com/arbiterlab/sportsresolve/tools"
)

// MaxSources caps the merged source list.
const MaxSources = 8

const systemPrompt = `You are an auditor for a sports resolution engine used in prediction-market settlement.
You are given the deterministic pipeline's findings. Verify them against the evidence summary.
Respond with strict JSON only: {"resolution": string, "confidence": number, "reasoning": string, "sources": [string]}.
Do not invent data. If the evidence is insufficient, say so in the reasoning.`

// Input is the evidence digest put in front of the model.
type Input struct {
	RawQuery    string                   `json:"raw_query"`
	Pipeline    string                   `json:"pipeline"`
	Query       any                      `json:"query,omitempty"`
	Resolution  string                   `json:"resolution"`
	Confidence  float64                  `json:"confidence"`
	Reasoning   string                   `json:"reasoning,omitempty"`
	AcceptedKey string                   `json:"accepted_group_key,omitempty"`
	Consensus   *core.StatisticConsensus `json:"consensus,omitempty"`
	Providers   []string                 `json:"providers,omitempty"`
}

// Advice is the model's parsed reply. Confidence is nil when the model
// returned none; Raw preserves the unparsed reply for the evidence trail.
type Advice struct {
	Resolution string
	Confidence *float64
	Reasoning  string
	Sources    []string
	Raw        string
}

// Result is the mutable view of a deterministic resolution that Merge is
// allowed to touch.
type Result struct {
	Resolution string
	Confidence float64
	Reasoning  string
	Sources    []string
}

// Advisor wraps an LLM client.
type Advisor struct {
	client tools.Client
}

// New returns an Advisor over the given client, or nil when the client is
// nil so callers can wire it straight from optional configuration.
func New(client tools.Client) *Advisor {
	if client == nil {
		return nil
	}
	return &Advisor{client: client}
}

// Review asks the model to audit the deterministic findings. A transport
// failure comes back as an llm_failure error; an unparseable reply is
// reduced to bare reasoning rather than rejected.
func (a *Advisor) Review(ctx context.Context, in Input) (*Advice, error) {
	digest, err := json.Marshal(in)
	if err != nil {
		return nil, core.WrapError(core.KindLLMFailure, "", err)
	}

	prompt := fmt.Sprintf(`Deterministic findings:
%s

Audit these findings. Reply with the JSON object only.`, string(digest))

	raw, err := a.client.Complete(ctx, prompt, systemPrompt)
	if err != nil {
		return nil, core.WrapError(core.KindLLMFailure, "", err)
	}
	return parseAdvice(raw), nil
}

// parseAdvice reads the model output leniently: fences stripped, first
// complete JSON object extracted, fields optional, confidence accepted on
// either a 0-1 or 0-100 scale.
func parseAdvice(raw string) *Advice {
	adv := &Advice{Raw: raw}

	cleaned := stripCodeFences(raw)
	obj := extractJSON(cleaned)
	if obj == "" {
		adv.Reasoning = strings.TrimSpace(cleaned)
		return adv
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(obj), &m); err != nil {
		adv.Reasoning = strings.TrimSpace(cleaned)
		return adv
	}

	adv.Resolution = strings.TrimSpace(extractString(m, "resolution"))
	adv.Reasoning = strings.TrimSpace(extractString(m, "reasoning"))

	if v, ok := m["confidence"]; ok {
		if c, ok := toFloat(v); ok {
			if c > 1 && c <= 100 {
				c = c / 100.0
			}
			c = confidence.Clamp(c)
			adv.Confidence = &c
		}
	}

	if items, ok := m["sources"].([]any); ok {
		for _, item := range items {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				adv.Sources = append(adv.Sources, strings.TrimSpace(s))
			}
		}
	}
	return adv
}

// Merge folds advice into the deterministic result. The resolution never
// changes: a differing suggestion only reports mismatch so the caller can
// record it. A nil advice is a no-op.
func Merge(res *Result, adv *Advice) (mismatch bool) {
	if adv == nil {
		return false
	}
	if adv.Reasoning != "" {
		res.Reasoning = adv.Reasoning
	}
	if len(adv.Sources) > 0 {
		res.Sources = unionSources(res.Sources, adv.Sources)
	}
	if adv.Confidence != nil {
		res.Confidence = confidence.Clamp((res.Confidence + *adv.Confidence) / 2)
	}
	if adv.Resolution != "" && !strings.EqualFold(adv.Resolution, res.Resolution) {
		log.Debug().Str("deterministic", res.Resolution).Str("llm", adv.Resolution).
			Msg("advisor disputed the resolution")
		return true
	}
	return false
}

// unionSources keeps existing sources first, appends new unique ones, and
// caps the list.
func unionSources(existing, extra []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(existing)+len(extra))
	for _, s := range existing {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range extra {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if len(out) > MaxSources {
		out = out[:MaxSources]
	}
	return out
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

// extractJSON finds the first complete JSON object in a string.
func extractJSON(s string) string {
	start := -1
	braceCount := 0
	for i, c := range s {
		if c == '{' {
			if start == -1 {
				start = i
			}
			braceCount++
		} else if c == '}' {
			braceCount--
			if braceCount == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func extractString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
