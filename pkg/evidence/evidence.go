// Package evidence assembles the audit payload stored with every
// resolution. The payload is self-contained: raw provider artifacts are
// fingerprinted, every intermediate stage output is embedded, and all
// errors carry their kind, so a stored resolution can be replayed and
// checked without the original logs.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/arbiterlab/sportsresolve/core"
	"github.com/arbiterlab/sportsresolve/pkg/confidence"
)

// Metadata identifies one resolution run.
type Metadata struct {
	ResolutionID uuid.UUID `json:"resolution_id"`
	RawQuery     string    `json:"raw_query"`
	Pipeline     string    `json:"pipeline,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	DurationMs   int64     `json:"duration_ms"`
	Debug        bool      `json:"debug,omitempty"`
}

// Artifact records one provider envelope. PayloadSHA256 fingerprints the
// raw payload so stored evidence can be checked against a re-fetch.
type Artifact struct {
	Provider      string    `json:"provider"`
	Tier          int       `json:"tier"`
	Status        string    `json:"status"`
	URL           string    `json:"url,omitempty"`
	Error         string    `json:"error,omitempty"`
	CollectedAt   time.Time `json:"collected_at"`
	PayloadSHA256 string    `json:"payload_sha256,omitempty"`
	Items         int       `json:"items"`
}

// StatisticsBundle carries the statistic pipeline's intermediate outputs.
type StatisticsBundle struct {
	Providers            []string                   `json:"providers,omitempty"`
	NormalizedStatistics []core.NormalizedStatistic `json:"normalized_statistics,omitempty"`
	Validation           core.ValidationReport      `json:"validation"`
	Consensus            core.StatisticConsensus    `json:"consensus"`
	Confidence           confidence.Score           `json:"confidence"`
	Errors               []string                   `json:"errors,omitempty"`
	Warnings             []string                   `json:"warnings,omitempty"`
}

// Data is the evidence body.
type Data struct {
	AgentSummary     string                `json:"agent_summary,omitempty"`
	AgentArtifacts   []Artifact            `json:"agent_artifacts,omitempty"`
	NormalizedFacts  []core.NormalizedFact `json:"normalized_facts,omitempty"`
	Groups           []core.EvidenceGroup  `json:"groups,omitempty"`
	AcceptedGroupKey string                `json:"accepted_group_key,omitempty"`
	Statistics       *StatisticsBundle     `json:"statistics,omitempty"`
	ModelSummary     string                `json:"model_summary,omitempty"`
}

// Line is one recorded pipeline error.
type Line struct {
	Kind     core.ErrorKind `json:"kind"`
	Provider string         `json:"provider,omitempty"`
	Message  string         `json:"message"`
}

// Payload is the complete evidence trail of one resolution.
type Payload struct {
	Metadata       Metadata `json:"metadata"`
	Data           Data     `json:"data"`
	Errors         []Line   `json:"errors,omitempty"`
	ModelOutputRaw string   `json:"model_output_raw,omitempty"`
}

// Begin opens a payload for a new resolution, minting its id.
func Begin(rawQuery, pipeline string) *Payload {
	return &Payload{
		Metadata: Metadata{
			ResolutionID: uuid.New(),
			RawQuery:     rawQuery,
			Pipeline:     pipeline,
			StartedAt:    time.Now().UTC(),
			Debug:        os.Getenv("DEBUG") == "true",
		},
	}
}

// Complete stamps the payload with its end time and duration.
func (p *Payload) Complete(now time.Time) {
	p.Metadata.CompletedAt = now.UTC()
	p.Metadata.DurationMs = now.Sub(p.Metadata.StartedAt).Milliseconds()
}

// AddError appends a formatted error line.
func (p *Payload) AddError(kind core.ErrorKind, provider, format string, args ...any) {
	p.Errors = append(p.Errors, Line{Kind: kind, Provider: provider, Message: fmt.Sprintf(format, args...)})
}

// AddErr appends err, recovering its kind and provider when it is a
// ResolutionError.
func (p *Payload) AddErr(err error) {
	if err == nil {
		return
	}
	line := Line{Kind: core.KindOf(err), Message: err.Error()}
	var re *core.ResolutionError
	if errors.As(err, &re) {
		line.Provider = re.Provider
	}
	p.Errors = append(p.Errors, line)
}

// ArtifactFrom reduces a provider envelope to its audit record. items is
// how many normalized facts or statistics were extracted from it.
func ArtifactFrom(resp core.ProviderResponse, items int) Artifact {
	a := Artifact{
		Provider:    resp.Provider,
		Tier:        resp.Tier,
		Status:      resp.Status(),
		CollectedAt: resp.CollectedAt,
		Items:       items,
	}
	if resp.Meta != nil {
		a.URL = resp.Meta["url"]
		if a.Status != core.EnvelopeOK {
			a.Error = resp.Meta["reason"]
		}
	}
	if resp.Payload != nil {
		a.PayloadSHA256 = Fingerprint(resp.Payload)
	}
	return a
}

// Fingerprint hashes a decoded payload through its JSON encoding. Map keys
// are sorted by encoding/json, so equal payloads hash equal.
func Fingerprint(payload any) string {
	b, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// GatherSummary is the one-line account of the provider fan-out.
func GatherSummary(artifacts []Artifact) string {
	ok, skipped, failed := 0, 0, 0
	for _, a := range artifacts {
		switch a.Status {
		case core.EnvelopeOK:
			ok++
		case core.EnvelopeSkipped:
			skipped++
		default:
			failed++
		}
	}
	return fmt.Sprintf("%d providers queried: %d ok, %d skipped, %d failed",
		len(artifacts), ok, skipped, failed)
}
