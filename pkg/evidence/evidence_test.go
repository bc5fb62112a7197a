package evidence

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/arbiterlab/sportsresolve/core"
)

func TestBeginMintsDistinctIDs(t *testing.T) {
	a := Begin("Did Lakers beat Suns?", "outcome")
	b := Begin("Did Lakers beat Suns?", "outcome")
	if a.Metadata.ResolutionID == uuid.Nil || b.Metadata.ResolutionID == uuid.Nil {
		t.Fatal("resolution id not set")
	}
	if a.Metadata.ResolutionID == b.Metadata.ResolutionID {
		t.Fatal("two payloads share a resolution id")
	}
	if a.Metadata.RawQuery != "Did Lakers beat Suns?" || a.Metadata.Pipeline != "outcome" {
		t.Fatalf("metadata = %+v", a.Metadata)
	}
	if a.Metadata.StartedAt.IsZero() {
		t.Fatal("StartedAt not set")
	}
}

func TestBeginDebugFlag(t *testing.T) {
	t.Setenv("DEBUG", "true")
	if p := Begin("q", ""); !p.Metadata.Debug {
		t.Fatal("Debug = false with DEBUG=true")
	}
	t.Setenv("DEBUG", "")
	if p := Begin("q", ""); p.Metadata.Debug {
		t.Fatal("Debug = true without DEBUG")
	}
}

func TestCompleteDuration(t *testing.T) {
	p := Begin("q", "outcome")
	p.Metadata.StartedAt = time.Now().UTC().Add(-1500 * time.Millisecond)
	p.Complete(time.Now())
	if p.Metadata.CompletedAt.IsZero() {
		t.Fatal("CompletedAt not set")
	}
	if p.Metadata.DurationMs < 1400 || p.Metadata.DurationMs > 1700 {
		t.Fatalf("DurationMs = %d, want about 1500", p.Metadata.DurationMs)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a := map[string]any{"home": "Lakers", "away": "Suns", "score": []any{112.0, 108.0}}
	b := map[string]any{"away": "Suns", "score": []any{112.0, 108.0}, "home": "Lakers"}
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("equal payloads hash differently")
	}
	c := map[string]any{"home": "Lakers", "away": "Suns", "score": []any{108.0, 112.0}}
	if Fingerprint(a) == Fingerprint(c) {
		t.Fatal("different payloads hash equal")
	}
	if len(Fingerprint(a)) != 64 {
		t.Fatalf("fingerprint length = %d, want 64 hex chars", len(Fingerprint(a)))
	}
}

func TestArtifactFrom(t *testing.T) {
	now := time.Now().UTC()

	t.Run("ok envelope", func(t *testing.T) {
		resp := core.ProviderResponse{
			Provider:    "THESPORTSDB",
			Tier:        3,
			CollectedAt: now,
			Payload:     map[string]any{"events": []any{1.0}},
			Meta:        map[string]string{"status": core.EnvelopeOK, "url": "https://thesportsdb.com/api"},
		}
		a := ArtifactFrom(resp, 2)
		if a.Status != "ok" || a.URL == "" || a.PayloadSHA256 == "" || a.Items != 2 {
			t.Fatalf("artifact = %+v", a)
		}
		if a.Error != "" {
			t.Fatalf("ok artifact carries error %q", a.Error)
		}
	})

	t.Run("failed envelope", func(t *testing.T) {
		resp := core.ProviderResponse{
			Provider:    "FLASHSCORE",
			Tier:        3,
			CollectedAt: now,
			Meta:        map[string]string{"status": core.EnvelopeFailed, "reason": "status 503"},
		}
		a := ArtifactFrom(resp, 0)
		if a.Status != "failed" || a.Error != "status 503" {
			t.Fatalf("artifact = %+v", a)
		}
		if a.PayloadSHA256 != "" {
			t.Fatal("failed envelope should not be fingerprinted")
		}
	})

	t.Run("skipped envelope", func(t *testing.T) {
		resp := core.ProviderResponse{
			Provider: "OPTA_STATS",
			Tier:     1,
			Meta:     map[string]string{"status": core.EnvelopeSkipped, "reason": "not configured"},
		}
		a := ArtifactFrom(resp, 0)
		if a.Status != "skipped" || a.Error != "not configured" {
			t.Fatalf("artifact = %+v", a)
		}
	})
}

func TestAddErr(t *testing.T) {
	p := Begin("q", "outcome")
	p.AddErr(core.NewError(core.KindCircuitOpen, "SOFASCORE", "host cooling down"))
	p.AddErr(nil)
	if len(p.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(p.Errors))
	}
	line := p.Errors[0]
	if line.Kind != core.KindCircuitOpen || line.Provider != "SOFASCORE" {
		t.Fatalf("line = %+v", line)
	}
}

func TestGatherSummary(t *testing.T) {
	artifacts := []Artifact{
		{Status: "ok"}, {Status: "ok"}, {Status: "skipped"}, {Status: "failed"},
	}
	got := GatherSummary(artifacts)
	want := "4 providers queried: 2 ok, 1 skipped, 1 failed"
	if got != want {
		t.Fatalf("summary = %q, want %q", got, want)
	}
}
