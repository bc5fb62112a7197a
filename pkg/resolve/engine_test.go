package resolve

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arbiterlab/sportsresolve/core"
	"github.com/arbiterlab/sportsresolve/pkg/advisor"
	"github.com/arbiterlab/sportsresolve/pkg/fetch"
	"github.com/arbiterlab/sportsresolve/pkg/metrics"
	"github.com/arbiterlab/sportsresolve/pkg/providers"
)

var providerEnvKeys = []string{
	"OFFICIAL_LEAGUE_BASE_URL", "OPTA_STATS_BASE_URL", "SPORTSRADAR_BASE_URL",
	"STATSBOMB_BASE_URL", "API_SPORTS_SOCCER_BASE_URL", "API_SPORTS_BASKETBALL_BASE_URL",
	"API_FOOTBALL_BASE_URL", "ODDS_API_BASE_URL", "THESPORTSDB_BASE_URL",
	"FLASHSCORE_BASE_URL", "SOFASCORE_BASE_URL",
}

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, k := range providerEnvKeys {
		t.Setenv(k, "")
	}
	// "none" has no URL host, so the feed list resolves empty instead of
	// falling back to the live defaults.
	t.Setenv("SPORTS_RSS_FEEDS", "none")
}

func fastClient() *fetch.Client {
	return fetch.New(
		fetch.WithRetryPolicy(fetch.RetryPolicy{Retries: 0, InitialDelay: time.Millisecond, Factor: 2}),
		fetch.WithRateLimit(0, 0),
	)
}

func newTestEngine(opts ...Option) *Engine {
	opts = append([]Option{WithMetrics(metrics.New())}, opts...)
	return NewEngine(providers.NewRegistry(), fastClient(), opts...)
}

func jsonServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// setupOutcomeQuorum configures four outcome providers that all report the
// Lakers beating the Suns yesterday, and returns the matching question.
func setupOutcomeQuorum(t *testing.T) string {
	t.Helper()
	clearProviderEnv(t)
	date := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")

	sportsDB := jsonServer(t, fmt.Sprintf(`{"events":[{
		"strHomeTeam":"Los Angeles Lakers","strAwayTeam":"Phoenix Suns",
		"dateEvent":%q,"strTime":"20:00:00",
		"intHomeScore":112,"intAwayScore":108,"strStatus":"Match Finished"}]}`, date))
	t.Setenv("THESPORTSDB_BASE_URL", sportsDB.URL)

	apiSports := jsonServer(t, fmt.Sprintf(`{"response":[{
		"teams":{"home":{"name":"Los Angeles Lakers"},"away":{"name":"Phoenix Suns"}},
		"date":"%sT20:00:00Z",
		"scores":{"home":{"total":112},"away":{"total":108}},
		"status":{"short":"FT"}}]}`, date))
	t.Setenv("API_SPORTS_BASKETBALL_BASE_URL", apiSports.URL)

	oddsAPI := jsonServer(t, fmt.Sprintf(`[{
		"home_team":"Los Angeles Lakers","away_team":"Phoenix Suns",
		"commence_time":"%sT19:00:00Z","completed":true,
		"scores":[{"name":"Los Angeles Lakers","score":112},{"name":"Phoenix Suns","score":108}]}]`, date))
	t.Setenv("ODDS_API_BASE_URL", oddsAPI.URL)

	pub := time.Now().UTC().Add(-20 * time.Hour).Format(time.RFC1123)
	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0"?><rss version="2.0"><channel>
			<title>Hoops Wire</title>
			<item><title>Lakers beat Suns 112-108 behind a late run</title>
			<link>https://e.example.com/recap</link><pubDate>%s</pubDate></item>
			</channel></rss>`, pub)
	}))
	t.Cleanup(feed.Close)
	t.Setenv("SPORTS_RSS_FEEDS", feed.URL)

	return fmt.Sprintf("Did Lakers beat Suns on %s?", date)
}

func TestResolveOutcomeAgreement(t *testing.T) {
	query := setupOutcomeQuorum(t)
	e := newTestEngine()

	res, err := e.Resolve(context.Background(), query)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Resolution != "yes" {
		t.Fatalf("Resolution = %q, want yes (reasoning: %s)", res.Resolution, res.Reasoning)
	}
	if res.Confidence < 0.75 || res.Confidence > 1 {
		t.Errorf("Confidence = %v, want >= 0.75 and <= 1", res.Confidence)
	}
	if len(res.Sources) < 3 {
		t.Errorf("Sources = %v, a settled outcome needs at least 3 corroborating providers", res.Sources)
	}
	for _, want := range []string{"THESPORTSDB", "API_SPORTS_BASKETBALL", "THE_ODDS_API"} {
		if !containsString(res.Sources, want) {
			t.Errorf("Sources missing %s: %v", want, res.Sources)
		}
	}
	if !hasPrefixString(res.Sources, "rss:") {
		t.Errorf("Sources missing the feed provider: %v", res.Sources)
	}

	ev := res.Evidence
	if ev.Metadata.Pipeline != "outcome" {
		t.Errorf("Pipeline = %q, want outcome", ev.Metadata.Pipeline)
	}
	if !strings.HasPrefix(ev.Data.AcceptedGroupKey, "winner:lakers:") {
		t.Errorf("AcceptedGroupKey = %q, want a lakers winner key", ev.Data.AcceptedGroupKey)
	}
	if len(ev.Data.AgentArtifacts) != 4 {
		t.Errorf("AgentArtifacts = %d, want 4", len(ev.Data.AgentArtifacts))
	}
	if !strings.Contains(ev.Data.AgentSummary, "4 ok") {
		t.Errorf("AgentSummary = %q, want it to count 4 ok envelopes", ev.Data.AgentSummary)
	}
	if !strings.Contains(res.Reasoning, "corroborate") {
		t.Errorf("Reasoning = %q, want a corroboration summary", res.Reasoning)
	}
}

func TestResolveOutcomeInsufficientProviders(t *testing.T) {
	clearProviderEnv(t)
	date := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")

	sportsDB := jsonServer(t, fmt.Sprintf(`{"events":[{
		"strHomeTeam":"Los Angeles Lakers","strAwayTeam":"Phoenix Suns",
		"dateEvent":%q,"intHomeScore":112,"intAwayScore":108,"strStatus":"FT"}]}`, date))
	t.Setenv("THESPORTSDB_BASE_URL", sportsDB.URL)

	apiSports := jsonServer(t, fmt.Sprintf(`{"response":[{
		"teams":{"home":{"name":"Los Angeles Lakers"},"away":{"name":"Phoenix Suns"}},
		"date":"%sT20:00:00Z",
		"scores":{"home":{"total":112},"away":{"total":108}},
		"status":{"short":"FT"}}]}`, date))
	t.Setenv("API_SPORTS_BASKETBALL_BASE_URL", apiSports.URL)

	e := newTestEngine()
	res, err := e.Resolve(context.Background(), fmt.Sprintf("Did Lakers beat Suns on %s?", date))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Resolution != ResolutionInsufficientData {
		t.Fatalf("Resolution = %q, want %s", res.Resolution, ResolutionInsufficientData)
	}
	if res.Confidence != 0.30 {
		t.Errorf("Confidence = %v, want 0.30", res.Confidence)
	}

	var sawConsensus, sawSkipped bool
	for _, line := range res.Evidence.Errors {
		switch line.Kind {
		case core.KindInsufficientConsensus:
			sawConsensus = true
		case core.KindProviderSkipped:
			sawSkipped = true
		}
	}
	if !sawConsensus {
		t.Error("Expected an insufficient_consensus line in the evidence")
	}
	if !sawSkipped {
		t.Error("Expected provider_skipped lines for the unconfigured providers")
	}
}

// setupCardStats configures the four statistic providers with fixed
// total-cards values.
func setupCardStats(t *testing.T, official, opta, apiFootball, flash float64) {
	t.Helper()
	clearProviderEnv(t)
	set := func(env string, v float64) {
		srv := jsonServer(t, fmt.Sprintf(`{"statistics":[{"type":"total_cards","value":%g}]}`, v))
		t.Setenv(env, srv.URL)
	}
	set("OFFICIAL_LEAGUE_BASE_URL", official)
	set("OPTA_STATS_BASE_URL", opta)
	set("API_FOOTBALL_BASE_URL", apiFootball)
	set("FLASHSCORE_BASE_URL", flash)
}

func TestResolveThresholdOverCards(t *testing.T) {
	cases := []struct {
		name           string
		values         [4]float64
		wantResolution string
	}{
		{"nine cards clears over 8", [4]float64{9, 9, 9, 7}, "yes"},
		{"seven cards stays under", [4]float64{7, 7, 7, 7}, "no"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setupCardStats(t, tc.values[0], tc.values[1], tc.values[2], tc.values[3])
			e := newTestEngine()

			res, err := e.Resolve(context.Background(),
				"Will there be over 8 total cards in Arsenal vs Chelsea on 2024-11-05?")
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if res.Resolution != tc.wantResolution {
				t.Fatalf("Resolution = %q, want %q (reasoning: %s)", res.Resolution, tc.wantResolution, res.Reasoning)
			}
			if res.Confidence < 0.65 {
				t.Errorf("Confidence = %v, want >= 0.65", res.Confidence)
			}
			if res.Evidence.Metadata.Pipeline != "statistic" {
				t.Errorf("Pipeline = %q, want statistic", res.Evidence.Metadata.Pipeline)
			}
			bundle := res.Evidence.Data.Statistics
			if bundle == nil {
				t.Fatal("Expected a statistics bundle in the evidence")
			}
			if !bundle.Consensus.Agreed {
				t.Error("Consensus.Agreed = false, want true")
			}
			if !containsString(res.Sources, "OPTA_STATS") {
				t.Errorf("Sources = %v, want the stats provider present", res.Sources)
			}
		})
	}
}

func TestResolveStatisticUnknownEndTimeWarns(t *testing.T) {
	setupCardStats(t, 9, 9, 9, 7)
	e := newTestEngine()

	res, err := e.Resolve(context.Background(),
		"Will there be over 8 total cards in Arsenal vs Chelsea?")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Resolution != "yes" {
		t.Fatalf("Resolution = %q, want yes (reasoning: %s)", res.Resolution, res.Reasoning)
	}
	bundle := res.Evidence.Data.Statistics
	if bundle == nil {
		t.Fatal("Expected a statistics bundle in the evidence")
	}
	warned := false
	for _, w := range bundle.Warnings {
		if strings.Contains(w, "end time unknown") {
			warned = true
		}
	}
	if !warned {
		t.Errorf("Warnings = %v, want an unknown end time note", bundle.Warnings)
	}
}

func TestResolveStatisticConsensusRejected(t *testing.T) {
	setupCardStats(t, 4, 12, 8, 2)
	e := newTestEngine()

	res, err := e.Resolve(context.Background(),
		"Will there be over 8 total cards in Arsenal vs Chelsea on 2024-11-05?")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Resolution != ResolutionInsufficientData {
		t.Fatalf("Resolution = %q, want %s", res.Resolution, ResolutionInsufficientData)
	}
	if res.Confidence != 0.30 {
		t.Errorf("Confidence = %v, want 0.30", res.Confidence)
	}
	bundle := res.Evidence.Data.Statistics
	if bundle == nil || len(bundle.Errors) == 0 {
		t.Fatal("Expected the rejection recorded in the statistics bundle")
	}
	var sawConsensus bool
	for _, line := range res.Evidence.Errors {
		if line.Kind == core.KindInsufficientConsensus {
			sawConsensus = true
		}
	}
	if !sawConsensus {
		t.Error("Expected an insufficient_consensus line in the evidence")
	}
}

func TestResolveStatisticTooRecent(t *testing.T) {
	clearProviderEnv(t)
	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")

	e := newTestEngine()
	res, err := e.Resolve(context.Background(),
		fmt.Sprintf("Total yellow cards in Arsenal vs Chelsea on %s?", tomorrow))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Resolution != ResolutionInsufficientData {
		t.Fatalf("Resolution = %q, want %s", res.Resolution, ResolutionInsufficientData)
	}
	if res.Confidence != 0.30 {
		t.Errorf("Confidence = %v, want 0.30", res.Confidence)
	}
	bundle := res.Evidence.Data.Statistics
	if bundle == nil || len(bundle.Warnings) == 0 {
		t.Fatal("Expected a settlement-window warning in the statistics bundle")
	}
	if len(res.Evidence.Data.AgentArtifacts) != 0 {
		t.Errorf("No providers should be queried before the window opens, got %d artifacts",
			len(res.Evidence.Data.AgentArtifacts))
	}
}

func TestResolveClassificationFailure(t *testing.T) {
	clearProviderEnv(t)
	e := newTestEngine()

	res, err := e.Resolve(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Resolution != ResolutionInsufficientData {
		t.Fatalf("Resolution = %q, want %s", res.Resolution, ResolutionInsufficientData)
	}
	if res.Confidence != 0.25 {
		t.Errorf("Confidence = %v, want 0.25", res.Confidence)
	}
	var sawClassification bool
	for _, line := range res.Evidence.Errors {
		if line.Kind == core.KindClassificationFailure {
			sawClassification = true
		}
	}
	if !sawClassification {
		t.Error("Expected a classification_failure line in the evidence")
	}
}

type stubLLM struct {
	reply string
	err   error
}

func (s stubLLM) Complete(ctx context.Context, prompt, system string) (string, error) {
	return s.reply, s.err
}

func TestAdvisorNeverOverridesResolution(t *testing.T) {
	query := setupOutcomeQuorum(t)
	adv := advisor.New(stubLLM{reply: `{"resolution":"no","confidence":0.9,"reasoning":"the model disagrees"}`})
	e := newTestEngine(WithAdvisor(adv, "test"))

	res, err := e.Resolve(context.Background(), query)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Resolution != "yes" {
		t.Fatalf("Resolution = %q, the model must never override the deterministic answer", res.Resolution)
	}

	// Deterministic confidence: base 0.75 for four providers, reliability
	// adjustment (0.7125-0.7)*0.15, freshness +0.05, averaged with 0.9.
	want := ((0.75 + 0.001875 + 0.05) + 0.9) / 2
	if math.Abs(res.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", res.Confidence, want)
	}
	if res.Reasoning != "the model disagrees" {
		t.Errorf("Reasoning = %q, want the model's replacement text", res.Reasoning)
	}

	var sawMismatch bool
	for _, line := range res.Evidence.Errors {
		if line.Kind == core.KindLLMMismatch {
			sawMismatch = true
		}
	}
	if !sawMismatch {
		t.Error("Expected an llm_mismatch line in the evidence")
	}
	if res.Evidence.ModelOutputRaw == "" {
		t.Error("Expected the raw model output preserved in the evidence")
	}
}

func TestAdvisorFailureIsSilent(t *testing.T) {
	query := setupOutcomeQuorum(t)

	baseline, err := newTestEngine().Resolve(context.Background(), query)
	if err != nil {
		t.Fatalf("baseline Resolve: %v", err)
	}

	adv := advisor.New(stubLLM{err: fmt.Errorf("model unavailable")})
	res, err := newTestEngine(WithAdvisor(adv, "test")).Resolve(context.Background(), query)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if res.Resolution != baseline.Resolution {
		t.Errorf("Resolution = %q, want %q", res.Resolution, baseline.Resolution)
	}
	if res.Confidence != baseline.Confidence {
		t.Errorf("Confidence = %v, want the deterministic %v", res.Confidence, baseline.Confidence)
	}
	for _, line := range res.Evidence.Errors {
		if line.Kind == core.KindLLMFailure || line.Kind == core.KindLLMMismatch {
			t.Errorf("A failed model call must be omitted silently, got line %+v", line)
		}
	}
}

func TestStageCallbacks(t *testing.T) {
	setupCardStats(t, 9, 9, 9, 7)
	e := newTestEngine()

	var stages []string
	var requestIDs []string
	e.OnStageComplete = func(sr *StageResult) {
		stages = append(stages, sr.Stage)
		requestIDs = append(requestIDs, sr.RequestID)
		if !sr.Success {
			t.Errorf("stage %s reported failure: %s", sr.Stage, sr.Error)
		}
	}

	res, err := e.Resolve(context.Background(),
		"Will there be over 8 total cards in Arsenal vs Chelsea on 2024-11-05?")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	want := []string{StageClassify, StageGather, StageNormalize, StageValidate, StageConsensus, StageConfidence, StageEvidence}
	if len(stages) != len(want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("stage[%d] = %q, want %q", i, stages[i], want[i])
		}
	}
	id := res.Evidence.Metadata.ResolutionID.String()
	for _, got := range requestIDs {
		if got != id {
			t.Errorf("RequestID = %q, want %q", got, id)
		}
	}
}

func TestThresholdAnswer(t *testing.T) {
	cases := []struct {
		value, threshold float64
		cmp              core.Comparator
		want             string
	}{
		{9, 8, core.CmpGT, "yes"},
		{8, 8, core.CmpGT, "no"},
		{8, 8, core.CmpGTE, "yes"},
		{7, 8, core.CmpGTE, "no"},
		{7, 8, core.CmpLT, "yes"},
		{8, 8, core.CmpLT, "no"},
		{8, 8, core.CmpLTE, "yes"},
		{9, 8, core.CmpLTE, "no"},
		{8, 8, core.CmpEQ, "yes"},
		{8 + 5e-10, 8, core.CmpEQ, "yes"},
		{8.1, 8, core.CmpEQ, "no"},
	}
	for _, tc := range cases {
		if got := thresholdAnswer(tc.value, tc.threshold, tc.cmp); got != tc.want {
			t.Errorf("thresholdAnswer(%v, %v, %q) = %q, want %q", tc.value, tc.threshold, tc.cmp, got, tc.want)
		}
	}
}

func TestCapSources(t *testing.T) {
	in := []string{"a", "b", "a", "c", "d", "e", "f", "g", "h", "i", "j"}
	got := capSources(in)
	if len(got) != 8 {
		t.Fatalf("len = %d, want 8", len(got))
	}
	seen := map[string]bool{}
	for _, s := range got {
		if seen[s] {
			t.Errorf("duplicate source %q", s)
		}
		seen[s] = true
	}
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("order not preserved: %v", got)
	}
}

func TestWinnerOfPrefersLongestSpelling(t *testing.T) {
	facts := []core.NormalizedFact{
		{Winner: "Lakers"},
		{Winner: "Los Angeles Lakers"},
		{Winner: "Lakers"},
	}
	if got := winnerOf(facts); got != "Los Angeles Lakers" {
		t.Errorf("winnerOf = %q, want the full spelling", got)
	}
	reversed := []core.NormalizedFact{facts[1], facts[2], facts[0]}
	if winnerOf(facts) != winnerOf(reversed) {
		t.Error("winnerOf must not depend on fact order")
	}
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func hasPrefixString(list []string, prefix string) bool {
	for _, s := range list {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
