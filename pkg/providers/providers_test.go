package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arbiterlab/sportsresolve/core"
	"github.com/arbiterlab/sportsresolve/pkg/fetch"
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
}

func fastClient() *fetch.Client {
	return fetch.New(
		fetch.WithRetryPolicy(fetch.RetryPolicy{Retries: 0, InitialDelay: time.Millisecond, Factor: 2}),
		fetch.WithRateLimit(0, 0),
	)
}

func TestComposeURLSharedQuery(t *testing.T) {
	t.Setenv("THESPORTSDB_BASE_URL", "https://db.example.com/api/")

	r := NewRegistry()
	spec, ok := r.Lookup("THESPORTSDB")
	if !ok {
		t.Fatal("Expected THESPORTSDB in registry")
	}
	base, ok := spec.BaseURL()
	if !ok {
		t.Fatal("Expected THESPORTSDB to be configured")
	}
	if base != "https://db.example.com/api" {
		t.Errorf("Expected trailing slash trimmed, got %q", base)
	}

	q := Query{
		Statistic:   "yellow_cards",
		MatchID:     "55",
		HomeTeam:    "Arsenal",
		AwayTeam:    "Chelsea",
		Date:        "2025-03-08",
		Competition: "Premier League",
		Team:        "Arsenal",
		Player:      "Saka",
		Period:      "full_time",
	}
	got := spec.URL(base, q)
	want := "https://db.example.com/api/events" +
		"?statistic=yellow_cards&matchId=55&homeTeam=Arsenal&awayTeam=Chelsea" +
		"&date=2025-03-08&competition=Premier+League&team=Arsenal&player=Saka&period=full_time"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestComposeURLOmitsEmptyFields(t *testing.T) {
	t.Setenv("THESPORTSDB_BASE_URL", "https://db.example.com")

	r := NewRegistry()
	spec, _ := r.Lookup("THESPORTSDB")
	base, _ := spec.BaseURL()

	got := spec.URL(base, Query{Date: "2025-03-08"})
	want := "https://db.example.com/events?date=2025-03-08"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestAPIKeyBearerFallback(t *testing.T) {
	r := NewRegistry()
	spec, _ := r.Lookup("OPTA_STATS")

	t.Setenv("OPTA_STATS_API_KEY", "")
	t.Setenv("OPTA_STATS_BEARER", "bearer-token")
	if got := spec.APIKey(); got != "bearer-token" {
		t.Errorf("Expected bearer fallback, got %q", got)
	}

	t.Setenv("OPTA_STATS_API_KEY", "primary-key")
	if got := spec.APIKey(); got != "primary-key" {
		t.Errorf("Expected API key to win over bearer, got %q", got)
	}
}

func TestHeaders(t *testing.T) {
	r := NewRegistry()

	t.Setenv("FLASHSCORE_API_KEY", "fs-key")
	flash, _ := r.Lookup("FLASHSCORE")
	if got := flash.Headers()["Authorization"]; got != "Bearer fs-key" {
		t.Errorf("Expected bearer auth header, got %q", got)
	}

	t.Setenv("API_FOOTBALL_API_KEY", "af-key")
	apiFootball, _ := r.Lookup("API_FOOTBALL")
	h := apiFootball.Headers()
	if got := h["x-apisports-key"]; got != "af-key" {
		t.Errorf("Expected x-apisports-key header, got %q", got)
	}
	if _, ok := h["Authorization"]; ok {
		t.Error("Expected no Authorization header for API_FOOTBALL")
	}

	sofa, _ := r.Lookup("SOFASCORE")
	if h := sofa.Headers(); h != nil {
		t.Errorf("Expected no headers for keyless provider, got %v", h)
	}
}

func TestOddsAPIKeyInQueryAndRedaction(t *testing.T) {
	t.Setenv("ODDS_API_BASE_URL", "https://odds.example.com/v4")
	t.Setenv("ODDS_API_KEY", "secret")

	r := NewRegistry()
	spec, _ := r.Lookup("THE_ODDS_API")
	base, _ := spec.BaseURL()

	u := spec.URL(base, Query{HomeTeam: "Lakers", AwayTeam: "Suns", Date: "2024-11-10"})
	if !strings.Contains(u, "apiKey=secret") {
		t.Errorf("Expected apiKey in query string, got %q", u)
	}
	if !strings.HasPrefix(u, "https://odds.example.com/v4/scores?") {
		t.Errorf("Expected scores path, got %q", u)
	}

	red := redactURL(u)
	if strings.Contains(red, "secret") {
		t.Errorf("Expected credential stripped, got %q", red)
	}
	if !strings.Contains(red, "homeTeam=Lakers") {
		t.Errorf("Expected non-credential params preserved, got %q", red)
	}
}

func TestSpecsPipelineAndSportFilter(t *testing.T) {
	r := NewRegistry()

	keys := func(specs []Spec) map[string]bool {
		m := make(map[string]bool)
		for _, s := range specs {
			m[s.Key] = true
		}
		return m
	}

	stat := keys(r.Specs(PipelineStatistic, core.SportGeneral))
	for _, want := range []string{
		"OFFICIAL_LEAGUE", "OPTA_STATS", "SPORTSRADAR", "STATSBOMB",
		"API_FOOTBALL", "THE_ODDS_API", "FLASHSCORE", "SOFASCORE",
	} {
		if !stat[want] {
			t.Errorf("Expected %s in statistic pipeline", want)
		}
	}
	if stat["THESPORTSDB"] {
		t.Error("Expected THESPORTSDB excluded from statistic pipeline")
	}

	basket := keys(r.Specs(PipelineOutcome, core.SportBasketball))
	if basket["API_SPORTS_SOCCER"] {
		t.Error("Expected soccer provider excluded for basketball query")
	}
	for _, want := range []string{"API_SPORTS_BASKETBALL", "THE_ODDS_API", "THESPORTSDB"} {
		if !basket[want] {
			t.Errorf("Expected %s in basketball outcome pipeline", want)
		}
	}
}

func TestGatherSkippedWhenUnconfigured(t *testing.T) {
	clearProviderEnv(t)

	r := NewRegistry()
	got := r.Gather(context.Background(), fastClient(), Query{Sport: core.SportGeneral}, PipelineStatistic)

	if len(got) != 8 {
		t.Fatalf("Expected 8 envelopes, got %d", len(got))
	}
	for _, resp := range got {
		if resp.Status() != core.EnvelopeSkipped {
			t.Errorf("Expected %s skipped, got %s", resp.Provider, resp.Status())
		}
		if resp.Meta["reason"] != "not configured" {
			t.Errorf("Expected skip reason, got %q", resp.Meta["reason"])
		}
	}
}

func TestGatherMixedResults(t *testing.T) {
	clearProviderEnv(t)

	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"response":[{"value":4}]}`))
	}))
	defer okServer.Close()

	failServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer failServer.Close()

	t.Setenv("SOFASCORE_BASE_URL", okServer.URL)
	t.Setenv("FLASHSCORE_BASE_URL", failServer.URL)

	r := NewRegistry()
	got := r.Gather(context.Background(), fastClient(), Query{Sport: core.SportGeneral}, PipelineStatistic)

	if len(got) != 8 {
		t.Fatalf("Expected 8 envelopes, got %d", len(got))
	}

	wantOrder := []string{
		"OFFICIAL_LEAGUE", "OPTA_STATS", "SPORTSRADAR", "STATSBOMB",
		"API_FOOTBALL", "THE_ODDS_API", "FLASHSCORE", "SOFASCORE",
	}
	for i, want := range wantOrder {
		if got[i].Provider != want {
			t.Fatalf("Expected envelope %d to be %s, got %s", i, want, got[i].Provider)
		}
	}

	byKey := make(map[string]core.ProviderResponse)
	skipped := 0
	for _, resp := range got {
		byKey[resp.Provider] = resp
		if resp.Status() == core.EnvelopeSkipped {
			skipped++
		}
	}
	if skipped != 6 {
		t.Errorf("Expected 6 skipped envelopes, got %d", skipped)
	}

	failed := byKey["FLASHSCORE"]
	if failed.Status() != core.EnvelopeFailed {
		t.Fatalf("Expected FLASHSCORE failed, got %s", failed.Status())
	}
	if !strings.Contains(failed.Meta["reason"], "api error 500") {
		t.Errorf("Expected status code in failure reason, got %q", failed.Meta["reason"])
	}
	if failed.Meta["kind"] != string(core.KindProviderFailure) {
		t.Errorf("Expected provider_failure kind, got %q", failed.Meta["kind"])
	}

	okResp := byKey["SOFASCORE"]
	if !okResp.OK() {
		t.Fatalf("Expected SOFASCORE ok, got %s", okResp.Status())
	}
	payload, ok := okResp.Payload.(map[string]any)
	if !ok {
		t.Fatalf("Expected map payload, got %T", okResp.Payload)
	}
	if _, ok := payload["response"]; !ok {
		t.Error("Expected decoded response field in payload")
	}
	if okResp.Tier != 3 || okResp.Weight != 0.25 {
		t.Errorf("Expected tier 3 weight 0.25, got %d %v", okResp.Tier, okResp.Weight)
	}
}

func TestGatherConcurrencyCap(t *testing.T) {
	clearProviderEnv(t)

	var inFlight, maxSeen int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			prev := atomic.LoadInt64(&maxSeen)
			if cur <= prev || atomic.CompareAndSwapInt64(&maxSeen, prev, cur) {
				break
			}
		}
		time.Sleep(25 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	for _, k := range []string{
		"OFFICIAL_LEAGUE_BASE_URL", "OPTA_STATS_BASE_URL", "SPORTSRADAR_BASE_URL",
		"STATSBOMB_BASE_URL", "API_FOOTBALL_BASE_URL", "ODDS_API_BASE_URL",
		"FLASHSCORE_BASE_URL", "SOFASCORE_BASE_URL",
	} {
		t.Setenv(k, server.URL)
	}

	r := NewRegistry()
	got := r.Gather(context.Background(), fastClient(), Query{Sport: core.SportGeneral}, PipelineStatistic)

	if len(got) != 8 {
		t.Fatalf("Expected 8 envelopes, got %d", len(got))
	}
	for _, resp := range got {
		if !resp.OK() {
			t.Errorf("Expected %s ok, got %s (%s)", resp.Provider, resp.Status(), resp.Meta["reason"])
		}
	}
	if max := atomic.LoadInt64(&maxSeen); max > 4 {
		t.Errorf("Expected at most 4 concurrent fetches, saw %d", max)
	}
}

func TestGatherRSSFeed(t *testing.T) {
	clearProviderEnv(t)

	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>BBC Sport</title>
    <item>
      <title>Arsenal beat Chelsea 3-1</title>
      <link>https://example.com/a</link>
      <description>Match report</description>
      <pubDate>Sat, 08 Mar 2025 22:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Transfer latest</title>
      <link>https://example.com/b</link>
    </item>
  </channel>
</rss>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feed))
	}))
	defer server.Close()

	t.Setenv("SPORTS_RSS_FEEDS", server.URL)

	r := NewRegistry()
	got := r.Gather(context.Background(), fastClient(), Query{Sport: core.SportGeneral}, PipelineOutcome)

	var rss *core.ProviderResponse
	for i := range got {
		if strings.HasPrefix(got[i].Provider, "rss:") {
			rss = &got[i]
		}
	}
	if rss == nil {
		t.Fatal("Expected an rss envelope")
	}
	if !rss.OK() {
		t.Fatalf("Expected rss envelope ok, got %s (%s)", rss.Status(), rss.Meta["reason"])
	}
	if rss.Tier != 3 {
		t.Errorf("Expected tier 3, got %d", rss.Tier)
	}

	payload, ok := rss.Payload.(map[string]any)
	if !ok {
		t.Fatalf("Expected map payload, got %T", rss.Payload)
	}
	items, ok := payload["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("Expected 2 feed items, got %v", payload["items"])
	}
	first, _ := items[0].(map[string]any)
	if first["title"] != "Arsenal beat Chelsea 3-1" {
		t.Errorf("Expected headline preserved, got %v", first["title"])
	}
}

func TestFeedSources(t *testing.T) {
	t.Setenv("SPORTS_RSS_FEEDS", " https://a.example.com/feed , https://b.example.org/rss ,")
	cfg := defaultRSSConfig()
	got := cfg.sources()
	if len(got) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(got))
	}
	if got[0].Provider != "rss:a.example.com" || got[1].Provider != "rss:b.example.org" {
		t.Errorf("Expected host-derived provider ids, got %v", got)
	}

	t.Setenv("SPORTS_RSS_FEEDS", "")
	got = cfg.sources()
	if len(got) != 3 {
		t.Fatalf("Expected 3 default feeds, got %d", len(got))
	}
	for _, f := range got {
		if !strings.HasPrefix(f.Provider, "rss:") {
			t.Errorf("Expected rss prefix, got %q", f.Provider)
		}
	}
}

func TestQueryProjection(t *testing.T) {
	oq := core.OutcomeQuery{
		Sport:       core.SportBasketball,
		Date:        "2024-11-10",
		Teams:       []string{"Lakers", "Suns"},
		Competition: "NBA",
	}
	pq := QueryFromOutcome(oq)
	if pq.HomeTeam != "Lakers" || pq.AwayTeam != "Suns" {
		t.Errorf("Expected teams mapped, got %q %q", pq.HomeTeam, pq.AwayTeam)
	}
	if pq.Sport != core.SportBasketball || pq.Date != "2024-11-10" {
		t.Errorf("Expected sport and date mapped, got %v %q", pq.Sport, pq.Date)
	}

	sq := core.StatisticQuery{
		StatisticType: core.StatYellowCards,
		Period:        core.PeriodFullTime,
		Entities: core.Entities{
			Match: &core.MatchRef{Home: "Arsenal", Away: "Chelsea", Date: "2025-03-08"},
			Team:  "Arsenal",
		},
	}
	pq = QueryFromStatistic(sq)
	if pq.Statistic != "yellow_cards" {
		t.Errorf("Expected statistic name, got %q", pq.Statistic)
	}
	if pq.HomeTeam != "Arsenal" || pq.AwayTeam != "Chelsea" || pq.Team != "Arsenal" {
		t.Errorf("Expected entities mapped, got %+v", pq)
	}
	if pq.Period != "full_time" {
		t.Errorf("Expected period mapped, got %q", pq.Period)
	}
}

func TestConfigurationState(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("SOFASCORE_BASE_URL", "https://sofa.example.com")

	r := NewRegistry()
	state := r.ConfigurationState()
	if !state["SOFASCORE"] {
		t.Error("Expected SOFASCORE configured")
	}
	if state["OPTA_STATS"] {
		t.Error("Expected OPTA_STATS unconfigured")
	}
}
