// Package providers holds the declarative provider registry and the fan-out
// that turns one structured query into a set of typed provider envelopes.
// A provider with no configured base URL is skipped, never contacted.
package providers

import (
	"net/url"
	"os"
	"strings"

	"github.com/arbiterlab/sportsresolve/core"
	"github.com/arbiterlab/sportsresolve/pkg/fetch"
)

// Pipeline names which resolution path a provider serves.
type Pipeline string

const (
	PipelineOutcome   Pipeline = "outcome"
	PipelineStatistic Pipeline = "statistic"
)

// Query carries the fields every provider URL is composed from. Absent
// fields are omitted from the query string.
type Query struct {
	Statistic   string
	MatchID     string
	HomeTeam    string
	AwayTeam    string
	Date        string
	Competition string
	Team        string
	Player      string
	Period      string
	Sport       core.Sport
}

// QueryFromOutcome projects an outcome query onto the provider query shape.
func QueryFromOutcome(q core.OutcomeQuery) Query {
	pq := Query{
		Date:        q.Date,
		Competition: q.Competition,
		Player:      q.Player,
		Sport:       q.Sport,
	}
	if len(q.Teams) > 0 {
		pq.HomeTeam = q.Teams[0]
	}
	if len(q.Teams) > 1 {
		pq.AwayTeam = q.Teams[1]
	}
	return pq
}

// QueryFromStatistic projects a statistic query onto the provider query shape.
func QueryFromStatistic(q core.StatisticQuery) Query {
	pq := Query{
		Statistic:   string(q.StatisticType),
		Team:        q.Entities.Team,
		Player:      q.Entities.Player,
		Period:      string(q.Period),
		Sport:       core.SportGeneral,
	}
	if m := q.Entities.Match; m != nil {
		pq.MatchID = m.ID
		pq.HomeTeam = m.Home
		pq.AwayTeam = m.Away
		pq.Date = m.Date
		pq.Competition = m.Competition
	}
	return pq
}

// Spec is one row of the provider registry.
type Spec struct {
	Key        string
	Name       string
	Tier       int
	Weight     float64
	BaseURLEnv string
	APIKeyEnv  string
	Path       string
	Pipelines  []Pipeline
	Sports     []core.Sport // empty means all sports

	// ComposeURL overrides the default path + shared query string. It
	// receives the configured base URL and the credential so providers that
	// authenticate via query parameter can inject it.
	ComposeURL func(base, apiKey string, q Query) string

	// BuildHeaders overrides the default bearer auth headers.
	BuildHeaders func(apiKey string) map[string]string

	// Retry overrides the fetch client's retry policy for this provider.
	Retry *fetch.RetryPolicy
}

// Registry is the static provider table.
type Registry struct {
	specs []Spec
	rss   rssConfig
}

// NewRegistry builds the default registry.
func NewRegistry() *Registry {
	return &Registry{specs: defaultSpecs(), rss: defaultRSSConfig()}
}

// Specs returns the rows serving the given pipeline and sport.
func (r *Registry) Specs(pipeline Pipeline, sport core.Sport) []Spec {
	var out []Spec
	for _, s := range r.specs {
		if !s.serves(pipeline) || !s.forSport(sport) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Lookup returns the row with the given key.
func (r *Registry) Lookup(key string) (Spec, bool) {
	for _, s := range r.specs {
		if s.Key == key {
			return s, true
		}
	}
	return Spec{}, false
}

// ConfigurationState reports, per provider key, whether a base URL is set.
// The daemon surfaces this on /status.
func (r *Registry) ConfigurationState() map[string]bool {
	out := make(map[string]bool, len(r.specs))
	for _, s := range r.specs {
		_, ok := s.BaseURL()
		out[s.Key] = ok
	}
	return out
}

func (s Spec) serves(p Pipeline) bool {
	for _, sp := range s.Pipelines {
		if sp == p {
			return true
		}
	}
	return false
}

func (s Spec) forSport(sport core.Sport) bool {
	if len(s.Sports) == 0 {
		return true
	}
	for _, sp := range s.Sports {
		if sp == sport {
			return true
		}
	}
	return false
}

// BaseURL resolves the provider endpoint from the environment. A provider
// without a base URL is not configured and must be skipped.
func (s Spec) BaseURL() (string, bool) {
	base := strings.TrimSpace(os.Getenv(s.BaseURLEnv))
	if base == "" {
		return "", false
	}
	return strings.TrimRight(base, "/"), true
}

// APIKey resolves the provider credential: <KEY>_API_KEY first, then the
// <KEY>_BEARER alternative.
func (s Spec) APIKey() string {
	if s.APIKeyEnv == "" {
		return ""
	}
	if v := os.Getenv(s.APIKeyEnv); v != "" {
		return v
	}
	if strings.HasSuffix(s.APIKeyEnv, "_API_KEY") {
		alt := strings.TrimSuffix(s.APIKeyEnv, "_API_KEY") + "_BEARER"
		return os.Getenv(alt)
	}
	return ""
}

// URL composes the request URL for the query.
func (s Spec) URL(base string, q Query) string {
	if s.ComposeURL != nil {
		return s.ComposeURL(base, s.APIKey(), q)
	}
	u := base + s.Path
	if qs := sharedQuery(q); qs != "" {
		u += "?" + qs
	}
	return u
}

// Headers composes the auth headers for the request.
func (s Spec) Headers() map[string]string {
	key := s.APIKey()
	if s.BuildHeaders != nil {
		return s.BuildHeaders(key)
	}
	if key == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + key}
}

// sharedQuery builds the query string every provider shares, in its
// declared parameter order, omitting absent fields.
func sharedQuery(q Query) string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+url.QueryEscape(v))
		}
	}
	add("statistic", q.Statistic)
	add("matchId", q.MatchID)
	add("homeTeam", q.HomeTeam)
	add("awayTeam", q.AwayTeam)
	add("date", q.Date)
	add("competition", q.Competition)
	add("team", q.Team)
	add("player", q.Player)
	add("period", q.Period)
	return strings.Join(parts, "&")
}

func apiSportsHeaders(apiKey string) map[string]string {
	if apiKey == "" {
		return nil
	}
	return map[string]string{"x-apisports-key": apiKey}
}

func oddsAPIURL(base, apiKey string, q Query) string {
	u := base + "/scores"
	qs := sharedQuery(q)
	if apiKey != "" {
		if qs != "" {
			qs += "&"
		}
		qs += "apiKey=" + url.QueryEscape(apiKey)
	}
	if qs != "" {
		u += "?" + qs
	}
	return u
}

func defaultSpecs() []Spec {
	specs := []Spec{
		{
			Key:        "OFFICIAL_LEAGUE",
			Name:       "Official League Data",
			Tier:       1,
			BaseURLEnv: "OFFICIAL_LEAGUE_BASE_URL",
			APIKeyEnv:  "OFFICIAL_LEAGUE_API_KEY",
			Path:       "/stats",
			Pipelines:  []Pipeline{PipelineStatistic},
		},
		{
			Key:        "OPTA_STATS",
			Name:       "Opta",
			Tier:       1,
			BaseURLEnv: "OPTA_STATS_BASE_URL",
			APIKeyEnv:  "OPTA_STATS_API_KEY",
			Path:       "/stats",
			Pipelines:  []Pipeline{PipelineStatistic},
		},
		{
			Key:        "SPORTSRADAR",
			Name:       "Sportradar",
			Tier:       1,
			BaseURLEnv: "SPORTSRADAR_BASE_URL",
			APIKeyEnv:  "SPORTSRADAR_API_KEY",
			Path:       "/stats",
			Pipelines:  []Pipeline{PipelineStatistic},
		},
		{
			Key:        "STATSBOMB",
			Name:       "StatsBomb",
			Tier:       1,
			BaseURLEnv: "STATSBOMB_BASE_URL",
			APIKeyEnv:  "STATSBOMB_API_KEY",
			Path:       "/stats",
			Pipelines:  []Pipeline{PipelineStatistic},
		},
		{
			Key:          "API_SPORTS_SOCCER",
			Name:         "API-Sports Football",
			Tier:         2,
			BaseURLEnv:   "API_SPORTS_SOCCER_BASE_URL",
			APIKeyEnv:    "API_SPORTS_SOCCER_API_KEY",
			Path:         "/fixtures",
			Pipelines:    []Pipeline{PipelineOutcome},
			Sports:       []core.Sport{core.SportSoccer, core.SportGeneral},
			BuildHeaders: apiSportsHeaders,
		},
		{
			Key:          "API_SPORTS_BASKETBALL",
			Name:         "API-Sports Basketball",
			Tier:         2,
			BaseURLEnv:   "API_SPORTS_BASKETBALL_BASE_URL",
			APIKeyEnv:    "API_SPORTS_BASKETBALL_API_KEY",
			Path:         "/games",
			Pipelines:    []Pipeline{PipelineOutcome},
			Sports:       []core.Sport{core.SportBasketball, core.SportGeneral},
			BuildHeaders: apiSportsHeaders,
		},
		{
			Key:          "API_FOOTBALL",
			Name:         "API-Football",
			Tier:         2,
			BaseURLEnv:   "API_FOOTBALL_BASE_URL",
			APIKeyEnv:    "API_FOOTBALL_API_KEY",
			Path:         "/fixtures/statistics",
			Pipelines:    []Pipeline{PipelineStatistic},
			BuildHeaders: apiSportsHeaders,
		},
		{
			Key:        "THE_ODDS_API",
			Name:       "The Odds API",
			Tier:       2,
			BaseURLEnv: "ODDS_API_BASE_URL",
			APIKeyEnv:  "ODDS_API_KEY",
			Pipelines:  []Pipeline{PipelineOutcome, PipelineStatistic},
			ComposeURL: oddsAPIURL,
		},
		{
			Key:        "THESPORTSDB",
			Name:       "TheSportsDB",
			Tier:       3,
			BaseURLEnv: "THESPORTSDB_BASE_URL",
			APIKeyEnv:  "THESPORTSDB_API_KEY",
			Path:       "/events",
			Pipelines:  []Pipeline{PipelineOutcome},
		},
		{
			Key:        "FLASHSCORE",
			Name:       "Flashscore",
			Tier:       3,
			BaseURLEnv: "FLASHSCORE_BASE_URL",
			APIKeyEnv:  "FLASHSCORE_API_KEY",
			Path:       "/match-stats",
			Pipelines:  []Pipeline{PipelineStatistic},
		},
		{
			Key:        "SOFASCORE",
			Name:       "Sofascore",
			Tier:       3,
			BaseURLEnv: "SOFASCORE_BASE_URL",
			Path:       "/statistics",
			Pipelines:  []Pipeline{PipelineStatistic},
		},
	}

	for i := range specs {
		if specs[i].Weight == 0 {
			specs[i].Weight = core.WeightForTier(specs[i].Tier)
		}
	}
	return specs
}
