// Package core defines the shared value types of the resolution pipeline:
// structured queries, provider envelopes, normalized facts and statistics,
// consensus records, and the error taxonomy. Everything here is a value
// object; nothing is mutated after construction.
package core

import (
	"time"
)

// Sport is the detected sport of a query.
type Sport string

const (
	SportBasketball Sport = "basketball"
	SportSoccer     Sport = "soccer"
	SportGeneral    Sport = "general"
)

// QuestionType classifies an outcome question.
type QuestionType string

const (
	QuestionDidResultHappen QuestionType = "did_result_happen"
	QuestionWhoWon          QuestionType = "who_won"
	QuestionPlayerAward     QuestionType = "player_award"
	QuestionScoreline       QuestionType = "scoreline"
	QuestionOther           QuestionType = "other"
)

// OutcomeQuery is the structured form of a match-outcome question.
type OutcomeQuery struct {
	Sport        Sport        `json:"sport"`
	Date         string       `json:"date,omitempty"` // ISO YYYY-MM-DD
	Teams        []string     `json:"teams,omitempty"`
	Player       string       `json:"player,omitempty"`
	Competition  string       `json:"competition,omitempty"`
	Matchday     string       `json:"matchday,omitempty"`
	QuestionType QuestionType `json:"question_type"`
	RawText      string       `json:"raw_text"`
}

// StatQueryType classifies a statistic question.
type StatQueryType string

const (
	QueryMatchStatistic  StatQueryType = "match_statistic"
	QueryPlayerStatistic StatQueryType = "player_statistic"
	QueryTeamAggregate   StatQueryType = "team_aggregate"
	QueryThreshold       StatQueryType = "threshold"
)

// Aggregation is how a statistic is rolled up.
type Aggregation string

const (
	AggTotal      Aggregation = "total"
	AggPerTeam    Aggregation = "per_team"
	AggPerPlayer  Aggregation = "per_player"
	AggAverage    Aggregation = "average"
	AggDifference Aggregation = "difference"
)

// Period is the match segment a statistic refers to.
type Period string

const (
	PeriodFullTime   Period = "full_time"
	PeriodFirstHalf  Period = "first_half"
	PeriodSecondHalf Period = "second_half"
	PeriodExtraTime  Period = "extra_time"
	PeriodOvertime   Period = "overtime"
	PeriodQuarter    Period = "quarter"
)

// Comparator is a threshold comparison operator.
type Comparator string

const (
	CmpGT  Comparator = ">"
	CmpGTE Comparator = ">="
	CmpLT  Comparator = "<"
	CmpLTE Comparator = "<="
	CmpEQ  Comparator = "="
)

// MatchRef identifies a single match.
type MatchRef struct {
	Home        string `json:"home,omitempty"`
	Away        string `json:"away,omitempty"`
	Date        string `json:"date,omitempty"`
	Competition string `json:"competition,omitempty"`
	ID          string `json:"id,omitempty"`
}

// Entities holds the extracted subjects of a statistic question.
type Entities struct {
	Match  *MatchRef `json:"match,omitempty"`
	Team   string    `json:"team,omitempty"`
	Player string    `json:"player,omitempty"`
}

// StatisticQuery is the structured form of a statistic question.
//
// Threshold and Comparator are both set exactly when QueryType is
// QueryThreshold. CanResolveNow is true exactly when EventEndTime is known
// and at least 15 minutes in the past.
type StatisticQuery struct {
	QueryType     StatQueryType `json:"query_type"`
	StatisticType StatisticType `json:"statistic_type"`
	Entities      Entities      `json:"entities"`
	Aggregation   Aggregation   `json:"aggregation"`
	Period        Period        `json:"period"`
	Threshold     *float64      `json:"threshold,omitempty"`
	Comparator    Comparator    `json:"comparator,omitempty"`
	EventEndTime  *time.Time    `json:"event_end_time,omitempty"`
	CanResolveNow bool          `json:"can_resolve_now"`
	RawText       string        `json:"raw_text"`
}

// ResolvableAt reports whether a query with the given event end time is
// settleable at now: the event must have ended at least 15 minutes ago.
func ResolvableAt(eventEnd *time.Time, now time.Time) bool {
	if eventEnd == nil {
		return false
	}
	return now.Sub(*eventEnd) >= 15*time.Minute
}

// ProviderResponse is the typed envelope for one provider's contribution.
// Weight is advisory metadata consumed by confidence scoring; consensus
// selection never reads it.
type ProviderResponse struct {
	Provider    string            `json:"provider"`
	Tier        int               `json:"tier"`
	Weight      float64           `json:"weight"`
	CollectedAt time.Time         `json:"collected_at"`
	Payload     any               `json:"payload,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// Envelope status values stored under Meta["status"].
const (
	EnvelopeOK      = "ok"
	EnvelopeSkipped = "skipped"
	EnvelopeFailed  = "failed"
)

// Status returns the envelope status, defaulting to ok.
func (r ProviderResponse) Status() string {
	if r.Meta == nil {
		return EnvelopeOK
	}
	if s, ok := r.Meta["status"]; ok {
		return s
	}
	return EnvelopeOK
}

// OK reports whether the envelope carries a usable payload.
func (r ProviderResponse) OK() bool { return r.Status() == EnvelopeOK }

// WeightForTier maps a provider tier to its default advisory weight.
func WeightForTier(tier int) float64 {
	switch tier {
	case 1:
		return 0.45
	case 2:
		return 0.30
	case 3:
		return 0.25
	default:
		return 0.15
	}
}

// Category labels the kind of claim a normalized fact makes.
type Category string

const (
	CategoryResult    Category = "result"
	CategoryScoreline Category = "scoreline"
	CategoryAward     Category = "award"
	CategoryNews      Category = "news"
	CategoryOther     Category = "other"
)

// NormalizedFact is one provider's claim about a match outcome, reduced to
// the pipeline's common shape. CanonicalKey groups corroborating claims.
type NormalizedFact struct {
	Provider     string     `json:"provider"`
	CanonicalKey string     `json:"canonical_key"`
	Display      string     `json:"display"`
	Category     Category   `json:"category"`
	HomeTeam     string     `json:"home_team,omitempty"`
	AwayTeam     string     `json:"away_team,omitempty"`
	Winner       string     `json:"winner,omitempty"`
	HomeScore    *int       `json:"home_score,omitempty"`
	AwayScore    *int       `json:"away_score,omitempty"`
	Award        string     `json:"award,omitempty"`
	Player       string     `json:"player,omitempty"`
	Status       string     `json:"status,omitempty"`
	EndTimestamp *time.Time `json:"end_timestamp,omitempty"`
	SourceURL    string     `json:"source_url,omitempty"`
	Reliability  float64    `json:"reliability"`
	Raw          any        `json:"raw,omitempty"`
}

// StatisticSource records where one statistic value came from.
type StatisticSource struct {
	Source      string            `json:"source"`
	Tier        int               `json:"tier"`
	Weight      float64           `json:"weight"`
	RawValue    any               `json:"raw_value,omitempty"`
	ParsedValue float64           `json:"parsed_value"`
	Timestamp   time.Time         `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NormalizedStatistic is one provider's claim about a statistic value.
type NormalizedStatistic struct {
	Type        StatisticType     `json:"type"`
	Team        string            `json:"team,omitempty"`
	Player      string            `json:"player,omitempty"`
	Match       *MatchRef         `json:"match,omitempty"`
	Value       float64           `json:"value"`
	Unit        Unit              `json:"unit"`
	Period      Period            `json:"period"`
	Aggregation Aggregation       `json:"aggregation"`
	Sources     []StatisticSource `json:"sources"`
}

// EvidenceGroup is a set of facts sharing one canonical key.
type EvidenceGroup struct {
	Key                string           `json:"key"`
	Facts              []NormalizedFact `json:"facts"`
	Providers          []string         `json:"providers"`
	ReliabilityAverage float64          `json:"reliability_average"`
}

// ValidationReport is the output of range and logical validation.
type ValidationReport struct {
	WithinRange         bool     `json:"within_range"`
	LogicallyConsistent bool     `json:"logically_consistent"`
	Warnings            []string `json:"warnings,omitempty"`
	InvalidSources      []string `json:"invalid_sources,omitempty"`
}

// StatisticConsensus is the reconciled answer for a statistic query.
type StatisticConsensus struct {
	StatisticType          StatisticType     `json:"statistic_type"`
	Agreed                 bool              `json:"agreed"`
	AgreedValue            *float64          `json:"agreed_value,omitempty"`
	Unit                   Unit              `json:"unit"`
	AgreementCount         int               `json:"agreement_count"`
	Variance               float64           `json:"variance"`
	Outliers               []StatisticSource `json:"outliers,omitempty"`
	Tier1Count             int               `json:"tier1_count"`
	StatsProviderCount     int               `json:"stats_provider_count"`
	OfficialSourcePresent  bool              `json:"official_source_present"`
	BettingMarketAlignment bool              `json:"betting_market_alignment"`
	SupportingSources      []string          `json:"supporting_sources,omitempty"`
}

// Stats providers are the dedicated statistics firms; at least one of them
// must corroborate a value before a statistic consensus counts as agreed.
var statsProviders = map[string]bool{
	"OPTA_STATS":  true,
	"STATSBOMB":   true,
	"SPORTSRADAR": true,
}

// IsStatsProvider reports whether name is one of the dedicated stats firms.
func IsStatsProvider(name string) bool { return statsProviders[name] }
