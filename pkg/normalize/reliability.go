package normalize

import "strings"

// reliabilityTable scores each provider's historical trustworthiness.
// Consensus tie-breaks and confidence adjustments read these values.
var reliabilityTable = map[string]float64{
	"OFFICIAL_LEAGUE":       0.9,
	"OPTA_STATS":            0.9,
	"SPORTSRADAR":           0.85,
	"STATSBOMB":             0.85,
	"API_SPORTS_SOCCER":     0.8,
	"API_SPORTS_BASKETBALL": 0.8,
	"API_FOOTBALL":          0.8,
	"THE_ODDS_API":          0.75,
	"THESPORTSDB":           0.7,
	"FLASHSCORE":            0.7,
	"SOFASCORE":             0.7,
}

// newsReliability is the fixed reliability of facts extracted from RSS
// headlines, regardless of which feed carried them.
const newsReliability = 0.6

// ReliabilityFor returns the base reliability for a provider id. RSS feed
// providers score 0.55 and unknown providers 0.5.
func ReliabilityFor(provider string) float64 {
	if r, ok := reliabilityTable[provider]; ok {
		return r
	}
	if strings.HasPrefix(provider, "rss:") {
		return 0.55
	}
	return 0.5
}
