// Package odds turns The Odds API totals markets into a betting line the
// statistic consensus can align against. Prices are handled as decimals so
// no-vig normalization does not accumulate float error.
package odds

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/arbiterlab/sportsresolve/core"
)

// MarketLine is one totals market: the posted point and the prices on each
// side of it.
type MarketLine struct {
	Point      float64         `json:"point"`
	OverPrice  decimal.Decimal `json:"over_price"`
	UnderPrice decimal.Decimal `json:"under_price"`
}

// Implied converts a decimal price to its implied probability, 1/price.
func Implied(price decimal.Decimal) decimal.Decimal {
	if price.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromInt(1).Div(price)
}

// NoVig removes the bookmaker margin, returning probabilities that sum to 1.
func NoVig(over, under decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	io := Implied(over)
	iu := Implied(under)
	total := io.Add(iu)
	if total.IsZero() {
		return decimal.Zero, decimal.Zero
	}
	return io.Div(total), iu.Div(total)
}

// FavoredSide names the side the market leans to: "over" when the no-vig
// over probability exceeds one half, else "under".
func FavoredSide(line MarketLine) string {
	over, _ := NoVig(line.OverPrice, line.UnderPrice)
	if over.GreaterThan(decimal.NewFromFloat(0.5)) {
		return "over"
	}
	return "under"
}

// AlignsWith reports whether a consensus value lands on the market's
// favored side of the point. A value exactly on the point aligns with
// neither side.
func AlignsWith(line *MarketLine, value float64) bool {
	if line == nil {
		return false
	}
	switch FavoredSide(*line) {
	case "over":
		return value > line.Point
	default:
		return value < line.Point
	}
}

// LineFromPayload extracts the first complete totals market for the given
// matchup from a The Odds API shaped payload. Either team name may be empty,
// in which case any event matches.
func LineFromPayload(payload any, home, away string) *MarketLine {
	for _, e := range asArray(payload) {
		event := asMap(e)
		if event == nil {
			continue
		}
		if home != "" && !teamMatches(str(event, "home_team"), home) {
			continue
		}
		if away != "" && !teamMatches(str(event, "away_team"), away) {
			continue
		}
		for _, b := range asArray(event["bookmakers"]) {
			for _, m := range asArray(asMap(b)["markets"]) {
				market := asMap(m)
				if market == nil || str(market, "key") != "totals" {
					continue
				}
				if line := lineFromOutcomes(asArray(market["outcomes"])); line != nil {
					return line
				}
			}
		}
	}
	return nil
}

func lineFromOutcomes(outcomes []any) *MarketLine {
	line := MarketLine{}
	haveOver, haveUnder := false, false
	for _, o := range outcomes {
		out := asMap(o)
		if out == nil {
			continue
		}
		price, okPrice := numeric(out["price"])
		point, okPoint := numeric(out["point"])
		if !okPrice || !okPoint {
			continue
		}
		switch strings.ToLower(str(out, "name")) {
		case "over":
			line.OverPrice = decimal.NewFromFloat(price)
			line.Point = point
			haveOver = true
		case "under":
			line.UnderPrice = decimal.NewFromFloat(price)
			haveUnder = true
		}
	}
	if haveOver && haveUnder {
		return &line
	}
	return nil
}

func teamMatches(a, b string) bool {
	na, nb := core.Normalize(a), core.Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb || strings.Contains(na, nb) || strings.Contains(nb, na)
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asArray(v any) []any {
	a, _ := v.([]any)
	return a
}

func str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
