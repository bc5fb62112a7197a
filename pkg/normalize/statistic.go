package normalize

import (
	"sort"

	"github.com/arbiterlab/sportsresolve/core"
	"github.com/arbiterlab/sportsresolve/pkg/classify"
)

// Statistics normalizes one statistic-pipeline envelope into zero or more
// typed values. Provider payload schemas are not modeled; instead a walker
// traverses the decoded JSON and emits every value it can attribute to a
// statistic type. The Odds API is excluded here: its payload carries market
// prices, which pkg/odds turns into a betting line rather than a value.
func Statistics(resp core.ProviderResponse, q core.StatisticQuery) []core.NormalizedStatistic {
	if !resp.OK() || resp.Payload == nil {
		return nil
	}
	if resp.Provider == "THE_ODDS_API" {
		return nil
	}
	w := &statWalker{resp: resp, q: q}
	w.walk(resp.Payload, statContext{})
	return w.out
}

// statContext carries entity attribution picked up from enclosing objects.
type statContext struct {
	team   string
	player string
}

type statWalker struct {
	resp core.ProviderResponse
	q    core.StatisticQuery
	out  []core.NormalizedStatistic
}

func (w *statWalker) walk(node any, ctx statContext) {
	switch v := node.(type) {
	case []any:
		for _, e := range v {
			w.walk(e, ctx)
		}
	case map[string]any:
		w.walkObject(v, ctx)
	case string:
		w.emitText(v, ctx)
	}
}

// statArrayKeys are the container fields providers commonly nest rows under.
var statArrayKeys = []string{"statistics", "data", "items"}

// labelKeys disambiguate a value field, tried in order.
var labelKeys = []string{"type", "statType", "label", "name"}

func (w *statWalker) walkObject(obj map[string]any, ctx statContext) {
	if t := nameOf(obj["team"]); t != "" {
		ctx.team = t
	}
	if p := nameOf(obj["player"]); p != "" {
		ctx.player = p
	}
	handled := map[string]bool{"team": true, "player": true}

	for _, k := range statArrayKeys {
		if arr := asArray(obj[k]); arr != nil {
			w.walk(arr, ctx)
			handled[k] = true
		}
	}

	if s, ok := obj["text"].(string); ok {
		w.emitText(s, ctx)
		handled["text"] = true
	}

	if raw, ok := obj["value"]; ok {
		if v, isNum := numeric(raw); isNum {
			if typ, resolved := labelType(obj); resolved {
				w.emit(typ, v, raw, ctx, false)
			} else {
				w.emit(w.q.StatisticType, v, raw, ctx, true)
			}
			handled["value"] = true
			for _, k := range labelKeys {
				handled[k] = true
			}
		}
	}

	for _, k := range sortedKeys(obj) {
		if handled[k] {
			continue
		}
		typ, known := classify.TypeFromLabel(k)
		if !known {
			continue
		}
		if v, isNum := numeric(obj[k]); isNum {
			w.emit(typ, v, obj[k], ctx, false)
			handled[k] = true
		}
	}

	for _, k := range sortedKeys(obj) {
		if handled[k] {
			continue
		}
		childCtx := ctx
		if w.q.Entities.Match != nil {
			switch k {
			case "home":
				childCtx.team = w.q.Entities.Match.Home
			case "away":
				childCtx.team = w.q.Entities.Match.Away
			}
		}
		switch obj[k].(type) {
		case map[string]any, []any:
			w.walk(obj[k], childCtx)
		}
	}
}

// emitText turns free text holding a number into a query-typed candidate.
func (w *statWalker) emitText(s string, ctx statContext) {
	if v, ok := firstNumber(s); ok {
		w.emit(w.q.StatisticType, v, s, ctx, true)
	}
}

// emit appends one normalized value. Candidates that fell back to the
// query's type inherit its aggregation and period; explicitly labeled ones
// describe full-time totals.
func (w *statWalker) emit(typ core.StatisticType, value float64, raw any, ctx statContext, inherit bool) {
	agg, period := core.AggTotal, core.PeriodFullTime
	if inherit {
		agg, period = w.q.Aggregation, w.q.Period
	}
	w.out = append(w.out, core.NormalizedStatistic{
		Type:        typ,
		Team:        ctx.team,
		Player:      ctx.player,
		Match:       w.q.Entities.Match,
		Value:       value,
		Unit:        core.UnitFor(typ),
		Period:      period,
		Aggregation: agg,
		Sources: []core.StatisticSource{{
			Source:      w.resp.Provider,
			Tier:        w.resp.Tier,
			Weight:      w.resp.Weight,
			RawValue:    raw,
			ParsedValue: value,
			Timestamp:   w.resp.CollectedAt,
		}},
	})
}

func labelType(obj map[string]any) (core.StatisticType, bool) {
	for _, k := range labelKeys {
		label := nameOf(obj[k])
		if label == "" {
			continue
		}
		if t, ok := classify.TypeFromLabel(label); ok {
			return t, true
		}
	}
	return "", false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
