package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Helpers for walking decoded JSON without committing to per-provider
// schemas. All of them return zero values for absent or mistyped fields.

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
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}

func boolField(m map[string]any, key string) (bool, bool) {
	if m == nil {
		return false, false
	}
	b, ok := m[key].(bool)
	return b, ok
}

var numberRe = regexp.MustCompile(`-?\d+(\.\d+)?`)

// firstNumber extracts the first numeric token from a string, so "55%" and
// "FT 3-1" yield 55 and 3.
func firstNumber(s string) (float64, bool) {
	tok := numberRe.FindString(s)
	if tok == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// numeric coerces a dynamic value to float64. Booleans and composites are
// not numbers; strings go through firstNumber.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		return firstNumber(n)
	}
	return 0, false
}

// intPtr coerces a dynamic value to *int, tolerating string-encoded scores.
func intPtr(v any) *int {
	f, ok := numeric(v)
	if !ok {
		return nil
	}
	n := int(math.Round(f))
	return &n
}

// nameOf reads an entity that providers encode either as a bare string or
// as an object with a name field.
func nameOf(v any) string {
	switch n := v.(type) {
	case string:
		return strings.TrimSpace(n)
	case map[string]any:
		return strings.TrimSpace(str(n, "name"))
	}
	return ""
}

