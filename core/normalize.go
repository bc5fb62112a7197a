package core

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize reduces a name to its canonical comparison form: lowercase,
// accents folded (Atlético -> atletico), everything outside [a-z0-9]
// stripped. Two names that normalize equal are treated as the same entity
// everywhere in the pipeline.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TeamsKey builds the order-independent grouping key for a set of team
// names: normalized, sorted, joined with "-". Empty normalizations drop out.
func TeamsKey(names ...string) string {
	keys := make([]string, 0, len(names))
	for _, n := range names {
		if k := Normalize(n); k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return strings.Join(keys, "-")
}
