package classify

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	monthDateRe = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	slashDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{2,4})\b`)
)

var monthNumbers = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may": 5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sep": 9, "sept": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

// ExtractDate finds the first date in the text and returns it as ISO
// YYYY-MM-DD. Pattern priority: ISO, then "Month D, YYYY", then numeric
// M/D/YY(YY) with month-first preferred and day-first as fallback when the
// first number cannot be a month. Returns "" when nothing parses.
func ExtractDate(text string) string {
	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if iso, ok := isoDate(y, mo, d); ok {
			return iso
		}
	}

	if m := monthDateRe.FindStringSubmatch(text); m != nil {
		mo := monthNumbers[strings.ToLower(m[1])]
		d, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		if iso, ok := isoDate(y, mo, d); ok {
			return iso
		}
	}

	if m := slashDateRe.FindStringSubmatch(text); m != nil {
		first, _ := strconv.Atoi(m[1])
		second, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		if y < 100 {
			y += 2000
		}
		if first <= 12 {
			if iso, ok := isoDate(y, first, second); ok {
				return iso
			}
		}
		if iso, ok := isoDate(y, second, first); ok {
			return iso
		}
	}
	return ""
}

// isoDate formats the components, rejecting values time.Date would slide
// into another month.
func isoDate(y, m, d int) (string, bool) {
	if y < 1900 || y > 2200 || m < 1 || m > 12 || d < 1 || d > 31 {
		return "", false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// EndOfDayUTC returns the instant the given ISO date ends (next midnight
// UTC). Used as the event end time when only a date is known.
func EndOfDayUTC(iso string) *time.Time {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return nil
	}
	end := t.Add(24 * time.Hour)
	return &end
}
