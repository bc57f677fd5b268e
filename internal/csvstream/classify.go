package csvstream

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are
// moved to the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling.
// Zone-less layouts are read as UTC.
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		// ISO 8601 and friends
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006/01/02 15:04:05",
		"2006/01/02",
		"2006.01.02",
		"20060102",

		// US/EU numeric
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
		"1/2/2006 3:04 PM",
		"1/2/2006",
		"01/02/2006",
		"1-2-2006",
		"01-02-2006",
		"1.2.2006 15:04:05",
		"1.2.2006 15:04",
		"1.2.2006",
		"01.02.2006",

		// Textual months
		"Jan 2, 2006",
		"January 2, 2006",
		"Jan 2 2006",
		"January 2 2006",
		"2 Jan 2006",
		"2 January 2006",
		"02-Jan-2006",
		"Mon, 02 Jan 2006 15:04:05 MST",
		"Mon, 02 Jan 2006 15:04:05 -0700",
		"Mon Jan 2 15:04:05 MST 2006",
		"Mon Jan 02 2006",

		// Date.toString() output found in legacy exports:
		// "Wed Nov 09 2011 16:47:25 GMT+0100 (CET)"
		"Mon Jan 02 2006 15:04:05 GMT-0700 (MST)",
		"Mon Jan 02 2006 15:04:05 GMT-0700",
		"Mon Jan 02 2006 15:04:05",
	}
)

var (
	trueWords  = []string{"true", "y", "yes"}
	falseWords = []string{"false", "n", "no"}
)

// classifyUnquoted types the text of an unquoted cell:
// number, date, boolean, string.
func (t *Tokenizer) classifyUnquoted(s string) Field {
	if s == "" {
		return Unknown()
	}
	if v, ok := parseNumber(s, t.opts.DecimalSeparator); ok {
		return Number(v).withText(s)
	}
	return classifyText(s)
}

// classifyQuoted types the text of a quoted cell. Quoted text is never
// numeric: "42" stays a string.
func (t *Tokenizer) classifyQuoted(s string) Field {
	if s == "" {
		return Unknown()
	}
	return classifyText(s)
}

// classifyText is the shared tail of both paths: date, boolean, string.
func classifyText(s string) Field {
	if d, ok := ParseDate(s); ok {
		return Date(d).withText(s)
	}
	if b, ok := ParseBool(s); ok {
		return Boolean(b).withText(s)
	}
	return String(s)
}

// parseNumber accepts a finite real number after swapping the first decimal
// separator for '.'. Surrounding blanks are tolerated.
func parseNumber(s string, sep rune) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if sep != '.' {
		s = strings.Replace(s, string(sep), ".", 1)
	}
	if !looksNumeric(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// looksNumeric rejects the spellings ParseFloat accepts but a CSV cell
// should not: "Inf", "NaN", hex floats and digit separators.
func looksNumeric(s string) bool {
	digits := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits = true
		case c == '.' || c == '+' || c == '-' || c == 'e' || c == 'E':
		default:
			return false
		}
	}
	return digits
}

// ParseDate parses s with a permissive set of date and date-time layouts.
// time.Parse already rejects impossible calendar dates such as 2023-02-30.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 6 || !strings.ContainsAny(s, "0123456789") {
		return time.Time{}, false
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	// 2-digit year layouts with pivot year adjustment
	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// ParseBool matches y/yes/true and n/no/false, ignoring case.
func ParseBool(s string) (bool, bool) {
	for _, w := range trueWords {
		if strings.EqualFold(s, w) {
			return true, true
		}
	}
	for _, w := range falseWords {
		if strings.EqualFold(s, w) {
			return false, true
		}
	}
	return false, false
}
