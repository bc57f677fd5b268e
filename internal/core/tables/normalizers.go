package tables

import "strings"

// Nations maps the spellings found in the legacy exports to the country
// name stored on members and TDs.
var Nations = map[string]string{
	"usa":                      "United States",
	"us":                       "United States",
	"u.s.a.":                   "United States",
	"united states of america": "United States",
	"america":                  "United States",
	"uk":                       "United Kingdom",
	"u.k.":                     "United Kingdom",
	"great britain":            "United Kingdom",
	"england":                  "United Kingdom",
	"scotland":                 "United Kingdom",
	"wales":                    "United Kingdom",
	"holland":                  "Netherlands",
	"the netherlands":          "Netherlands",
	"deutschland":              "Germany",
	"italia":                   "Italy",
	"espana":                   "Spain",
	"españa":                   "Spain",
	"brasil":                   "Brazil",
	"polska":                   "Poland",
	"türkiye":                  "Turkey",
	"turkiye":                  "Turkey",
	"russian federation":       "Russia",
	"czech republic":           "Czechia",
	"republic of ireland":      "Ireland",
	"eire":                     "Ireland",
	"korea":                    "South Korea",
	"republic of korea":        "South Korea",
	"uae":                      "United Arab Emirates",
	"nz":                       "New Zealand",
}

// UnknownNation is stored when the export leaves the country empty.
const UnknownNation = "Unknown"

// NormalizeNation maps known aliases to one spelling. Unrecognized names are
// returned trimmed with their first letter upper-cased.
func NormalizeNation(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return UnknownNation
	}

	if name, ok := Nations[strings.ToLower(s)]; ok {
		return name
	}

	// Fallback: keep the exporter's spelling
	r := []rune(s)
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}
