package core

// sanitize.go cleans the free-text columns of legacy exports:
//   - Excel formula wrappers (="value") and stray quotes
//   - e-mail lists in one cell, with mailto: prefixes and angle brackets
//   - telephone numbers with arbitrary punctuation

import (
	"regexp"
	"strings"
	"unicode"
)

// emailRegex checks the shape of an address after cleanup. Deliverability
// is not our concern; the legacy data only needs to look like an address.
var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-']+@[a-z0-9.\-]+\.[a-z]{2,}$`)

// InvalidEmailDomain is used to synthesize an address for members whose
// export carries none, since every member needs at least one.
const InvalidEmailDomain = "members.invalid"

// CleanText removes common CSV artifacts from a cell value:
//   - Trims whitespace
//   - Removes Excel formula prefix (="...")
//   - Removes surrounding quotes
func CleanText(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// SanitizeEmails splits a cell into distinct, lower-cased addresses.
// Separators are ';', ',' and whitespace. Entries that do not look like
// an address are dropped.
func SanitizeEmails(s string) []string {
	parts := strings.FieldsFunc(CleanText(s), func(r rune) bool {
		return r == ';' || r == ',' || unicode.IsSpace(r)
	})

	var out []string
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.ToLower(p)
		p = strings.TrimPrefix(p, "mailto:")
		p = strings.Trim(p, "<>()[]\"'")
		p = strings.TrimSuffix(p, ".")
		if !emailRegex.MatchString(p) || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// FallbackEmail returns the placeholder address for bboName.
func FallbackEmail(bboName string) string {
	local := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		case unicode.IsSpace(r):
			return '_'
		default:
			return -1
		}
	}, strings.ToLower(strings.TrimSpace(bboName)))
	if local == "" {
		local = "member"
	}
	return local + "@" + InvalidEmailDomain
}

// SanitizePhones splits a cell into telephone numbers made of digits with
// an optional leading '+'. Numbers are separated by ';', ',' or '/'.
func SanitizePhones(s string) []string {
	parts := strings.FieldsFunc(CleanText(s), func(r rune) bool {
		return r == ';' || r == ',' || r == '/'
	})

	var out []string
	for _, p := range parts {
		if n := sanitizePhone(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func sanitizePhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	n := b.String()
	if strings.Trim(n, "+") == "" {
		return ""
	}
	return n
}
