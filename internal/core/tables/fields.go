package tables

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/JonMunkholm/bboimport/internal/core"
	"github.com/JonMunkholm/bboimport/internal/csvstream"
)

// columnKey folds a header name for alias matching: "BBO Name", "bbo_name"
// and "bboName" all become "bboname".
func columnKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// fieldOf returns the first present field among names. Exact header
// matches win over folded ones.
func fieldOf(rec csvstream.Record, names ...string) (csvstream.Field, bool) {
	for _, n := range names {
		if f, ok := rec.Get(n); ok {
			return f, true
		}
	}

	entries := rec.Entries()
	for _, n := range names {
		key := columnKey(n)
		// Last one wins, as with Record.Get.
		for i := len(entries) - 1; i >= 0; i-- {
			if columnKey(entries[i].Name) == key {
				return entries[i].Field, true
			}
		}
	}
	return csvstream.Unknown(), false
}

// textOf returns the cleaned text of the first present field among names.
func textOf(rec csvstream.Record, names ...string) string {
	f, _ := fieldOf(rec, names...)
	return core.CleanText(f.Text())
}

// requiredText is textOf that fails when the value is missing or blank.
func requiredText(rec csvstream.Record, names ...string) (string, error) {
	s := textOf(rec, names...)
	if s == "" {
		return "", fmt.Errorf("required field %q is empty", names[0])
	}
	return s, nil
}
