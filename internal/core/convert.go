package core

// convert.go maps typed CSV fields to PostgreSQL types.
//
// The tokenizer already classified every cell, so most conversions are a
// type switch. Strings get a second chance where legacy exports are known
// to quote values that should not be text (quoted booleans, amounts with a
// currency sign).
//
// All Pg* functions return pgtype values with Valid=false for Unknown or
// unconvertible input, allowing the database to store NULL.

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/bboimport/internal/csvstream"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// PgText converts a field to pgtype.Text using its literal text.
// Returns invalid if the cleaned text is empty.
func PgText(f csvstream.Field) pgtype.Text {
	s := CleanText(f.Text())
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// PgTimestamptz converts a date field to pgtype.Timestamptz.
// String fields are parsed with the tokenizer's date grammar.
func PgTimestamptz(f csvstream.Field) pgtype.Timestamptz {
	switch f.Kind() {
	case csvstream.KindDate:
		t, _ := f.Time()
		return pgtype.Timestamptz{Time: t, Valid: true}
	case csvstream.KindString:
		if t, ok := csvstream.ParseDate(CleanText(f.Text())); ok {
			return pgtype.Timestamptz{Time: t, Valid: true}
		}
	}
	return pgtype.Timestamptz{}
}

// PgNumeric converts a field to pgtype.Numeric.
// String fields may carry currency symbols, thousands separators and the
// accounting format for negatives "(123.45)".
func PgNumeric(f csvstream.Field) pgtype.Numeric {
	var s string
	switch f.Kind() {
	case csvstream.KindNumber:
		v, _ := f.Float()
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case csvstream.KindString:
		s = cleanAmount(f.Text())
	default:
		return pgtype.Numeric{}
	}

	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{}
	}
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{}
	}
	return n
}

func cleanAmount(s string) string {
	s = CleanText(s)

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}
	return s
}

// PgBool converts a field to pgtype.Bool.
// Numbers are true when non-zero; strings use the boolean word list.
func PgBool(f csvstream.Field) pgtype.Bool {
	switch f.Kind() {
	case csvstream.KindBoolean:
		b, _ := f.Bool()
		return pgtype.Bool{Bool: b, Valid: true}
	case csvstream.KindNumber:
		v, _ := f.Float()
		return pgtype.Bool{Bool: v != 0, Valid: true}
	case csvstream.KindString:
		if b, ok := csvstream.ParseBool(CleanText(f.Text())); ok {
			return pgtype.Bool{Bool: b, Valid: true}
		}
	}
	return pgtype.Bool{}
}

// PgInt4 converts an integral number field to pgtype.Int4.
// Fractions and values outside the int32 range are invalid.
func PgInt4(f csvstream.Field) pgtype.Int4 {
	var v float64
	switch f.Kind() {
	case csvstream.KindNumber:
		v, _ = f.Float()
	case csvstream.KindString:
		parsed, err := strconv.ParseFloat(cleanAmount(f.Text()), 64)
		if err != nil {
			return pgtype.Int4{}
		}
		v = parsed
	default:
		return pgtype.Int4{}
	}
	if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(v), Valid: true}
}

// PgInt8 converts an integral number field to pgtype.Int8.
func PgInt8(f csvstream.Field) pgtype.Int8 {
	v, ok := f.Float()
	if !ok || v != math.Trunc(v) || math.Abs(v) > 1<<53 {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: int64(v), Valid: true}
}

// Truthy reports whether a legacy flag column is set. Unknown and
// unrecognized strings are false.
func Truthy(f csvstream.Field) bool {
	b := PgBool(f)
	return b.Valid && b.Bool
}

// ToPgUUID converts a string to pgtype.UUID.
// Returns invalid if the string is empty or not a valid UUID.
func ToPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// PgUUIDToString converts a pgtype.UUID to its string representation.
// Returns empty string if the UUID is invalid.
func PgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
