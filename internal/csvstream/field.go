package csvstream

import (
	"strconv"
	"time"
)

// Kind is the inferred type of a field.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNumber
	KindDate
	KindBoolean
	KindString
)

var kindNames = [...]string{
	KindUnknown: "unknown",
	KindNumber:  "number",
	KindDate:    "date",
	KindBoolean: "boolean",
	KindString:  "string",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Field is one typed cell. The zero value is Unknown.
type Field struct {
	kind Kind
	num  float64
	date time.Time
	b    bool
	text string // literal source text, after quote unescaping
}

// Unknown returns the field produced by an empty or absent cell.
func Unknown() Field { return Field{} }

// Number returns a numeric field.
func Number(v float64) Field {
	return Field{kind: KindNumber, num: v, text: strconv.FormatFloat(v, 'f', -1, 64)}
}

// Date returns a date field.
func Date(t time.Time) Field {
	return Field{kind: KindDate, date: t, text: t.Format(time.RFC3339)}
}

// Boolean returns a boolean field.
func Boolean(v bool) Field {
	return Field{kind: KindBoolean, b: v, text: strconv.FormatBool(v)}
}

// String returns a string field holding s verbatim.
func String(s string) Field {
	return Field{kind: KindString, text: s}
}

// withText keeps the literal the classifier saw, so header cells and
// failure reports show what was actually in the file.
func (f Field) withText(s string) Field {
	if f.kind != KindUnknown {
		f.text = s
	}
	return f
}

// Kind reports the field's type.
func (f Field) Kind() Kind { return f.kind }

// IsUnknown reports whether the field carries no value.
func (f Field) IsUnknown() bool { return f.kind == KindUnknown }

// Float returns the numeric value.
func (f Field) Float() (float64, bool) { return f.num, f.kind == KindNumber }

// Time returns the date value.
func (f Field) Time() (time.Time, bool) { return f.date, f.kind == KindDate }

// Bool returns the boolean value.
func (f Field) Bool() (bool, bool) { return f.b, f.kind == KindBoolean }

// Text returns the literal text the field was parsed from. It is empty for
// Unknown fields.
func (f Field) Text() string { return f.text }

// Value returns the typed value as float64, time.Time, bool or string, and
// nil for Unknown.
func (f Field) Value() any {
	switch f.kind {
	case KindNumber:
		return f.num
	case KindDate:
		return f.date
	case KindBoolean:
		return f.b
	case KindString:
		return f.text
	default:
		return nil
	}
}

// Equal reports whether two fields have the same kind and value. Literal
// text is ignored, so Number(42) parsed from "42.0" equals Number(42).
func (f Field) Equal(o Field) bool {
	if f.kind != o.kind {
		return false
	}
	switch f.kind {
	case KindNumber:
		return f.num == o.num
	case KindDate:
		return f.date.Equal(o.date)
	case KindBoolean:
		return f.b == o.b
	case KindString:
		return f.text == o.text
	default:
		return true
	}
}

func (f Field) String() string {
	switch f.kind {
	case KindUnknown:
		return "Unknown"
	case KindString:
		return "String(" + strconv.Quote(f.text) + ")"
	case KindNumber:
		return "Number(" + strconv.FormatFloat(f.num, 'g', -1, 64) + ")"
	case KindDate:
		return "Date(" + f.date.Format(time.RFC3339) + ")"
	default:
		return "Boolean(" + strconv.FormatBool(f.b) + ")"
	}
}

// Header is the ordered list of column names from the first line of a stream.
type Header []string

// Entry is one named field of a record.
type Entry struct {
	Name  string
	Field Field
}

// Record is one data line keyed by header names. It never holds Unknown
// fields. Names may repeat; Get returns the last one.
type Record struct {
	// Line is the 1-based line number the record was parsed from.
	Line    int
	entries []Entry
}

// NewRecord builds a record, dropping Unknown fields.
func NewRecord(line int, entries ...Entry) Record {
	r := Record{Line: line, entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		r.add(e.Name, e.Field)
	}
	return r
}

func (r *Record) add(name string, f Field) {
	if f.IsUnknown() {
		return
	}
	r.entries = append(r.entries, Entry{Name: name, Field: f})
}

// Get returns the field stored under name.
func (r Record) Get(name string) (Field, bool) {
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].Name == name {
			return r.entries[i].Field, true
		}
	}
	return Field{}, false
}

// Len returns the number of entries, duplicates included.
func (r Record) Len() int { return len(r.entries) }

// Entries returns a copy of the entries in column order.
func (r Record) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Names returns the entry names in column order.
func (r Record) Names() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Name
	}
	return out
}

// Map flattens the record to name -> typed value, last duplicate winning.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.entries))
	for _, e := range r.entries {
		out[e.Name] = e.Field.Value()
	}
	return out
}
