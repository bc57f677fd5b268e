package csvstream

import (
	"errors"
	"fmt"
	"strings"
)

// Options configures a Tokenizer. They are fixed for the lifetime of a
// parser instance.
type Options struct {
	// FieldDelimiter separates fields. Default: ','
	FieldDelimiter rune
	// QuoteDelimiter encloses string fields; doubled inside a quoted field
	// it stands for one literal quote. Default: '"'
	QuoteDelimiter rune
	// DecimalSeparator is the decimal mark of unquoted numbers. Default: '.'
	DecimalSeparator rune
}

// DefaultOptions returns comma-delimited, double-quoted, dot-decimal options.
func DefaultOptions() Options {
	return Options{
		FieldDelimiter:   ',',
		QuoteDelimiter:   '"',
		DecimalSeparator: '.',
	}
}

// withDefaults fills zero runes with the defaults.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.FieldDelimiter == 0 {
		o.FieldDelimiter = d.FieldDelimiter
	}
	if o.QuoteDelimiter == 0 {
		o.QuoteDelimiter = d.QuoteDelimiter
	}
	if o.DecimalSeparator == 0 {
		o.DecimalSeparator = d.DecimalSeparator
	}
	return o
}

// Validate rejects option sets the state machine cannot disambiguate.
func (o Options) Validate() error {
	o = o.withDefaults()
	var errs []error
	if o.FieldDelimiter == o.QuoteDelimiter {
		errs = append(errs, fmt.Errorf("field delimiter and quote must differ (both %q)", o.FieldDelimiter))
	}
	for _, r := range []rune{o.FieldDelimiter, o.QuoteDelimiter} {
		if r == '\n' || r == '\r' {
			errs = append(errs, fmt.Errorf("delimiter %q cannot be a line terminator", r))
		}
	}
	return errors.Join(errs...)
}

type state uint8

const (
	stateStartField state = iota
	stateUnquoted
	stateQuoted
	stateAfterQuote
	stateSkipToNextField
)

// Tokenizer splits single lines into typed fields. It keeps scratch state
// between calls and is not safe for concurrent use.
type Tokenizer struct {
	opts   Options
	state  state
	buf    strings.Builder
	fields []Field
	width  int // field count of the previous line, used as a capacity hint
}

// NewTokenizer returns a tokenizer for opts; zero runes take their defaults.
func NewTokenizer(opts Options) *Tokenizer {
	return &Tokenizer{opts: opts.withDefaults()}
}

// Options returns the effective options.
func (t *Tokenizer) Options() Options { return t.opts }

// Parse tokenizes one line without its terminator. It always returns at
// least one field; a line of n delimiters yields n+1 Unknown fields.
func (t *Tokenizer) Parse(line string) []Field {
	t.state = stateStartField
	t.buf.Reset()
	t.fields = make([]Field, 0, max(t.width, 1))

	for _, c := range line {
		t.step(c, false)
	}
	// End-of-line sentinel lets every state finish its last field.
	t.step(0, true)

	t.width = len(t.fields)
	fields := t.fields
	t.fields = nil
	return fields
}

func (t *Tokenizer) emit(f Field) {
	t.fields = append(t.fields, f)
	t.buf.Reset()
}

func (t *Tokenizer) step(c rune, eol bool) {
	delim, quote := t.opts.FieldDelimiter, t.opts.QuoteDelimiter

	switch t.state {
	case stateStartField:
		switch {
		case eol:
			t.emit(Unknown())
		case c == quote:
			t.buf.Reset()
			t.state = stateQuoted
		case c == delim:
			t.emit(Unknown())
		case c == ' ' || c == '\t':
			// leading blanks are not part of the value
		default:
			t.buf.Reset()
			t.buf.WriteRune(c)
			t.state = stateUnquoted
		}

	case stateUnquoted:
		if eol || c == delim {
			t.emit(t.classifyUnquoted(t.buf.String()))
			t.state = stateStartField
			return
		}
		t.buf.WriteRune(c)

	case stateQuoted:
		switch {
		case eol:
			// Unterminated quote: keep what we have.
			t.emit(t.classifyQuoted(t.buf.String()))
		case c == quote:
			t.state = stateAfterQuote
		default:
			t.buf.WriteRune(c)
		}

	case stateAfterQuote:
		if !eol && c == quote {
			t.buf.WriteRune(quote)
			t.state = stateQuoted
			return
		}
		t.emit(t.classifyQuoted(t.buf.String()))
		if eol || c == delim {
			t.state = stateStartField
		} else {
			t.state = stateSkipToNextField
		}

	case stateSkipToNextField:
		if !eol && c == delim {
			t.state = stateStartField
		}
	}
}
