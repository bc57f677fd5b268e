package csvstream

import (
	"bytes"
	"errors"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("csvstream: assembler closed")

// RecordFunc consumes one record. A non-nil error stops the stream and is
// returned from the Write or Close call that produced the record.
type RecordFunc func(Record) error

// Assembler reassembles lines from byte chunks and turns them into records.
// The first line becomes the header. Not safe for concurrent use.
type Assembler struct {
	tok     *Tokenizer
	emit    RecordFunc
	decoder *transform.Writer

	pending   []byte // decoded text after the last line terminator
	header    Header
	hasHeader bool
	line      int
	closed    bool
	err       error
}

// NewAssembler returns an assembler that hands every record to emit.
func NewAssembler(opts Options, emit RecordFunc) *Assembler {
	a := &Assembler{
		tok:  NewTokenizer(opts),
		emit: emit,
	}
	// The UTF-8 decoder holds back a trailing partial rune until the next
	// chunk and replaces invalid bytes with U+FFFD; BOMOverride drops a BOM.
	a.decoder = transform.NewWriter(
		writerFunc(a.appendText),
		unicode.BOMOverride(unicode.UTF8.NewDecoder()),
	)
	return a
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// Write feeds one chunk of raw bytes. Complete lines are processed before
// Write returns; a trailing partial line is kept for the next call.
func (a *Assembler) Write(chunk []byte) (int, error) {
	if a.closed {
		return 0, ErrClosed
	}
	if a.err != nil {
		return 0, a.err
	}
	n, err := a.decoder.Write(chunk)
	if err != nil {
		return n, err
	}
	return len(chunk), nil
}

// WriteString is Write for text input.
func (a *Assembler) WriteString(s string) (int, error) {
	return a.Write([]byte(s))
}

// Close flushes the decoder and processes a non-blank trailing line that had
// no terminator. No further writes are accepted.
func (a *Assembler) Close() error {
	if a.closed {
		return ErrClosed
	}
	a.closed = true
	if a.err != nil {
		return a.err
	}
	if err := a.decoder.Close(); err != nil {
		return err
	}

	tail := strings.TrimSpace(string(a.pending))
	a.pending = nil
	if tail == "" {
		return nil
	}
	return a.processLine(tail)
}

// Header returns the captured header, if the first line has been seen.
func (a *Assembler) Header() (Header, bool) {
	if !a.hasHeader {
		return nil, false
	}
	h := make(Header, len(a.header))
	copy(h, a.header)
	return h, true
}

// Lines returns the number of lines processed so far, header included.
func (a *Assembler) Lines() int { return a.line }

// appendText receives decoded text and processes every complete line in it.
func (a *Assembler) appendText(p []byte) (int, error) {
	if a.err != nil {
		return 0, a.err
	}

	// pending never holds a '\n', so only the new bytes need scanning
	from := len(a.pending)
	a.pending = append(a.pending, p...)

	start := 0
	for {
		i := bytes.IndexByte(a.pending[from:], '\n')
		if i < 0 {
			break
		}
		end := from + i
		line := a.pending[start:end]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		start, from = end+1, end+1

		if err := a.processLine(string(line)); err != nil {
			a.err = err
			a.pending = nil
			return 0, err
		}
	}

	a.pending = append(a.pending[:0], a.pending[start:]...)
	return len(p), nil
}

func (a *Assembler) processLine(line string) error {
	a.line++
	fields := a.tok.Parse(line)

	if !a.hasHeader {
		a.header = make(Header, len(fields))
		for i, f := range fields {
			a.header[i] = f.Text()
		}
		a.hasHeader = true
		return nil
	}

	rec := Record{Line: a.line, entries: make([]Entry, 0, len(a.header))}
	for i, name := range a.header {
		if i >= len(fields) {
			break
		}
		rec.add(name, fields[i])
	}
	if a.emit == nil {
		return nil
	}
	return a.emit(rec)
}
