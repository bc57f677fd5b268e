// Package csvstream turns a stream of raw CSV bytes into typed records.
//
// The package has two layers:
//
//   - Tokenizer: a per-line state machine that splits one line into fields,
//     honoring quoting, and infers a [Kind] for every field.
//   - Assembler: accepts arbitrary byte chunks, reassembles complete lines
//     across chunk boundaries, captures the first line as the [Header] and
//     emits one [Record] per following line.
//
// # Classification
//
// Unquoted values are tried as a number, then a date, then a boolean, and
// fall back to a string. Quoted values skip the number check:
//
//	42      -> Number(42)
//	"42"    -> String("42")
//	3,14    -> Number(3.14) with DecimalSeparator ','
//	Yes     -> Boolean(true)
//	(empty) -> Unknown, and the key is left out of the record
//
// Nothing in this package fails on dirty input. Malformed quoting degrades to
// a best-effort string, undecodable bytes become U+FFFD. The only errors a
// caller sees are the ones its own record consumer returns.
//
// # Streaming
//
// [Stream] reads an io.Reader chunk by chunk and calls the consumer for every
// record before reading the next chunk. [Pipe] runs the reader and the
// consumer on separate goroutines joined by a bounded channel; a slow
// consumer stalls the reader rather than dropping data.
package csvstream
