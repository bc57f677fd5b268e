package core

import (
	"io"
	"sync/atomic"
)

// countingReader tracks bytes read for progress reporting. The count is
// read from the consumer goroutine while the producer is reading, so it
// is atomic.
type countingReader struct {
	reader io.Reader
	n      atomic.Int64
}

func newCountingReader(r io.Reader) *countingReader {
	return &countingReader{reader: r}
}

// Read implements io.Reader.
func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.n.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (r *countingReader) BytesRead() int64 {
	return r.n.Load()
}
