package csvstream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize is the read size used when Config.ChunkSize is unset.
const DefaultChunkSize = 32 * 1024

// DefaultBuffer is the number of records Pipe keeps in flight.
const DefaultBuffer = 64

// Config drives Stream and Pipe.
type Config struct {
	Options

	// ChunkSize is the number of bytes requested per Read. Default: 32KiB
	ChunkSize int

	// Buffer is how many parsed records Pipe may hold before the reader
	// waits for the consumer. Default: 64
	Buffer int
}

func (c Config) withDefaults() Config {
	c.Options = c.Options.withDefaults()
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Buffer <= 0 {
		c.Buffer = DefaultBuffer
	}
	return c
}

// Stream reads r chunk by chunk and calls fn for every record, in order.
// fn runs before the next chunk is read, so a slow consumer slows the
// reader down instead of piling up records.
//
// io.EOF finalizes the stream. Any other read error, a cancelled ctx or an
// error from fn ends it without finalizing; records already handed to fn
// stay handed off. The returned header is whatever was captured, possibly nil.
func Stream(ctx context.Context, r io.Reader, cfg Config, fn RecordFunc) (Header, error) {
	if err := cfg.Options.Validate(); err != nil {
		return nil, fmt.Errorf("csv options: %w", err)
	}
	cfg = cfg.withDefaults()
	asm := NewAssembler(cfg.Options, fn)
	buf := make([]byte, cfg.ChunkSize)

	header := func() Header {
		h, _ := asm.Header()
		return h
	}

	for {
		if err := ctx.Err(); err != nil {
			return header(), err
		}

		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := asm.Write(buf[:n]); werr != nil {
				return header(), werr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return header(), fmt.Errorf("read chunk: %w", err)
		}
	}

	if err := asm.Close(); err != nil {
		return header(), err
	}
	return header(), nil
}

// Pipe is Stream with the reader and the consumer on separate goroutines,
// joined by a channel of Config.Buffer records. Order is preserved. When
// the channel is full the reader blocks, so nothing is dropped. The first
// error from either side cancels the other.
func Pipe(ctx context.Context, r io.Reader, cfg Config, fn func(context.Context, Record) error) (Header, error) {
	cfg = cfg.withDefaults()
	g, gctx := errgroup.WithContext(ctx)
	records := make(chan Record, cfg.Buffer)

	var header Header
	g.Go(func() error {
		defer close(records)
		h, err := Stream(gctx, r, cfg, func(rec Record) error {
			select {
			case records <- rec:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
		header = h
		return err
	})

	g.Go(func() error {
		for rec := range records {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(gctx, rec); err != nil {
				return err
			}
		}
		return nil
	})

	err := g.Wait()
	return header, err
}
