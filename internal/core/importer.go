package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/bboimport/internal/csvstream"
	"github.com/JonMunkholm/bboimport/internal/logging"
)

// ProgressInterval is how many records pass between progress broadcasts.
var ProgressInterval = 100

// importRun is the state of one Import call. Only the consumer goroutine
// of csvstream.Pipe touches it.
type importRun struct {
	imp       *activeImport
	def       WriterDefinition
	tx        pgx.Tx
	src       *countingReader
	result    *ImportResult
	log       *slog.Logger
	maxFailed int
}

// Import streams r through the CSV tokenizer into the writer registered
// for kind. All records are written in one transaction with a savepoint
// per record: a record that fails to build or write is rolled back to its
// savepoint, reported in the result, and the import continues. Empty
// records are skipped.
//
// The import runs synchronously, so the database paces how fast r is
// read. If ctx carries an import ID (logging.WithImportID) it is used,
// letting a client subscribe to progress before the call returns.
//
// A cancelled or failed import rolls back entirely; the returned result
// then carries the error and Written is zero. Every run that started is
// recorded in the imports history.
func (s *Service) Import(ctx context.Context, kind RecordKind, fileName string, r io.Reader, size int64) (*ImportResult, error) {
	def, ok := WriterFor(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	id := logging.ImportID(ctx)
	if id == "" {
		id = uuid.NewString()
	} else if _, perr := uuid.Parse(id); perr != nil {
		return nil, fmt.Errorf("invalid import id %q: %w", id, perr)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	imp, err := s.track(id, kind, fileName, size, cancel)
	if err != nil {
		return nil, err
	}
	defer s.cleanup(id, FinishedRetention)

	ctx = logging.WithImportID(ctx, id)
	start := time.Now()
	run := &importRun{
		imp:       imp,
		def:       def,
		src:       newCountingReader(r),
		result:    &ImportResult{ImportID: id, Kind: kind, FileName: fileName},
		log:       logging.WithFields(ctx, "kind", kind.String(), "file", fileName),
		maxFailed: s.opts.MaxFailedRecords,
	}

	s.opts.Metrics.importStarted()
	run.log.Info("import started", "size", size)

	imp.update(true, func(p *ImportProgress) { p.Phase = PhaseImporting })

	tx, err := s.db.Begin(ctx)
	if err != nil {
		err = fmt.Errorf("begin transaction: %w", err)
		s.finishRun(ctx, run, PhaseFailed, err, start)
		return run.result, err
	}
	run.tx = tx
	defer func() {
		// No-op after a successful commit.
		_ = run.tx.Rollback(context.WithoutCancel(ctx))
	}()

	header, err := csvstream.Pipe(ctx, run.src, s.opts.CSV, func(ctx context.Context, rec csvstream.Record) (err error) {
		// Writers run on the pipe's consumer goroutine; a panic there
		// would otherwise take the process down.
		defer func() {
			if p := recover(); p != nil {
				run.log.Error("panic in import", "line", rec.Line, "panic", p)
				err = fmt.Errorf("internal error: %v", p)
			}
		}()
		return s.writeRecord(ctx, run, rec)
	})
	run.result.Header = header
	if err != nil {
		s.finishRun(ctx, run, phaseFor(err), err, start)
		return run.result, err
	}

	if err := run.tx.Commit(ctx); err != nil {
		err = fmt.Errorf("commit: %w", err)
		s.finishRun(ctx, run, phaseFor(err), err, start)
		return run.result, err
	}

	s.finishRun(ctx, run, PhaseComplete, nil, start)
	return run.result, nil
}

// writeRecord builds and writes one record inside its own savepoint.
// Only errors that end the whole import are returned.
func (s *Service) writeRecord(ctx context.Context, run *importRun, rec csvstream.Record) error {
	run.result.Records++
	defer run.progress(false)

	if rec.Len() == 0 {
		run.result.Skipped++
		return nil
	}

	params, err := run.def.Build(rec, BuildEnv{
		Lookups:   s.opts.Lookups,
		Hasher:    s.opts.Hasher,
		DefaultTD: s.opts.DefaultTD,
	})
	if err != nil {
		run.fail(rec.Line, err)
		return nil
	}

	sp := "sp_" + strconv.Itoa(rec.Line)
	if _, err := run.tx.Exec(ctx, "SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}

	if err := run.def.Write(ctx, run.tx, params); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, rbErr := run.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
			return fmt.Errorf("rollback to savepoint: %w", rbErr)
		}
		run.fail(rec.Line, err)
		return nil
	}

	if _, err := run.tx.Exec(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	run.result.Written++
	return nil
}

func (run *importRun) fail(line int, err error) {
	run.result.Failed++
	msg := MapError(err)
	if len(run.result.FailedRecords) < run.maxFailed {
		run.result.FailedRecords = append(run.result.FailedRecords, FailedRecord{
			Line:   line,
			Reason: err.Error(),
			Code:   msg.Code,
		})
	}
	run.log.Warn("record failed", "line", line, "code", msg.Code, "error", err)
}

// progress copies the counters into the shared progress. Subscribers are
// notified every ProgressInterval records or when force is set.
func (run *importRun) progress(force bool) {
	res := run.result
	notify := force || res.Records%ProgressInterval == 0
	run.imp.update(notify, func(p *ImportProgress) {
		p.Records = res.Records
		p.Written = res.Written
		p.Skipped = res.Skipped
		p.Failed = res.Failed
		p.BytesRead = run.src.BytesRead()
	})
}

// phaseFor classifies an import-ending error.
func phaseFor(err error) ImportPhase {
	if errors.Is(err, context.Canceled) {
		return PhaseCancelled
	}
	return PhaseFailed
}

// finishRun publishes the terminal state, records metrics and history, and
// logs the outcome.
func (s *Service) finishRun(ctx context.Context, run *importRun, phase ImportPhase, err error, start time.Time) {
	res := run.result
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		// The transaction was rolled back.
		res.Written = 0
	}

	var final ImportProgress
	run.imp.finish(func(p *ImportProgress) {
		p.Phase = phase
		p.Records = res.Records
		p.Written = res.Written
		p.Skipped = res.Skipped
		p.Failed = res.Failed
		p.BytesRead = run.src.BytesRead()
		p.Error = res.Error
		final = *p
	})

	s.opts.Metrics.importFinished(final, res.Duration)

	// History must be written even when ctx was cancelled.
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if herr := s.recordHistory(hctx, res, phase, SourceFromContext(ctx)); herr != nil {
		run.log.Error("record import history", "error", herr)
	}

	attrs := []any{
		"phase", phase,
		"records", res.Records,
		"written", res.Written,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"bytes", final.BytesRead,
		"duration", res.Duration,
	}
	switch phase {
	case PhaseComplete:
		run.log.Info("import completed", attrs...)
	case PhaseCancelled:
		run.log.Warn("import cancelled", attrs...)
	default:
		run.log.Error("import failed", append(attrs, "error", err)...)
	}
}
