// Command import loads the member, TD and blacklist exports into the
// database in one go:
//
//	import [-init-schema] [-reset] members.csv tds.csv [blacklist.csv]
//
// Exit status is 1 on usage or fatal errors and 2 when an input file is
// missing. Logs go to stderr; the per-file summary and failed records go
// to stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/bboimport/internal/admin"
	"github.com/JonMunkholm/bboimport/internal/config"
	"github.com/JonMunkholm/bboimport/internal/core"
	_ "github.com/JonMunkholm/bboimport/internal/core/tables" // Register all writers
	"github.com/JonMunkholm/bboimport/internal/csvstream"
	"github.com/JonMunkholm/bboimport/internal/logging"
)

const (
	exitFatal   = 1
	exitMissing = 2
)

type job struct {
	kind core.RecordKind
	path string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("import", flag.ContinueOnError)
	flags.SetOutput(stderr)
	initSchema := flags.Bool("init-schema", false, "create missing tables before importing")
	reset := flags.Bool("reset", false, "empty the member and blacklist tables before importing")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "usage: import [-init-schema] [-reset] members.csv tds.csv [blacklist.csv]")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return exitFatal
	}

	jobs, err := plan(flags.Args())
	if err != nil {
		fmt.Fprintln(stderr, err)
		flags.Usage()
		return exitFatal
	}
	for _, j := range jobs {
		if _, err := os.Stat(j.path); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", j.path, err)
			if errors.Is(err, fs.ErrNotExist) {
				return exitMissing
			}
			return exitFatal
		}
	}

	_ = godotenv.Overload()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "configuration:", err)
		return exitFatal
	}

	logger := logging.New(stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return exitFatal
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to reach database", "error", err)
		return exitFatal
	}

	if *initSchema {
		if err := core.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to prepare schema", "error", err)
			return exitFatal
		}
	}

	if *reset {
		if err := admin.ResetAll(ctx, pool, false); err != nil {
			logger.Error("failed to reset tables", "error", err)
			return exitFatal
		}
	}

	lookups, err := core.LoadLookups(cfg.Import.LookupFile)
	if err != nil {
		logger.Error("failed to load lookups", "file", cfg.Import.LookupFile, "error", err)
		return exitFatal
	}

	svc := core.NewService(pool, core.Options{
		CSV: csvstream.Config{
			Options:   cfg.Import.CSVOptions(),
			ChunkSize: cfg.Import.ChunkSize,
			Buffer:    cfg.Import.RecordBuffer,
		},
		Timeout:   cfg.Import.Timeout,
		DefaultTD: cfg.Import.DefaultTD,
		Lookups:   lookups,
		Hasher:    core.BcryptHasher{Cost: cfg.Import.BcryptCost},
	})

	ctx = core.ContextWithSource(ctx, "cli")
	for _, j := range jobs {
		res, err := importFile(ctx, svc, j)
		if res != nil {
			printResult(stdout, j, res)
		}
		if err != nil {
			msg := core.MapError(err)
			logger.Error("import failed", "kind", j.kind, "file", j.path, "code", msg.Code, "error", err)
			return exitFatal
		}
	}
	return 0
}

// plan maps the positional arguments to jobs in import order. TDs are
// imported after members because blacklist rows refer to both.
func plan(args []string) ([]job, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, fmt.Errorf("expected 2 or 3 files, got %d", len(args))
	}
	kinds := []core.RecordKind{core.KindMember, core.KindTD, core.KindBlacklist}
	jobs := make([]job, len(args))
	for i, path := range args {
		jobs[i] = job{kind: kinds[i], path: path}
	}
	return jobs, nil
}

func importFile(ctx context.Context, svc *core.Service, j job) (*core.ImportResult, error) {
	f, err := os.Open(j.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return svc.Import(ctx, j.kind, filepath.Base(j.path), f, size)
}

func printResult(w io.Writer, j job, res *core.ImportResult) {
	fmt.Fprintf(w, "%s (%s): %d records, %d written, %d skipped, %d failed in %s\n",
		j.path, j.kind, res.Records, res.Written, res.Skipped, res.Failed, res.Duration.Round(time.Millisecond))
	for _, f := range res.FailedRecords {
		fmt.Fprintf(w, "  line %d: %s [%s]\n", f.Line, f.Reason, f.Code)
	}
	if hidden := res.Failed - len(res.FailedRecords); hidden > 0 {
		fmt.Fprintf(w, "  ... %d more failures not listed\n", hidden)
	}
}
