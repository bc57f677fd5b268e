package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JonMunkholm/bboimport/internal/config"
	"github.com/JonMunkholm/bboimport/internal/core"
	_ "github.com/JonMunkholm/bboimport/internal/core/tables" // Register all writers
	"github.com/JonMunkholm/bboimport/internal/csvstream"
	"github.com/JonMunkholm/bboimport/internal/logging"
	"github.com/JonMunkholm/bboimport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	pool, err := connect(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := core.EnsureSchema(ctx, pool); err != nil {
		slog.Error("failed to prepare schema", "error", err)
		os.Exit(1)
	}

	lookups, err := core.LoadLookups(cfg.Import.LookupFile)
	if err != nil {
		slog.Error("failed to load lookups", "file", cfg.Import.LookupFile, "error", err)
		os.Exit(1)
	}
	passwords, roles := lookups.Len()
	slog.Info("lookups loaded", "passwords", passwords, "roles", roles)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewMetrics(reg)
	if err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	service := core.NewService(pool, serviceOptions(cfg, lookups, metrics))
	slog.Info("writers registered", "count", len(service.Kinds()))

	server := web.NewServer(service, cfg, reg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Running imports finish on their own connections; the server
		// stops accepting new ones first.
		go func() {
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("shutdown error", "error", err)
			}
		}()

		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
				for _, p := range service.ActiveImports() {
					_ = service.CancelImport(p.ImportID)
				}
			} else {
				slog.Info("all imports completed")
			}
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	// Shutdown returns before in-flight imports end; wait for them too.
	waitCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = service.WaitForImports(waitCtx)
	slog.Info("server stopped")
}

// connect opens and verifies the connection pool.
func connect(ctx context.Context, db config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(db.MaxConns)
	poolConfig.MinConns = int32(db.MinConns)
	poolConfig.MaxConnLifetime = db.MaxConnLifetime
	poolConfig.MaxConnIdleTime = db.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(db.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return pool, nil
}

func serviceOptions(cfg *config.Config, lookups *core.Lookups, metrics *core.Metrics) core.Options {
	return core.Options{
		CSV: csvstream.Config{
			Options:   cfg.Import.CSVOptions(),
			ChunkSize: cfg.Import.ChunkSize,
			Buffer:    cfg.Import.RecordBuffer,
		},
		Timeout:       cfg.Import.Timeout,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
		DefaultTD:     cfg.Import.DefaultTD,
		Lookups:       lookups,
		Hasher:        core.BcryptHasher{Cost: cfg.Import.BcryptCost},
		Metrics:       metrics,
	}
}
