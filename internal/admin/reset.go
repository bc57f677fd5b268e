// Package admin provides administrative operations for database management.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/bboimport/internal/core"
)

// ResetTimeout is the maximum duration for database reset operations.
const ResetTimeout = 30 * time.Second

// resetStatements empty the data tables, children first. The imports
// history is kept unless ResetAll is asked to clear it too.
var resetStatements = []string{
	"TRUNCATE blacklist_entries",
	"TRUNCATE members",
}

const resetHistory = "TRUNCATE imports"

// ResetAll truncates the member and blacklist tables inside one
// transaction, and the import history when withHistory is set.
// This is a destructive operation - use with caution.
func ResetAll(ctx context.Context, db core.DB, withHistory bool) error {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	stmts := resetStatements
	if withHistory {
		stmts = append(stmts[:len(stmts):len(stmts)], resetHistory)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reset: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("reset: %s: %w", stmt, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("reset: commit: %w", err)
	}

	slog.Info("tables reset", "statements", len(stmts), "history", withHistory)
	return nil
}
