package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultHistoryLimit is the number of entries ImportHistory returns when
// limit is not positive.
const DefaultHistoryLimit = 50

const insertHistory = `
INSERT INTO imports (
	id, kind, file_name, source, header, records, written, skipped, failed,
	duration_ms, status, error
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// recordHistory stores the outcome of a run in the imports table.
func (s *Service) recordHistory(ctx context.Context, res *ImportResult, phase ImportPhase, source string) error {
	header := res.Header
	if header == nil {
		header = []string{}
	}
	_, err := s.db.Exec(ctx, insertHistory,
		ToPgUUID(res.ImportID),
		res.Kind.String(),
		res.FileName,
		source,
		header,
		res.Records,
		res.Written,
		res.Skipped,
		res.Failed,
		res.Duration.Milliseconds(),
		string(phase),
		res.Error,
	)
	if err != nil {
		return fmt.Errorf("insert import history: %w", err)
	}
	return nil
}

const selectHistory = `
SELECT id, kind, file_name, source, header, records, written, skipped, failed,
	duration_ms, status, error, imported_at
FROM imports
WHERE kind = $1
ORDER BY imported_at DESC
LIMIT $2`

// ImportHistory returns the most recent imports of kind, newest first.
func (s *Service) ImportHistory(ctx context.Context, kind RecordKind, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := s.db.Query(ctx, selectHistory, kind.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("query import history: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (HistoryEntry, error) {
		var (
			e          HistoryEntry
			id         pgtype.UUID
			kindName   string
			importedAt time.Time
		)
		err := row.Scan(&id, &kindName, &e.FileName, &e.Source, &e.Header,
			&e.Records, &e.Written, &e.Skipped, &e.Failed,
			&e.DurationMs, &e.Status, &e.Error, &importedAt)
		if err != nil {
			return e, err
		}
		e.ID = PgUUIDToString(id)
		if e.Kind, err = ParseKind(kindName); err != nil {
			return e, fmt.Errorf("import %s: %w", e.ID, err)
		}
		e.ImportedAt = importedAt
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan import history: %w", err)
	}
	return entries, nil
}
