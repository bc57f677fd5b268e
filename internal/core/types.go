package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// DB is a DBTX that can open transactions. Satisfied by *pgxpool.Pool.
type DB interface {
	DBTX
	Begin(context.Context) (pgx.Tx, error)
}

// ErrUnknownKind is returned for a record kind without a writer.
var ErrUnknownKind = errors.New("unknown kind")

// RecordKind names one of the CSV exports the importer understands.
type RecordKind uint8

const (
	KindMember RecordKind = iota + 1
	KindTD
	KindBlacklist
)

var kindNames = map[RecordKind]string{
	KindMember:    "members",
	KindTD:        "tds",
	KindBlacklist: "blacklist",
}

// Kinds returns every record kind in import order.
func Kinds() []RecordKind {
	return []RecordKind{KindMember, KindTD, KindBlacklist}
}

func (k RecordKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("RecordKind(%d)", uint8(k))
}

// MarshalText encodes the kind by name so JSON and logs agree.
func (k RecordKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (k *RecordKind) UnmarshalText(b []byte) error {
	kind, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseKind resolves a kind by name, case-insensitively. The singular
// forms "member" and "td" are accepted too.
func ParseKind(s string) (RecordKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if s == name || s+"s" == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// ImportPhase indicates the current stage of an import.
type ImportPhase string

const (
	PhaseStarting  ImportPhase = "starting"
	PhaseImporting ImportPhase = "importing"
	PhaseComplete  ImportPhase = "complete"
	PhaseFailed    ImportPhase = "failed"
	PhaseCancelled ImportPhase = "cancelled"
)

// Done reports whether the phase is terminal.
func (p ImportPhase) Done() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// ImportProgress is a snapshot of a running import.
type ImportProgress struct {
	ImportID   string      `json:"importId"`
	Kind       RecordKind  `json:"kind"`
	FileName   string      `json:"fileName"`
	Phase      ImportPhase `json:"phase"`
	Records    int         `json:"records"`
	Written    int         `json:"written"`
	Skipped    int         `json:"skipped"`
	Failed     int         `json:"failed"`
	BytesRead  int64       `json:"bytesRead"`
	BytesTotal int64       `json:"bytesTotal"`
	Error      string      `json:"error,omitempty"`
}

// Percent returns byte-based progress (0-100), or 0 when the size is unknown.
func (p ImportProgress) Percent() int {
	if p.BytesTotal <= 0 {
		return 0
	}
	pct := int(p.BytesRead * 100 / p.BytesTotal)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// FailedRecord describes a record that was rolled back to its savepoint.
type FailedRecord struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
	Code   string `json:"code"`
}

// ImportResult is the outcome of one import.
type ImportResult struct {
	ImportID      string         `json:"importId"`
	Kind          RecordKind     `json:"kind"`
	FileName      string         `json:"fileName"`
	Header        []string       `json:"header"`
	Records       int            `json:"records"`
	Written       int            `json:"written"`
	Skipped       int            `json:"skipped"`
	Failed        int            `json:"failed"`
	FailedRecords []FailedRecord `json:"failedRecords,omitempty"`
	Duration      time.Duration  `json:"duration"`
	Error         string         `json:"error,omitempty"`
}

// HistoryEntry is one row of the imports table.
type HistoryEntry struct {
	ID         string     `json:"id"`
	Kind       RecordKind `json:"kind"`
	FileName   string     `json:"fileName"`
	Source     string     `json:"source"`
	Header     []string   `json:"header"`
	Records    int        `json:"records"`
	Written    int        `json:"written"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	DurationMs int64      `json:"durationMs"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	ImportedAt time.Time  `json:"importedAt"`
}
