package tables

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/bboimport/internal/core"
	"github.com/JonMunkholm/bboimport/internal/csvstream"
)

// now is replaced in tests.
var now = time.Now

// BlacklistParams is one blacklist entry plus the member flag it implies.
type BlacklistParams struct {
	ID      pgtype.UUID
	BBOName string
	TD      string
	From    time.Time
	To      time.Time
	Reason  string

	// Active is true when the import time lies within [From, To].
	Active bool
}

func init() {
	core.Register(core.WriterDefinition{
		Kind:     core.KindBlacklist,
		Label:    "Blacklist",
		Columns:  []string{"bboName", "from", "to", "reason", "td"},
		Required: []string{"bboName", "from", "to", "reason"},
		Build:    buildBlacklist,
		Write:    writeBlacklist,
	})
}

func requiredDate(rec csvstream.Record, col string) (time.Time, error) {
	f, _ := fieldOf(rec, col)
	if core.CleanText(f.Text()) == "" {
		return time.Time{}, fmt.Errorf("required field %q is empty", col)
	}
	ts := core.PgTimestamptz(f)
	if !ts.Valid {
		return time.Time{}, fmt.Errorf("invalid date for %q: %q", col, f.Text())
	}
	return ts.Time, nil
}

func buildBlacklist(rec csvstream.Record, env core.BuildEnv) (any, error) {
	bbo, err := requiredText(rec, tdBBOName...)
	if err != nil {
		return nil, err
	}
	from, err := requiredDate(rec, "from")
	if err != nil {
		return nil, err
	}
	to, err := requiredDate(rec, "to")
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("invalid date range: to %s is before from %s",
			to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	reason, err := requiredText(rec, "reason")
	if err != nil {
		return nil, err
	}

	td := textOf(rec, "td")
	if td == "" {
		td = env.DefaultTD
	}

	t := now()
	return BlacklistParams{
		ID:      pgtype.UUID{Bytes: uuid.New(), Valid: true},
		BBOName: bbo,
		TD:      td,
		From:    from,
		To:      to,
		Reason:  reason,
		Active:  !t.Before(from) && !t.After(to),
	}, nil
}

const insertBlacklistEntry = `
INSERT INTO blacklist_entries (id, bbo_name, td, from_at, to_at, reason)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (lower(bbo_name), from_at, to_at, reason) DO NOTHING`

// flagBlacklisted only ever raises the flag. An expired entry leaves it
// alone, so neither a later row nor the members export's mBlackList value
// is overwritten.
const flagBlacklisted = `
UPDATE members SET is_blacklisted = true, updated_at = now()
WHERE lower(bbo_name) = lower($1)`

func writeBlacklist(ctx context.Context, db core.DBTX, params any) error {
	p, ok := params.(BlacklistParams)
	if !ok {
		return fmt.Errorf("invalid params type: %T", params)
	}
	if _, err := db.Exec(ctx, insertBlacklistEntry, p.ID, p.BBOName, p.TD, p.From, p.To, p.Reason); err != nil {
		return fmt.Errorf("insert blacklist entry %q: %w", p.BBOName, err)
	}
	if !p.Active {
		return nil
	}
	// A member without an account yet is fine; the entry still counts.
	if _, err := db.Exec(ctx, flagBlacklisted, p.BBOName); err != nil {
		return fmt.Errorf("flag member %q: %w", p.BBOName, err)
	}
	return nil
}
