package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/bboimport/internal/csvstream"
)

// execCall is one statement seen by fakeDB or fakeTx.
type execCall struct {
	sql  string
	args []any
}

// fakeDB records statements sent to the pool and hands out fakeTx values.
// Query answers with rows, in order, whatever the SQL.
type fakeDB struct {
	mu       sync.Mutex
	execs    []execCall
	queries  []execCall
	rows     [][]any
	queryErr error
	txs      []*fakeTx
	beginErr error
}

func (d *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.execs = append(d.execs, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, nil
}

func (d *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries = append(d.queries, execCall{sql: sql, args: args})
	if d.queryErr != nil {
		return nil, d.queryErr
	}
	return &fakeRows{rows: d.rows, pos: -1}, nil
}

// fakeRows serves fixed values. Scan assigns each value to the matching
// destination, which must have exactly the value's type.
type fakeRows struct {
	pgx.Rows
	rows   [][]any
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.closed || r.err != nil {
		return false
	}
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("fakeRows: %d destinations for %d values", len(dest), len(row))
	}
	for i, v := range row {
		dv := reflect.ValueOf(dest[i]).Elem()
		vv := reflect.ValueOf(v)
		if !vv.Type().AssignableTo(dv.Type()) {
			return fmt.Errorf("fakeRows: column %d: cannot scan %T into %s", i, v, dv.Type())
		}
		dv.Set(vv)
	}
	return nil
}

func (r *fakeRows) Values() ([]any, error) { return r.rows[r.pos], nil }

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *fakeRows) Err() error { return r.err }

func (r *fakeRows) Close() { r.closed = true }

func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (d *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func (d *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx := &fakeTx{}
	d.mu.Lock()
	d.txs = append(d.txs, tx)
	d.mu.Unlock()
	return tx, nil
}

// history returns the arguments of every imports insert.
func (d *fakeDB) history() [][]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out [][]any
	for _, c := range d.execs {
		if strings.Contains(c.sql, "INSERT INTO imports") {
			out = append(out, c.args)
		}
	}
	return out
}

func (d *fakeDB) lastTx() *fakeTx {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.txs) == 0 {
		return nil
	}
	return d.txs[len(d.txs)-1]
}

// fakeTx embeds pgx.Tx so only the methods the importer uses need bodies.
type fakeTx struct {
	pgx.Tx

	mu         sync.Mutex
	stmts      []string
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if err := ctx.Err(); err != nil {
		return pgconn.CommandTag{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	stmt := sql
	if len(args) > 0 {
		stmt = fmt.Sprintf("%s %v", sql, args)
	}
	t.stmts = append(t.stmts, stmt)
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

func (t *fakeTx) statements() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.stmts...)
}

func (t *fakeTx) state() (committed, rolledBack bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed, t.rolledBack
}

// writeBlocked is signalled when the test writer starts waiting for
// cancellation.
var writeBlocked = make(chan struct{}, 1)

// The core tests register a writer for KindMember; the real writers live
// in the tables package, which core does not import.
func init() {
	Register(WriterDefinition{
		Kind:     KindMember,
		Label:    "Test members",
		Columns:  []string{"name", "score"},
		Required: []string{"name"},
		Build:    buildTestRecord,
		Write:    writeTestRecord,
	})
}

type testParams struct {
	name  string
	score float64
}

func buildTestRecord(rec csvstream.Record, env BuildEnv) (any, error) {
	f, ok := rec.Get("name")
	if !ok || f.Text() == "" {
		return nil, errors.New(`required field "name" is empty`)
	}
	if f.Text() == "panic" {
		panic("boom")
	}
	p := testParams{name: f.Text()}
	if s, ok := rec.Get("score"); ok {
		p.score, _ = s.Float()
	}
	return p, nil
}

func writeTestRecord(ctx context.Context, db DBTX, params any) error {
	p := params.(testParams)
	switch p.name {
	case "dup":
		return errors.New(`duplicate key value violates unique constraint "members_bbo_name_key"`)
	case "block":
		writeBlocked <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}
	_, err := db.Exec(ctx, "INSERT test", p.name, p.score)
	return err
}
