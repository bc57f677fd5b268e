package tables

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/bboimport/internal/core"
	"github.com/JonMunkholm/bboimport/internal/csvstream"
)

// plainHasher skips bcrypt so the tests can see which password was chosen.
type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "hash:" + pw, nil }

func testEnv(t *testing.T) core.BuildEnv {
	t.Helper()
	l, err := core.ParseLookups([]byte(`
passwords:
  anna: welcome
roles:
  chief: admin
`))
	require.NoError(t, err)
	return core.BuildEnv{Lookups: l, Hasher: plainHasher{}, DefaultTD: "pensando"}
}

// parse runs csv through the stream and returns its records.
func parse(t *testing.T, csv string) []csvstream.Record {
	t.Helper()
	var recs []csvstream.Record
	_, err := csvstream.Stream(context.Background(), strings.NewReader(csv), csvstream.Config{},
		func(r csvstream.Record) error {
			recs = append(recs, r)
			return nil
		})
	require.NoError(t, err)
	return recs
}

func TestRegistered(t *testing.T) {
	for _, kind := range core.Kinds() {
		def, ok := core.WriterFor(kind)
		require.True(t, ok, "kind %s not registered", kind)
		assert.NotEmpty(t, def.Label)
		assert.NotEmpty(t, def.Required)
		for _, col := range def.Required {
			assert.Contains(t, def.Columns, col)
		}
	}
}

func TestBuildMember(t *testing.T) {
	csv := "mID,mBBOLoginName,mValid,mDisable,mName,mSurname,mCountry,mEMail,mSkillLevel,m3AM,m7PM,mRegisterDate,mNumberOfTournaments,mAverageScore\n" +
		"17,Anna,1,0,Anna,Rossi,italia,ANNA@x.it; anna@x.it,3,1,0,2012-05-01,42,51.5\n"
	recs := parse(t, csv)
	require.Len(t, recs, 1)

	params, err := buildMember(recs[0], testEnv(t))
	require.NoError(t, err)
	p := params.(MemberParams)

	assert.True(t, p.ID.Valid)
	assert.Equal(t, int64(17), p.LegacyID.Int64)
	assert.Equal(t, "Anna", p.BBOName)
	assert.Equal(t, "Anna Rossi", p.Name)
	assert.Equal(t, "Italy", p.Nation)
	assert.Equal(t, []string{"anna@x.it"}, p.Emails)
	assert.Equal(t, "Advanced", p.Level)
	assert.Equal(t, "member", p.Role)
	assert.Equal(t, "hash:welcome", p.PasswordHash)
	assert.True(t, p.IsEnabled)
	assert.False(t, p.IsBlacklisted)
	assert.True(t, p.Hours.H3am)
	assert.False(t, p.Hours.H7pm)
	assert.True(t, p.RegisteredAt.Valid)
	assert.Equal(t, 2012, p.RegisteredAt.Time.Year())
	assert.False(t, p.ValidatedAt.Valid)
	assert.Equal(t, int32(42), p.TournamentsPlayed.Int32)
	assert.True(t, p.AverageScore.Valid)
}

func TestBuildMember_Defaults(t *testing.T) {
	recs := parse(t, "mBBOLoginName,mDisable,mValid\nzed,1,1\n")
	params, err := buildMember(recs[0], testEnv(t))
	require.NoError(t, err)
	p := params.(MemberParams)

	assert.Equal(t, "zed", p.Name, "name falls back to the BBO name")
	assert.Equal(t, []string{"zed@members.invalid"}, p.Emails)
	assert.Equal(t, UnknownNation, p.Nation)
	assert.Equal(t, "Beginner", p.Level)
	assert.False(t, p.IsEnabled, "disabled wins over valid")
	assert.True(t, strings.HasPrefix(p.PasswordHash, "hash:"))
	assert.NotEqual(t, "hash:welcome", p.PasswordHash)
}

func TestBuildMember_MissingLogin(t *testing.T) {
	recs := parse(t, "mBBOLoginName,mName\n,Nobody\n")
	_, err := buildMember(recs[0], testEnv(t))
	require.Error(t, err)
	assert.Equal(t, "VAL003", core.MapError(err).Code)
}

func TestBuildTD(t *testing.T) {
	recs := parse(t, "BBO Name,Full Name,E-Mail,Phone,Country,Notes\n"+
		"chief,Carl Chief,carl@td.org,+1 555 0100,usa,weekends only\n"+
		"anna,,,,,\n")
	require.Len(t, recs, 2)
	env := testEnv(t)

	params, err := buildTD(recs[0], env)
	require.NoError(t, err)
	p := params.(TDParams)
	assert.Equal(t, "chief", p.BBOName)
	assert.Equal(t, "Carl Chief", p.Name)
	assert.Equal(t, "United States", p.Nation)
	assert.Equal(t, []string{"carl@td.org"}, p.Emails)
	assert.Equal(t, []string{"+15550100"}, p.Telephones)
	assert.Equal(t, "Tournament TD", p.Skill)
	assert.Equal(t, "weekends only", p.Notes.String)
	assert.Equal(t, "admin", p.Role)
	assert.True(t, p.HasName)
	assert.True(t, p.HasNation)
	assert.True(t, p.HasEmails)
	assert.False(t, p.HasPassword)

	params, err = buildTD(recs[1], env)
	require.NoError(t, err)
	p = params.(TDParams)
	assert.Equal(t, "anna", p.Name)
	assert.Equal(t, "td", p.Role)
	assert.False(t, p.HasName)
	assert.False(t, p.HasNation)
	assert.False(t, p.HasEmails)
	assert.True(t, p.HasPassword)
	assert.Equal(t, "hash:welcome", p.PasswordHash)
	assert.Equal(t, []string{}, p.Telephones)
	assert.False(t, p.Notes.Valid)
}

func TestBuildBlacklist(t *testing.T) {
	defer func(orig func() time.Time) { now = orig }(now)
	now = func() time.Time { return time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC) }

	recs := parse(t, "bboName,from,to,reason,td\n"+
		"cheat,2021-01-01,2021-12-31,collusion,\n"+
		"late,2019-01-01,2019-02-01,no show,judy\n"+
		"bad,2021-05-01,2021-04-01,typo,\n"+
		"noday,soon,2021-04-01,typo,\n"+
		"noreason,2021-01-01,2021-02-01,,\n")
	require.Len(t, recs, 5)
	env := testEnv(t)

	params, err := buildBlacklist(recs[0], env)
	require.NoError(t, err)
	p := params.(BlacklistParams)
	assert.Equal(t, "cheat", p.BBOName)
	assert.Equal(t, "pensando", p.TD)
	assert.Equal(t, "collusion", p.Reason)
	assert.True(t, p.Active)

	params, err = buildBlacklist(recs[1], env)
	require.NoError(t, err)
	p = params.(BlacklistParams)
	assert.Equal(t, "judy", p.TD)
	assert.False(t, p.Active, "expired entry")

	_, err = buildBlacklist(recs[2], env)
	assert.Equal(t, "VAL002", core.MapError(err).Code)

	_, err = buildBlacklist(recs[3], env)
	assert.Equal(t, "VAL001", core.MapError(err).Code)

	_, err = buildBlacklist(recs[4], env)
	assert.Equal(t, "VAL003", core.MapError(err).Code)
}

func TestFieldOf_Aliases(t *testing.T) {
	recs := parse(t, "BBO_Name,bbo name\nfirst,second\n")

	f, ok := fieldOf(recs[0], "bboName")
	require.True(t, ok)
	assert.Equal(t, "second", f.Text(), "last folded match wins")

	f, ok = fieldOf(recs[0], "BBO_Name")
	require.True(t, ok)
	assert.Equal(t, "first", f.Text(), "exact match wins")

	_, ok = fieldOf(recs[0], "missing")
	assert.False(t, ok)
}

func TestNormalizeNation(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", UnknownNation},
		{"   ", UnknownNation},
		{"USA", "United States"},
		{"the  Netherlands", "Netherlands"},
		{"denmark", "Denmark"},
		{"Italy", "Italy"},
	}
	for _, tt := range tests {
		if got := NormalizeNation(tt.in); got != tt.want {
			t.Errorf("NormalizeNation(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// recordingDB captures statements sent by the writers.
type recordingDB struct {
	sql  []string
	args [][]any
}

func (d *recordingDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.sql = append(d.sql, sql)
	d.args = append(d.args, args)
	return pgconn.CommandTag{}, nil
}

func (d *recordingDB) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }

func (d *recordingDB) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

func TestWriteBlacklist(t *testing.T) {
	db := &recordingDB{}
	p := BlacklistParams{BBOName: "cheat", TD: "pensando", Reason: "collusion", Active: true}

	require.NoError(t, writeBlacklist(context.Background(), db, p))
	require.Len(t, db.sql, 2)
	assert.Contains(t, db.sql[0], "INSERT INTO blacklist_entries")
	assert.Contains(t, db.sql[1], "UPDATE members SET is_blacklisted = true")
	assert.Equal(t, []any{"cheat"}, db.args[1])
}

func TestWriteBlacklist_ExpiredEntryKeepsFlag(t *testing.T) {
	defer func(orig func() time.Time) { now = orig }(now)
	now = func() time.Time { return time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC) }

	recs := parse(t, "bboName,from,to,reason\n"+
		"cheat,2021-01-01,2021-12-31,collusion\n"+
		"cheat,2019-01-01,2019-02-01,no show\n")
	require.Len(t, recs, 2)
	env := testEnv(t)

	db := &recordingDB{}
	for _, rec := range recs {
		params, err := buildBlacklist(rec, env)
		require.NoError(t, err)
		require.NoError(t, writeBlacklist(context.Background(), db, params))
	}

	var inserts, flags int
	for _, sql := range db.sql {
		switch {
		case strings.Contains(sql, "INSERT INTO blacklist_entries"):
			inserts++
		case strings.Contains(sql, "UPDATE members"):
			flags++
			assert.NotContains(t, sql, "$2", "the flag must not take a value from the row")
		}
	}
	assert.Equal(t, 2, inserts, "both entries are stored")
	assert.Equal(t, 1, flags, "only the active entry touches the member")
	assert.Equal(t, []any{"cheat"}, db.args[len(db.args)-1])
}

func TestWriters_RejectWrongParams(t *testing.T) {
	db := &recordingDB{}
	ctx := context.Background()

	assert.Error(t, writeMember(ctx, db, TDParams{}))
	assert.Error(t, writeTD(ctx, db, MemberParams{}))
	assert.Error(t, writeBlacklist(ctx, db, MemberParams{}))
	assert.Empty(t, db.sql)
}

func TestWriteTD_PassesFlags(t *testing.T) {
	db := &recordingDB{}
	p := TDParams{BBOName: "chief", HasName: true, HasEmails: true}

	require.NoError(t, writeTD(context.Background(), db, p))
	require.Len(t, db.args, 1)
	args := db.args[0]
	assert.Equal(t, []any{true, false, true, false}, args[len(args)-4:])
}
