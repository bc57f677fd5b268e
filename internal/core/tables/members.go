package tables

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/bboimport/internal/core"
	"github.com/JonMunkholm/bboimport/internal/csvstream"
)

// Availability holds the six four-hour tournament slots a member ticked.
type Availability struct {
	H3am, H7am, H11am, H3pm, H7pm, H11pm bool
}

// MemberParams is one row of the members table.
type MemberParams struct {
	ID                pgtype.UUID
	LegacyID          pgtype.Int8
	BBOName           string
	Name              string
	Nation            string
	Emails            []string
	Level             string
	Role              string
	PasswordHash      string
	IsEnabled         bool
	IsBlacklisted     bool
	IsStarPlayer      bool
	Hours             Availability
	RegisteredAt      pgtype.Timestamptz
	ValidatedAt       pgtype.Timestamptz
	TournamentsPlayed pgtype.Int4
	AverageScore      pgtype.Numeric
}

// memberColumns are the legacy export columns read by buildMember.
var memberColumns = []string{
	"mID", "mBBOLoginName", "mValid", "mValidateDate", "mDisable",
	"mRegisterDate", "mBlackList", "mName", "mSurname", "mCountry", "mEMail",
	"mSkillLevel", "m3AM", "m7AM", "m11AM", "m3PM", "m7PM", "m11PM",
	"mAverageScore", "mNumberOfTournaments", "mStarPlayers",
}

func init() {
	core.Register(core.WriterDefinition{
		Kind:     core.KindMember,
		Label:    "Members",
		Columns:  memberColumns,
		Required: []string{"mBBOLoginName"},
		Build:    buildMember,
		Write:    writeMember,
	})
}

func buildMember(rec csvstream.Record, env core.BuildEnv) (any, error) {
	bbo, err := requiredText(rec, "mBBOLoginName")
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(textOf(rec, "mName") + " " + textOf(rec, "mSurname"))
	if name == "" {
		name = bbo
	}

	emails := core.SanitizeEmails(textOf(rec, "mEMail"))
	if len(emails) == 0 {
		emails = []string{core.FallbackEmail(bbo)}
	}

	level, ok := env.Lookups.Level(textOf(rec, "mSkillLevel"))
	if !ok {
		level = "Beginner"
	}

	hash, err := core.InitialPassword(env, bbo)
	if err != nil {
		return nil, err
	}

	flag := func(col string) bool {
		f, _ := fieldOf(rec, col)
		return core.Truthy(f)
	}
	field := func(col string) csvstream.Field {
		f, _ := fieldOf(rec, col)
		return f
	}

	return MemberParams{
		ID:            pgtype.UUID{Bytes: uuid.New(), Valid: true},
		LegacyID:      core.PgInt8(field("mID")),
		BBOName:       bbo,
		Name:          name,
		Nation:        NormalizeNation(textOf(rec, "mCountry")),
		Emails:        emails,
		Level:         level,
		Role:          env.Lookups.Role(core.KindMember, bbo),
		PasswordHash:  hash,
		IsEnabled:     flag("mValid") && !flag("mDisable"),
		IsBlacklisted: flag("mBlackList"),
		IsStarPlayer:  flag("mStarPlayers"),
		Hours: Availability{
			H3am:  flag("m3AM"),
			H7am:  flag("m7AM"),
			H11am: flag("m11AM"),
			H3pm:  flag("m3PM"),
			H7pm:  flag("m7PM"),
			H11pm: flag("m11PM"),
		},
		RegisteredAt:      core.PgTimestamptz(field("mRegisterDate")),
		ValidatedAt:       core.PgTimestamptz(field("mValidateDate")),
		TournamentsPlayed: core.PgInt4(field("mNumberOfTournaments")),
		AverageScore:      core.PgNumeric(field("mAverageScore")),
	}, nil
}

// upsertMember keeps the stored password and role of an existing member;
// re-importing an export must not reset logins or demote TDs.
const upsertMember = `
INSERT INTO members (
	id, legacy_id, bbo_name, name, nation, emails, level, role, password_hash,
	is_enabled, is_blacklisted, is_star_player,
	h3am, h7am, h11am, h3pm, h7pm, h11pm,
	registered_at, validated_at, tournaments_played, average_score
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9,
	$10, $11, $12,
	$13, $14, $15, $16, $17, $18,
	$19, $20, $21, $22
)
ON CONFLICT ((lower(bbo_name))) DO UPDATE SET
	legacy_id          = EXCLUDED.legacy_id,
	name               = EXCLUDED.name,
	nation             = EXCLUDED.nation,
	emails             = EXCLUDED.emails,
	level              = EXCLUDED.level,
	is_enabled         = EXCLUDED.is_enabled,
	is_blacklisted     = EXCLUDED.is_blacklisted,
	is_star_player     = EXCLUDED.is_star_player,
	h3am               = EXCLUDED.h3am,
	h7am               = EXCLUDED.h7am,
	h11am              = EXCLUDED.h11am,
	h3pm               = EXCLUDED.h3pm,
	h7pm               = EXCLUDED.h7pm,
	h11pm              = EXCLUDED.h11pm,
	registered_at      = EXCLUDED.registered_at,
	validated_at       = EXCLUDED.validated_at,
	tournaments_played = EXCLUDED.tournaments_played,
	average_score      = EXCLUDED.average_score,
	updated_at         = now()`

func writeMember(ctx context.Context, db core.DBTX, params any) error {
	p, ok := params.(MemberParams)
	if !ok {
		return fmt.Errorf("invalid params type: %T", params)
	}
	_, err := db.Exec(ctx, upsertMember,
		p.ID, p.LegacyID, p.BBOName, p.Name, p.Nation, p.Emails, p.Level, p.Role, p.PasswordHash,
		p.IsEnabled, p.IsBlacklisted, p.IsStarPlayer,
		p.Hours.H3am, p.Hours.H7am, p.Hours.H11am, p.Hours.H3pm, p.Hours.H7pm, p.Hours.H11pm,
		p.RegisteredAt, p.ValidatedAt, p.TournamentsPlayed, p.AverageScore,
	)
	if err != nil {
		return fmt.Errorf("upsert member %q: %w", p.BBOName, err)
	}
	return nil
}
