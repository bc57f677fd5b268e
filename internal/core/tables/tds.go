package tables

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/bboimport/internal/core"
	"github.com/JonMunkholm/bboimport/internal/csvstream"
)

// TDParams is a tournament director row merged into members.
type TDParams struct {
	ID           pgtype.UUID
	BBOName      string
	Name         string
	Nation       string
	Emails       []string
	Telephones   []string
	Skill        string
	Notes        pgtype.Text
	Role         string
	PasswordHash string

	// HasName etc. record which columns the TD sheet filled in, so an
	// existing member keeps the values the sheet left blank.
	HasName     bool
	HasNation   bool
	HasEmails   bool
	HasPassword bool
}

var (
	tdBBOName = []string{"bboName", "BBO Name", "bbo", "BBO"}
	tdName    = []string{"name", "Full Name"}
	tdEmail   = []string{"email", "emails", "e-mail"}
	tdPhone   = []string{"telephone", "phone", "telephones", "phones"}
	tdNation  = []string{"nation", "country"}
	tdSkill   = []string{"skill"}
	tdNotes   = []string{"notes", "note"}
)

func init() {
	core.Register(core.WriterDefinition{
		Kind:     core.KindTD,
		Label:    "Tournament Directors",
		Columns:  []string{"bboName", "name", "email", "telephone", "nation", "skill", "notes"},
		Required: []string{"bboName"},
		Build:    buildTD,
		Write:    writeTD,
	})
}

func buildTD(rec csvstream.Record, env core.BuildEnv) (any, error) {
	bbo, err := requiredText(rec, tdBBOName...)
	if err != nil {
		return nil, err
	}

	p := TDParams{
		ID:         pgtype.UUID{Bytes: uuid.New(), Valid: true},
		BBOName:    bbo,
		Name:       textOf(rec, tdName...),
		Nation:     NormalizeNation(textOf(rec, tdNation...)),
		Emails:     core.SanitizeEmails(textOf(rec, tdEmail...)),
		Telephones: core.SanitizePhones(textOf(rec, tdPhone...)),
		Skill:      textOf(rec, tdSkill...),
		Role:       env.Lookups.Role(core.KindTD, bbo),
	}
	notes, _ := fieldOf(rec, tdNotes...)
	p.Notes = core.PgText(notes)

	p.HasName = p.Name != ""
	if !p.HasName {
		p.Name = bbo
	}
	p.HasNation = p.Nation != UnknownNation
	p.HasEmails = len(p.Emails) > 0
	if !p.HasEmails {
		p.Emails = []string{core.FallbackEmail(bbo)}
	}
	if p.Skill == "" {
		p.Skill = "Tournament TD"
	}
	if p.Telephones == nil {
		p.Telephones = []string{}
	}

	// Only a configured password replaces the one a member already has.
	_, p.HasPassword = env.Lookups.Password(bbo)
	if p.PasswordHash, err = core.InitialPassword(env, bbo); err != nil {
		return nil, err
	}

	return p, nil
}

const upsertTD = `
INSERT INTO members (
	id, bbo_name, name, nation, emails, telephones, skill, notes, role,
	password_hash, is_enabled
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9,
	$10, true
)
ON CONFLICT ((lower(bbo_name))) DO UPDATE SET
	name          = CASE WHEN $11 THEN EXCLUDED.name ELSE members.name END,
	nation        = CASE WHEN $12 THEN EXCLUDED.nation ELSE members.nation END,
	emails        = CASE WHEN $13 THEN EXCLUDED.emails ELSE members.emails END,
	password_hash = CASE WHEN $14 THEN EXCLUDED.password_hash ELSE members.password_hash END,
	telephones    = EXCLUDED.telephones,
	skill         = EXCLUDED.skill,
	notes         = COALESCE(EXCLUDED.notes, members.notes),
	role          = EXCLUDED.role,
	updated_at    = now()`

func writeTD(ctx context.Context, db core.DBTX, params any) error {
	p, ok := params.(TDParams)
	if !ok {
		return fmt.Errorf("invalid params type: %T", params)
	}
	_, err := db.Exec(ctx, upsertTD,
		p.ID, p.BBOName, p.Name, p.Nation, p.Emails, p.Telephones, p.Skill, p.Notes, p.Role,
		p.PasswordHash,
		p.HasName, p.HasNation, p.HasEmails, p.HasPassword,
	)
	if err != nil {
		return fmt.Errorf("upsert td %q: %w", p.BBOName, err)
	}
	return nil
}
