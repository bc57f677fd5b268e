package core

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lookups holds the side tables the writers consult: initial passwords,
// roles and skill levels keyed by BBO name or legacy code. A Lookups value
// is immutable after construction and safe for concurrent use.
type Lookups struct {
	passwords map[string]string
	roles     map[string]string
	levels    map[string]string
}

// lookupFile is the on-disk YAML shape.
type lookupFile struct {
	Passwords map[string]string `yaml:"passwords"`
	Roles     map[string]string `yaml:"roles"`
	Levels    map[string]string `yaml:"levels"`
}

// defaultLevels maps the legacy numeric mSkillLevel to a level name.
var defaultLevels = map[string]string{
	"0": "Beginner",
	"1": "Beginner",
	"2": "Intermediate",
	"3": "Advanced",
	"4": "Expert",
	"5": "World Class",
}

// defaultRoles is the role given to each kind when the table has no entry.
var defaultRoles = map[RecordKind]string{
	KindMember: "member",
	KindTD:     "td",
}

// NewLookups builds a Lookups from plain maps. Keys are matched
// case-insensitively and surrounding space is ignored.
func NewLookups(passwords, roles, levels map[string]string) *Lookups {
	l := &Lookups{
		passwords: normalizeKeys(passwords),
		roles:     normalizeKeys(roles),
		levels:    normalizeKeys(defaultLevels),
	}
	for k, v := range normalizeKeys(levels) {
		l.levels[k] = v
	}
	return l
}

// ParseLookups decodes the YAML lookup document.
func ParseLookups(data []byte) (*Lookups, error) {
	var f lookupFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse lookups: %w", err)
	}
	return NewLookups(f.Passwords, f.Roles, f.Levels), nil
}

// LoadLookups reads the YAML lookup file at path. An empty path yields the
// built-in defaults.
func LoadLookups(path string) (*Lookups, error) {
	if path == "" {
		return NewLookups(nil, nil, nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lookups: %w", err)
	}
	return ParseLookups(data)
}

// Password returns the initial password configured for bboName.
func (l *Lookups) Password(bboName string) (string, bool) {
	if l == nil {
		return "", false
	}
	pw, ok := l.passwords[lookupKey(bboName)]
	return pw, ok && pw != ""
}

// Role returns the role configured for bboName, or the default for kind.
func (l *Lookups) Role(kind RecordKind, bboName string) string {
	if l != nil {
		if role, ok := l.roles[lookupKey(bboName)]; ok && role != "" {
			return role
		}
	}
	return defaultRoles[kind]
}

// Level maps a legacy skill code or name to a level name.
func (l *Lookups) Level(code string) (string, bool) {
	levels := defaultLevels
	if l != nil {
		levels = l.levels
	}
	level, ok := levels[lookupKey(code)]
	return level, ok
}

// Len reports the number of password and role entries.
func (l *Lookups) Len() (passwords, roles int) {
	if l == nil {
		return 0, 0
	}
	return len(l.passwords), len(l.roles)
}

func lookupKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[lookupKey(k)] = strings.TrimSpace(v)
	}
	return out
}
