package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/JonMunkholm/bboimport/internal/csvstream"
)

// BuildFunc turns a parsed record into the parameters of a Write call.
// A returned error fails the record without touching the database.
type BuildFunc func(rec csvstream.Record, env BuildEnv) (any, error)

// WriteFunc persists the parameters produced by BuildFunc.
type WriteFunc func(ctx context.Context, db DBTX, params any) error

// BuildEnv carries the collaborators a BuildFunc may need.
type BuildEnv struct {
	Lookups   *Lookups
	Hasher    Hasher
	DefaultTD string
}

// WriterDefinition contains everything needed to import one record kind.
type WriterDefinition struct {
	Kind  RecordKind
	Label string

	// Columns lists the header names the writer reads. Required columns are
	// also listed in Required.
	Columns  []string
	Required []string

	Build BuildFunc
	Write WriteFunc
}

var (
	registry   = make(map[RecordKind]WriterDefinition)
	registryMu sync.RWMutex
)

// Register adds a writer definition to the dispatch table.
// Panics if the kind is already registered or the definition is incomplete.
func Register(def WriterDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Kind]; exists {
		panic(fmt.Sprintf("writer already registered: %s", def.Kind))
	}
	if def.Build == nil || def.Write == nil {
		panic(fmt.Sprintf("writer %s: Build and Write are required", def.Kind))
	}

	registry[def.Kind] = def
}

// WriterFor returns the writer definition for kind.
// Returns false if not found.
func WriterFor(kind RecordKind) (WriterDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[kind]
	return def, ok
}

// Writers returns all registered writer definitions in import order.
func Writers() []WriterDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]WriterDefinition, 0, len(registry))
	for _, k := range Kinds() {
		if def, ok := registry[k]; ok {
			result = append(result, def)
		}
	}
	return result
}
