// Package tables registers the member, TD and blacklist writers with the
// core registry. Import it for side effects wherever imports run.
package tables

// Each writer file registers itself from init().
