// Package core provides the business logic for importing legacy CSV exports
// into the members database.
//
// The package has no transport dependencies. It is used by the HTTP server,
// the import CLI and tests without modification.
//
// # Architecture
//
//   - Writers: registered per [RecordKind] via [Register]. Each writer turns
//     a [csvstream.Record] into parameters and writes them in a transaction.
//   - Service: the entry point for imports, progress, cancellation and history.
//   - Lookups: passwords, roles and skill levels loaded from a YAML file.
//
// # Writer Registry
//
// Writers are registered at init time by the tables package:
//
//	core.Register(core.WriterDefinition{
//	    Kind:     core.KindMember,
//	    Label:    "Members",
//	    Required: []string{"mBBOLoginName"},
//	    Build:    buildMember,
//	    Write:    writeMember,
//	})
//
// # Import Flow
//
//  1. Client calls [Service.Import] with an io.Reader
//  2. The reader is tokenized and assembled into records by csvstream
//  3. Each record is built and written under its own savepoint
//  4. Progress is broadcast to subscribers via [Service.SubscribeProgress]
//  5. The transaction commits, or rolls back entirely on cancel or error
//
// A record that fails to build or write is reported in
// [ImportResult.FailedRecords] and does not abort the run.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each category has a code prefix for support reference: DB, VAL, FILE, IMP,
// KIND and RATE.
package core
