// Package runstore records orchestrator runs in SQLite.
//
// Each featextract invocation opens a run row, appends one row per finished
// stage, and closes the run with its final status and loader summary. The
// history subcommand reads the ledger back newest first.
//
// The database lives next to the logs and is treated as an operator aid, not
// as state the pipeline depends on. Schema changes bump the version in
// schema.go; users delete the database to adopt the new schema.
package runstore
