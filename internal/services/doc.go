// Package services defines the error markers shared by the orchestrator and
// its external collaborator.
//
// Wrap tags an error with a marker plus stage context so callers can classify
// it with errors.Is while the underlying cause stays reachable. FailureStatus
// turns a run error into the status recorded in the run ledger.
package services
