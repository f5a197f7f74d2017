// Package stageexec runs one pipeline stage with uniform lifecycle logging
// and ledger recording.
package stageexec
