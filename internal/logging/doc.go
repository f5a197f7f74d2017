// Package logging assembles the dual-sink slog logger used by featprep.
//
// Every record goes to the console and, when a log file is configured, to the
// same line on disk. A separate ProgressSink carries the raw output of
// progress indicators (bars, carriage-return spinners) that must land in the
// durable log without being interleaved into the console. Context helpers tag
// records with the run identifier and the current stage.
package logging
