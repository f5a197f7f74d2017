// Package experiment models the external feature-extraction collaborator.
//
// The orchestrator only sees four narrow interfaces: a Factory builds an
// Experiment from a merged configuration Document, the Experiment exposes a
// DataSource, and the DataSource builds one Loader per requested split.
// Building loaders is what computes and caches the features, so that call is
// where a run spends nearly all of its time.
//
// CommandFactory is the production implementation. It drives a Python entry
// point as a subprocess, feeds it the merged document as JSON, and turns the
// JSON-lines events it prints into progress bars on the progress stream.
package experiment
