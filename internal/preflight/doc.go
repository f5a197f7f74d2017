// Package preflight runs the readiness battery that precedes an extraction run.
//
// Each check inspects one aspect of the host (Python modules, language-model
// assets, environment variables, the model cache, data paths, accelerators,
// binaries, memory) and reports a Check with a closed Severity. Checks never
// abort the battery: probe errors and panics are converted into a FAIL or WARN
// for the check that raised them, and the remaining checks still run.
//
// Only FAIL contributes to the summary's failure count, which the CLI uses as
// its exit status.
package preflight
