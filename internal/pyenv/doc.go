// Package pyenv probes the Python environment the extraction job runs in.
//
// featprep never embeds Python; it asks the configured interpreter to import
// modules or report installed spaCy packages and classifies the outcome from
// the exit status and the last line of output.
package pyenv
