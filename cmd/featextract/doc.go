// Command featextract runs the feature-extraction pipeline and keeps a ledger
// of past runs.
//
// A run imports and merges the experiment configuration, initializes the
// extraction collaborator, builds the train/val/test loaders (which computes
// and caches every feature) and logs a per-split summary. Log records go to
// the console and, with --logfile or FEATPREP_LOGFILE, to a file that also
// receives the collaborator's progress bars.
//
// Subcommands:
//   - history: list recent runs from the ledger
//   - config init|validate: manage the tool configuration file
package main
