// Package pipeline runs the four-stage feature extraction: import and
// configure, initialize the experiment, build the loaders (which computes
// and caches every feature), and summarize.
//
// Stages run strictly in order and the first failure stops the run. Errors
// from the collaborator are returned exactly as received so callers can
// match them with errors.Is.
package pipeline
