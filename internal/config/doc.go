// Package config loads, normalizes, and validates featprep configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts) and reads TOML files. The Config type names every knob both the
// readiness checks and the extraction orchestrator need: the environment
// variables that locate the dataset and output roots, the Python interpreter
// and the modules it must import, the language-model assets, the collaborator
// command and the log locations.
//
// Always obtain settings through this package so downstream code receives
// expanded paths and clear validation errors.
package config
