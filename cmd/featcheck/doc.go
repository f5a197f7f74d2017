// Command featcheck reports whether this host is ready to run feature
// extraction.
//
// It runs every readiness check in order, prints one status line per check,
// and exits with the number of failed checks (0 when the host is ready).
// Warnings are printed but never change the exit status.
package main
