// Package termui renders status lines, section headers and tables for the
// command-line tools. Color is applied only when the destination is a
// terminal.
package termui
