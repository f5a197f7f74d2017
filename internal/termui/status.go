package termui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// StatusKind selects the label and color of a status line.
type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusOK
	StatusWarn
	StatusFail
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 24
	statusIndent     = "  "
)

// String returns the bracketed label text.
func (k StatusKind) String() string {
	switch k {
	case StatusOK:
		return "OK"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "INFO"
	}
}

func (k StatusKind) color() string {
	switch k {
	case StatusOK:
		return ansiGreen
	case StatusWarn:
		return ansiYellow
	case StatusFail:
		return ansiRed
	case StatusInfo:
		return ansiBlue
	default:
		return ""
	}
}

// RenderStatusLine formats "  label:   [KIND] message".
func RenderStatusLine(label string, kind StatusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", kind, message)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	return Colorize(kind, base, colorize)
}

// Colorize wraps text in the color for kind when colorize is set.
func Colorize(kind StatusKind, text string, colorize bool) string {
	if !colorize {
		return text
	}
	if color := kind.color(); color != "" {
		return color + text + ansiReset
	}
	return text
}

// RenderSectionHeader returns the header line and its underline.
func RenderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

// ShouldColorize reports whether writer is an interactive terminal.
func ShouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
