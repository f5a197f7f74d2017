package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SetupOptions describes how the dual-sink logger is assembled.
type SetupOptions struct {
	// LogPath enables the file sink when non-empty.
	LogPath string
	Level   string
	// Console receives log records. Defaults to os.Stdout.
	Console io.Writer
	// Stderr receives progress output when no log file is configured.
	// Defaults to os.Stderr.
	Stderr io.Writer
}

// Session owns the logger and the file handles behind it for one process run.
type Session struct {
	Logger   *slog.Logger
	Progress ProgressSink
	LogPath  string

	closers []io.Closer
}

// ResolveLogPath picks the explicit flag value, then the named environment
// variable. An empty result means console-only logging.
func ResolveLogPath(flagValue, envVar string) string {
	if path := strings.TrimSpace(flagValue); path != "" {
		return path
	}
	if envVar = strings.TrimSpace(envVar); envVar == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(envVar))
}

// Setup builds the console logger and, when LogPath is set, the file sink and
// the progress sink that shares the same file. Failure to open the file is
// returned rather than silently degrading to console-only output.
func Setup(opts SetupOptions) (*Session, error) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))

	path := strings.TrimSpace(opts.LogPath)
	if path == "" {
		return &Session{
			Logger:   slog.New(newLineHandler(console, level)),
			Progress: NewProgressSink(stderr),
		}, nil
	}

	if err := ensureLogDir(path); err != nil {
		return nil, err
	}
	// Both handles append so neither clobbers the other's writes; the log
	// handle truncates first to start each run with a fresh file.
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	progressFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		_ = logFile.Close()
		return nil, fmt.Errorf("open progress stream %s: %w", path, err)
	}

	handler := newFanoutHandler(
		newLineHandler(console, level),
		newLineHandler(logFile, level),
	)
	return &Session{
		Logger:   slog.New(handler),
		Progress: NewProgressSink(progressFile),
		LogPath:  path,
		closers:  []io.Closer{progressFile, logFile},
	}, nil
}

// Close flushes pending progress output and closes the file handles.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.Progress != nil {
		if err := s.Progress.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush progress: %w", err))
		}
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory %s: %w", dir, err)
	}
	return nil
}
