package pyenv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	importScript  = "import importlib, sys; importlib.import_module(sys.argv[1])"
	packageScript = "import sys, spacy.util; sys.exit(0 if spacy.util.is_package(sys.argv[1]) else 3)"

	// packageMissingCode is the exit status packageScript uses for "not installed".
	packageMissingCode = 3
)

// ErrProbe marks failures to run the interpreter itself, as opposed to a
// module or package being absent.
var ErrProbe = errors.New("python probe failed")

// Executor abstracts command execution for testability.
type Executor interface {
	CombinedOutput(ctx context.Context, binary string, args []string) ([]byte, error)
}

// Option configures the interpreter.
type Option func(*Interpreter)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(i *Interpreter) {
		if exec != nil {
			i.exec = exec
		}
	}
}

// Interpreter wraps a Python binary.
type Interpreter struct {
	binary  string
	timeout time.Duration
	exec    Executor
}

// New constructs an Interpreter. A non-positive timeout disables the
// per-probe deadline.
func New(binary string, timeout time.Duration, opts ...Option) *Interpreter {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "python3"
	}
	interp := &Interpreter{binary: binary, timeout: timeout, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(interp)
	}
	return interp
}

// Binary returns the interpreter command.
func (i *Interpreter) Binary() string {
	return i.binary
}

// ImportModule imports name in a fresh interpreter. The returned error carries
// the interpreter's final output line, e.g. "ModuleNotFoundError: No module
// named 'h5py'".
func (i *Interpreter) ImportModule(ctx context.Context, name string) error {
	out, err := i.run(ctx, importScript, name)
	if err == nil {
		return nil
	}
	if _, ok := exitCode(err); ok {
		return errors.New(lastLine(out, err))
	}
	return fmt.Errorf("%w: %s", ErrProbe, lastLine(out, err))
}

// HasPackage reports whether spaCy considers name an installed package.
func (i *Interpreter) HasPackage(ctx context.Context, name string) (bool, error) {
	out, err := i.run(ctx, packageScript, name)
	if err == nil {
		return true, nil
	}
	if code, ok := exitCode(err); ok && code == packageMissingCode {
		return false, nil
	}
	return false, fmt.Errorf("%w: %s", ErrProbe, lastLine(out, err))
}

func (i *Interpreter) run(ctx context.Context, script, arg string) ([]byte, error) {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}
	out, err := i.exec.CombinedOutput(ctx, i.binary, []string{"-c", script, arg})
	if err != nil && ctx.Err() != nil {
		return out, fmt.Errorf("%s timed out: %w", i.binary, ctx.Err())
	}
	return out, err
}

func exitCode(err error) (int, bool) {
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		code := coder.ExitCode()
		return code, code >= 0
	}
	return 0, false
}

func lastLine(out []byte, err error) string {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	for idx := len(lines) - 1; idx >= 0; idx-- {
		if line := strings.TrimSpace(string(lines[idx])); line != "" {
			return line
		}
	}
	if err != nil {
		return err.Error()
	}
	return "no output"
}

type commandExecutor struct{}

func (commandExecutor) CombinedOutput(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
