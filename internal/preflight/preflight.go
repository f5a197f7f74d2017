package preflight

import (
	"context"
	"fmt"
	"os"
	"time"

	"featprep/internal/accel"
	"featprep/internal/config"
	"featprep/internal/pyenv"
)

// maxExitCode keeps the failure count clear of the shell's reserved statuses
// (126 and above).
const maxExitCode = 125

// PythonProber is the subset of pyenv.Interpreter the checks use.
type PythonProber interface {
	Binary() string
	ImportModule(ctx context.Context, name string) error
	HasPackage(ctx context.Context, name string) (bool, error)
}

// MemoryReader reports total host memory in bytes.
type MemoryReader func() (uint64, error)

// Reporter receives checks as they are produced.
type Reporter interface {
	Section(title string)
	Check(Check)
}

// Section is one titled group of checks in the battery.
type Section struct {
	Title string
	Run   func(ctx context.Context) []Check
}

// Summary aggregates a battery run.
type Summary struct {
	Passed   int
	Info     int
	Warnings int
	Failures int
}

// ExitCode converts the failure count into a process exit status.
func (s Summary) ExitCode() int {
	if s.Failures > maxExitCode {
		return maxExitCode
	}
	return s.Failures
}

func (s *Summary) add(c Check) {
	switch c.Severity {
	case SeverityOK:
		s.Passed++
	case SeverityInfo:
		s.Info++
	case SeverityWarn:
		s.Warnings++
	case SeverityFail:
		s.Failures++
	}
}

// Runner owns the collaborators the built-in checks need.
type Runner struct {
	cfg         *config.Config
	lookupEnv   func(string) (string, bool)
	python      PythonProber
	accelerator accel.Prober
	memory      MemoryReader
	memBudgetGB float64
}

// Option configures a Runner.
type Option func(*Runner)

// WithLookupEnv replaces os.LookupEnv (primarily for tests).
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(r *Runner) {
		if fn != nil {
			r.lookupEnv = fn
		}
	}
}

// WithPython injects the interpreter prober.
func WithPython(p PythonProber) Option {
	return func(r *Runner) {
		if p != nil {
			r.python = p
		}
	}
}

// WithAccelerator injects the accelerator prober.
func WithAccelerator(p accel.Prober) Option {
	return func(r *Runner) {
		if p != nil {
			r.accelerator = p
		}
	}
}

// WithMemory injects the host memory reader.
func WithMemory(fn MemoryReader) Option {
	return func(r *Runner) {
		if fn != nil {
			r.memory = fn
		}
	}
}

// WithMemoryBudget sets the memory the experiment requests, in GiB. Zero
// disables the memory check.
func WithMemoryBudget(gb float64) Option {
	return func(r *Runner) {
		r.memBudgetGB = gb
	}
}

// NewRunner constructs a Runner backed by the host unless options override it.
func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	r := &Runner{
		cfg:         cfg,
		lookupEnv:   os.LookupEnv,
		accelerator: accel.NewSystemProber(),
		memory:      hostMemory,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.python == nil {
		timeout := secondsToDuration(cfg.ProbeTimeoutSeconds())
		r.python = pyenv.New(cfg.Python.Binary, timeout)
	}
	return r
}

// Sections returns the battery in execution order.
func (r *Runner) Sections() []Section {
	return []Section{
		{Title: "python packages", Run: r.checkModules},
		{Title: "language model assets", Run: r.checkAssets},
		{Title: "effective configuration", Run: r.checkSelectedModel},
		{Title: "environment variables", Run: r.checkEnvironment},
		{Title: "model cache", Run: r.checkModelCache},
		{Title: "data paths", Run: r.checkDataPaths},
		{Title: "accelerator", Run: r.checkAccelerator},
		{Title: "external binaries", Run: r.checkBinaries},
		{Title: "host memory", Run: r.checkMemory},
	}
}

// Run executes the battery and reports every check to reporter.
func (r *Runner) Run(ctx context.Context, reporter Reporter) Summary {
	return RunSections(ctx, r.Sections(), reporter)
}

// RunSections executes sections in order. A panicking section yields one FAIL
// check and the next section still runs.
func RunSections(ctx context.Context, sections []Section, reporter Reporter) Summary {
	var summary Summary
	for _, section := range sections {
		if reporter != nil {
			reporter.Section(section.Title)
		}
		for _, check := range runSection(ctx, section) {
			summary.add(check)
			if reporter != nil {
				reporter.Check(check)
			}
		}
	}
	return summary
}

func runSection(ctx context.Context, section Section) (checks []Check) {
	defer func() {
		if recovered := recover(); recovered != nil {
			checks = append(checks, fail(section.Title, "internal error", fmt.Sprintf("check panicked: %v", recovered)))
		}
	}()
	if section.Run == nil {
		return nil
	}
	return section.Run(ctx)
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// ConfigFileSection reports how the tool configuration was loaded. A load
// error is one FAIL; the rest of the battery then runs on defaults.
func ConfigFileSection(path string, exists bool, loadErr error) Section {
	return Section{
		Title: "tool configuration",
		Run: func(context.Context) []Check {
			name := path
			if name == "" {
				name = "config file"
			}
			switch {
			case loadErr != nil:
				return []Check{fail(CategoryConfig, name, fmt.Sprintf("%v; checking with built-in defaults", loadErr))}
			case !exists:
				return []Check{ok(CategoryConfig, name, "not found; using built-in defaults")}
			default:
				return []Check{ok(CategoryConfig, name, "loaded")}
			}
		},
	}
}
