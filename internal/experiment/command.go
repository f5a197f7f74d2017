package experiment

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/schollz/progressbar/v3"

	"featprep/internal/logging"
	"featprep/internal/services"
)

const (
	configFileName   = "experiment.json"
	maxEventLineSize = 1 << 20
)

// Executor abstracts command execution for testability. onStdout receives
// each stdout line; stderr receives the raw error stream.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout func(string), stderr io.Writer) error
}

// Option configures the factory.
type Option func(*CommandFactory)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(f *CommandFactory) {
		if exec != nil {
			f.exec = exec
		}
	}
}

// WithLogger sets the logger for collaborator events.
func WithLogger(logger *slog.Logger) Option {
	return func(f *CommandFactory) {
		f.logger = logging.NewComponentLogger(logger, "experiment")
	}
}

// CommandFactory drives the collaborator as a subprocess.
type CommandFactory struct {
	command  []string
	workDir  string
	progress io.Writer
	logger   *slog.Logger
	exec     Executor
}

// NewCommandFactory constructs a factory that runs command (binary plus
// leading arguments) and writes its configuration file into workDir. Progress
// bars and the collaborator's stderr go to progress.
func NewCommandFactory(command []string, workDir string, progress io.Writer, opts ...Option) (*CommandFactory, error) {
	cleaned := make([]string, 0, len(command))
	for _, part := range command {
		if part = strings.TrimSpace(part); part != "" {
			cleaned = append(cleaned, part)
		}
	}
	if len(cleaned) == 0 {
		return nil, errors.New("experiment command required")
	}
	if strings.TrimSpace(workDir) == "" {
		return nil, errors.New("experiment work directory required")
	}
	if progress == nil {
		progress = io.Discard
	}
	f := &CommandFactory{
		command:  cleaned,
		workDir:  workDir,
		progress: progress,
		logger:   logging.NewComponentLogger(nil, "experiment"),
		exec:     commandExecutor{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// New writes the document for the collaborator and runs its prepare step.
func (f *CommandFactory) New(ctx context.Context, doc Document) (Experiment, error) {
	if err := os.MkdirAll(f.workDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "initialize", "write config", "create work directory", err)
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "initialize", "write config", "encode document", err)
	}
	configPath := filepath.Join(f.workDir, configFileName)
	if err := renameio.WriteFile(configPath, append(payload, '\n'), 0o644); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "initialize", "write config", configPath, err)
	}

	if _, err := f.invoke(ctx, "prepare", "--config", configPath); err != nil {
		return nil, err
	}
	return &commandExperiment{factory: f, configPath: configPath}, nil
}

// invoke runs one collaborator subcommand and returns the batches from its
// loaders event, if it printed one.
func (f *CommandFactory) invoke(ctx context.Context, subcommand string, extra ...string) (map[string]int, error) {
	args := append(append([]string{}, f.command[1:]...), subcommand)
	args = append(args, extra...)

	bars := newBarSet(f.progress)
	defer bars.finish()

	var batches map[string]int
	onStdout := func(line string) {
		evt, ok := parseEvent(line)
		if !ok {
			fmt.Fprintln(f.progress, line)
			return
		}
		switch evt.Event {
		case eventProgress:
			bars.update(evt.Split, evt.Done, evt.Total)
		case eventLoaders:
			batches = evt.Batches
		case eventLog:
			f.logger.Info(evt.Message, logging.String("subcommand", subcommand))
		default:
			f.logger.Debug("unknown collaborator event",
				logging.String("event", evt.Event),
				logging.String("subcommand", subcommand),
			)
		}
	}

	f.logger.Debug("collaborator started",
		logging.String("binary", f.command[0]),
		logging.String("args", strings.Join(args, " ")),
	)
	if err := f.exec.Run(ctx, f.command[0], args, onStdout, f.progress); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("collaborator %s: %w", subcommand, ctxErr)
		}
		return nil, services.Wrap(services.ErrCollaborator, "", subcommand, "collaborator exited", err)
	}
	return batches, nil
}

type commandExperiment struct {
	factory    *CommandFactory
	configPath string
}

func (e *commandExperiment) Data() DataSource {
	return &commandData{experiment: e}
}

type commandData struct {
	experiment *commandExperiment
}

// GetLoaders runs the collaborator's loaders step. It blocks until every split
// has been built and cached.
func (d *commandData) GetLoaders(ctx context.Context, splits []string) (map[string]Loader, error) {
	f := d.experiment.factory
	batches, err := f.invoke(ctx, "loaders",
		"--config", d.experiment.configPath,
		"--splits", strings.Join(splits, ","),
	)
	if err != nil {
		return nil, err
	}
	if batches == nil {
		return nil, services.Wrap(services.ErrCollaborator, "", "loaders", "collaborator reported no loaders", nil)
	}
	loaders := make(map[string]Loader, len(batches))
	for split, count := range batches {
		loaders[split] = BatchCount(count)
	}
	return loaders, nil
}

const (
	eventProgress = "progress"
	eventLoaders  = "loaders"
	eventLog      = "log"
)

type event struct {
	Event   string         `json:"event"`
	Split   string         `json:"split,omitempty"`
	Done    int64          `json:"done,omitempty"`
	Total   int64          `json:"total,omitempty"`
	Message string         `json:"message,omitempty"`
	Batches map[string]int `json:"batches,omitempty"`
}

// parseEvent accepts only JSON objects carrying an event name; anything else
// the collaborator prints is passed through as plain output.
func parseEvent(line string) (event, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return event{}, false
	}
	var evt event
	if err := json.Unmarshal([]byte(trimmed), &evt); err != nil || evt.Event == "" {
		return event{}, false
	}
	return evt, true
}

// barSet keeps one progress bar per split.
type barSet struct {
	w    io.Writer
	bars map[string]*progressbar.ProgressBar
}

func newBarSet(w io.Writer) *barSet {
	return &barSet{w: w, bars: map[string]*progressbar.ProgressBar{}}
}

func (b *barSet) update(split string, done, total int64) {
	if split == "" {
		split = "features"
	}
	bar, ok := b.bars[split]
	if !ok {
		if total <= 0 {
			total = -1
		}
		bar = progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(b.w),
			progressbar.OptionSetDescription(split),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(time.Second),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(b.w) }),
		)
		b.bars[split] = bar
	} else if total > 0 && bar.GetMax64() != total {
		bar.ChangeMax64(total)
	}
	_ = bar.Set64(done)
}

func (b *barSet) finish() {
	splits := make([]string, 0, len(b.bars))
	for split := range b.bars {
		splits = append(splits, split)
	}
	sort.Strings(splits)
	for _, split := range splits {
		if bar := b.bars[split]; !bar.IsFinished() {
			_ = bar.Finish()
		}
	}
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string), stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Stderr = stderr
	cmd.WaitDelay = 5 * time.Second
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLineSize)
	for scanner.Scan() {
		if onStdout != nil {
			onStdout(scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
