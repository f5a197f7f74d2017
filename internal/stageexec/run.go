package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"featprep/internal/logging"
	"featprep/internal/runstore"
)

// Stage identifies one step of the pipeline.
type Stage struct {
	Index int
	Total int
	// Name is the stable identifier used in logs and the run ledger.
	Name string
	// Label is the human-readable title.
	Label string
}

// Title renders the stage as "[i/n] Label".
func (s Stage) Title() string {
	label := strings.TrimSpace(s.Label)
	if label == "" {
		label = s.Name
	}
	return fmt.Sprintf("[%d/%d] %s", s.Index, s.Total, label)
}

// Recorder persists stage outcomes.
type Recorder interface {
	RecordStage(ctx context.Context, record runstore.StageRecord) error
}

// Options controls stage execution.
type Options struct {
	Logger   *slog.Logger
	Stage    Stage
	Recorder Recorder
	Fn       func(ctx context.Context, logger *slog.Logger) error
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Run executes a stage, logging its start, completion and elapsed time. A
// failing stage is logged and its error is returned unchanged.
func Run(ctx context.Context, opts Options) error {
	if opts.Fn == nil {
		return fmt.Errorf("stage function unavailable: %s", opts.Stage.Name)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	stageCtx := logging.WithStage(ctx, opts.Stage.Name)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)

	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("title", opts.Stage.Title()),
		logging.Int("stage_index", opts.Stage.Index),
		logging.Int("stage_total", opts.Stage.Total),
	)

	started := now()
	stageErr := opts.Fn(stageCtx, stageLogger)
	elapsed := now().Sub(started)

	if stageErr != nil {
		return handleFailure(stageCtx, stageLogger, opts, elapsed, stageErr)
	}

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("title", opts.Stage.Title()),
		logging.Duration("elapsed", elapsed.Round(time.Millisecond)),
	)
	record(stageCtx, stageLogger, opts, runstore.StageRecord{
		Index:   opts.Stage.Index,
		Name:    opts.Stage.Name,
		Status:  runstore.StatusCompleted,
		Elapsed: elapsed,
	})
	return nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, opts Options, elapsed time.Duration, stageErr error) error {
	message := strings.TrimSpace(stageErr.Error())
	if errors.Is(stageErr, context.Canceled) {
		message = "canceled"
	}

	logger.Error(
		"stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("title", opts.Stage.Title()),
		logging.Duration("elapsed", elapsed.Round(time.Millisecond)),
		logging.String("error_message", message),
		logging.Error(stageErr),
	)
	record(ctx, logger, opts, runstore.StageRecord{
		Index:        opts.Stage.Index,
		Name:         opts.Stage.Name,
		Status:       runstore.StatusFailed,
		Elapsed:      elapsed,
		ErrorMessage: message,
	})
	return stageErr
}

func record(ctx context.Context, logger *slog.Logger, opts Options, rec runstore.StageRecord) {
	if opts.Recorder == nil {
		return
	}
	// The ledger must not turn a finished stage into a failed run.
	if err := opts.Recorder.RecordStage(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("failed to record stage", logging.Error(err))
	}
}
