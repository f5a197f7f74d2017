package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"featprep/internal/config"
	"featprep/internal/logging"
	"featprep/internal/pipeline"
	"featprep/internal/runstore"
	"featprep/internal/services"
	"featprep/internal/stageexec"
)

const lockFileName = ".featprep.lock"

type extractOptions struct {
	logFile  string
	override string
}

func (c *commandContext) runExtraction(cmd *cobra.Command, opts extractOptions) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	session, err := logging.Setup(logging.SetupOptions{
		LogPath: logging.ResolveLogPath(opts.logFile, cfg.Environment.LogFileVar),
		Level:   cfg.Logging.Level,
		Console: cmd.OutOrStdout(),
		Stderr:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warn: close log file: %v\n", closeErr)
		}
	}()

	runID := uuid.NewString()
	ctx := logging.WithRunID(cmd.Context(), runID)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(session.Logger, "featextract"))
	if session.LogPath != "" {
		logger.Info("logging to file", logging.String("log_file", session.LogPath))
	}

	datasetRoot := c.env(cfg.Environment.DatasetVar)
	outputRoot := c.env(cfg.Environment.OutputVar)
	overridePath := strings.TrimSpace(opts.override)
	if overridePath == "" {
		overridePath = cfg.Experiment.Override
	}
	cacheDir := cfg.CachePath(outputRoot)

	ledger := openLedger(ctx, cfg, logger, runstore.BeginOptions{
		ID:           runID,
		LogPath:      session.LogPath,
		OverridePath: overridePath,
		CacheDir:     cacheDir,
	})
	if ledger != nil {
		defer ledger.Close()
	}

	var summary pipeline.LoaderSummary
	runErr := func() error {
		unlock, err := acquireRunLock(cacheDir)
		if err != nil {
			return err
		}
		defer unlock()

		workDir := filepath.Join(cfg.Paths.LogDir, "runs", runID)
		factory, err := c.newFactory(cfg, workDir, session.Progress, session.Logger)
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "", "collaborator", "invalid experiment command", err)
		}

		var recorder stageexec.Recorder
		if ledger != nil {
			recorder = ledger.Recorder(runID)
		}
		summary, err = pipeline.Run(ctx, pipeline.Options{
			Logger:       logging.WithContext(ctx, session.Logger),
			Config:       cfg,
			DatasetRoot:  datasetRoot,
			OutputRoot:   outputRoot,
			OverridePath: overridePath,
			Factory:      factory,
			Recorder:     recorder,
		})
		return err
	}()

	if ledger != nil {
		if err := ledger.Finish(context.WithoutCancel(ctx), runID, services.FailureStatus(runErr), summary, runErr); err != nil {
			logger.Warn("failed to record run result", logging.Error(err))
		}
	}
	return runErr
}

// openLedger opens the run ledger and records the run start. The ledger is an
// operator aid, so failures are logged and the run continues without it.
func openLedger(ctx context.Context, cfg *config.Config, logger *slog.Logger, begin runstore.BeginOptions) *runstore.Store {
	store, err := runstore.Open(cfg.LedgerPath())
	if err != nil {
		logger.Warn("run ledger unavailable", logging.String("path", cfg.LedgerPath()), logging.Error(err))
		return nil
	}
	if _, err := store.Begin(ctx, begin); err != nil {
		logger.Warn("failed to record run start", logging.Error(err))
		_ = store.Close()
		return nil
	}
	return store
}

// acquireRunLock holds an exclusive lock on the feature cache so two runs
// never write the same cache. An unset cache root is left for the pipeline to
// report.
func acquireRunLock(cacheDir string) (func(), error) {
	if strings.TrimSpace(cacheDir) == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	lockPath := filepath.Join(cacheDir, lockFileName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is held by another featextract run", services.ErrLocked, lockPath)
	}
	return func() { _ = lock.Unlock() }, nil
}
