package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"featprep/internal/config"
	"featprep/internal/experiment"
	"featprep/internal/logging"
	"featprep/internal/services"
	"featprep/internal/stageexec"
)

// Stages in execution order.
var (
	StageImport = stageexec.Stage{Index: 1, Total: 4, Name: "import", Label: "Import & configure"}
	StageInit   = stageexec.Stage{Index: 2, Total: 4, Name: "initialize", Label: "Initialize experiment"}
	StageBuild  = stageexec.Stage{Index: 3, Total: 4, Name: "extract", Label: "Build loaders & extract features"}
	StageReport = stageexec.Stage{Index: 4, Total: 4, Name: "summarize", Label: "Summarize"}
)

// LoaderSummary maps split names to batch counts.
type LoaderSummary map[string]int

// Splits returns the summary keys: requested splits first in the order given,
// then any extra splits the collaborator built, sorted.
func (s LoaderSummary) Splits(requested []string) []string {
	out := make([]string, 0, len(s))
	seen := make(map[string]struct{}, len(s))
	for _, split := range requested {
		if _, ok := s[split]; !ok {
			continue
		}
		if _, dup := seen[split]; dup {
			continue
		}
		seen[split] = struct{}{}
		out = append(out, split)
	}
	var extra []string
	for split := range s {
		if _, ok := seen[split]; !ok {
			extra = append(extra, split)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// Options configures a pipeline run.
type Options struct {
	Logger *slog.Logger
	Config *config.Config
	// DatasetRoot and OutputRoot are the values of the dataset and output
	// root variables.
	DatasetRoot string
	OutputRoot  string
	// OverridePath names an optional user override document.
	OverridePath string
	Factory      experiment.Factory
	Recorder     stageexec.Recorder
	// OnConfigured observes the merged document before initialization.
	OnConfigured func(experiment.Document)
	Now          func() time.Time
}

// BuildDocument merges the base defaults, the extraction override and the
// optional user override.
func BuildDocument(cfg *config.Config, datasetRoot, outputRoot, overridePath string) (experiment.Document, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: configuration required", services.ErrConfiguration)
	}
	layers := []experiment.Document{
		experiment.DefaultDocument(cfg.DatasetPath(datasetRoot), cfg.CachePath(outputRoot)),
		experiment.ExtractionOverride(),
	}
	if path := strings.TrimSpace(overridePath); path != "" {
		override, err := experiment.LoadOverride(path)
		if err != nil {
			return nil, err
		}
		layers = append(layers, override)
	}
	doc := experiment.Merge(layers...)
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Run executes the four stages. On success it returns one entry per loader
// the collaborator built.
func Run(ctx context.Context, opts Options) (LoaderSummary, error) {
	if opts.Factory == nil {
		return nil, errors.New("experiment factory required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: configuration required", services.ErrConfiguration)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := logging.NewComponentLogger(opts.Logger, "pipeline")
	splits := append([]string(nil), opts.Config.Data.Splits...)

	started := now()
	logger.Info("feature extraction started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("splits", strings.Join(splits, ",")),
	)

	var (
		doc     experiment.Document
		exp     experiment.Experiment
		summary LoaderSummary
	)

	stages := []struct {
		stage stageexec.Stage
		fn    func(context.Context, *slog.Logger) error
	}{
		{StageImport, func(_ context.Context, stageLogger *slog.Logger) error {
			var err error
			doc, err = BuildDocument(opts.Config, opts.DatasetRoot, opts.OutputRoot, opts.OverridePath)
			if err != nil {
				return err
			}
			stageLogger.Info("experiment configured",
				logging.String("cache_dir", doc.String(experiment.KeyCacheFolder)),
				logging.String("dataset_path", doc.String(experiment.KeyStudyPath)),
				logging.String("override", opts.OverridePath),
			)
			if query := doc.String(experiment.KeyStudyQuery); query != "" {
				stageLogger.Info("study subset selected", logging.String("query", query))
			}
			if opts.OnConfigured != nil {
				opts.OnConfigured(doc)
			}
			return nil
		}},
		{StageInit, func(stageCtx context.Context, _ *slog.Logger) error {
			var err error
			exp, err = opts.Factory.New(stageCtx, doc)
			return err
		}},
		{StageBuild, func(stageCtx context.Context, stageLogger *slog.Logger) error {
			stageLogger.Info("extracting features (this may take several hours)",
				logging.String("splits", strings.Join(splits, ",")),
			)
			loaders, err := exp.Data().GetLoaders(stageCtx, splits)
			if err != nil {
				return err
			}
			summary = make(LoaderSummary, len(loaders))
			for split, loader := range loaders {
				count := 0
				if loader != nil {
					count = loader.Len()
				}
				summary[split] = count
			}
			return nil
		}},
		{StageReport, func(_ context.Context, stageLogger *slog.Logger) error {
			for _, split := range summary.Splits(splits) {
				stageLogger.Info("split ready",
					logging.String("split", split),
					logging.Int("batches", summary[split]),
				)
			}
			stageLogger.Info("features cached",
				logging.String("cache_dir", doc.String(experiment.KeyCacheFolder)),
				logging.Int("splits", len(summary)),
			)
			return nil
		}},
	}

	for _, s := range stages {
		if err := stageexec.Run(ctx, stageexec.Options{
			Logger:   logger,
			Stage:    s.stage,
			Recorder: opts.Recorder,
			Fn:       s.fn,
			Now:      now,
		}); err != nil {
			logger.Error("feature extraction failed",
				logging.String(logging.FieldEventType, "run_failure"),
				logging.String("failed_stage", s.stage.Name),
				logging.Duration("elapsed", now().Sub(started).Round(time.Second)),
			)
			return nil, err
		}
	}

	logger.Info("feature extraction complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Duration("elapsed", now().Sub(started).Round(time.Second)),
	)
	return summary, nil
}
