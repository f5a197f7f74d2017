package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"featprep/internal/config"
	"featprep/internal/experiment"
	"featprep/internal/preflight"
	"featprep/internal/termui"
)

const longHelp = `Check that this host is ready for feature extraction.

Every check runs, in order, and prints OK, INFO, WARN or FAIL. The exit
status is the number of FAIL checks (capped at 125), so 0 means ready.
An unreadable configuration file is itself a FAIL check; the remaining
checks then use the built-in defaults.`

func newRootCommand(exitCode *int, runnerOpts ...preflight.Option) *cobra.Command {
	var configFlag string
	var overrideFlag string

	rootCmd := &cobra.Command{
		Use:           "featcheck",
		Short:         "Check that this host is ready for feature extraction",
		Long:          longHelp,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, configPath, configExists, loadErr := config.Load(strings.TrimSpace(configFlag))
			if loadErr != nil {
				def := config.Default()
				cfg = &def
				configPath = strings.TrimSpace(configFlag)
			}

			budget, err := memoryBudget(cfg, overrideFlag)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warn: %v; using the built-in memory budget\n", err)
			}

			opts := append([]preflight.Option{preflight.WithMemoryBudget(budget)}, runnerOpts...)
			runner := preflight.NewRunner(cfg, opts...)
			sections := append([]preflight.Section{
				preflight.ConfigFileSection(configPath, configExists, loadErr),
			}, runner.Sections()...)

			out := cmd.OutOrStdout()
			reporter := newConsoleReporter(out, termui.ShouldColorize(out))
			summary := preflight.RunSections(cmd.Context(), sections, reporter)
			reporter.Finish(summary)

			*exitCode = summary.ExitCode()
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.Flags().StringVar(&overrideFlag, "override", "", "Experiment override document used to read the memory budget")
	return rootCmd
}

// memoryBudget reads infra.mem_gb from the extraction override plus the user
// override, falling back to the built-in value when the override is unusable.
func memoryBudget(cfg *config.Config, overrideFlag string) (float64, error) {
	builtin, _ := experiment.ExtractionOverride().Float(experiment.KeyMemoryGB)
	path := strings.TrimSpace(overrideFlag)
	if path == "" {
		path = cfg.Experiment.Override
	}
	if path == "" {
		return builtin, nil
	}
	override, err := experiment.LoadOverride(path)
	if err != nil {
		return builtin, err
	}
	gb, ok := experiment.Merge(experiment.ExtractionOverride(), override).Float(experiment.KeyMemoryGB)
	if !ok {
		return builtin, nil
	}
	return gb, nil
}
