package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"featprep/internal/pipeline"
	"featprep/internal/runstore"
	"featprep/internal/termui"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent extraction runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := runstore.Open(cfg.LedgerPath())
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistory(runs, cfg.Data.Splits, time.Now()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of runs to show")
	return cmd
}

func renderHistory(runs []*runstore.Run, splits []string, now time.Time) string {
	headers := []string{"Run", "Started", "Status", "Elapsed", "Stages", "Loaders", "Error"}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			humanize.RelTime(run.StartedAt, now, "ago", "from now"),
			string(run.Status),
			formatElapsed(run),
			strconv.Itoa(len(run.Stages)),
			formatLoaders(run.Loaders, splits),
			truncate(run.ErrorMessage, 60),
		})
	}
	aligns := []termui.Alignment{
		termui.AlignLeft, termui.AlignLeft, termui.AlignLeft,
		termui.AlignRight, termui.AlignRight, termui.AlignLeft, termui.AlignLeft,
	}
	return termui.RenderTable(headers, rows, aligns)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatElapsed(run *runstore.Run) string {
	if run.FinishedAt == nil {
		return "-"
	}
	return run.Elapsed().Round(time.Second).String()
}

func formatLoaders(loaders map[string]int, splits []string) string {
	if len(loaders) == 0 {
		return "-"
	}
	summary := pipeline.LoaderSummary(loaders)
	parts := make([]string, 0, len(summary))
	for _, split := range summary.Splits(splits) {
		parts = append(parts, fmt.Sprintf("%s=%d", split, summary[split]))
	}
	return strings.Join(parts, " ")
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
