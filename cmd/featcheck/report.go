package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"featprep/internal/preflight"
	"featprep/internal/termui"
)

const bannerWidth = 50

type categoryCounts struct {
	counts [4]int
}

// consoleReporter prints checks as they complete and a summary at the end.
type consoleReporter struct {
	out      io.Writer
	colorize bool
	caser    cases.Caser
	section  int

	categories map[string]*categoryCounts
	order      []string
}

func newConsoleReporter(out io.Writer, colorize bool) *consoleReporter {
	return &consoleReporter{
		out:        out,
		colorize:   colorize,
		caser:      cases.Title(language.English),
		categories: map[string]*categoryCounts{},
	}
}

func (r *consoleReporter) Section(title string) {
	r.section++
	fmt.Fprintln(r.out)
	for _, line := range termui.RenderSectionHeader(fmt.Sprintf("%d. %s", r.section, r.caser.String(title)), r.colorize) {
		fmt.Fprintln(r.out, line)
	}
}

func (r *consoleReporter) Check(check preflight.Check) {
	fmt.Fprintln(r.out, termui.RenderStatusLine(check.Name, statusKind(check.Severity), check.Detail, r.colorize))

	counts, ok := r.categories[check.Category]
	if !ok {
		counts = &categoryCounts{}
		r.categories[check.Category] = counts
		r.order = append(r.order, check.Category)
	}
	if idx := int(check.Severity); idx >= 0 && idx < len(counts.counts) {
		counts.counts[idx]++
	}
}

// Finish prints the per-category table and the verdict banner.
func (r *consoleReporter) Finish(summary preflight.Summary) {
	fmt.Fprintln(r.out)
	rows := make([][]string, 0, len(r.order))
	for _, category := range r.order {
		c := r.categories[category].counts
		rows = append(rows, []string{
			category,
			strconv.Itoa(c[preflight.SeverityOK]),
			strconv.Itoa(c[preflight.SeverityInfo]),
			strconv.Itoa(c[preflight.SeverityWarn]),
			strconv.Itoa(c[preflight.SeverityFail]),
		})
	}
	aligns := []termui.Alignment{termui.AlignLeft, termui.AlignRight, termui.AlignRight, termui.AlignRight, termui.AlignRight}
	if table := termui.RenderTable([]string{"Category", "OK", "Info", "Warn", "Fail"}, rows, aligns); table != "" {
		fmt.Fprintln(r.out, table)
	}

	fmt.Fprintln(r.out, strings.Repeat("=", bannerWidth))
	if summary.Failures > 0 {
		fmt.Fprintln(r.out, termui.Colorize(termui.StatusFail,
			fmt.Sprintf("%d issue(s) found; fix these before running feature extraction", summary.Failures), r.colorize))
	} else {
		fmt.Fprintln(r.out, termui.Colorize(termui.StatusOK, "All checks passed!", r.colorize))
	}
	if summary.Warnings > 0 {
		fmt.Fprintln(r.out, termui.Colorize(termui.StatusWarn,
			fmt.Sprintf("%d warning(s); extraction can proceed", summary.Warnings), r.colorize))
	}
}

func statusKind(severity preflight.Severity) termui.StatusKind {
	switch severity {
	case preflight.SeverityOK:
		return termui.StatusOK
	case preflight.SeverityWarn:
		return termui.StatusWarn
	case preflight.SeverityFail:
		return termui.StatusFail
	default:
		return termui.StatusInfo
	}
}
