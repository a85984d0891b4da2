// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/searchbench/internal/benchmark"
)

// Palette - deep ocean teals.
var (
	colorTealBright = lipgloss.Color("#2CD7C7")
	colorTealDeep   = lipgloss.Color("#16858E")
	colorSlate      = lipgloss.Color("#2C4A54")
	colorWarning    = lipgloss.Color("#F4D03F")
)

type styles struct {
	title  lipgloss.Style
	label  lipgloss.Style
	muted  lipgloss.Style
	winner lipgloss.Style
	warn   lipgloss.Style
	box    lipgloss.Style
}

func newStyles(enabled bool) styles {
	if !enabled {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain}
	}
	return styles{
		title:  lipgloss.NewStyle().Bold(true).Foreground(colorTealBright),
		label:  lipgloss.NewStyle().Foreground(colorTealDeep),
		muted:  lipgloss.NewStyle().Foreground(colorSlate),
		winner: lipgloss.NewStyle().Bold(true).Foreground(colorTealBright),
		warn:   lipgloss.NewStyle().Foreground(colorWarning),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorTealDeep).
			Padding(0, 1),
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ConsoleReporter prints human-readable results as they arrive.
//
// Description:
//
//	ConsoleReporter implements benchmark.Recorder. Every size summary is
//	printed as soon as it is recorded; PrintComparisons and Done print the
//	end-of-run tables. Output is styled with lipgloss when writing to a
//	terminal and plain otherwise.
//
// Thread Safety: Safe for concurrent use.
type ConsoleReporter struct {
	mu     sync.Mutex
	w      io.Writer
	styles styles
}

// NewConsoleReporter creates a reporter writing to w, styled only when w
// is a terminal.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return NewConsoleReporterStyled(w, IsTerminal(w))
}

// NewConsoleReporterStyled creates a reporter with styling forced on or
// off.
func NewConsoleReporterStyled(w io.Writer, styled bool) *ConsoleReporter {
	return &ConsoleReporter{w: w, styles: newStyles(styled)}
}

// RecordTrial implements benchmark.Recorder and does nothing.
func (c *ConsoleReporter) RecordTrial(benchmark.Trial) error { return nil }

// RecordSummary prints one size block.
func (c *ConsoleReporter) RecordSummary(s *benchmark.SizeSummary) error {
	var b strings.Builder
	st := c.styles

	fmt.Fprintf(&b, "%s %s\n",
		st.title.Render(s.Strategy),
		st.muted.Render(fmt.Sprintf("size=%d", s.Size)),
	)
	fmt.Fprintf(&b, "  %s mean %.2f  stddev %.2f\n",
		st.label.Render("comparisons:"), s.Comparisons.Mean, s.Comparisons.StdDev)
	fmt.Fprintf(&b, "  %s mean %.9f  stddev %.9f\n",
		st.label.Render("time (s):   "), s.Seconds.Mean, s.Seconds.StdDev)
	fmt.Fprintf(&b, "  %s mean %.0f  stddev %.0f\n",
		st.label.Render("memory (B): "), s.Memory.Mean, s.Memory.StdDev)
	fmt.Fprintf(&b, "  %s %d/%d (%.1f%%)\n",
		st.label.Render("found:      "), s.Found, s.Trials, 100*s.FoundRate)

	if wc := s.WorstCase; wc != nil {
		fmt.Fprintf(&b, "  %s key=%d runs=%d\n",
			st.warn.Render("worst case:"), wc.Key, wc.Runs)
		fmt.Fprintf(&b, "    %s mean %.2f  stddev %.2f\n",
			st.label.Render("comparisons:"), wc.Comparisons.Mean, wc.Comparisons.StdDev)
		fmt.Fprintf(&b, "    %s mean %.9f  stddev %.9f\n",
			st.label.Render("time (s):   "), wc.Seconds.Mean, wc.Seconds.StdDev)
		fmt.Fprintf(&b, "    %s mean %.0f  stddev %.0f\n",
			st.label.Render("memory (B): "), s.Memory.Mean, s.Memory.StdDev)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.w, b.String())
	return err
}

// PrintComparisons prints one ranking line per compared size.
func (c *ConsoleReporter) PrintComparisons(comparisons []benchmark.ComparisonResult) error {
	if len(comparisons) == 0 {
		return nil
	}
	st := c.styles

	var b strings.Builder
	for i, cmp := range comparisons {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "size %-9d ", cmp.Size)
		for j, name := range cmp.Ranking {
			if j > 0 {
				b.WriteString(" < ")
			}
			if name == cmp.Winner {
				b.WriteString(st.winner.Render(name))
			} else {
				b.WriteString(name)
			}
		}
		fmt.Fprintf(&b, "  %s",
			st.muted.Render(fmt.Sprintf("%.1fx p=%.4f d=%s", cmp.Speedup, cmp.PValue, cmp.EffectSizeCategory)))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, st.box.Render(b.String()))
	return err
}

// Done prints the closing line naming where results were written.
func (c *ConsoleReporter) Done(report *benchmark.Report, csvPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintf(c.w, "%s %s\n",
		c.styles.title.Render(fmt.Sprintf("Results saved to %s", csvPath)),
		c.styles.muted.Render(fmt.Sprintf("(run %s, %s)", report.RunID, report.Duration.Round(time.Millisecond))),
	)
	return err
}
