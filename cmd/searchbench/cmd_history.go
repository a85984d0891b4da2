// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/searchbench/internal/benchmark"
	"github.com/AleutianAI/searchbench/internal/report"
	"github.com/AleutianAI/searchbench/internal/store"
)

func newHistoryCmd(a *app) *cobra.Command {
	var historyDir string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect archived benchmark runs",
	}
	cmd.PersistentFlags().StringVar(&historyDir, "history-dir", "", "run history database directory (default from config)")

	openStore := func(cmd *cobra.Command) (*store.Store, error) {
		if cmd.Flags().Changed("history-dir") {
			a.cfg.History.Dir = historyDir
		}
		scfg := store.DefaultConfig(a.cfg.HistoryDir())
		scfg.Logger = a.logger.Slog()
		return store.Open(scfg)
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List archived runs, newest first",
		Args:  cobra.NoArgs,
		RunE: a.action(func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(a.stdout, "No archived runs.")
				return nil
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tSTARTED\tDURATION\tSTRATEGIES\tSIZES")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					r.RunID,
					r.StartedAt.Local().Format(time.DateTime),
					r.Duration.Round(time.Millisecond),
					strings.Join(r.Strategies, ","),
					sizeRange(r),
				)
			}
			return tw.Flush()
		}),
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list (0 = all)")

	var asJSON bool
	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print an archived run (id prefixes are accepted)",
		Args:  cobra.ExactArgs(1),
		RunE: a.action(func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			rep, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return report.WriteJSON(a.stdout, rep)
			}

			console := report.NewConsoleReporterStyled(a.stdout, a.styled())
			fmt.Fprintf(a.stdout, "Run %s started %s (seed %d)\n",
				rep.RunID, rep.StartedAt.Local().Format(time.DateTime), rep.Config.Seed)
			for _, s := range rep.Summaries {
				if err := console.RecordSummary(s); err != nil {
					return err
				}
			}
			return console.PrintComparisons(rep.Comparisons)
		}),
	}
	show.Flags().BoolVar(&asJSON, "json", false, "print the full JSON report")

	del := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete an archived run",
		Args:  cobra.ExactArgs(1),
		RunE: a.action(func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Deleted %s\n", args[0])
			return nil
		}),
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

// sizeRange renders the smallest and largest size in a report.
func sizeRange(r *benchmark.Report) string {
	if len(r.Summaries) == 0 {
		return "-"
	}
	lo, hi := r.Summaries[0].Size, r.Summaries[0].Size
	for _, s := range r.Summaries[1:] {
		lo = min(lo, s.Size)
		hi = max(hi, s.Size)
	}
	if lo == hi {
		return fmt.Sprint(lo)
	}
	return fmt.Sprintf("%d-%d", lo, hi)
}
