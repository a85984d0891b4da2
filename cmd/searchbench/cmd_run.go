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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/searchbench/internal/benchmark"
	"github.com/AleutianAI/searchbench/internal/config"
	"github.com/AleutianAI/searchbench/internal/report"
	"github.com/AleutianAI/searchbench/internal/store"
	"github.com/AleutianAI/searchbench/internal/telemetry"
)

// runFlags holds run-command flag values. Only flags the user actually set
// override the configuration file.
type runFlags struct {
	minSize          int
	maxSize          int
	step             int
	sizes            []int
	searches         int
	executions       int
	worstCase        int
	maxKey           uint32
	seed             uint64
	warmup           int
	memory           bool
	removeOutliers   bool
	outlierThreshold float64
	parallel         int
	timeout          time.Duration

	out         string
	summaryOut  string
	jsonOut     string
	metricsFile string
	trace       string
	color       string

	influxURL    string
	influxToken  string
	influxOrg    string
	influxBucket string

	historyDir string
	noHistory  bool
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags
	d := config.Default()

	cmd := &cobra.Command{
		Use:   "run [strategy...]",
		Short: "Run the benchmark sweep",
		Long: `Run benchmarks every named strategy (all registered strategies when none
are given) over each dataset size and writes one CSV row per lookup.

Strategies: linear-array, linear-list, binary-array, bst.`,
		Example: `  searchbench run
  searchbench run bst binary-array --sizes 1000,10000 --searches 500
  searchbench run --seed 42 --json report.json --metrics-file searchbench.prom`,
		RunE: a.action(func(cmd *cobra.Command, args []string) error {
			if err := applyRunFlags(cmd, a.cfg, &f); err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = a.cfg.Strategies
			}
			return a.runBenchmark(cmd.Context(), names)
		}),
	}

	b := d.Benchmark
	fl := cmd.Flags()
	fl.IntVar(&f.minSize, "min-size", b.MinSize, "first dataset size")
	fl.IntVar(&f.maxSize, "max-size", b.MaxSize, "last dataset size (inclusive)")
	fl.IntVar(&f.step, "step", b.SizeStep, "size increment")
	fl.IntSliceVar(&f.sizes, "sizes", nil, "explicit dataset sizes (overrides the range)")
	fl.IntVarP(&f.searches, "searches", "s", b.Searches, "random-key lookups per execution")
	fl.IntVarP(&f.executions, "executions", "e", b.Executions, "dataset rebuilds per size")
	fl.IntVar(&f.worstCase, "worst-case", b.WorstCaseRuns, "absent-key lookups per size (0 disables)")
	fl.Uint32Var(&f.maxKey, "max-key", b.MaxKey, "inclusive upper bound for random keys (0 = dataset size)")
	fl.Uint64Var(&f.seed, "seed", b.Seed, "random seed (0 = time-based)")
	fl.IntVar(&f.warmup, "warmup", b.Warmup, "untimed lookups before measuring")
	fl.BoolVar(&f.memory, "memory", b.CollectMemory, "collect heap statistics per size")
	fl.BoolVar(&f.removeOutliers, "remove-outliers", b.RemoveOutliers, "drop IQR outliers from latency percentiles")
	fl.Float64Var(&f.outlierThreshold, "outlier-threshold", b.OutlierThreshold, "IQR multiplier for outlier removal")
	fl.IntVarP(&f.parallel, "parallel", "p", b.Parallelism, "strategies benchmarked concurrently")
	fl.DurationVar(&f.timeout, "timeout", b.Timeout, "abort the run after this long (0 = no limit)")

	fl.StringVarP(&f.out, "out", "o", d.Output.TrialCSV, "per-lookup CSV output file")
	fl.StringVar(&f.summaryOut, "summary-out", "", "per-size summary CSV output file")
	fl.StringVar(&f.jsonOut, "json", "", "full JSON report file (- for stdout)")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "Prometheus textfile output")
	fl.StringVar(&f.trace, "trace", "", "write OpenTelemetry spans to this file (- for stderr)")
	fl.StringVar(&f.color, "color", d.Output.Color, "styled output: auto, always, never")

	fl.StringVar(&f.influxURL, "influx-url", "", "InfluxDB URL (enables the InfluxDB export)")
	fl.StringVar(&f.influxToken, "influx-token", "", "InfluxDB API token")
	fl.StringVar(&f.influxOrg, "influx-org", "", "InfluxDB organization")
	fl.StringVar(&f.influxBucket, "influx-bucket", "", "InfluxDB bucket")

	fl.StringVar(&f.historyDir, "history-dir", d.History.Dir, "run history database directory")
	fl.BoolVar(&f.noHistory, "no-history", false, "do not archive this run")

	return cmd
}

// applyRunFlags copies every explicitly set flag into cfg and revalidates.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, f *runFlags) error {
	fl := cmd.Flags()
	b := &cfg.Benchmark
	set := fl.Changed

	if set("min-size") {
		b.MinSize = f.minSize
		b.Sizes = nil
	}
	if set("max-size") {
		b.MaxSize = f.maxSize
		b.Sizes = nil
	}
	if set("step") {
		b.SizeStep = f.step
		b.Sizes = nil
	}
	if set("sizes") {
		b.Sizes = f.sizes
	}
	if set("searches") {
		b.Searches = f.searches
	}
	if set("executions") {
		b.Executions = f.executions
	}
	if set("worst-case") {
		b.WorstCaseRuns = f.worstCase
	}
	if set("max-key") {
		b.MaxKey = f.maxKey
	}
	if set("seed") {
		b.Seed = f.seed
	}
	if set("warmup") {
		b.Warmup = f.warmup
	}
	if set("memory") {
		b.CollectMemory = f.memory
	}
	if set("remove-outliers") {
		b.RemoveOutliers = f.removeOutliers
	}
	if set("outlier-threshold") {
		b.OutlierThreshold = f.outlierThreshold
	}
	if set("parallel") {
		b.Parallelism = f.parallel
	}
	if set("timeout") {
		b.Timeout = f.timeout
	}

	if set("out") {
		cfg.Output.TrialCSV = f.out
	}
	if set("summary-out") {
		cfg.Output.SummaryCSV = f.summaryOut
	}
	if set("json") {
		cfg.Output.JSON = f.jsonOut
	}
	if set("metrics-file") {
		cfg.Output.MetricsFile = f.metricsFile
	}
	if set("color") {
		cfg.Output.Color = f.color
	}
	if set("trace") {
		cfg.Telemetry.Trace = telemetry.ExporterStdout
		cfg.Telemetry.TraceFile = f.trace
	}

	in := &cfg.Telemetry.Influx
	if set("influx-url") {
		in.URL = f.influxURL
	}
	if set("influx-token") {
		in.Token = f.influxToken
	}
	if set("influx-org") {
		in.Org = f.influxOrg
	}
	if set("influx-bucket") {
		in.Bucket = f.influxBucket
	}

	if set("history-dir") {
		cfg.History.Dir = f.historyDir
	}
	if f.noHistory {
		cfg.History.Enabled = false
	}

	return cfg.Validate()
}

// runBenchmark wires the recorders, runs the sweep and writes every
// configured output.
//
// Description:
//
//	The trial CSV is opened before anything runs so an unwritable path
//	fails fast. When the run is interrupted the partial report is still
//	flushed to every output except the history archive, and the
//	interruption is returned.
func (a *app) runBenchmark(ctx context.Context, names []string) (err error) {
	cfg := a.cfg
	logger := a.logger.Slog()

	shutdownTracing, err := a.initTracing(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if serr := shutdownTracing(context.Background()); serr != nil {
			logger.Warn("trace shutdown failed", slog.String("error", serr.Error()))
		}
	}()

	csvPath := cfg.Output.TrialCSV
	csvRec, err := report.CreateCSV(csvPath)
	if err != nil {
		return fmt.Errorf("opening trial CSV: %w", err)
	}
	defer func() {
		if cerr := csvRec.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing %s: %w", csvPath, cerr))
		}
	}()

	console := report.NewConsoleReporterStyled(a.stdout, a.styled())
	recorders := benchmark.MultiRecorder{csvRec, console}

	var prom *telemetry.PrometheusSink
	if cfg.Output.MetricsFile != "" {
		prom, err = telemetry.NewPrometheusSink(nil)
		if err != nil {
			return err
		}
		recorders = append(recorders, prom)
	}

	if ic := cfg.InfluxConfig(); ic.URL != "" {
		influx, ierr := telemetry.NewInfluxSink(ctx, ic)
		if ierr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", ierr)
		}
		defer influx.Close()
		recorders = append(recorders, influx)
		logger.Info("exporting summaries to InfluxDB",
			slog.String("url", ic.URL),
			slog.String("bucket", ic.Bucket),
		)
	}

	runner := benchmark.NewRunner(a.registry)
	runner.SetLogger(logger)
	runner.SetRecorder(recorders)

	rep, runErr := runner.Run(ctx, names, a.cfg.BenchmarkOptions()...)
	if rep == nil {
		return runErr
	}

	if perr := console.PrintComparisons(rep.Comparisons); perr != nil {
		return perr
	}
	if err := a.writeOutputs(rep, prom); err != nil {
		return errors.Join(runErr, err)
	}
	if runErr != nil {
		logger.Warn("benchmark interrupted, partial results written",
			slog.String("run_id", rep.RunID),
			slog.Int("summaries", len(rep.Summaries)),
		)
		return fmt.Errorf("benchmark interrupted: %w", runErr)
	}

	if cfg.History.Enabled {
		if herr := a.archive(ctx, rep); herr != nil {
			logger.Warn("run not archived", slog.String("error", herr.Error()))
		}
	}

	if ferr := csvRec.Flush(); ferr != nil {
		return fmt.Errorf("flushing %s: %w", csvPath, ferr)
	}
	return console.Done(rep, csvPath)
}

// writeOutputs writes the optional summary CSV, JSON report and metrics file.
func (a *app) writeOutputs(rep *benchmark.Report, prom *telemetry.PrometheusSink) error {
	out := a.cfg.Output
	if out.SummaryCSV != "" {
		if err := report.WriteSummariesFile(out.SummaryCSV, rep.Summaries); err != nil {
			return err
		}
	}
	if out.JSON != "" {
		if err := report.WriteJSONFile(out.JSON, rep); err != nil {
			return err
		}
	}
	if prom != nil {
		prom.RecordComparisons(rep.Comparisons)
		if err := prom.WriteTextfile(out.MetricsFile); err != nil {
			return err
		}
	}
	return nil
}

// archive saves the report to the history store.
func (a *app) archive(ctx context.Context, rep *benchmark.Report) error {
	scfg := store.DefaultConfig(a.cfg.HistoryDir())
	scfg.Logger = a.logger.Slog()
	st, err := store.Open(scfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Save(ctx, rep); err != nil {
		return err
	}
	a.logger.Debug("run archived", "run_id", rep.RunID, "dir", scfg.Path)
	return nil
}

// initTracing installs the span exporter selected by the configuration,
// or by OTEL_TRACES_EXPORTER when the configuration leaves tracing off.
func (a *app) initTracing(ctx context.Context) (func(context.Context) error, error) {
	tc := telemetry.DefaultTracingConfig()
	if t := a.cfg.Telemetry.Trace; t != "" && t != telemetry.ExporterNone {
		tc.Exporter = t
	}
	if tc.Exporter != telemetry.ExporterStdout {
		if tc.Exporter != telemetry.ExporterNone {
			a.logger.Warn("ignoring unsupported OTEL_TRACES_EXPORTER", "exporter", tc.Exporter)
			tc.Exporter = telemetry.ExporterNone
		}
		return telemetry.InitTracing(ctx, tc)
	}

	var file *os.File
	switch path := a.cfg.Telemetry.TraceFile; path {
	case "", "-":
		tc.Writer = a.stderr
	default:
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("opening trace file: %w", err)
		}
		file = f
		tc.Writer = f
	}

	shutdown, err := telemetry.InitTracing(ctx, tc)
	if err != nil {
		if file != nil {
			_ = file.Close()
		}
		return nil, err
	}
	if file == nil {
		return shutdown, nil
	}
	return func(ctx context.Context) error {
		return errors.Join(shutdown(ctx), file.Close())
	}, nil
}

// styled reports whether console output should carry ANSI styling.
func (a *app) styled() bool {
	switch a.cfg.Output.Color {
	case "always":
		return true
	case "never":
		return false
	default:
		return report.IsTerminal(a.stdout)
	}
}
