// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the searchbench.yaml run configuration.
//
// A file only needs the keys it changes; everything else keeps the value
// from Default(). Command-line flags are applied on top of the loaded file
// by the CLI.
package config

import (
	"slices"
	"time"

	"github.com/AleutianAI/searchbench/internal/benchmark"
	"github.com/AleutianAI/searchbench/internal/telemetry"
	"github.com/AleutianAI/searchbench/pkg/logging"
)

// DefaultFileName is the configuration file looked up in the working
// directory when no path is given.
const DefaultFileName = "searchbench.yaml"

// RedactedValue replaces secrets in printed configurations.
const RedactedValue = "<redacted>"

// Config is the top level of searchbench.yaml.
type Config struct {
	// Strategies limits the run to these strategy names. Empty runs all.
	Strategies []string        `yaml:"strategies,omitempty" validate:"dive,required"`
	Benchmark  BenchmarkConfig `yaml:"benchmark"`
	Output     OutputConfig    `yaml:"output"`
	Logging    LoggingConfig   `yaml:"logging"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
	History    HistoryConfig   `yaml:"history"`
}

// BenchmarkConfig mirrors benchmark.Config with YAML names.
type BenchmarkConfig struct {
	MinSize          int           `yaml:"min_size" validate:"gte=1,lte=1073741824"`
	MaxSize          int           `yaml:"max_size" validate:"gtefield=MinSize,lte=1073741824"`
	SizeStep         int           `yaml:"size_step" validate:"gte=1"`
	Sizes            []int         `yaml:"sizes,omitempty" validate:"dive,gte=1,lte=1073741824"`
	Searches         int           `yaml:"searches" validate:"gte=1"`
	Executions       int           `yaml:"executions" validate:"gte=1"`
	WorstCaseRuns    int           `yaml:"worst_case_runs" validate:"gte=0"`
	MaxKey           uint32        `yaml:"max_key"`
	Seed             uint64        `yaml:"seed"`
	Warmup           int           `yaml:"warmup" validate:"gte=0"`
	CollectMemory    bool          `yaml:"collect_memory"`
	RemoveOutliers   bool          `yaml:"remove_outliers"`
	OutlierThreshold float64       `yaml:"outlier_threshold" validate:"gt=0"`
	Parallelism      int           `yaml:"parallelism" validate:"gte=1,lte=64"`
	Timeout          time.Duration `yaml:"timeout" validate:"gte=0"`
}

// OutputConfig names the files a run writes. Empty paths are skipped,
// except TrialCSV which is always written.
type OutputConfig struct {
	TrialCSV    string `yaml:"trial_csv" validate:"required"`
	SummaryCSV  string `yaml:"summary_csv,omitempty"`
	JSON        string `yaml:"json,omitempty"`
	MetricsFile string `yaml:"metrics_file,omitempty"`

	// Color is "auto", "always" or "never".
	Color string `yaml:"color" validate:"oneof=auto always never"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

// TelemetryConfig configures tracing and the InfluxDB export.
type TelemetryConfig struct {
	// Trace is the span exporter: "none" or "stdout".
	Trace string `yaml:"trace" validate:"oneof=none stdout"`

	// TraceFile receives stdout-exporter spans. Empty means stderr.
	TraceFile string `yaml:"trace_file,omitempty"`

	Influx InfluxConfig `yaml:"influx"`
}

// InfluxConfig enables the InfluxDB sink when URL is set.
type InfluxConfig struct {
	URL     string        `yaml:"url,omitempty" validate:"omitempty,url"`
	Token   string        `yaml:"token,omitempty"`
	Org     string        `yaml:"org,omitempty"`
	Bucket  string        `yaml:"bucket,omitempty"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// HistoryConfig controls the BadgerDB run archive.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir" validate:"required_if=Enabled true"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	b := benchmark.DefaultConfig()
	return &Config{
		Benchmark: BenchmarkConfig{
			MinSize:          b.MinSize,
			MaxSize:          b.MaxSize,
			SizeStep:         b.SizeStep,
			Searches:         b.Searches,
			Executions:       b.Executions,
			WorstCaseRuns:    b.WorstCaseRuns,
			MaxKey:           b.MaxKey,
			Seed:             b.Seed,
			Warmup:           b.Warmup,
			CollectMemory:    b.CollectMemory,
			RemoveOutliers:   b.RemoveOutliers,
			OutlierThreshold: b.OutlierThreshold,
			Parallelism:      b.Parallelism,
			Timeout:          b.Timeout,
		},
		Output: OutputConfig{
			TrialCSV: "search_results.csv",
			Color:    "auto",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Trace:  telemetry.ExporterNone,
			Influx: InfluxConfig{Timeout: 10 * time.Second},
		},
		History: HistoryConfig{
			Enabled: true,
			Dir:     "~/.searchbench/history",
		},
	}
}

// BenchmarkConfig converts the file section into the runner's Config.
func (c *Config) BenchmarkConfig() benchmark.Config {
	b := c.Benchmark
	out := benchmark.Config{
		MinSize:          b.MinSize,
		MaxSize:          b.MaxSize,
		SizeStep:         b.SizeStep,
		Searches:         b.Searches,
		Executions:       b.Executions,
		WorstCaseRuns:    b.WorstCaseRuns,
		MaxKey:           b.MaxKey,
		Seed:             b.Seed,
		Warmup:           b.Warmup,
		CollectMemory:    b.CollectMemory,
		RemoveOutliers:   b.RemoveOutliers,
		OutlierThreshold: b.OutlierThreshold,
		Parallelism:      b.Parallelism,
		Timeout:          b.Timeout,
	}
	if len(b.Sizes) > 0 {
		out.Sizes = append([]int(nil), b.Sizes...)
	}
	return out
}

// BenchmarkOptions returns the run options equivalent to the file.
//
// Example:
//
//	report, err := runner.Run(ctx, cfg.Strategies, cfg.BenchmarkOptions()...)
func (c *Config) BenchmarkOptions() []benchmark.RunOption {
	return []benchmark.RunOption{benchmark.WithConfig(c.BenchmarkConfig())}
}

// LoggerConfig converts the logging section. Level was checked by
// Validate, so a parse failure falls back to info.
func (c *Config) LoggerConfig(service string) logging.Config {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.Config{
		Level:   level,
		LogDir:  c.Logging.Dir,
		Service: service,
		JSON:    c.Logging.JSON,
	}
}

// InfluxConfig converts the influx section, filling gaps from the
// INFLUXDB_* environment variables.
func (c *Config) InfluxConfig() telemetry.InfluxConfig {
	i := c.Telemetry.Influx
	return telemetry.InfluxConfigFromEnv(telemetry.InfluxConfig{
		URL:     i.URL,
		Token:   i.Token,
		Org:     i.Org,
		Bucket:  i.Bucket,
		Timeout: i.Timeout,
	})
}

// HistoryDir returns the history directory with ~ expanded.
func (c *Config) HistoryDir() string {
	return logging.ExpandPath(c.History.Dir)
}

// Redacted returns a copy safe to print: secrets are replaced with
// RedactedValue. The receiver is not modified.
func (c *Config) Redacted() *Config {
	out := *c
	out.Strategies = slices.Clone(c.Strategies)
	out.Benchmark.Sizes = slices.Clone(c.Benchmark.Sizes)
	if out.Telemetry.Influx.Token != "" {
		out.Telemetry.Influx.Token = RedactedValue
	}
	return &out
}
