// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AleutianAI/searchbench/internal/benchmark"
)

// InfluxMeasurement is the measurement name for size summaries.
const InfluxMeasurement = "search_benchmark"

// ErrInfluxDisabled is returned by NewInfluxSink when no URL is configured.
var ErrInfluxDisabled = errors.New("telemetry: influx url not set")

// InfluxConfig addresses an InfluxDB 2.x bucket.
type InfluxConfig struct {
	URL    string `yaml:"url" json:"url"`
	Token  string `yaml:"token" json:"-"`
	Org    string `yaml:"org" json:"org"`
	Bucket string `yaml:"bucket" json:"bucket"`

	// Timeout bounds each point write. Zero means no extra bound.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// InfluxConfigFromEnv fills unset fields from INFLUXDB_URL, INFLUXDB_TOKEN,
// INFLUXDB_ORG and INFLUXDB_BUCKET. Org and bucket fall back to
// "searchbench".
func InfluxConfigFromEnv(cfg InfluxConfig) InfluxConfig {
	if cfg.URL == "" {
		cfg.URL = os.Getenv("INFLUXDB_URL")
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("INFLUXDB_TOKEN")
	}
	if cfg.Org == "" {
		cfg.Org = os.Getenv("INFLUXDB_ORG")
	}
	if cfg.Org == "" {
		cfg.Org = "searchbench"
	}
	if cfg.Bucket == "" {
		cfg.Bucket = os.Getenv("INFLUXDB_BUCKET")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "searchbench"
	}
	return cfg
}

// InfluxSink writes one point per size summary to InfluxDB.
//
// Trials are not written; a million-row run would dominate the bucket.
//
// Thread Safety: Safe for concurrent use.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	ctx      context.Context
	timeout  time.Duration
}

// NewInfluxSink creates a sink for cfg.
//
// Inputs:
//   - ctx: Parent context for every write. Cancelling it aborts writes.
//   - cfg: Connection settings. URL is required.
//
// Outputs:
//   - *InfluxSink: Caller must call Close().
//   - error: ErrInfluxDisabled when cfg.URL is empty.
func NewInfluxSink(ctx context.Context, cfg InfluxConfig) (*InfluxSink, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if cfg.URL == "" {
		return nil, ErrInfluxDisabled
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		ctx:      ctx,
		timeout:  cfg.Timeout,
	}, nil
}

// RecordTrial implements benchmark.Recorder. Trials are not exported.
func (s *InfluxSink) RecordTrial(benchmark.Trial) error { return nil }

// RecordSummary implements benchmark.Recorder.
func (s *InfluxSink) RecordSummary(summary *benchmark.SizeSummary) error {
	if summary == nil {
		return nil
	}
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.writeAPI.WritePoint(ctx, SummaryPoint(summary, time.Now())); err != nil {
		return fmt.Errorf("writing %s size %d to influx: %w", summary.Strategy, summary.Size, err)
	}
	return nil
}

// Close releases the client's resources.
func (s *InfluxSink) Close() {
	s.client.Close()
}

// SummaryPoint converts a size summary into an InfluxDB point.
func SummaryPoint(s *benchmark.SizeSummary, ts time.Time) *write.Point {
	p := influxdb2.NewPointWithMeasurement(InfluxMeasurement).
		AddTag("strategy", s.Strategy).
		AddTag("size", strconv.Itoa(s.Size)).
		AddTag("run_id", s.RunID).
		AddField("trials", s.Trials).
		AddField("found", s.Found).
		AddField("found_rate", s.FoundRate).
		AddField("comparisons_mean", s.Comparisons.Mean).
		AddField("comparisons_stddev", s.Comparisons.StdDev).
		AddField("seconds_mean", s.Seconds.Mean).
		AddField("seconds_stddev", s.Seconds.StdDev).
		AddField("memory_bytes", s.Memory.Mean).
		AddField("p50_ns", s.Latency.P50.Nanoseconds()).
		AddField("p99_ns", s.Latency.P99.Nanoseconds()).
		SetTime(ts)

	if s.WorstCase != nil {
		p.AddField("worst_case_comparisons", s.WorstCase.Comparisons.Mean).
			AddField("worst_case_seconds", s.WorstCase.Seconds.Mean)
	}
	return p
}
