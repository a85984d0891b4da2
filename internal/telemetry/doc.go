// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry exports benchmark results and run traces to external
// observability backends.
//
// # Sinks
//
// PrometheusSink and InfluxSink implement benchmark.Recorder, so they can be
// attached to a Runner next to the CSV and console recorders through a
// benchmark.MultiRecorder:
//
//   - PrometheusSink keeps a private registry of per-strategy gauges and a
//     lookup latency histogram. WriteTextfile dumps it in the text format
//     read by the node-exporter textfile collector.
//   - InfluxSink writes one point per size summary to an InfluxDB 2.x
//     bucket using the blocking write API.
//
// # Tracing
//
// InitTracing installs an OpenTelemetry TracerProvider. The benchmark
// runner already creates spans through otel.Tracer(); without InitTracing
// those spans go to the global no-op provider.
//
//	shutdown, err := telemetry.InitTracing(ctx, telemetry.DefaultTracingConfig())
//	if err != nil {
//	    return fmt.Errorf("init tracing: %w", err)
//	}
//	defer shutdown(context.Background())
//
// # Thread Safety
//
// Both sinks are safe for concurrent use. InitTracing should be called once
// at startup.
package telemetry
