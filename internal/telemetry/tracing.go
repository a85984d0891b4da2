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
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("telemetry: nil context")

	// ErrUnknownExporter is returned for an unsupported exporter name.
	ErrUnknownExporter = errors.New("telemetry: unknown exporter type")
)

const (
	// ExporterStdout writes finished spans as JSON to TracingConfig.Writer.
	ExporterStdout = "stdout"

	// ExporterNone leaves the global no-op provider in place.
	ExporterNone = "none"
)

// TracingConfig controls trace export.
type TracingConfig struct {
	// ServiceName identifies this process in exported spans.
	ServiceName string `json:"service_name"`

	// ServiceVersion is the version string recorded on the resource.
	ServiceVersion string `json:"service_version"`

	// Exporter selects the span exporter: "stdout" or "none".
	Exporter string `json:"exporter"`

	// Writer receives stdout exporter output. Nil means os.Stderr.
	Writer io.Writer `json:"-"`

	// PrettyPrint indents exported spans.
	PrettyPrint bool `json:"pretty_print"`
}

// DefaultTracingConfig returns tracing disabled unless OTEL_TRACES_EXPORTER
// says otherwise.
func DefaultTracingConfig() TracingConfig {
	exporter := os.Getenv("OTEL_TRACES_EXPORTER")
	if exporter == "" {
		exporter = ExporterNone
	}
	return TracingConfig{
		ServiceName:    "searchbench",
		ServiceVersion: "1.0.0",
		Exporter:       exporter,
	}
}

// InitTracing installs a global TracerProvider for the configured exporter.
//
// Description:
//
//	With the "stdout" exporter every finished span is written as JSON to
//	cfg.Writer. With "none" nothing is installed and the returned shutdown
//	function is a no-op.
//
// Inputs:
//
//	ctx - Must not be nil.
//	cfg - Tracing configuration.
//
// Outputs:
//
//	shutdown - Flushes and stops the provider. Must be called on exit.
//	error - ErrNilContext, ErrUnknownExporter, or an exporter error.
//
// Thread Safety: Call once at application startup.
func InitTracing(ctx context.Context, cfg TracingConfig) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	noop := func(context.Context) error { return nil }

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "", ExporterNone:
		return noop, nil
	case ExporterStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
		if cfg.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		exporter, err = stdouttrace.New(opts...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
