// Copyright 2024 go-dataspace
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"errors"

	"github.com/go-dataspace/dsp-engine/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// nullExporter drops all spans, it keeps the span machinery running without a collector.
type nullExporter struct{}

func (nullExporter) ExportSpans(context.Context, []trace.ReadOnlySpan) error { return nil }
func (nullExporter) Shutdown(context.Context) error                         { return nil }

// setupOTelSDK installs the global propagator and tracer provider, the returned function
// flushes and stops them.
func setupOTelSDK(
	ctx context.Context, enabled bool, endpointURL string, serviceName string,
) (func(context.Context) error, error) {
	var shutdownFuncs []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracerProvider, err := newTracerProvider(ctx, enabled, endpointURL, serviceName)
	if err != nil {
		return nil, errors.Join(err, shutdown(ctx))
	}
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)
	return shutdown, nil
}

func newTracerProvider(
	ctx context.Context, enabled bool, endpointURL string, serviceName string,
) (*trace.TracerProvider, error) {
	logger := logging.Extract(ctx)
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, err
	}

	if !enabled {
		logger.Info("Setting null exporter for opentelemetry data")
		return trace.NewTracerProvider(
			trace.WithBatcher(nullExporter{}),
			trace.WithResource(res),
		), nil
	}

	logger.Info("Setting up opentelemetry HTTP exporter",
		"endpoint_url", endpointURL, "service_name", serviceName)
	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpointURL))
	if err != nil {
		return nil, err
	}
	return trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	), nil
}
