// Package telemetry installs the OpenTelemetry providers used by the CLI.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Options selects what is exported. With neither Traces nor Metrics set the
// global no-op providers stay in place.
type Options struct {
	ServiceVersion string
	Traces         bool
	Metrics        bool
	// Writer receives the exported spans and metrics.
	Writer io.Writer
}

// Shutdown flushes and stops the installed providers.
type Shutdown func(context.Context) error

// Init installs stdout exporters according to opts. The returned Shutdown
// must be called before exit.
func Init(opts Options) (Shutdown, error) {
	var shutdownFuncs []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	if !opts.Traces && !opts.Metrics {
		return shutdown, nil
	}
	if opts.Writer == nil {
		return nil, fmt.Errorf("telemetry: no writer")
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", "astsync"),
		attribute.String("service.version", opts.ServiceVersion),
	)

	if opts.Traces {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(opts.Writer), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		otel.SetTracerProvider(tp)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	}

	if opts.Metrics {
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(opts.Writer), stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(mp)
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
	}

	return shutdown, nil
}
