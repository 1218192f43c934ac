package loader

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("astsync.loader")
	meter  = otel.Meter("astsync.loader")
)

var (
	loadLatency  metric.Float64Histogram
	filesLoaded  metric.Int64Counter
	filesSkipped metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		loadLatency, err = meter.Float64Histogram(
			"loader_assemble_duration_seconds",
			metric.WithDescription("Duration of parsing, grouping and linking a snapshot"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filesLoaded, err = meter.Int64Counter(
			"loader_files_total",
			metric.WithDescription("Files converted into snapshots"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filesSkipped, err = meter.Int64Counter(
			"loader_files_skipped_total",
			metric.WithDescription("Files left out because they did not parse"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordLoad(ctx context.Context, duration time.Duration, files int, err error) {
	if initMetrics() != nil {
		return
	}
	loadLatency.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Bool("success", err == nil)))
	if err == nil {
		filesLoaded.Add(ctx, int64(files))
	}
}

func recordSkip(ctx context.Context) {
	if initMetrics() != nil {
		return
	}
	filesSkipped.Add(ctx, 1)
}

func startLoadSpan(ctx context.Context, files int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "loader.Assemble",
		trace.WithAttributes(attribute.Int("loader.sources", files)),
	)
}
