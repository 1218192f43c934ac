package impact

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("astsync.impact")

var (
	buildLatency metric.Float64Histogram
	markedBlocks metric.Int64Histogram
	lookups      metric.Int64Counter
	purges       metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"impact_build_duration_seconds",
			metric.WithDescription("Duration of impact analyses"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		markedBlocks, err = meter.Int64Histogram(
			"impact_marked_blocks",
			metric.WithDescription("Blocks marked for reconstruction per analysis"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		lookups, err = meter.Int64Counter(
			"impact_registry_lookups_total",
			metric.WithDescription("Registry lookups by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		purges, err = meter.Int64Counter(
			"impact_registry_purges_total",
			metric.WithDescription("Registry purges caused by changed resources"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordBuild(duration time.Duration, marked int, err error) {
	if initMetrics() != nil {
		return
	}
	ctx := context.Background()
	buildLatency.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Bool("success", err == nil)))
	if err == nil {
		markedBlocks.Record(ctx, int64(marked))
	}
}

func recordLookup(hit bool) {
	if initMetrics() != nil {
		return
	}
	lookups.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Bool("hit", hit)))
}

func recordPurge() {
	if initMetrics() != nil {
		return
	}
	purges.Add(context.Background(), 1)
}
