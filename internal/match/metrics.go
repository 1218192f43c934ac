package match

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
	tracer = otel.Tracer("astsync.match")
	meter  = otel.Meter("astsync.match")
)

var (
	passLatency   metric.Float64Histogram
	pairsMatched  metric.Int64Histogram
	passFailures  metric.Int64Counter
	ruleFallthrus metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		passLatency, err = meter.Float64Histogram(
			"match_pass_duration_seconds",
			metric.WithDescription("Duration of hierarchical matching passes"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		pairsMatched, err = meter.Int64Histogram(
			"match_pairs",
			metric.WithDescription("Number of node pairs produced per pass"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		passFailures, err = meter.Int64Counter(
			"match_pass_failures_total",
			metric.WithDescription("Passes aborted by an internal error"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		ruleFallthrus, err = meter.Int64Counter(
			"match_rule_fallthrough_total",
			metric.WithDescription("Node pairs no rule applied to"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordPass(ctx context.Context, duration time.Duration, pairs int, err error) {
	if initMetrics() != nil {
		return
	}
	passLatency.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Bool("success", err == nil)))
	if err != nil {
		passFailures.Add(ctx, 1)
		return
	}
	pairsMatched.Record(ctx, int64(pairs))
}

func recordFallthrough(kind string) {
	if initMetrics() != nil {
		return
	}
	ruleFallthrus.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", kind)))
}

func startPassSpan(ctx context.Context, oldNodes, newNodes int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "match.Driver.Run",
		trace.WithAttributes(
			attribute.Int("match.old_nodes", oldNodes),
			attribute.Int("match.new_nodes", newNodes),
		),
	)
}
