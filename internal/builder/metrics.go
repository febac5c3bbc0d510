package builder

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/phobologic/cppmodule/internal/module"
)

var (
	tracer = otel.Tracer("cppmodule.builder")
	meter  = otel.Meter("cppmodule.builder")
)

var (
	buildLatency     metric.Float64Histogram
	nodesVisited     metric.Int64Counter
	bucketEntries    metric.Int64Counter
	unsupportedKinds metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"module_build_duration_seconds",
			metric.WithDescription("Duration of module builds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesVisited, err = meter.Int64Counter(
			"module_build_nodes_visited_total",
			metric.WithDescription("Declarations dispatched to a handler"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		bucketEntries, err = meter.Int64Counter(
			"module_build_bucket_entries_total",
			metric.WithDescription("Entries appended to module buckets"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		unsupportedKinds, err = meter.Int64Counter(
			"module_build_unsupported_total",
			metric.WithDescription("Declarations dropped for unsupported kinds"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// stats are per-run counters reported once the run ends.
type stats struct {
	visited     int
	unsupported int
}

func startBuildSpan(ctx context.Context, name string, graphSize int, templates bool) (context.Context, trace.Span) {
	return tracer.Start(ctx, "builder.Build",
		trace.WithAttributes(
			attribute.String("module.name", name),
			attribute.Int("module.graph_size", graphSize),
			attribute.Bool("module.templates", templates),
		),
	)
}

func recordBuild(ctx context.Context, span trace.Span, duration time.Duration, st stats, c module.Counts, err error) {
	span.SetAttributes(
		attribute.Int("module.visited", st.visited),
		attribute.Int("module.unsupported", st.unsupported),
		attribute.Int("module.declarations", c.Declarations),
		attribute.Int("module.definitions", c.Definitions),
		attribute.Int("module.template_declarations", c.TemplateDeclarations),
		attribute.Int("module.template_definitions", c.TemplateDefinitions),
		attribute.Int("module.asserts", c.Asserts),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	buildLatency.Record(ctx, duration.Seconds(), attrs)
	nodesVisited.Add(ctx, int64(st.visited))
	bucketEntries.Add(ctx, int64(c.Total()))
	unsupportedKinds.Add(ctx, int64(st.unsupported))
}
