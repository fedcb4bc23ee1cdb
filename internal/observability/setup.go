package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentation = "github.com/iamwavecut/phishguard"

var (
	// Logger receives the enforcement audit trail.
	Logger = zap.NewNop()

	Registry = prometheus.NewRegistry()

	pipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishguard_pipeline_runs_total",
			Help: "Pipeline runs by resulting visibility",
		},
		[]string{"visibility"},
	)

	reputationLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishguard_reputation_lookups_total",
			Help: "Reputation lookups by artifact kind and final state",
		},
		[]string{"kind", "state"},
	)

	riskVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishguard_risk_verdicts_total",
			Help: "Risk classifier verdicts by category",
		},
		[]string{"category"},
	)

	pipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "phishguard_pipeline_duration_seconds",
			Help:    "Time spent in one escalated pipeline run",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		pipelineRuns,
		reputationLookups,
		riskVerdicts,
		pipelineDuration,
	)
}

// Init installs the production audit logger and the tracer provider.
// The returned function flushes both.
func Init(context.Context) (func(context.Context) error, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	Logger = logger

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		// stderr sync fails with EINVAL on some platforms.
		_ = logger.Sync()
		return tp.Shutdown(ctx)
	}, nil
}

func Tracer() trace.Tracer {
	return otel.Tracer(instrumentation)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

func RecordPipelineRun(visibility string) {
	pipelineRuns.WithLabelValues(visibility).Inc()
}

func RecordReputation(kind, state string) {
	reputationLookups.WithLabelValues(kind, state).Inc()
}

func RecordRiskVerdict(category string) {
	riskVerdicts.WithLabelValues(category).Inc()
}

// StartPipeline returns a function observing the elapsed run time.
func StartPipeline() func() {
	timer := prometheus.NewTimer(pipelineDuration)
	return func() {
		timer.ObserveDuration()
	}
}
