package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the Prometheus instruments exposed by a sandboxd harness
// process. Grounded on the teacher's internal/adapter/inbound/http/metrics.go
// (promauto-registered CounterVec/Gauge), narrowed to three instruments:
// per-verdict evaluation counts, the NLISTS diagnostic (spec.md §5, §6),
// and a script-error counter.
//
// otelEvaluations mirrors EvaluationsTotal through the OTel metrics API
// (NewMeterProvider's instrument) whenever a Meter is attached via
// SetMeter; it is nil otherwise, so a harness that never starts a meter
// provider (the common case: Prometheus alone covers /metrics) pays
// nothing for it.
type Metrics struct {
	EvaluationsTotal *prometheus.CounterVec
	LivePolicyStacks prometheus.Gauge
	ScriptErrors     *prometheus.CounterVec

	otelEvaluations metric.Int64Counter
}

// Inc implements evaluator.EvalCounter.
func (m *Metrics) Inc(scope, verdict string) {
	m.EvaluationsTotal.WithLabelValues(scope, verdict).Inc()
	if m.otelEvaluations != nil {
		m.otelEvaluations.Add(context.Background(), 1,
			metric.WithAttributes(
				attribute.String("scope", scope),
				attribute.String("verdict", verdict),
			),
		)
	}
}

// SetMeter attaches an OTel meter (from NewMeterProvider) so Inc also
// records through the OpenTelemetry metrics pipeline, not just Prometheus.
// Returns an error only if instrument creation itself fails.
func (m *Metrics) SetMeter(meter metric.Meter) error {
	counter, err := meter.Int64Counter(
		"sandboxd.evaluations",
		metric.WithDescription("Total authorization evaluations by verdict."),
	)
	if err != nil {
		return err
	}
	m.otelEvaluations = counter
	return nil
}

// NewMetrics registers and returns the evaluator's Prometheus instruments
// against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		EvaluationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sandboxd",
				Name:      "evaluations_total",
				Help:      "Total authorization evaluations by verdict.",
			},
			[]string{"scope", "verdict"},
		),
		LivePolicyStacks: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sandboxd",
				Name:      "live_policy_stacks",
				Help:      "Number of credentials currently carrying an attached policy stack (NLISTS).",
			},
		),
		ScriptErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sandboxd",
				Name:      "script_errors_total",
				Help:      "Script load/runtime/callback errors by phase.",
			},
			[]string{"phase"},
		),
	}
}
