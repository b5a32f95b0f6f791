// Package metrics exposes Prometheus metrics for the health subsystem.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lllypuk/sentinel/internal/health"
)

// HealthMetrics contains Prometheus metrics for monitoring dependency probes.
// It implements health.Observer.
type HealthMetrics struct {
	ChecksTotal    *prometheus.CounterVec
	CheckDuration  *prometheus.HistogramVec
	IndicatorUp    *prometheus.GaugeVec
	VerdictPass    prometheus.Gauge
	EvaluationsRun *prometheus.CounterVec
}

var _ health.Observer = (*HealthMetrics)(nil)

// NewHealthMetrics creates and registers health metrics with the given registerer.
func NewHealthMetrics(registerer prometheus.Registerer) *HealthMetrics {
	metrics := &HealthMetrics{
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_health_checks_total",
				Help: "Total number of indicator probes",
			},
			[]string{"indicator", "status"}, // status: up/down
		),
		CheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sentinel_health_check_duration_seconds",
				Help:    "Time taken by a single indicator probe",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 3, 5},
			},
			[]string{"indicator"},
		),
		IndicatorUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sentinel_health_indicator_up",
				Help: "1 if the indicator reported up on its last probe, 0 otherwise",
			},
			[]string{"indicator"},
		),
		VerdictPass: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_health_verdict_pass",
			Help: "1 if the last evaluation passed, 0 otherwise",
		}),
		EvaluationsRun: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_health_evaluations_total",
				Help: "Total number of evaluation runs",
			},
			[]string{"result"}, // result: pass/fail
		),
	}

	registerer.MustRegister(
		metrics.ChecksTotal,
		metrics.CheckDuration,
		metrics.IndicatorUp,
		metrics.VerdictPass,
		metrics.EvaluationsRun,
	)

	return metrics
}

// ObserveCheck implements health.Observer.
func (m *HealthMetrics) ObserveCheck(_ context.Context, check health.CheckResult) {
	m.ChecksTotal.WithLabelValues(check.Name, string(check.Status)).Inc()
	m.CheckDuration.WithLabelValues(check.Name).Observe(check.Duration.Seconds())

	up := 0.0
	if check.Status == health.StatusUp {
		up = 1
	}
	m.IndicatorUp.WithLabelValues(check.Name).Set(up)
}

// ObserveVerdict implements health.Observer.
//
// The system view evaluates its dependencies as optional registrations, so every
// evaluation feeds the counters, but only liveness runs carry required checks.
func (m *HealthMetrics) ObserveVerdict(_ context.Context, verdict health.Verdict) {
	if !hasRequired(verdict) {
		return
	}

	if verdict.Pass {
		m.VerdictPass.Set(1)
		m.EvaluationsRun.WithLabelValues("pass").Inc()
		return
	}
	m.VerdictPass.Set(0)
	m.EvaluationsRun.WithLabelValues("fail").Inc()
}

func hasRequired(verdict health.Verdict) bool {
	for _, c := range verdict.Checks {
		if c.Required {
			return true
		}
	}
	return false
}
