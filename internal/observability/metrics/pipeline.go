package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
)

// PipelineMetrics covers the consolidate-and-report pipeline. It is recorded
// at the binary edge; the core stays metrics-free.
type PipelineMetrics struct {
	registry *prometheus.Registry

	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	runInFlight prometheus.Gauge

	sourcesTotal           *prometheus.CounterVec
	evidenceTotal          *prometheus.CounterVec
	severityTotal          *prometheus.CounterVec
	judgeFallbacksTotal    *prometheus.CounterVec
	narratorFallbacksTotal *prometheus.CounterVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "report",
			Name:      "runs_total",
			Help:      "Total report runs by status.",
		},
		[]string{"service", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sentinel",
			Subsystem: "report",
			Name:      "run_duration_seconds",
			Help:      "Report run duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	runInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sentinel",
			Subsystem: "report",
			Name:      "runs_in_flight",
			Help:      "Number of report runs currently executing.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	sourcesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "report",
			Name:      "sources_total",
			Help:      "Total sources consolidated across report runs.",
		},
		[]string{"service"},
	)
	evidenceTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "report",
			Name:      "evidence_total",
			Help:      "Total evidence entries detected, by kind.",
		},
		[]string{"service", "kind"},
	)
	severityTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "report",
			Name:      "severity_total",
			Help:      "Total classified sources by severity.",
		},
		[]string{"service", "severity"},
	)
	judgeFallbacksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "report",
			Name:      "judge_fallbacks_total",
			Help:      "Total sources classified by the rules fallback after a judge failure.",
		},
		[]string{"service"},
	)
	narratorFallbacksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "report",
			Name:      "narrator_fallbacks_total",
			Help:      "Total report runs rendered deterministically, by reason.",
		},
		[]string{"service", "reason"},
	)

	registry.MustRegister(
		runsTotal,
		runDuration,
		runInFlight,
		sourcesTotal,
		evidenceTotal,
		severityTotal,
		judgeFallbacksTotal,
		narratorFallbacksTotal,
	)

	return &PipelineMetrics{
		registry:               registry,
		runsTotal:              runsTotal,
		runDuration:            runDuration,
		runInFlight:            runInFlight,
		sourcesTotal:           sourcesTotal,
		evidenceTotal:          evidenceTotal,
		severityTotal:          severityTotal,
		judgeFallbacksTotal:    judgeFallbacksTotal,
		narratorFallbacksTotal: narratorFallbacksTotal,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) StartRun() {
	m.runInFlight.Inc()
}

func (m *PipelineMetrics) FinishRun(service string, duration time.Duration, err error) {
	m.runInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.runsTotal.WithLabelValues(service, status).Inc()
	m.runDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

// RecordReport counts what a finished run produced: classified sources by
// severity, evidence entries by kind and the fallbacks taken along the way.
func (m *PipelineMetrics) RecordReport(service string, report *domain.Report) {
	if report == nil {
		return
	}

	m.sourcesTotal.WithLabelValues(service).Add(float64(len(report.Assessments)))

	for _, assessment := range report.Assessments {
		m.severityTotal.WithLabelValues(service, string(assessment.Severity)).Inc()
		for kind, count := range assessment.EvidenceCounts {
			if count > 0 {
				m.evidenceTotal.WithLabelValues(service, kind).Add(float64(count))
			}
		}
	}

	if report.JudgeFallbacks > 0 {
		m.judgeFallbacksTotal.WithLabelValues(service).Add(float64(report.JudgeFallbacks))
	}
	if report.Fallback {
		reason := report.FallbackReason
		if reason == "" {
			reason = "unknown"
		}
		m.narratorFallbacksTotal.WithLabelValues(service, reason).Inc()
	}
}
