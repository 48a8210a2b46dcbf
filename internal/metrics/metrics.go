// Package metrics provides Prometheus metrics for photo scoring.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/anatolykoptev/photoverify"
)

// Error type label values.
const (
	ErrTypeNotFound      = "not_found"
	ErrTypeCorrupt       = "corrupt"
	ErrTypeClassMismatch = "class_mismatch"
	ErrTypeInference     = "inference"
	ErrTypeClosed        = "closed"
	ErrTypeOther         = "other"
)

// ScoreMetrics contains the Prometheus metrics fed by Verifier hooks.
type ScoreMetrics struct {
	scoresTotal      *prometheus.CounterVec
	scoreErrors      *prometheus.CounterVec
	scoreDuration    *prometheus.HistogramVec
	actionScore      prometheus.Histogram
	duplicatesTotal  prometheus.Counter
	backendLoadTotal *prometheus.CounterVec
	registry         *prometheus.Registry
}

// NewScoreMetrics creates the scoring metrics and registers them with registry.
func NewScoreMetrics(registry *prometheus.Registry) (*ScoreMetrics, error) {
	m := &ScoreMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register score metrics: %w", err)
	}
	return m, nil
}

func (m *ScoreMetrics) initMetrics() {
	m.scoresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photoverify_scores_total",
		Help: "Total number of scored images by backend and status.",
	}, []string{"backend", "status"})

	m.scoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photoverify_score_errors_total",
		Help: "Total number of failed score calls by error type.",
	}, []string{"error_type"})

	m.scoreDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "photoverify_score_duration_seconds",
		Help:    "Duration of score calls in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"backend"})

	m.actionScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "photoverify_action_score",
		Help:    "Distribution of action scores.",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 9),
	})

	m.duplicatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "photoverify_duplicates_total",
		Help: "Total number of images flagged as near-duplicates.",
	})

	m.backendLoadTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photoverify_backend_load_total",
		Help: "Model runtime probes at construction by runtime and outcome.",
	}, []string{"runtime", "outcome"})
}

// ObserveScore records one Score call. It matches Config.OnScore.
func (m *ScoreMetrics) ObserveScore(e photoverify.ScoreEvent) {
	backend := string(e.Backend)
	m.scoreDuration.WithLabelValues(backend).Observe(e.Duration.Seconds())

	if e.Err != nil {
		m.scoreErrors.WithLabelValues(ErrorType(e.Err)).Inc()
		return
	}
	if e.Result == nil {
		return
	}
	m.scoresTotal.WithLabelValues(backend, e.Result.Status).Inc()
	m.actionScore.Observe(e.Result.ActionScore)
	if e.Result.DuplicateOf != nil {
		m.duplicatesTotal.Inc()
	}
}

// ObserveBackendLoad records one runtime probe. It matches Config.OnBackendLoad.
func (m *ScoreMetrics) ObserveBackendLoad(a photoverify.LoadAttempt) {
	m.backendLoadTotal.WithLabelValues(string(a.Runtime), string(a.Outcome)).Inc()
}

// Hooks wires m into cfg.
func (m *ScoreMetrics) Hooks(cfg *photoverify.Config) {
	cfg.OnScore = m.ObserveScore
	cfg.OnBackendLoad = m.ObserveBackendLoad
}

// ErrorType maps a Score error to its label value.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, photoverify.ErrImageNotFound):
		return ErrTypeNotFound
	case errors.Is(err, photoverify.ErrImageCorrupt):
		return ErrTypeCorrupt
	case errors.Is(err, photoverify.ErrClassIndexMismatch):
		return ErrTypeClassMismatch
	case errors.Is(err, photoverify.ErrInference):
		return ErrTypeInference
	case errors.Is(err, photoverify.ErrClosed):
		return ErrTypeClosed
	default:
		return ErrTypeOther
	}
}

// Describe implements the prometheus.Collector interface.
func (m *ScoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.scoresTotal.Describe(ch)
	m.scoreErrors.Describe(ch)
	m.scoreDuration.Describe(ch)
	m.actionScore.Describe(ch)
	m.duplicatesTotal.Describe(ch)
	m.backendLoadTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *ScoreMetrics) Collect(ch chan<- prometheus.Metric) {
	m.scoresTotal.Collect(ch)
	m.scoreErrors.Collect(ch)
	m.scoreDuration.Collect(ch)
	m.actionScore.Collect(ch)
	m.duplicatesTotal.Collect(ch)
	m.backendLoadTotal.Collect(ch)
}

// WriteTextfile writes every metric in the registry to path in the node
// exporter textfile format.
func (m *ScoreMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
