package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type EngineMetrics struct {
	batchesApplied      prometheus.Counter
	batchRollbacks      *prometheus.CounterVec
	integrityViolations *prometheus.CounterVec
	applySeconds        prometheus.Histogram
}

var (
	engineOnce     sync.Once
	engineRegistry *EngineMetrics
)

func Engine() *EngineMetrics {
	engineOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			batchesApplied: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "engine_batches_applied_total",
				Help: "Count of batches durably applied across all managers.",
			}),
			batchRollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "engine_batch_rollbacks_total",
				Help: "Count of batch rollbacks by reason.",
			}, []string{"reason"}),
			integrityViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "engine_integrity_violations_total",
				Help: "Count of apply failures observed after another manager already applied.",
			}, []string{"manager"}),
			applySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "engine_apply_seconds",
				Help:    "Wall time of the multi-manager apply path.",
				Buckets: prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			engineRegistry.batchesApplied,
			engineRegistry.batchRollbacks,
			engineRegistry.integrityViolations,
			engineRegistry.applySeconds,
		)
	})
	return engineRegistry
}

func (m *EngineMetrics) ObserveBatchApplied(seconds float64) {
	if m == nil {
		return
	}
	m.batchesApplied.Inc()
	m.applySeconds.Observe(seconds)
}

func (m *EngineMetrics) ObserveRollback(reason string) {
	if m == nil {
		return
	}
	m.batchRollbacks.WithLabelValues(reason).Inc()
}

func (m *EngineMetrics) ObserveIntegrityViolation(manager string) {
	if m == nil {
		return
	}
	m.integrityViolations.WithLabelValues(manager).Inc()
}
