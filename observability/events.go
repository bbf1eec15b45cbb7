package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	templateFlames prometheus.Counter
	burials        prometheus.Counter
	redemptions    prometheus.Counter
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking batch outcomes.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			templateFlames: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "cube",
				Subsystem: "events",
				Name:      "template_flames_total",
				Help:      "Count of flames emitted in funding templates.",
			}),
			burials: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "cube",
				Subsystem: "events",
				Name:      "burials_total",
				Help:      "Count of accounts buried.",
			}),
			redemptions: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "cube",
				Subsystem: "events",
				Name:      "redemptions_total",
				Help:      "Count of buried coin redemptions.",
			}),
		}
		prometheus.MustRegister(
			eventRegistry.templateFlames,
			eventRegistry.burials,
			eventRegistry.redemptions,
		)
	})
	return eventRegistry
}

// RecordTemplateFlames adds the flame count of one funding template.
func (m *eventMetrics) RecordTemplateFlames(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.templateFlames.Add(float64(count))
}

// RecordBurial increments the burial counter.
func (m *eventMetrics) RecordBurial() {
	if m == nil {
		return
	}
	m.burials.Inc()
}

// RecordRedemption increments the redemption counter.
func (m *eventMetrics) RecordRedemption() {
	if m == nil {
		return
	}
	m.redemptions.Inc()
}
