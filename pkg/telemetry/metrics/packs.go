package metrics

import "github.com/prometheus/client_golang/prometheus"

// PackMetrics tracks the pack registry.
type PackMetrics struct {
	registered    prometheus.Gauge
	registrations *prometheus.CounterVec
	reloads       *prometheus.CounterVec
}

// NewPackMetrics creates and registers pack registry metrics.
func NewPackMetrics(namespace string, registry *prometheus.Registry) *PackMetrics {
	pm := &PackMetrics{
		registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "packs_registered",
			Help:      "Number of pack versions currently registered",
		}),
		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pack_registrations_total",
				Help:      "Total number of pack registration attempts",
			},
			[]string{"result"},
		),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pack_reloads_total",
				Help:      "Total number of pack reloads",
			},
			[]string{"source", "result"},
		),
	}
	registry.MustRegister(pm.registered, pm.registrations, pm.reloads)
	return pm
}

// SetRegistered sets the registered pack gauge.
func (pm *PackMetrics) SetRegistered(n int) {
	pm.registered.Set(float64(n))
}

// RecordRegistration records one registration attempt.
func (pm *PackMetrics) RecordRegistration(result string) {
	pm.registrations.WithLabelValues(result).Inc()
}

// RecordReload records one reload.
func (pm *PackMetrics) RecordReload(source, result string) {
	pm.reloads.WithLabelValues(source, result).Inc()
}
