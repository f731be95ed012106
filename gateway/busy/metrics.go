package busy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "busygate"

// Metrics exports the coordinator state to Prometheus.
// A nil *Metrics records nothing.
type Metrics struct {
	operations    prometheus.Gauge
	visible       prometheus.Gauge
	cycles        prometheus.Counter
	watchdogFires prometheus.Counter
	cycleDuration prometheus.Histogram
}

// NewMetrics creates the busy collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "busy",
			Name:      "operations",
			Help:      "Operations currently counted as in flight.",
		}),
		visible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "busy",
			Name:      "visible",
			Help:      "1 while the loading indicator is shown.",
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "busy",
			Name:      "cycles_total",
			Help:      "Times the loading indicator was shown.",
		}),
		watchdogFires: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "busy",
			Name:      "watchdog_fires_total",
			Help:      "Times the watchdog forced the indicator to hide.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "busy",
			Name:      "cycle_duration_seconds",
			Help:      "How long the loading indicator stayed visible.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 30},
		}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.visible, m.cycles, m.watchdogFires, m.cycleDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) setOperations(n int64) {
	if m == nil {
		return
	}
	m.operations.Set(float64(n))
}

func (m *Metrics) shown() {
	if m == nil {
		return
	}
	m.visible.Set(1)
	m.cycles.Inc()
}

func (m *Metrics) hidden(d time.Duration) {
	if m == nil {
		return
	}
	m.visible.Set(0)
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) watchdogFired() {
	if m == nil {
		return
	}
	m.watchdogFires.Inc()
}
