package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "qcping"

// Metrics instruments probe cycles. A nil *Metrics is valid and records nothing.
type Metrics struct {
	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	probes        *prometheus.CounterVec
	latency       prometheus.Histogram
	addressed     prometheus.Gauge
	sendFailures  prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed probe cycles.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one probe cycle including emission.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Distinct address probes by result.",
		}, []string{"result"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_latency_milliseconds",
			Help:      "Connect latency of reachable addresses.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		addressed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_addressed",
			Help:      "Streams with an assigned address.",
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Quality records the transport failed to accept.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.cycles, m.cycleDuration, m.probes, m.latency, m.addressed, m.sendFailures)
	}
	return m
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveProbe(latencyMs int) {
	if m == nil {
		return
	}
	if latencyMs < 0 {
		m.probes.WithLabelValues("unreachable").Inc()
		return
	}
	m.probes.WithLabelValues("reachable").Inc()
	m.latency.Observe(float64(latencyMs))
}

func (m *Metrics) SetAddressed(n int) {
	if m == nil {
		return
	}
	m.addressed.Set(float64(n))
}

func (m *Metrics) AddSendFailures(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sendFailures.Add(float64(n))
}
