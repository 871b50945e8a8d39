package service

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for the dashboard loaders.
type Metrics struct {
	loadsTotal      *prometheus.CounterVec
	loadDuration    *prometheus.HistogramVec
	staleResponses  *prometheus.CounterVec
	liveCharts      prometheus.Gauge
	cyclesTotal     *prometheus.CounterVec
	sessions        prometheus.Gauge
	sessionsEvicted *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *Metrics
)

// NewMetrics returns the process-wide collector, registering it on first use.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInst = &Metrics{
			loadsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "plate_dashboard_loads_total",
					Help: "Loader runs by resource and outcome",
				},
				[]string{"resource", "outcome"},
			),
			loadDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "plate_dashboard_load_duration_seconds",
					Help:    "Loader duration in seconds, request and render",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"resource"},
			),
			staleResponses: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "plate_dashboard_stale_responses_total",
					Help: "Responses discarded because the state changed while they were in flight",
				},
				[]string{"resource"},
			),
			liveCharts: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "plate_dashboard_live_charts",
				Help: "Chart instances currently held across all sessions",
			}),
			cyclesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "plate_dashboard_cycles_total",
					Help: "Dashboard load cycles by kind",
				},
				[]string{"kind"},
			),
			sessions: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "plate_dashboard_sessions",
				Help: "Open dashboard page sessions",
			}),
			sessionsEvicted: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "plate_dashboard_sessions_evicted_total",
					Help: "Page sessions removed, by reason",
				},
				[]string{"reason"},
			),
		}
	})
	return metricsInst
}

func (m *Metrics) RecordLoad(resource Resource, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.loadsTotal.WithLabelValues(string(resource), outcome).Inc()
	m.loadDuration.WithLabelValues(string(resource)).Observe(d.Seconds())
}

func (m *Metrics) RecordStale(resource Resource) {
	if m == nil {
		return
	}
	m.staleResponses.WithLabelValues(string(resource)).Inc()
}

// AddLiveCharts adjusts the live chart gauge by delta across all sessions.
func (m *Metrics) AddLiveCharts(delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.liveCharts.Add(float64(delta))
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

func (m *Metrics) RecordSessionEvicted(reason string) {
	if m == nil {
		return
	}
	m.sessionsEvicted.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordCycle(kind string) {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(kind).Inc()
}
