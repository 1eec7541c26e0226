// internal/observability/metrics.go
// Prometheus collectors for the admission pipeline.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const uptimeInterval = 15 * time.Second

// Metrics owns the control plane's registry and collectors.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	CoreHealthCheckTotal    *prometheus.CounterVec
	SnapshotOperationsTotal prometheus.Counter
	ReplayOperationsTotal   prometheus.Counter
	RateLimitDenialsTotal   prometheus.Counter
	Uptime                  prometheus.Gauge

	startTime time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
		stopCh:    make(chan struct{}),
	}

	m.RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests by method, route template, and status.",
	}, []string{"method", "path", "status"})

	m.RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route template.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	m.RequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "In-flight HTTP requests.",
	})

	m.CoreHealthCheckTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "core_health_check_total",
		Help: "Core service health probes by outcome.",
	}, []string{"status"})

	m.SnapshotOperationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "snapshot_operations_total",
		Help: "Snapshot operations initiated.",
	})

	m.ReplayOperationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "replay_operations_total",
		Help: "Replay operations initiated.",
	})

	m.RateLimitDenialsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_denials_total",
		Help: "Requests rejected by the rate limiter.",
	})

	m.Uptime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "uptime_seconds",
		Help: "Seconds since process start.",
	})

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.CoreHealthCheckTotal,
		m.SnapshotOperationsTotal,
		m.ReplayOperationsTotal,
		m.RateLimitDenialsTotal,
		m.Uptime,
	)

	m.wg.Add(1)
	go m.uptimeWorker()
	return m
}

func (m *Metrics) uptimeWorker() {
	defer m.wg.Done()

	ticker := time.NewTicker(uptimeInterval)
	defer ticker.Stop()

	m.Uptime.Set(time.Since(m.startTime).Seconds())
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Uptime.Set(time.Since(m.startTime).Seconds())
		}
	}
}

// UptimeSeconds returns seconds since process start.
func (m *Metrics) UptimeSeconds() float64 {
	return time.Since(m.startTime).Seconds()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Stop terminates the uptime worker.
func (m *Metrics) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}
