// Package metrics exposes Prometheus metrics for timeline loads and the read API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "timeline"

type Metrics struct {
	LoadsTotal         *prometheus.CounterVec
	LoadDuration       prometheus.Histogram
	EligiblePatients   prometheus.Gauge
	MedicationWarning  prometheus.Gauge
	StoreState         prometheus.Gauge
	HTTPRequests       *prometheus.CounterVec
	HTTPRequestSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the metrics on a private registry, so tests and multiple
// instances never collide on the global one.
func New() *Metrics {
	m := &Metrics{
		LoadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Timeline load attempts by outcome",
		}, []string{"outcome"}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Time spent reading and reconciling the source exports",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		EligiblePatients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eligible_patients",
			Help:      "Patients present in both the notes and labs exports",
		}),
		MedicationWarning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "medication_warning",
			Help:      "1 when the medications export could not be used",
		}),
		StoreState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_state",
			Help:      "Store state (0=uninitialized, 1=loading, 2=ready, 3=failed)",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Read API requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Read API request duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.LoadsTotal,
		m.LoadDuration,
		m.EligiblePatients,
		m.MedicationWarning,
		m.StoreState,
		m.HTTPRequests,
		m.HTTPRequestSeconds,
	)

	return m
}

// ObserveLoad records one finished load attempt.
func (m *Metrics) ObserveLoad(ok bool, elapsed time.Duration, patients int, medicationWarning bool) {
	outcome := "failed"
	if ok {
		outcome = "ready"
		m.EligiblePatients.Set(float64(patients))
		m.MedicationWarning.Set(boolGauge(medicationWarning))
	}
	m.LoadsTotal.WithLabelValues(outcome).Inc()
	m.LoadDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SetState(state int) {
	m.StoreState.Set(float64(state))
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestSeconds.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the metrics registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
