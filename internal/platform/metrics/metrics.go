package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the radio relay.
type Metrics struct {
	registry         *prometheus.Registry
	requestsTotal    prometheus.Counter
	segmentsFedTotal prometheus.Counter
	outputBytesTotal prometheus.Counter
	activeRelays     prometheus.Gauge
	errorsTotal      prometheus.Counter
}

// New creates and registers Prometheus metrics for the relay.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "radio_requests_total",
		Help: "Total number of HTTP requests received",
	})
	segmentsFedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "radio_segments_fed_total",
		Help: "Total number of segments fed to a transcoder",
	})
	outputBytesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "radio_output_bytes_total",
		Help: "Total number of converted bytes written to clients",
	})
	activeRelays := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "radio_active_relays",
		Help: "Number of client connections currently being relayed",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "radio_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		requestsTotal,
		segmentsFedTotal,
		outputBytesTotal,
		activeRelays,
		errorsTotal,
	)

	return &Metrics{
		registry:         registry,
		requestsTotal:    requestsTotal,
		segmentsFedTotal: segmentsFedTotal,
		outputBytesTotal: outputBytesTotal,
		activeRelays:     activeRelays,
		errorsTotal:      errorsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncSegmentsFed increments the segments fed counter.
func (m *Metrics) IncSegmentsFed() {
	m.segmentsFedTotal.Inc()
}

// AddOutputBytes adds one output read's size to the byte counter.
func (m *Metrics) AddOutputBytes(n int) {
	m.outputBytesTotal.Add(float64(n))
}

// RelayStarted increments the active relays gauge.
func (m *Metrics) RelayStarted() {
	m.activeRelays.Inc()
}

// RelayEnded decrements the active relays gauge.
func (m *Metrics) RelayEnded() {
	m.activeRelays.Dec()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges, if non-nil, is called before each scrape to refresh gauge
// values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
