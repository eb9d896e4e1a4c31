// Package metrics holds the Prometheus collectors of the API server. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	operations       *prometheus.CounterVec
	imagesUpdated    prometheus.Counter
	upstreamDuration *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imageupdater",
			Name:      "operations_total",
			Help:      "Image update operations by the status they reached.",
		}, []string{"status"}),
		imagesUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "imageupdater",
			Name:      "images_updated_total",
			Help:      "Product images replaced or appended.",
		}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "imageupdater",
			Name:      "shopify_request_duration_seconds",
			Help:      "Latency of Shopify Admin API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "code"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imageupdater",
			Name:      "http_requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"method", "route", "code"}),
	}
	reg.MustRegister(
		m.operations,
		m.imagesUpdated,
		m.upstreamDuration,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) OperationReached(status string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(status).Inc()
}

func (m *Metrics) ImagesUpdated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.imagesUpdated.Add(float64(n))
}

// ObserveUpstream matches the Shopify client's observer signature.
func (m *Metrics) ObserveUpstream(endpoint string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(endpointLabel(endpoint), strconv.Itoa(code)).Observe(elapsed.Seconds())
}

func (m *Metrics) HTTPRequest(method, route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// endpointLabel replaces numeric path segments so ids do not blow up label
// cardinality: /products/12/images.json -> /products/:id/images.json
func endpointLabel(path string) string {
	out := make([]byte, 0, len(path))
	for i := 0; i < len(path); {
		if path[i] >= '0' && path[i] <= '9' && i > 0 && path[i-1] == '/' {
			for i < len(path) && path[i] >= '0' && path[i] <= '9' {
				i++
			}
			out = append(out, ":id"...)
			continue
		}
		out = append(out, path[i])
		i++
	}
	return string(out)
}
