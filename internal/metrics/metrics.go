// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records feed pagination and HTTP API metrics.
type Collector struct {
	pageFetches   *prometheus.CounterVec
	pageFailures  *prometheus.CounterVec
	pageLatency   *prometheus.HistogramVec
	pageItems     prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpLatency   prometheus.Histogram
	importedItems prometheus.Counter
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pageFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planetary_page_fetch_total",
			Help: "Feed page fetches by strategy and load kind.",
		}, []string{"strategy", "kind"}),
		pageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planetary_page_fetch_fail_total",
			Help: "Failed feed page fetches by strategy and load kind.",
		}, []string{"strategy", "kind"}),
		pageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "planetary_page_fetch_latency_seconds",
			Help:    "Feed page fetch latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"strategy"}),
		pageItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planetary_page_items_total",
			Help: "Messages returned by feed page fetches.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planetary_http_requests_total",
			Help: "HTTP API responses by status code.",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planetary_http_request_latency_seconds",
			Help:    "HTTP API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		importedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planetary_imported_messages_total",
			Help: "Messages written to the view database.",
		}),
	}

	reg.MustRegister(
		c.pageFetches,
		c.pageFailures,
		c.pageLatency,
		c.pageItems,
		c.httpRequests,
		c.httpLatency,
		c.importedItems,
	)

	return c
}

// ObservePageFetch records one completed page fetch.
func (c *Collector) ObservePageFetch(strategy, kind string, count int, d time.Duration, err error) {
	c.pageFetches.WithLabelValues(strategy, kind).Inc()
	c.pageLatency.WithLabelValues(strategy).Observe(d.Seconds())
	if err != nil {
		c.pageFailures.WithLabelValues(strategy, kind).Inc()
		return
	}
	c.pageItems.Add(float64(count))
}

// ObserveHTTPRequest records one served API request.
func (c *Collector) ObserveHTTPRequest(statusCode int, d time.Duration) {
	c.httpRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(d.Seconds())
}

// RecordImported records messages written by an import.
func (c *Collector) RecordImported(count int) {
	c.importedItems.Add(float64(count))
}

// Handler returns the /metrics endpoint for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
