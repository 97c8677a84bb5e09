package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sitegui/kaiju/cache"
)

var client PrometheusClient

type PrometheusClient interface {
	cache.Observer

	OpenRequest(req RequestData)
	ObserveDuration(req RequestData, initTime time.Time)
	CloseRequest(req RequestData, status string)
	Handler() http.Handler
}

type prometheusClient struct {
	gatherer prometheus.Gatherer

	requestsStatus   *prometheus.CounterVec
	requestsCurrent  *prometheus.GaugeVec
	requestsDuration *prometheus.HistogramVec

	cacheLookups      *prometheus.CounterVec
	cacheFills        *prometheus.CounterVec
	cacheFillDuration *prometheus.HistogramVec
}

type RequestData struct {
	Method, Path string
}

// NewClient creates the kaiju metrics and registers them into registry.
func NewClient(registry *prometheus.Registry) PrometheusClient {
	c := &prometheusClient{
		gatherer: registry,

		requestsStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kaiju_http_requests_total",
			Help: "The total number of requests which were served.",
		}, []string{"method", "path", "status"}),

		requestsCurrent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kaiju_http_requests_current",
			Help: "The current number of requests in course.",
		}, []string{"method", "path"}),

		requestsDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "kaiju_http_request_duration_seconds",
			Help: "The duration of the requests in seconds.",
		}, []string{"method", "path"}),

		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kaiju_cache_lookups_total",
			Help: "The total number of cache lookups, by outcome.",
		}, []string{"kind", "outcome"}),

		cacheFills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kaiju_cache_fills_total",
			Help: "The total number of Jira requests made to fill the cache.",
		}, []string{"kind", "status"}),

		cacheFillDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "kaiju_cache_fill_duration_seconds",
			Help: "The duration of cache fills in seconds.",
		}, []string{"kind"}),
	}

	registry.MustRegister(c.requestsStatus)
	registry.MustRegister(c.requestsCurrent)
	registry.MustRegister(c.requestsDuration)
	registry.MustRegister(c.cacheLookups)
	registry.MustRegister(c.cacheFills)
	registry.MustRegister(c.cacheFillDuration)
	return c
}

func (p *prometheusClient) OpenRequest(req RequestData) {
	labels := getDefaultLabels(req)
	p.requestsCurrent.With(labels).Inc()
}

func (p *prometheusClient) ObserveDuration(req RequestData, initTime time.Time) {
	labels := getDefaultLabels(req)
	p.requestsDuration.With(labels).Observe(time.Since(initTime).Seconds())
}

func (p *prometheusClient) CloseRequest(req RequestData, status string) {
	labels := getDefaultLabels(req)
	p.requestsCurrent.With(labels).Dec()

	labels["status"] = status
	p.requestsStatus.With(labels).Inc()
}

func (p *prometheusClient) ObserveLookup(kind, outcome string) {
	p.cacheLookups.With(prometheus.Labels{"kind": kind, "outcome": outcome}).Inc()
}

func (p *prometheusClient) ObserveFill(kind, status string, started time.Time) {
	p.cacheFills.With(prometheus.Labels{"kind": kind, "status": status}).Inc()
	p.cacheFillDuration.With(prometheus.Labels{"kind": kind}).Observe(time.Since(started).Seconds())
}

func (p *prometheusClient) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

func getDefaultLabels(req RequestData) prometheus.Labels {
	return prometheus.Labels{"method": req.Method, "path": req.Path}
}

// InitClient creates the process-wide client, registered in a dedicated registry.
func InitClient() PrometheusClient {
	if client != nil {
		panic("The client has already been initialized.")
	}

	client = NewClient(prometheus.NewRegistry())
	return client
}
