// Package metrics exports service metrics to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Skryldev/image-api/core"
)

// Collector records HTTP, pipeline step and log sink metrics. It satisfies
// core.MetricsCollector so it can back a hooks.MetricsHook.
type Collector struct {
	gatherer prometheus.Gatherer

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	stepDuration *prometheus.HistogramVec
	stepErrors   *prometheus.CounterVec
	bytesOut     prometheus.Counter
	sinkFailures prometheus.Counter
}

// New registers the collector's metrics on reg. A nil reg uses a fresh
// registry; the collector serves whatever reg gathers.
func New(namespace string, reg *prometheus.Registry) (*Collector, error) {
	if namespace == "" {
		namespace = "image_api"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{gatherer: reg}

	var err error
	if c.httpRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})); err != nil {
		return nil, err
	}
	if c.httpDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})); err != nil {
		return nil, err
	}
	if c.stepDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Latency of individual image operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})); err != nil {
		return nil, err
	}
	if c.stepErrors, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operation_errors_total",
		Help:      "Failed image operations by op and error category.",
	}, []string{"op", "category"})); err != nil {
		return nil, err
	}
	if c.bytesOut, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operation_output_bytes_total",
		Help:      "Bytes produced by image operations.",
	})); err != nil {
		return nil, err
	}
	if c.sinkFailures, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "request_log_failures_total",
		Help:      "Request log entries the sink failed to persist.",
	})); err != nil {
		return nil, err
	}
	return c, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("metrics: register: %w", err)
	}
	return c, nil
}

// Handler serves the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// ObserveHTTP records one finished HTTP request.
func (c *Collector) ObserveHTTP(route, method string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// RecordSinkFailure counts a request log entry that could not be written.
func (c *Collector) RecordSinkFailure(error) { c.sinkFailures.Inc() }

func (c *Collector) RecordProcessingTime(step core.OperationKind, d time.Duration) {
	c.stepDuration.WithLabelValues(string(step)).Observe(d.Seconds())
}

func (c *Collector) RecordThroughput(bytes int64) { c.bytesOut.Add(float64(bytes)) }

func (c *Collector) RecordError(step core.OperationKind, category string) {
	c.stepErrors.WithLabelValues(string(step), category).Inc()
}

var _ core.MetricsCollector = (*Collector)(nil)
