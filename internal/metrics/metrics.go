// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal                  *prometheus.CounterVec
	jobDurationSeconds         *prometheus.HistogramVec
	activeWorkers              prometheus.Gauge
	emailsFoundTotal           *prometheus.CounterVec
	derivedJobsTotal           prometheus.Counter
	moduleRequestsTotal        *prometheus.CounterVec
	persistTotal               *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frisbee_jobs_total",
				Help: "Total number of harvesting jobs finished, labeled by status.",
			},
			[]string{"status"},
		)

		jobDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "frisbee_job_duration_seconds",
				Help:    "Wall time per finished job, labeled by engine.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"engine"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "frisbee_active_workers",
				Help: "Number of workers currently running a job.",
			},
		)

		emailsFoundTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frisbee_emails_found_total",
				Help: "Total number of addresses returned by search modules, labeled by engine.",
			},
			[]string{"engine"},
		)

		derivedJobsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "frisbee_derived_jobs_total",
				Help: "Total number of follow-up jobs submitted by greedy expansion.",
			},
		)

		moduleRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frisbee_module_requests_total",
				Help: "Outbound requests issued by search modules, labeled by engine and result.",
			},
			[]string{"engine", "result"},
		)

		persistTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frisbee_persist_total",
				Help: "Outcome persistence attempts, labeled by result.",
			},
			[]string{"result"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "frisbee_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveJob records a finished job.
func ObserveJob(engine string, status string, duration time.Duration) {
	Init()
	jobsTotal.WithLabelValues(status).Inc()
	jobDurationSeconds.WithLabelValues(engine).Observe(duration.Seconds())
}

// ObserveEmails adds the number of addresses a module returned.
func ObserveEmails(engine string, count int) {
	Init()
	if count > 0 {
		emailsFoundTotal.WithLabelValues(engine).Add(float64(count))
	}
}

// ObserveDerivedJobs adds follow-up jobs created by greedy expansion.
func ObserveDerivedJobs(count int) {
	Init()
	if count > 0 {
		derivedJobsTotal.Add(float64(count))
	}
}

// ObserveModuleRequest counts one outbound module request.
func ObserveModuleRequest(engine string, result string) {
	Init()
	moduleRequestsTotal.WithLabelValues(engine, result).Inc()
}

// ObservePersist counts one persistence attempt.
func ObservePersist(result string) {
	Init()
	persistTotal.WithLabelValues(result).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(site string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
