// Package metrics provides Prometheus metrics collection for the planner service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestDuration tracks HTTP request duration by method, path, and status code.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)

	// HTTPRequestTotal tracks total HTTP requests by method, path, and status code.
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Total number of HTTP requests rejected by rate limiting",
		},
	)

	// PlansTotal tracks load plan computations by outcome.
	PlansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pallet_plans_total",
			Help: "Total number of pallet load plan computations",
		},
		[]string{"outcome"},
	)

	// PlanDuration tracks load plan computation duration.
	PlanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pallet_plan_duration_seconds",
			Help:    "Pallet load plan computation duration in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		},
	)

	// Profiles tracks the number of stored pallet profiles.
	Profiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pallet_profiles",
			Help: "Number of stored pallet profiles",
		},
	)
)

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware collects HTTP metrics. The path label uses the matched route
// pattern when available to keep cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = r.URL.Path
		}
		statusCode := strconv.Itoa(rec.status)

		HTTPRequestDuration.WithLabelValues(r.Method, path, statusCode).Observe(time.Since(start).Seconds())
		HTTPRequestTotal.WithLabelValues(r.Method, path, statusCode).Inc()
	})
}

// RecordPlan records metrics for a load plan computation.
func RecordPlan(duration time.Duration, outcome string) {
	PlanDuration.Observe(duration.Seconds())
	PlansTotal.WithLabelValues(outcome).Inc()
}

// RecordRateLimited counts one rejected request.
func RecordRateLimited() {
	RateLimitedTotal.Inc()
}

// SetProfiles updates the stored profile gauge.
func SetProfiles(n int) {
	Profiles.Set(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
