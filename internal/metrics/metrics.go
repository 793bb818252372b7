package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"route", "method", "status"},
	)
	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request duration seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "http_in_flight_requests", Help: "In-flight HTTP requests"},
	)

	// ExpiredActions counts expire/unexpire attempts by outcome
	// (ok, forbidden, not_found, rate_limited, conflict, error).
	ExpiredActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "expired_actions_total", Help: "Expire/unexpire attempts"},
		[]string{"action", "result"},
	)
	CategoryCacheRebuilds = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "expired_category_cache_rebuilds_total", Help: "Allowed-category cache rebuilds"},
	)
)

func MustRegister() {
	prometheus.MustRegister(RequestsTotal, ReqDuration, InFlight, ExpiredActions, CategoryCacheRebuilds)
}
