package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics.
type Metrics struct {
	BookingAttempts  prometheus.Counter
	BookingSuccesses prometheus.Counter
	BookingFailures  prometheus.Counter
	TokenRefreshes   *prometheus.CounterVec
}

// NewMetrics creates new prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		BookingAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_attempts_total",
			Help:      "The total number of per-venue booking attempts",
		}),
		BookingSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_successes_total",
			Help:      "The total number of successful bookings",
		}),
		BookingFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_failures_total",
			Help:      "The total number of orchestration runs that exhausted all venues",
		}),
		TokenRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "The total number of token refresh attempts",
		}, []string{"result"}),
	}
}
