// Package metrics owns the Prometheus collectors shared by the middleware and
// the services.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
	AuthRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_rejections_total",
			Help: "Total number of rejected authentication attempts",
		},
		[]string{"reason"},
	)
	ReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_reconcile_total",
			Help: "Journal entries reconciled against goal targets",
		},
		[]string{"source", "level"},
	)
	ReconcileXP = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_reconcile_delta_total",
			Help: "Sum of XP differences applied to goals, split by sign",
		},
		[]string{"direction"},
	)
	FriendTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friend_request_transitions_total",
			Help: "Friend request state transitions",
		},
		[]string{"status"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AuthRejections,
			ReconcileTotal,
			ReconcileXP,
			FriendTransitions,
		)
	})
}

// ObserveXPDelta records an applied XP difference
func ObserveXPDelta(delta int) {
	switch {
	case delta > 0:
		ReconcileXP.WithLabelValues("up").Add(float64(delta))
	case delta < 0:
		ReconcileXP.WithLabelValues("down").Add(float64(-delta))
	}
}
