package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	CollaboratorLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tokenrank",
			Subsystem: "collaborator",
			Name:      "latency_seconds",
			Help:      "Latency of calls to market data and ratings collaborators",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"collaborator", "op"},
	)

	CollaboratorErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokenrank",
			Subsystem: "collaborator",
			Name:      "errors_total",
			Help:      "Errors by collaborator and operation",
		},
		[]string{"collaborator", "op"},
	)

	RoundFeedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokenrank",
			Subsystem: "roundfeed",
			Name:      "events_total",
			Help:      "Round feed events by status",
		},
		[]string{"status"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(CollaboratorLatency, CollaboratorErrors, RoundFeedEvents)
	})
}
