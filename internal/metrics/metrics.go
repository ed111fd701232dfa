// Package metrics provides Prometheus metrics for the search, session and watched-list services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No query strings, session ids or movie ids in labels.

var (
	// SearchRequestsTotal counts search fetches by outcome (ok, not_found, failed, superseded).
	SearchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "popcorn_search_requests_total",
		Help: "Total number of search fetches started by the query controller, by outcome.",
	}, []string{"outcome"})

	// DetailRequestsTotal counts detail fetches by outcome.
	DetailRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "popcorn_detail_requests_total",
		Help: "Total number of detail fetches started by sessions, by outcome.",
	}, []string{"outcome"})

	// SearchInFlight tracks search fetches that have not settled yet.
	SearchInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "popcorn_search_in_flight",
		Help: "Current number of search fetches in flight.",
	})

	// ActiveSessions tracks open sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "popcorn_active_sessions",
		Help: "Current number of open sessions.",
	})

	// WatchedEntries tracks the size of the watched collection.
	WatchedEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "popcorn_watched_entries",
		Help: "Current number of entries in the watched list.",
	})

	// HTTPRequestDuration observes API latency by route template, method and status code.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "popcorn_http_request_duration_seconds",
		Help:    "Latency of API requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "code"})

	// PosterCacheTotal counts poster proxy lookups by result (hit, miss, error).
	PosterCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "popcorn_poster_cache_total",
		Help: "Poster proxy lookups, by cache result.",
	}, []string{"result"})

	// SlotWritesTotal counts durable slot writes by backend and result.
	SlotWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "popcorn_slot_writes_total",
		Help: "Total number of durable slot writes, by backend and result.",
	}, []string{"backend", "result"})
)

// Outcome label values.
const (
	OutcomeOK         = "ok"
	OutcomeNotFound   = "not_found"
	OutcomeFailed     = "failed"
	OutcomeSuperseded = "superseded"
)
