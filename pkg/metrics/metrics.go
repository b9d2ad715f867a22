// Package metrics holds the prometheus collectors shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts recommendation requests answered from the cache.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recommender_cache_hits_total",
		Help: "Recommendation requests answered from the cache.",
	})

	// CacheMisses counts recommendation requests that required a fresh solve.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recommender_cache_misses_total",
		Help: "Recommendation requests that required a fresh computation.",
	})

	// CacheCorruptions counts times the cache file was unreadable and the
	// cache fell open to empty.
	CacheCorruptions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recommender_cache_corruptions_total",
		Help: "Times the cache backing store was unreadable and treated as empty.",
	})

	// SolveDuration observes wall time of optimizer solves.
	SolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recommender_solve_duration_seconds",
		Help:    "Wall time of assignment optimizer solves.",
		Buckets: prometheus.DefBuckets,
	})

	// InfeasibleSolves counts solves that proved the constraint set empty.
	InfeasibleSolves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recommender_infeasible_solves_total",
		Help: "Solves that found no assignment satisfying the hard constraints.",
	})

	// SolverTimeouts counts solves aborted by the time budget.
	SolverTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recommender_solver_timeouts_total",
		Help: "Solves aborted because they exceeded the configured budget.",
	})
)
