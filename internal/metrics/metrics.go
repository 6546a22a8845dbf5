// Package metrics holds the Prometheus collectors shared by handlers,
// services and workers.
package metrics

import (
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packprice_submissions_total",
			Help: "Anonymous price submissions, by outcome.",
		},
		[]string{"outcome"},
	)

	VotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packprice_votes_total",
			Help: "Votes cast on prices, by direction.",
		},
		[]string{"direction"},
	)

	FlagsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packprice_flags_total",
			Help: "Flag requests against prices, by outcome.",
		},
		[]string{"outcome"},
	)

	IPBlocksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "packprice_ip_blocks_total",
			Help: "Temporary IP blocks set after repeated flags.",
		},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "packprice_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by endpoint and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "packprice_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "packprice_cache_hits_total",
			Help: "Total cache hits for cached aggregates.",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "packprice_cache_misses_total",
			Help: "Total cache misses for cached aggregates.",
		},
	)

	RankingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "packprice_ranking_duration_seconds",
			Help:    "Duration of per-item price ranking.",
			Buckets: prometheus.DefBuckets,
		},
	)

	ScoreRefreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "packprice_score_refresh_duration_seconds",
			Help:    "Duration of a full smart score refresh.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Pool gauges
// are added when pool is non-nil. Safe to call more than once.
func Register(pool *pgxpool.Pool) {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SubmissionsTotal,
			VotesTotal,
			FlagsTotal,
			IPBlocksTotal,
			RequestDuration,
			RequestsInFlight,
			CacheHits,
			CacheMisses,
			RankingDuration,
			ScoreRefreshDuration,
		)

		// DB pool gauges read live stats from pgxpool
		if pool != nil {
			prometheus.MustRegister(
				prometheus.NewGaugeFunc(
					prometheus.GaugeOpts{
						Name: "packprice_db_connection_pool_active",
						Help: "Number of active database connections.",
					},
					func() float64 { return float64(pool.Stat().AcquiredConns()) },
				),
				prometheus.NewGaugeFunc(
					prometheus.GaugeOpts{
						Name: "packprice_db_connection_pool_idle",
						Help: "Number of idle database connections.",
					},
					func() float64 { return float64(pool.Stat().IdleConns()) },
				),
			)
		}
	})
}
