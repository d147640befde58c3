// Package metrics holds the Prometheus instrumentation for the API, the
// reputation engine and the ranking views.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beatpost_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beatpost_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	MojoRecomputations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beatpost_mojo_recomputations_total",
			Help: "Total number of Mojo recomputations by outcome",
		},
		[]string{"result"},
	)

	MojoRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "beatpost_mojo_recompute_duration_seconds",
			Help:    "Time spent recomputing one user's Mojo",
			Buckets: prometheus.DefBuckets,
		},
	)

	RankingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beatpost_ranking_duration_seconds",
			Help:    "Time spent building a ranked view",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"view"},
	)

	RankingCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "beatpost_ranking_candidates",
			Help:    "Number of candidates scored per ranked view",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"view"},
	)

	ImageUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beatpost_image_uploads_total",
			Help: "Image uploads to object storage by outcome",
		},
		[]string{"result"},
	)
)

func RecordAPIRequest(method, route string, status int, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordMojo(err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	MojoRecomputations.WithLabelValues(result).Inc()
	MojoRecomputeDuration.Observe(d.Seconds())
}

func RecordRanking(view string, candidates int, d time.Duration) {
	RankingDuration.WithLabelValues(view).Observe(d.Seconds())
	RankingCandidates.WithLabelValues(view).Observe(float64(candidates))
}
