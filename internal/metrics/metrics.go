package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels requests that completed.
	OutcomeSuccess = "success"
	// OutcomeError labels requests that failed.
	OutcomeError = "error"
	// OutcomeReplay labels review submissions answered from a memoized result.
	OutcomeReplay = "replay"
)

var (
	crawlsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "news_crawler",
			Name:      "crawls_total",
			Help:      "Crawl requests handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	crawlSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "news_crawler",
			Name:      "crawl_seconds",
			Help:      "Crawl latency in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	sourceFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "news_crawler",
			Name:      "source_failures_total",
			Help:      "Per-source fetch failures absorbed into partial results.",
		},
	)

	reviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "news_crawler",
			Name:      "reviews_total",
			Help:      "Review submissions handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	degradedScoresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "news_crawler",
			Name:      "degraded_scores_total",
			Help:      "Records scored with the conservative default after feature extraction failed.",
		},
	)
)

// Register attaches all collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		crawlsTotal,
		crawlSeconds,
		sourceFailuresTotal,
		reviewsTotal,
		degradedScoresTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveCrawl records one crawl request.
func ObserveCrawl(duration time.Duration, failedSources int, outcome string) {
	crawlsTotal.WithLabelValues(outcome).Inc()
	if failedSources > 0 {
		sourceFailuresTotal.Add(float64(failedSources))
	}
	if duration < 0 {
		duration = 0
	}
	crawlSeconds.Observe(duration.Seconds())
}

// ObserveReview records one review submission.
func ObserveReview(outcome string) {
	reviewsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDegradedScore counts a conservative-default classification.
func ObserveDegradedScore() {
	degradedScoresTotal.Inc()
}
