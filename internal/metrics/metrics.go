// Package metrics exposes Prometheus collectors for the scraper.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	articleInfosTotal          *prometheus.CounterVec
	loadMoreTotal              *prometheus.CounterVec
	monthsTotal                *prometheus.CounterVec
	fetchOutcomesTotal         *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	checkpointsTotal           *prometheus.CounterVec
	corpusArticlesTotal        prometheus.Counter
	progressDone               *prometheus.GaugeVec
	progressTotal              *prometheus.GaugeVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		articleInfosTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sbcorpus_article_infos_total",
				Help: "Archive listing entries parsed, labeled by outcome (added, duplicate, skipped).",
			},
			[]string{"outcome"},
		)

		loadMoreTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sbcorpus_load_more_total",
				Help: "Load-more pagination events, labeled by result (clicked, failed, refresh, interrupted).",
			},
			[]string{"result"},
		)

		monthsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sbcorpus_archive_months_total",
				Help: "Archive months processed, labeled by status.",
			},
			[]string{"status"},
		)

		fetchOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sbcorpus_fetch_outcomes_total",
				Help: "Article content fetch outcomes, labeled by status and skip reason.",
			},
			[]string{"status", "reason"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sbcorpus_fetch_duration_seconds",
				Help:    "Histogram of article page fetch latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
			},
			[]string{"site"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sbcorpus_rate_limit_delay_seconds",
				Help:    "Time spent waiting on the per-host rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"site"},
		)

		checkpointsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sbcorpus_checkpoints_total",
				Help: "Store flushes, labeled by stage and reason.",
			},
			[]string{"stage", "reason"},
		)

		corpusArticlesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sbcorpus_corpus_articles_total",
				Help: "Articles written into compiled corpora.",
			},
		)

		progressDone = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sbcorpus_progress_done",
				Help: "Items processed so far in the current stage.",
			},
			[]string{"stage"},
		)

		progressTotal = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sbcorpus_progress_total",
				Help: "Items expected in the current stage.",
			},
			[]string{"stage"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests served, labeled by method, route pattern and status code.",
			},
			[]string{"method", "route", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveArticleInfo counts one parsed listing entry.
func ObserveArticleInfo(outcome string) {
	Init()
	articleInfosTotal.WithLabelValues(outcome).Inc()
}

// ObserveLoadMore counts one pagination event.
func ObserveLoadMore(result string) {
	Init()
	loadMoreTotal.WithLabelValues(result).Inc()
}

// ObserveMonth counts one processed archive month.
func ObserveMonth(status string) {
	Init()
	monthsTotal.WithLabelValues(status).Inc()
}

// ObserveFetch records a content fetch outcome and, when known, its latency.
func ObserveFetch(rawURL, status, reason string, duration time.Duration) {
	Init()
	fetchOutcomesTotal.WithLabelValues(status, reason).Inc()
	if duration > 0 {
		fetchDurationSeconds.WithLabelValues(SanitizeSite(rawURL)).Observe(duration.Seconds())
	}
}

// ObserveRateLimitDelay records time spent waiting for a rate-limit token.
func ObserveRateLimitDelay(site string, delay time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(site).Observe(delay.Seconds())
}

// ObserveCheckpoint counts one store flush.
func ObserveCheckpoint(stage, reason string) {
	Init()
	checkpointsTotal.WithLabelValues(stage, reason).Inc()
}

// ObserveCorpusArticles adds n articles written into a corpus.
func ObserveCorpusArticles(n int) {
	Init()
	if n > 0 {
		corpusArticlesTotal.Add(float64(n))
	}
}

// SetProgress publishes the done/total gauges for a stage.
func SetProgress(stage string, done, total int) {
	Init()
	progressDone.WithLabelValues(stage).Set(float64(done))
	progressTotal.WithLabelValues(stage).Set(float64(total))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
