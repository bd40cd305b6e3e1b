// Package metrics exposes Prometheus collectors for the crawler.
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

// Post outcomes reported by ObservePost.
const (
	OutcomeSaved          = "saved"
	OutcomeSkipped        = "skipped"
	OutcomeBelowThreshold = "below_threshold"
	OutcomeError          = "error"
)

var (
	fetchRequestsTotal         *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	postsTotal                 *prometheus.CounterVec
	listingPagesTotal          *prometheus.CounterVec
	mediaDownloadsTotal        *prometheus.CounterVec
	audioProbesTotal           *prometheus.CounterVec
	politenessDelaySeconds     prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_requests_total",
				Help: "Outbound requests, labeled by host and status code (0 for transport errors).",
			},
			[]string{"site", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_bytes_total",
				Help: "Response bytes received, labeled by host.",
			},
			[]string{"site"},
		)

		postsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_posts_total",
				Help: "Post parser outcomes, labeled by category and outcome.",
			},
			[]string{"category", "outcome"},
		)

		listingPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_listing_pages_total",
				Help: "Listing pages visited, labeled by category and result.",
			},
			[]string{"category", "result"},
		)

		mediaDownloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_media_downloads_total",
				Help: "Media downloads, labeled by folder and result.",
			},
			[]string{"folder", "result"},
		)

		audioProbesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_audio_probes_total",
				Help: "Audio CDN existence probes, labeled by result.",
			},
			[]string{"result"},
		)

		politenessDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_politeness_delay_seconds",
				Help:    "Histogram of politeness pauses between requests.",
				Buckets: []float64{0.1, 0.25, 0.5, 0.75, 1, 2, 5},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
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

// ObserveFetch records one outbound request.
func ObserveFetch(rawURL string, status int, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	fetchRequestsTotal.WithLabelValues(site, strconv.Itoa(status)).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObservePost records a post parser outcome.
func ObservePost(category, outcome string) {
	Init()
	postsTotal.WithLabelValues(category, outcome).Inc()
}

// ObserveListingPage records a listing page visit.
func ObserveListingPage(category, result string) {
	Init()
	listingPagesTotal.WithLabelValues(category, result).Inc()
}

// ObserveMedia records a media download attempt.
func ObserveMedia(folder string, ok bool) {
	Init()
	mediaDownloadsTotal.WithLabelValues(folder, result(ok)).Inc()
}

// ObserveAudioProbe records a CDN existence probe.
func ObserveAudioProbe(found bool) {
	Init()
	audioProbesTotal.WithLabelValues(result(found)).Inc()
}

// ObservePoliteness records the length of a politeness pause.
func ObservePoliteness(d time.Duration) {
	Init()
	politenessDelaySeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
