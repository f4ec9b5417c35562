package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Media resolver metrics
	mediaCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomstats_media_cache_hits_total",
		Help: "Total number of media cache hits",
	})

	mediaCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomstats_media_cache_misses_total",
		Help: "Total number of media cache misses",
	})

	mediaCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomstats_media_coalesced_total",
		Help: "Total number of resolve calls joined onto an in-flight fetch",
	})

	mediaFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomstats_media_fetches_total",
		Help: "Total number of media network fetches",
	}, []string{"status"})

	mediaFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roomstats_media_fetch_duration_seconds",
		Help:    "Duration of media network fetches",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	// Statistics aggregator metrics
	statsPages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomstats_stats_pages_total",
		Help: "Total number of history pages paginated",
	})

	statsSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomstats_stats_sessions_total",
		Help: "Total number of statistics sessions by terminal state",
	}, []string{"state"})

	statsComputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "roomstats_stats_compute_duration_seconds",
		Help:    "Duration of statistics snapshot recomputation",
		Buckets: prometheus.DefBuckets,
	})

	// Profile store metrics
	profileLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomstats_profile_lookups_total",
		Help: "Total number of profile lookups",
	}, []string{"source"})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordMediaCacheHit records a media cache hit
func (m *Metrics) RecordMediaCacheHit() {
	mediaCacheHits.Inc()
}

// RecordMediaCacheMiss records a media cache miss
func (m *Metrics) RecordMediaCacheMiss() {
	mediaCacheMisses.Inc()
}

// RecordMediaCoalesced records a resolve call served by an in-flight fetch
func (m *Metrics) RecordMediaCoalesced() {
	mediaCoalesced.Inc()
}

// RecordMediaFetch records a media network fetch
func (m *Metrics) RecordMediaFetch(status string, duration time.Duration) {
	mediaFetches.WithLabelValues(status).Inc()
	mediaFetchDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordStatsPage records one paginated history page
func (m *Metrics) RecordStatsPage() {
	statsPages.Inc()
}

// RecordStatsSession records a finished statistics session
func (m *Metrics) RecordStatsSession(state string) {
	statsSessions.WithLabelValues(state).Inc()
}

// RecordStatsCompute records one snapshot recomputation
func (m *Metrics) RecordStatsCompute(duration time.Duration) {
	statsComputeDuration.Observe(duration.Seconds())
}

// RecordProfileLookup records a profile lookup by source (cache|fetch|fallback)
func (m *Metrics) RecordProfileLookup(source string) {
	profileLookups.WithLabelValues(source).Inc()
}

// StartMetricsServer starts the metrics HTTP server
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
