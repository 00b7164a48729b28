package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scrape outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeBlocked = "blocked"
	OutcomeMissing = "missing"
)

var (
	ScrapeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nichescout_scrape_requests_total",
			Help: "Result-count scrapes by engine, outcome and bot-protection source",
		},
		[]string{"engine", "outcome", "detection_src"},
	)

	ScrapeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nichescout_scrape_duration_seconds",
			Help:    "Time to render a search results page",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"engine"},
	)

	ScrapeBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nichescout_scrape_bytes_total",
			Help: "Rendered HTML bytes across all scrapes",
		},
		[]string{"engine"},
	)

	LookupRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nichescout_lookup_requests_total",
			Help: "Calls to external lookup services by outcome",
		},
		[]string{"service", "outcome"},
	)

	LookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nichescout_lookup_duration_seconds",
			Help:    "Latency of external lookup services",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nichescout_proxy_failures_total",
			Help: "Proxy failures during HTTP rendering",
		},
		[]string{"proxy_url"},
	)

	SearchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nichescout_search_runs_total",
			Help: "Keyword research runs by outcome",
		},
		[]string{"outcome"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nichescout_search_duration_seconds",
			Help:    "End-to-end duration of a keyword research run",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
	)
)

// RecordScrape counts one result-count scrape. bytes is the rendered page
// size and d the render time; both are skipped when zero.
func RecordScrape(engine, outcome, detectionSrc string, d time.Duration, bytes int) {
	ScrapeRequestsTotal.WithLabelValues(engine, outcome, detectionSrc).Inc()
	if d > 0 {
		ScrapeDuration.WithLabelValues(engine).Observe(d.Seconds())
	}
	if bytes > 0 {
		ScrapeBytesTotal.WithLabelValues(engine).Add(float64(bytes))
	}
}

// RecordLookup counts one call to an external service such as trends or domainsdb.
func RecordLookup(service string, d time.Duration, err error) {
	LookupRequestsTotal.WithLabelValues(service, outcome(err)).Inc()
	LookupDuration.WithLabelValues(service).Observe(d.Seconds())
}

// RecordSearch counts one pipeline run.
func RecordSearch(d time.Duration, err error) {
	SearchRunsTotal.WithLabelValues(outcome(err)).Inc()
	SearchDuration.Observe(d.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// Handler exposes the default registry for mounting on an existing router.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server encapsulates a standalone HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "port", port, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
