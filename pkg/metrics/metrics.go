// Package metrics exposes the Prometheus metrics of the scripture client.
// All metrics are defined in their respective packages (cache, ratelimit,
// retry, queue, preload, scripture) via promauto and land in the default
// registry.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Sternrassler/scripture-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server exposes /metrics until its context ends.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Serve listens on addr and serves /metrics in the background. The server
// shuts down when ctx is cancelled or Close is called.
func Serve(ctx context.Context, addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	s := &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}
	logger := logging.NewLogger(logging.ComponentMetrics)

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
	return s, nil
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Close shuts the server down.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - scripture_cache_hits_total{layer, cache} (Counter): hits by layer (ttl, lru)
//   - scripture_cache_misses_total{layer, cache} (Counter): misses by layer
//   - scripture_cache_expirations_total{cache} (Counter): expired TTL entries removed
//   - scripture_cache_evictions_total (Counter): LRU evictions
//   - scripture_cache_entries{layer, cache} (Gauge): current entries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - scripture_rate_limit_rejections_total (Counter): local limiter rejections
//   - scripture_cooldown_triggers_total (Counter): global cooldown triggers
//   - scripture_cooldown_remaining_seconds (Gauge): remaining cooldown at last trigger
//
// Retry Metrics (pkg/retry):
//   - scripture_retries_total{error_class} (Counter): retry attempts
//   - scripture_retry_backoff_seconds{error_class} (Histogram): backoff duration
//   - scripture_retry_exhausted_total{error_class} (Counter): operations that exhausted retries
//
// Queue Metrics (pkg/queue):
//   - scripture_queue_depth{priority} (Gauge): waiting requests
//   - scripture_queue_wait_seconds{priority} (Histogram): enqueue to dispatch
//   - scripture_queue_dispatched_total{outcome} (Counter): dispatched requests
//
// Preload Metrics (pkg/preload):
//   - scripture_preload_tasks_total{page, outcome} (Counter): finished preload tasks
//   - scripture_preload_skipped_total{reason} (Counter): requests dropped by a guard
//
// Request Metrics (pkg/scripture):
//   - scripture_requests_total{endpoint, status} (Counter): upstream requests
//   - scripture_request_duration_seconds{endpoint} (Histogram): upstream latency
//   - scripture_errors_total{class} (Counter): upstream errors by class
//
// Example Prometheus Queries:
//
//   # Content cache hit rate
//   sum(rate(scripture_cache_hits_total{layer="lru"}[5m])) /
//   (sum(rate(scripture_cache_hits_total{layer="lru"}[5m])) + sum(rate(scripture_cache_misses_total{layer="lru"}[5m])))
//
//   # Time spent cooling down
//   rate(scripture_cooldown_triggers_total[1h])
//
//   # P95 queue wait for foreground requests
//   histogram_quantile(0.95, rate(scripture_queue_wait_seconds_bucket{priority="high"}[5m]))
