// Package metrics defines the bot's Prometheus collectors and the HTTP endpoint
// that exposes them.
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

const namespace = "clearskybot"

var (
	// Posts counts platform posts by kind (daily, reply) and result (ok, error).
	Posts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "posts_total",
		Help:      "Posts sent to the platform.",
	}, []string{"kind", "result"})

	// Mentions counts handled mentions by command.
	Mentions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mentions_total",
		Help:      "Mentions dispatched by the reactor.",
	}, []string{"command"})

	// ResolverFailures counts failed resolution attempts by step.
	ResolverFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resolver_failures_total",
		Help:      "Failed location resolution attempts.",
	}, []string{"step"})

	// ChartFetchFailures counts chart downloads that did not succeed.
	ChartFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chart_fetch_failures_total",
		Help:      "Chart downloads that failed.",
	})

	// Cursor is the last mention id persisted by the reactor.
	Cursor = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mention_cursor",
		Help:      "Last persisted mention id.",
	})
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	log := logger.With("component", "metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down metrics server", "error", err)
		}
		log.Info("Metrics server stopped")
		return nil
	}
}
