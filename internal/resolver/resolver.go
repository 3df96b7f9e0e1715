// Package resolver turns a free-text location query into a registered chart
// location: geocode the query, find the nearest chart, then scrape its title.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/edgard/clearskybot/internal/geocode"
	"github.com/edgard/clearskybot/internal/metrics"
	"github.com/edgard/clearskybot/internal/registry"
	"github.com/edgard/clearskybot/internal/resilience"
)

// ErrEmptyQuery is returned for blank queries. It is never retried.
var ErrEmptyQuery = errors.New("empty location query")

// ChartLookup is the part of the chart host used for resolution.
type ChartLookup interface {
	NearestKey(ctx context.Context, lat, lon float64) (string, error)
	Title(ctx context.Context, key string) (string, error)
}

// Resolver resolves queries, retrying each step according to its policy.
type Resolver struct {
	geocoder geocode.Geocoder
	charts   ChartLookup
	policy   resilience.RetryPolicy
	logger   *slog.Logger
}

// New returns a Resolver. With an unlimited policy Resolve only returns once it
// succeeds or ctx is cancelled.
func New(geocoder geocode.Geocoder, charts ChartLookup, policy resilience.RetryPolicy, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{
		geocoder: geocoder,
		charts:   charts,
		policy:   policy,
		logger:   logger.With("component", "resolver"),
	}
}

// SiteLongitude converts an east-positive longitude to the chart host's
// west-positive convention.
func SiteLongitude(lon float64) float64 {
	return -lon
}

// Resolve returns the chart location nearest to query.
func (r *Resolver) Resolve(ctx context.Context, query string) (registry.Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return registry.Location{}, ErrEmptyQuery
	}
	log := r.logger.With("query", query)

	var key string
	err := resilience.Do(ctx, r.policy, log, "resolve_key", func(ctx context.Context) error {
		pt, err := r.geocoder.Forward(ctx, query)
		if err != nil {
			metrics.ResolverFailures.WithLabelValues("geocode").Inc()
			return fmt.Errorf("geocode: %w", err)
		}
		k, err := r.charts.NearestKey(ctx, pt.Lat, SiteLongitude(pt.Lon))
		if err != nil {
			metrics.ResolverFailures.WithLabelValues("nearest_key").Inc()
			return fmt.Errorf("nearest chart: %w", err)
		}
		key = k
		return nil
	})
	if err != nil {
		return registry.Location{}, fmt.Errorf("failed to resolve key for %q: %w", query, err)
	}

	var title string
	err = resilience.Do(ctx, r.policy, log.With("key", key), "resolve_title", func(ctx context.Context) error {
		t, err := r.charts.Title(ctx, key)
		if err != nil {
			metrics.ResolverFailures.WithLabelValues("title").Inc()
			return fmt.Errorf("chart title: %w", err)
		}
		title = t
		return nil
	})
	if err != nil {
		return registry.Location{}, fmt.Errorf("failed to resolve title for %q: %w", key, err)
	}

	log.InfoContext(ctx, "Resolved location", "key", key, "title", title)
	return registry.Location{Title: title, Key: key}, nil
}
