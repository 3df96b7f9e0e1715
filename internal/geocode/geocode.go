// Package geocode turns free-text place names into coordinates.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

const defaultHTTPTimeout = 30 * time.Second

var (
	// ErrEmptyQuery is returned for blank queries without contacting the service.
	ErrEmptyQuery = errors.New("empty geocoding query")
	// ErrNoResults is returned when the service finds nothing for the query.
	ErrNoResults = errors.New("no geocoding results")
	// ErrUnexpectedStatus is returned for non-200 responses.
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

// Point is a coordinate in the usual convention: north and east are positive.
type Point struct {
	Lat float64
	Lon float64
}

// Geocoder resolves a free-text query to the coordinate of its best match.
type Geocoder interface {
	Forward(ctx context.Context, query string) (Point, error)
}

// Nominatim is a Geocoder backed by the Nominatim search API.
type Nominatim struct {
	baseURL   string
	userAgent string
	http      *http.Client
	logger    *slog.Logger
}

// NewNominatim returns a Nominatim geocoder. Nominatim's usage policy asks for an
// identifying user agent.
func NewNominatim(baseURL, userAgent string, timeout time.Duration, logger *slog.Logger) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Nominatim{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
		logger:    logger.With("component", "geocoder"),
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Forward returns the coordinate of the first search result for query.
func (n *Nominatim) Forward(ctx context.Context, query string) (Point, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Point{}, ErrEmptyQuery
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+q.Encode(), http.NoBody)
	if err != nil {
		return Point{}, fmt.Errorf("failed to create request: %w", err)
	}
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return Point{}, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Point{}, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&results); err != nil {
		return Point{}, fmt.Errorf("failed to decode geocoding response: %w", err)
	}
	if len(results) == 0 {
		return Point{}, fmt.Errorf("%w for %q", ErrNoResults, query)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid longitude %q: %w", results[0].Lon, err)
	}

	n.logger.DebugContext(ctx, "Geocoded query", "query", query, "match", results[0].DisplayName, "lat", lat, "lon", lon)
	return Point{Lat: lat, Lon: lon}, nil
}
