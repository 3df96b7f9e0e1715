// Package chart talks to the Clear Sky Chart host: it downloads chart images,
// finds the chart nearest to a coordinate and scrapes chart titles.
package chart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultBaseURL is the public chart host.
	DefaultBaseURL = "https://www.cleardarksky.com"

	// UserAgent is sent with every request to the chart host.
	UserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 12_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/12.0 Mobile/15E148 Safari/604.1"

	// MaxChartBytes caps a downloaded chart image.
	MaxChartBytes = 8 << 20
	// MaxPageBytes caps a scraped HTML page.
	MaxPageBytes = 1 << 20

	defaultHTTPTimeout = 30 * time.Second

	// dark colour scheme for the chart image
	chartColorScheme = "212425"

	titleTerminator = "Clear"
)

var (
	// ErrUnexpectedStatus is returned when the host answers with a non-200 status.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrMarkerNotFound is returned when a scraped page lacks the expected marker.
	ErrMarkerNotFound = errors.New("marker not found in page")
	// ErrTooLarge is returned when a response body exceeds its size cap.
	ErrTooLarge = errors.New("response body too large")

	keyMarker = regexp.MustCompile(`\.\./c/([^"'<>\s/]+?)key\.html`)
)

// Artifact is a downloaded chart image.
type Artifact struct {
	Filename string
	Data     []byte
}

// Client fetches and scrapes chart host pages.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient returns a chart host client. Empty baseURL selects DefaultBaseURL and
// a non-positive timeout selects a 30 second timeout.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "chart_client"),
	}
}

// Filename returns the file name of the chart image for key.
func Filename(key string) string {
	return key + "csk.gif"
}

// ChartURL returns the chart image URL for key.
func (c *Client) ChartURL(key string) string {
	return fmt.Sprintf("%s/c/%s?c=%s", c.baseURL, url.PathEscape(Filename(key)), chartColorScheme)
}

// InfoURL returns the page explaining how to read the chart for key.
func (c *Client) InfoURL(key string) string {
	return fmt.Sprintf("%s/c/%skey.html", c.baseURL, url.PathEscape(key))
}

// NearestURL returns the find-nearest-chart page for a coordinate. lon must
// already follow the host's convention, where west is positive.
func (c *Client) NearestURL(lat, lon float64) string {
	q := url.Values{}
	q.Set("type", "llmap")
	q.Set("Mn", "")
	q.Set("olat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("olong", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("unit", "1")
	return c.baseURL + "/cgi-bin/find_chart.py?" + q.Encode()
}

// Fetch downloads the chart image for key.
func (c *Client) Fetch(ctx context.Context, key string) (*Artifact, error) {
	body, err := c.get(ctx, c.ChartURL(key))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chart %s: %w", key, err)
	}
	defer body.Close()

	data, err := readLimited(body, MaxChartBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart %s: %w", key, err)
	}

	c.logger.DebugContext(ctx, "Fetched chart", "key", key, "bytes", len(data))
	return &Artifact{Filename: Filename(key), Data: data}, nil
}

// NearestKey returns the key of the chart closest to the coordinate by scraping
// the host's search results for the first "../c/<KEY>key.html" link.
func (c *Client) NearestKey(ctx context.Context, lat, lon float64) (string, error) {
	body, err := c.get(ctx, c.NearestURL(lat, lon))
	if err != nil {
		return "", fmt.Errorf("failed to look up nearest chart: %w", err)
	}
	defer body.Close()

	page, err := readLimited(body, MaxPageBytes)
	if err != nil {
		return "", fmt.Errorf("failed to read nearest chart page: %w", err)
	}

	m := keyMarker.FindSubmatch(page)
	if m == nil {
		return "", fmt.Errorf("nearest chart key: %w", ErrMarkerNotFound)
	}
	return string(m[1]), nil
}

// Title returns the display name of the chart for key: the page title up to
// the word "Clear".
func (c *Client) Title(ctx context.Context, key string) (string, error) {
	body, err := c.get(ctx, c.InfoURL(key))
	if err != nil {
		return "", fmt.Errorf("failed to fetch chart page %s: %w", key, err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse chart page %s: %w", key, err)
	}

	sel := doc.Find("title").First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("chart title for %s: %w", key, ErrMarkerNotFound)
	}
	text := sel.Text()
	idx := strings.Index(text, titleTerminator)
	if idx < 0 {
		return "", fmt.Errorf("chart title for %s: %w", key, ErrMarkerNotFound)
	}

	return strings.TrimSpace(text[:idx]), nil
}

func (c *Client) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return resp.Body, nil
}

// readLimited reads all of r, failing with ErrTooLarge past limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}
