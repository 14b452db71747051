// Package upstream provides the HTTP client for the remote image API.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for upstream operations.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "image_redirect_upstream_requests_total",
		Help: "Total upstream image API requests by outcome",
	}, []string{"outcome"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "image_redirect_upstream_request_duration_seconds",
		Help:    "Upstream image API request duration in seconds by outcome",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"outcome"})
)

const (
	// DefaultBaseURL is the image API queried when none is configured.
	DefaultBaseURL = "https://t.alcy.cc"

	// StatusOK is the value of the envelope code field on success.
	// It is independent from the HTTP status of the response.
	StatusOK = 200

	// maxBodyBytes caps how much of an upstream body is decoded.
	maxBodyBytes = 1 << 20
)

// ImageRecord is the JSON envelope returned by the image API.
type ImageRecord struct {
	Code   int32  `json:"code"`
	URL    string `json:"url"`
	Width  int32  `json:"width"`
	Height int32  `json:"height"`
}

// wireRecord detects missing fields; encoding/json leaves absent fields nil.
type wireRecord struct {
	Code   *int32  `json:"code"`
	URL    *string `json:"url"`
	Width  *int32  `json:"width"`
	Height *int32  `json:"height"`
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is scheme and host of the image API, e.g. "https://t.alcy.cc".
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout bounds a whole request, body included. It must be positive.
	Timeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
	}
}

// Client fetches image records from the image API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	config     Config
	logger     zerolog.Logger
}

// New creates a new upstream client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url must include a host (got %q)", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		config:  cfg,
		logger:  log.With().Str("component", "upstream").Logger(),
	}, nil
}

// RecordURL returns the image API URL for device.
// The device is escaped so that it always stays a single path segment.
func (c *Client) RecordURL(device string) string {
	return c.baseURL + "/" + url.PathEscape(device) + "/?json"
}

// Resolve returns the image URL for device.
func (c *Client) Resolve(ctx context.Context, device string) (string, error) {
	record, err := c.Fetch(ctx, device)
	if err != nil {
		return "", err
	}
	return record.URL, nil
}

// Fetch performs one GET against the image API and validates the envelope.
// Every failure is returned as an *UpstreamError. There are no retries.
func (c *Client) Fetch(ctx context.Context, device string) (*ImageRecord, error) {
	startTime := time.Now()
	outcome := "ok"
	defer func() {
		upstreamRequestDuration.WithLabelValues(outcome).Observe(time.Since(startTime).Seconds())
		upstreamRequestsTotal.WithLabelValues(outcome).Inc()
	}()

	endpoint := c.RecordURL(device)
	c.logger.Debug().Str("device", device).Str("url", endpoint).Msg("Requesting image record")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		outcome = string(ErrorClassTransport)
		return nil, &UpstreamError{Class: ErrorClassTransport, Device: device, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		outcome = string(ErrorClassTransport)
		c.logger.Warn().Err(err).Str("device", device).Str("error_class", outcome).Msg("Upstream request failed")
		return nil, &UpstreamError{Class: ErrorClassTransport, Device: device, Err: err}
	}
	defer resp.Body.Close()

	record, err := decodeRecord(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		outcome = string(ErrorClassDecode)
		c.logger.Warn().
			Err(err).
			Str("device", device).
			Int("status", resp.StatusCode).
			Str("error_class", outcome).
			Msg("Upstream response could not be decoded")
		return nil, &UpstreamError{Class: ErrorClassDecode, Device: device, StatusCode: resp.StatusCode, Err: err}
	}

	if record.Code != StatusOK {
		outcome = string(ErrorClassLogical)
		c.logger.Warn().
			Str("device", device).
			Int("status", resp.StatusCode).
			Int32("upstream_code", record.Code).
			Str("error_class", outcome).
			Msg("Upstream returned a failure code")
		return nil, &UpstreamError{Class: ErrorClassLogical, Device: device, StatusCode: resp.StatusCode, Code: int(record.Code)}
	}

	c.logger.Debug().
		Str("device", device).
		Str("image_url", record.URL).
		Int32("width", record.Width).
		Int32("height", record.Height).
		Msg("Image record resolved")

	return record, nil
}

// decodeRecord requires the body to be exactly one JSON object carrying
// every envelope field. A success envelope must also carry a non-empty url.
func decodeRecord(r io.Reader) (*ImageRecord, error) {
	dec := json.NewDecoder(r)

	var wire wireRecord
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errors.New("decode json: trailing data after envelope")
	}

	var missing []string
	if wire.Code == nil {
		missing = append(missing, "code")
	}
	if wire.URL == nil {
		missing = append(missing, "url")
	}
	if wire.Width == nil {
		missing = append(missing, "width")
	}
	if wire.Height == nil {
		missing = append(missing, "height")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}

	record := &ImageRecord{
		Code:   *wire.Code,
		URL:    *wire.URL,
		Width:  *wire.Width,
		Height: *wire.Height,
	}

	if record.Code == StatusOK && strings.TrimSpace(record.URL) == "" {
		return nil, fmt.Errorf("empty url with code %d", record.Code)
	}

	return record, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
