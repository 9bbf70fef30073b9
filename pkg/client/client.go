// Package client provides the HTTP transport for the historical data host,
// with retry, error classification, request budgeting, and metrics.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/batterysnoopy/crypto-downloader/pkg/ratelimit"
)

// DefaultBaseURL is the public KuCoin historical data host.
const DefaultBaseURL = "https://historical-data.kucoin.com"

// Prometheus metrics for transport operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kucoin_requests_total",
		Help: "Total requests by path kind and status",
	}, []string{"kind", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kucoin_request_duration_seconds",
		Help:    "Request duration in seconds by path kind",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"kind"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kucoin_errors_total",
		Help: "Total transport errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of transport errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Client is the HTTP transport for the historical data host.
type Client struct {
	httpClient *http.Client
	budget     *ratelimit.Budget
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the static file host.
	BaseURL string

	// UserAgent sent with every request.
	UserAgent string

	// Timeout per HTTP request.
	Timeout time.Duration

	// Retry behavior for server and network errors. 4xx is never retried.
	Retry RetryConfig

	// Budget optionally gates requests against a shared politeness budget.
	// Nil disables budgeting.
	Budget *ratelimit.Budget
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: "crypto-downloader/1.0",
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new transport client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	logger := log.With().Str("component", "transport").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		budget: cfg.Budget,
		config: cfg,
		logger: logger,
	}, nil
}

// Get performs a GET request against the configured host.
//
// Non-2xx responses are returned to the caller as responses, not errors:
// whether a 404 is fatal depends on what is being fetched. Network failures
// and retry exhaustion surface as errors. Server and network errors are
// retried with backoff; client errors are not.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	if c.budget != nil {
		if err := c.budget.Wait(ctx); err != nil {
			return nil, fmt.Errorf("request budget: %w", err)
		}
	}

	url := c.config.BaseURL + "/" + strings.TrimPrefix(path, "/")
	kind := pathKind(path)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(kind).Observe(time.Since(startTime).Seconds())
	}()

	var resp *http.Response
	retryErr := retryWithBackoff(ctx, c.config.Retry, c.logger, func() (ErrorClass, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return ErrorClassClient, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.config.UserAgent)

		resp, err = c.httpClient.Do(req)
		if err != nil {
			c.logger.Error().Err(err).Str("url", url).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(kind, "network_error").Inc()
			return ErrorClassNetwork, err
		}

		if resp.StatusCode >= 400 {
			class := classifyStatus(resp.StatusCode)
			errorsTotal.WithLabelValues(string(class)).Inc()
			requestsTotal.WithLabelValues(kind, fmt.Sprintf("%d", resp.StatusCode)).Inc()

			c.logger.Warn().
				Str("url", url).
				Int("status", resp.StatusCode).
				Str("error_class", string(class)).
				Msg("Request returned error status")

			if shouldRetry(class) {
				err := &HTTPError{
					StatusCode: resp.StatusCode,
					Class:      class,
					Message:    resp.Status,
				}
				resp.Body.Close()
				return class, err
			}

			// 4xx is handed to the caller as a response.
			return class, nil
		}

		requestsTotal.WithLabelValues(kind, fmt.Sprintf("%d", resp.StatusCode)).Inc()
		return "", nil
	})

	if retryErr != nil {
		return nil, retryErr
	}

	return resp, nil
}

// classifyStatus categorizes an HTTP status code for retry and observability.
func classifyStatus(status int) ErrorClass {
	if status >= 500 {
		return ErrorClassServer
	}
	return ErrorClassClient
}

// pathKind buckets request paths for metric labels so per-date archive
// paths don't explode label cardinality.
func pathKind(path string) string {
	if strings.HasSuffix(path, ".zip") {
		return "archive"
	}
	return "listing"
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
