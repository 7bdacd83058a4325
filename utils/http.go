package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"kinorium-scraper/internal/types"
)

// HTTPStatusError is returned when the site answers with a non-2xx status
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d (%s)", e.StatusCode, e.URL)
}

// Unwrap classifies every status failure as an upstream error
func (e *HTTPStatusError) Unwrap() error { return types.ErrUpstream }

// HTTPClient provides plain HTTP fetching with a bounded connection retry
type HTTPClient struct {
	client *http.Client
	config *types.Config
	logger types.Logger
}

// NewHTTPClient creates a new HTTP client with the given configuration
func NewHTTPClient(config *types.Config, logger types.Logger) *HTTPClient {
	client := &http.Client{
		Timeout: config.RequestTimeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: config.RequestTimeout,
		},
	}

	return &HTTPClient{
		client: client,
		config: config,
		logger: logger,
	}
}

// Get performs a GET request. Connection-level failures are retried up to
// ConnectRetries times; HTTP error statuses are never retried.
func (h *HTTPClient) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= h.config.ConnectRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("User-Agent", h.config.UserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", h.config.AcceptLanguage)

		h.logger.Debugf("Making request to %s (attempt %d/%d)", url, attempt+1, h.config.ConnectRetries+1)

		body, err := h.do(req)
		if err == nil {
			h.logger.Debugf("Successfully retrieved %d bytes from %s", len(body), url)
			return body, nil
		}

		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) {
			h.logger.Warnf("Unexpected status code %d from %s", statusErr.StatusCode, url)
			return nil, err
		}
		if ctx.Err() != nil || isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", types.ErrTimeout, err)
		}

		lastErr = err
		h.logger.Warnf("Request failed (attempt %d): %v", attempt+1, err)
	}

	return nil, fmt.Errorf("%w: all retry attempts failed: %v", types.ErrUpstream, lastErr)
}

func (h *HTTPClient) do(req *http.Request) ([]byte, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &HTTPStatusError{URL: req.URL.String(), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "Client.Timeout exceeded")
}

// Close releases idle connections
func (h *HTTPClient) Close() {
	h.client.CloseIdleConnections()
}
