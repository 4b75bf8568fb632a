// Package client provides the pooled upstream HTTP client for Server A.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"chat-proxy-go/internal/config"
	"chat-proxy-go/internal/metrics"
	"chat-proxy-go/internal/model"
)

// UpstreamClient sends requests to the upstream chat-completion API. One
// instance is built at startup and shared by every request; the underlying
// transport hands connections out and back atomically, so no further
// synchronization is needed.
type UpstreamClient struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewUpstreamClient creates an UpstreamClient with connection pooling and
// independent connect/read timeouts. The connect timeout bounds only the
// handshake (dial + TLS); the total timeout is applied per call as a context
// deadline so it covers every streamed byte without being shared across
// concurrent requests. The metrics parameter is optional; pass nil to
// disable upstream metrics recording.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	up := cfg.Upstream
	transport := &http.Transport{
		MaxIdleConns:        up.MaxConnections,
		MaxIdleConnsPerHost: up.MaxConnectionsPerHost,
		MaxConnsPerHost:     up.MaxConnectionsPerHost,
		IdleConnTimeout:     time.Duration(up.IdleConnTimeoutSeconds) * time.Second,
		TLSHandshakeTimeout: up.ConnectTimeout(),
		DialContext: (&net.Dialer{
			Timeout:   up.ConnectTimeout(),
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &UpstreamClient{
		// No Client.Timeout: the per-call context deadline below plays the
		// same role and composes with client-disconnect cancellation.
		httpClient: &http.Client{Transport: transport},
		timeout:    up.Timeout(),
		logger:     logger.With("component", "upstream_client"),
		metrics:    m,
	}
}

// Post sends a JSON body to the upstream and returns the live response.
// The caller is responsible for closing the response body; the returned
// cancel func must be called once the body is fully consumed (it releases
// the per-call deadline timer).
func (c *UpstreamClient) Post(ctx context.Context, url string, header http.Header, body io.Reader) (*model.UpstreamResponse, context.CancelFunc, error) {
	return c.do(ctx, http.MethodPost, url, header, body)
}

// Get issues a GET to the upstream and returns the live response.
// Ownership rules match Post.
func (c *UpstreamClient) Get(ctx context.Context, url string, header http.Header) (*model.UpstreamResponse, context.CancelFunc, error) {
	return c.do(ctx, http.MethodGet, url, header, nil)
}

func (c *UpstreamClient) do(ctx context.Context, method, url string, header http.Header, body io.Reader) (*model.UpstreamResponse, context.CancelFunc, error) {
	// The deadline bounds the entire call, headers and body reads included.
	// It derives from the inbound request context, so a client disconnect
	// cancels the upstream call and frees its connection.
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)

	req, err := http.NewRequestWithContext(callCtx, method, url, body)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("build upstream request: %w", err)
	}
	if header != nil {
		req.Header = header
	}

	c.logger.Debug("upstream request", "method", method, "url", url)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via UpstreamResponse
	duration := time.Since(start).Seconds()

	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(metrics.NormalizeMethod(method)).Observe(duration)
	}

	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("upstream request: %w", err)
	}

	if c.metrics != nil {
		c.metrics.UpstreamResponses.WithLabelValues(metrics.NormalizeMethod(method), strconv.Itoa(resp.StatusCode)).Inc()
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, cancel, nil
}
