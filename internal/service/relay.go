// Package service implements the core forwarding logic: upstream URL and
// header derivation, the single outbound call per request, and the error
// taxonomy consumed by the handlers.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"chat-proxy-go/internal/client"
	"chat-proxy-go/internal/config"
	"chat-proxy-go/internal/model"
)

const (
	chatCompletionsPath = "v1/chat/completions"
	modelsPath          = "v1/models"
)

// RelayService builds and issues upstream calls. Exactly one upstream call
// is made per inbound request; there are no retries anywhere.
type RelayService struct {
	client  *client.UpstreamClient
	logger  *slog.Logger
	baseURL string
}

// NewRelayService creates a RelayService.
func NewRelayService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger) (*RelayService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream base_url %q is not absolute", cfg.Upstream.BaseURL)
	}

	return &RelayService{
		client:  c,
		logger:  logger.With("component", "relay_service"),
		baseURL: strings.TrimRight(u.String(), "/"),
	}, nil
}

// Complete performs a buffered (non-streaming) chat-completion relay: one
// POST, full body read, JSON validity check. A non-JSON body is not an
// error; the result carries it as raw text for the caller to degrade to.
func (s *RelayService) Complete(ctx context.Context, tenant string, req *model.ChatRequest, inbound http.Header) (*model.BufferedResult, error) {
	target := s.upstreamURL(tenant, chatCompletionsPath)
	header := s.outboundHeaders(inbound, false)

	s.logger.Debug("forwarding buffered request", "url", target, "model", req.Model)

	resp, cancel, err := s.client.Post(ctx, target, header, bytes.NewReader(req.Raw))
	if err != nil {
		return nil, ClassifyUpstreamError(err)
	}
	defer cancel()
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		// The read shares the call budget, so a stalled body is a timeout
		// like any other.
		return nil, ClassifyUpstreamError(err)
	}

	return &model.BufferedResult{
		StatusCode: resp.StatusCode,
		Body:       body,
		IsJSON:     json.Valid(body),
	}, nil
}

// OpenStream performs the streaming-mode POST and hands back the live
// upstream response as soon as its headers arrive. The caller owns the body
// and must call cancel once done with it.
func (s *RelayService) OpenStream(ctx context.Context, tenant string, req *model.ChatRequest, inbound http.Header) (*model.UpstreamResponse, context.CancelFunc, error) {
	target := s.upstreamURL(tenant, chatCompletionsPath)
	header := s.outboundHeaders(inbound, true)

	s.logger.Debug("forwarding streaming request", "url", target, "model", req.Model)

	resp, cancel, err := s.client.Post(ctx, target, header, bytes.NewReader(req.Raw))
	if err != nil {
		return nil, nil, ClassifyUpstreamError(err)
	}
	return resp, cancel, nil
}

// Models fetches the upstream model list as a buffered passthrough.
func (s *RelayService) Models(ctx context.Context, tenant string, inbound http.Header) (*model.BufferedResult, error) {
	target := s.upstreamURL(tenant, modelsPath)
	header := s.outboundHeaders(inbound, false)

	resp, cancel, err := s.client.Get(ctx, target, header)
	if err != nil {
		return nil, ClassifyUpstreamError(err)
	}
	defer cancel()
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ClassifyUpstreamError(err)
	}

	return &model.BufferedResult{
		StatusCode: resp.StatusCode,
		Body:       body,
		IsJSON:     json.Valid(body),
	}, nil
}

// upstreamURL joins the configured base with the optional tenant segment and
// the fixed API path, with exactly one separator between every pair
// regardless of stray slashes on either side.
func (s *RelayService) upstreamURL(tenant, apiPath string) string {
	var b strings.Builder
	b.WriteString(s.baseURL)
	if t := strings.Trim(tenant, "/"); t != "" {
		b.WriteByte('/')
		b.WriteString(t)
	}
	b.WriteByte('/')
	b.WriteString(strings.Trim(apiPath, "/"))
	return b.String()
}

// outboundHeaders derives the upstream header set. It is never a verbatim
// copy of the inbound headers: only Authorization survives, and
// Content-Type/Accept are forced to match the relay mode.
func (s *RelayService) outboundHeaders(inbound http.Header, stream bool) http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	if stream {
		h.Set("Accept", "text/event-stream")
	} else {
		h.Set("Accept", "application/json")
	}

	// Get is case-insensitive, so "authorization" and "Authorization" both
	// match; the value is forwarded untouched.
	if auth := inbound.Get("Authorization"); auth != "" {
		h.Set("Authorization", auth)
		s.logger.Debug("forwarding authorization header", "preview", authPreview(auth))
	} else {
		// Not a local rejection: the upstream decides whether to accept
		// unauthenticated calls.
		s.logger.Debug("no authorization header on inbound request")
	}
	return h
}

// authPreview truncates a credential for debug logs.
func authPreview(auth string) string {
	if len(auth) > 20 {
		return auth[:20] + "..."
	}
	return auth
}
