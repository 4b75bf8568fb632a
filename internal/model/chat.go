// Package model defines shared types for the proxy.
package model

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ChatRequest is a decoded inbound chat-completion request. Raw holds the
// exact inbound bytes; they are forwarded upstream unmodified, so the body
// is serialized exactly once (by the client).
type ChatRequest struct {
	Model  string
	Stream bool
	Raw    json.RawMessage
}

// chatProbe extracts only the fields the proxy itself inspects. Everything
// else passes through opaquely via Raw.
type chatProbe struct {
	Model  string          `json:"model"`
	Stream json.RawMessage `json:"stream"`
}

// ParseChatRequest decodes an inbound request body. The stream flag defaults
// to false when absent or not a JSON boolean; this single decision selects
// the relay mode and is never re-evaluated from the upstream response.
func ParseChatRequest(data []byte) (*ChatRequest, error) {
	var probe chatProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode chat request: %w", err)
	}

	stream := false
	if len(probe.Stream) > 0 {
		// Non-boolean values (e.g. "true", 1) are tolerated as false.
		_ = json.Unmarshal(probe.Stream, &stream)
	}

	return &ChatRequest{
		Model:  probe.Model,
		Stream: stream,
		Raw:    json.RawMessage(data),
	}, nil
}

// UpstreamResponse represents a live upstream response. Body ownership
// transfers to the consumer, which must close it.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// ContentType returns the upstream's declared content type.
func (r *UpstreamResponse) ContentType() string {
	return r.Header.Get("Content-Type")
}

// BufferedResult is a fully read upstream response for non-streaming relay.
// IsJSON reports whether Body is a valid JSON document; when it is not, the
// relay degrades to raw text with the upstream status preserved.
type BufferedResult struct {
	StatusCode int
	Body       []byte
	IsJSON     bool
}
