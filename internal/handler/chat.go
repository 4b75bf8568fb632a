package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"chat-proxy-go/internal/metrics"
	"chat-proxy-go/internal/model"
	"chat-proxy-go/internal/service"
)

// sseContentType is the upstream's declared framing for event streams.
const sseContentType = "text/event-stream"

// ChatHandler relays chat-completion requests to the upstream, buffered or
// streamed depending on the request's stream flag.
type ChatHandler struct {
	service *service.RelayService
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewChatHandler creates a ChatHandler. The metrics parameter is optional.
func NewChatHandler(svc *service.RelayService, logger *slog.Logger, m *metrics.Metrics) *ChatHandler {
	return &ChatHandler{
		service: svc,
		logger:  logger.With("component", "chat_handler"),
		metrics: m,
	}
}

// Handle is the entry point for POST [/:tenant]/v1/chat/completions. It
// decodes the body once, classifies the request by its stream flag, and
// dispatches to the matching relay mode. The mode is never re-evaluated.
func (h *ChatHandler) Handle(c echo.Context) error {
	req := c.Request()
	tenant := c.Param("tenant")

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid JSON: "+err.Error()))
	}

	chatReq, err := model.ParseChatRequest(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Invalid JSON: "+err.Error()))
	}

	if chatReq.Stream {
		return h.relayStream(c, tenant, chatReq)
	}
	return h.relayBuffered(c, tenant, chatReq)
}

// relayBuffered waits for the full upstream response and re-sends it with
// the upstream status preserved. A non-JSON body (some upstream errors are
// plain text) degrades to a raw text response; that is a passthrough, not
// an error.
func (h *ChatHandler) relayBuffered(c echo.Context, tenant string, chatReq *model.ChatRequest) error {
	res, err := h.service.Complete(c.Request().Context(), tenant, chatReq, c.Request().Header)
	if err != nil {
		return h.mapUpstreamError(c, err)
	}

	if res.IsJSON {
		return c.JSONBlob(res.StatusCode, res.Body)
	}
	return c.Blob(res.StatusCode, echo.MIMETextPlainCharsetUTF8, res.Body)
}

// relayStream forwards the upstream body to the client chunk by chunk as it
// arrives, flushing after every write. Once the response header has been
// written the status is fixed; later failures surface as a single inline
// SSE error event followed by stream close.
func (h *ChatHandler) relayStream(c echo.Context, tenant string, chatReq *model.ChatRequest) error {
	req := c.Request()

	resp, cancel, err := h.service.OpenStream(req.Context(), tenant, chatReq, req.Header)
	if err != nil {
		// Nothing has been written yet, so a real HTTP error status is
		// still possible.
		return h.mapUpstreamError(c, err)
	}
	defer cancel()
	defer func() { _ = resp.Body.Close() }()

	// The upstream is authoritative on what it sends: if it did not declare
	// an event stream (typically a JSON error body on a 4xx/5xx), relay it
	// buffered with its status preserved instead of faking SSE framing.
	if !strings.HasPrefix(resp.ContentType(), sseContentType) {
		return h.relayNonStream(c, resp)
	}

	if h.metrics != nil {
		h.metrics.StreamsActive.Inc()
		defer h.metrics.StreamsActive.Dec()
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, sseContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	// Tells nginx (and friends) not to buffer the stream.
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	buf := make([]byte, 32*1024)
	chunks := 0
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				// Client is gone; stop reading so the upstream connection
				// is released instead of pinned by an abandoned stream.
				h.logger.Warn("client write failed mid-stream",
					"err", werr,
					"chunks", chunks,
				)
				return nil
			}
			w.Flush()
			chunks++
			if h.metrics != nil {
				h.metrics.StreamChunks.Inc()
				h.metrics.StreamBytesTotal.Add(float64(n))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			// The status line is already on the wire; the only channel
			// left is an SSE-framed error event.
			h.writeStreamError(c, service.ClassifyUpstreamError(rerr), chunks)
			return nil
		}
	}

	h.logger.Debug("stream completed", "chunks", chunks)
	return nil
}

// relayNonStream handles the streaming-mode request whose upstream response
// turned out not to be an event stream.
func (h *ChatHandler) relayNonStream(c echo.Context, resp *model.UpstreamResponse) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return h.mapUpstreamError(c, service.ClassifyUpstreamError(err))
	}
	if json.Valid(body) {
		return c.JSONBlob(resp.StatusCode, body)
	}
	return c.Blob(resp.StatusCode, echo.MIMETextPlainCharsetUTF8, body)
}

// writeStreamError emits one final SSE error event and lets the stream
// close. No retry follows; the failure is surfaced exactly once.
func (h *ChatHandler) writeStreamError(c echo.Context, err error, chunks int) {
	h.logger.Error("stream failed mid-flight",
		"err", err,
		"chunks", chunks,
	)

	msg := "Gateway timeout"
	if !service.IsTimeout(err) {
		msg = "Connection failed: " + rootCause(err).Error()
	}

	payload, merr := json.Marshal(errorBody(msg))
	if merr != nil {
		return
	}

	w := c.Response()
	fmt.Fprintf(w, "data: %s\n\n", payload)
	w.Flush()
}

// mapUpstreamError converts the service error taxonomy into the fixed
// client-visible outcomes used before any response byte has been sent.
func (h *ChatHandler) mapUpstreamError(c echo.Context, err error) error {
	h.logger.Error("upstream call failed",
		"err", err,
		"path", c.Request().URL.Path,
	)

	var te *service.TimeoutError
	if errors.As(err, &te) {
		return c.JSON(http.StatusGatewayTimeout, errorBody("Gateway timeout to Server A"))
	}

	return c.JSON(http.StatusBadGateway, errorBody("Failed to connect to Server A: "+rootCause(err).Error()))
}

// rootCause unwraps the taxonomy layer so client-visible detail carries the
// transport failure, not the classification wrapper.
func rootCause(err error) error {
	var te *service.TimeoutError
	if errors.As(err, &te) && te.Err != nil {
		return te.Err
	}
	var ce *service.ConnectError
	if errors.As(err, &ce) && ce.Err != nil {
		return ce.Err
	}
	return err
}

// errorBody is the JSON shape of every proxy-originated error.
func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
