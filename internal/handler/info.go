package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"chat-proxy-go/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// InfoHandler serves the liveness banner and debug endpoints.
type InfoHandler struct {
	cfg     *config.Config
	version Version
}

// NewInfoHandler creates an InfoHandler.
func NewInfoHandler(cfg *config.Config, v Version) *InfoHandler {
	return &InfoHandler{cfg: cfg, version: v}
}

// Root returns the proxy banner.
func (h *InfoHandler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"ok":      true,
		"proxy":   "Server B → Server A",
		"version": string(h.version),
	})
}

// Healthz returns a simple OK response for liveness probes.
func (h *InfoHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// DebugInfo returns the effective forwarding configuration.
func (h *InfoHandler) DebugInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"version":              string(h.version),
		"proxy_name":           "Server B Forwarder",
		"upstream_server_a":    h.cfg.Upstream.BaseURL,
		"connect_timeout_sec":  h.cfg.Upstream.ConnectTimeoutSeconds,
		"upstream_timeout_sec": h.cfg.Upstream.TimeoutSeconds,
	})
}
