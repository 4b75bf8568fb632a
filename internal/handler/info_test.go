package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"chat-proxy-go/internal/config"
)

func TestRoot(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewInfoHandler(&config.Config{}, "1.2.3")
	if err := h.Root(c); err != nil {
		t.Fatalf("Root() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["ok"] != true {
		t.Errorf("body.ok = %v, want true", body["ok"])
	}
	if body["version"] != "1.2.3" {
		t.Errorf("body.version = %v, want %q", body["version"], "1.2.3")
	}
}

func TestHealthz(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := NewInfoHandler(&config.Config{}, "test")
	if err := h.Healthz(c); err != nil {
		t.Fatalf("Healthz() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestDebugInfo(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/debug/info", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	cfg := &config.Config{
		Upstream: config.UpstreamConfig{
			BaseURL:               "https://a.example.com",
			ConnectTimeoutSeconds: 10,
			TimeoutSeconds:        600,
		},
	}
	h := NewInfoHandler(cfg, "1.2.3")
	if err := h.DebugInfo(c); err != nil {
		t.Fatalf("DebugInfo() error = %v", err)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["upstream_server_a"] != "https://a.example.com" {
		t.Errorf("upstream_server_a = %v, want %q", body["upstream_server_a"], "https://a.example.com")
	}
	if body["connect_timeout_sec"] != float64(10) {
		t.Errorf("connect_timeout_sec = %v, want 10", body["connect_timeout_sec"])
	}
	if body["upstream_timeout_sec"] != float64(600) {
		t.Errorf("upstream_timeout_sec = %v, want 600", body["upstream_timeout_sec"])
	}
}
