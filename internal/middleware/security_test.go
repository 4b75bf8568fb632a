package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders_AddsHeaders(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if v := rec.Header().Get("X-Content-Type-Options"); v != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", v, "nosniff")
	}
	if v := rec.Header().Get("X-Frame-Options"); v != "DENY" {
		t.Errorf("X-Frame-Options = %q, want %q", v, "DENY")
	}
}

func TestSecurityHeaders_SetBeforeHandlerWrites(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())
	// Handlers that stream commit the header block immediately; the
	// security headers must already be present at that point.
	e.GET("/stream", func(c echo.Context) error {
		c.Response().WriteHeader(http.StatusOK)
		_, _ = c.Response().Write([]byte("data: hello\n\n"))
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/stream", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if v := rec.Header().Get("X-Content-Type-Options"); v != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", v, "nosniff")
	}
}

func TestSecurityHeaders_StripsHopByHop(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())

	var gotProxyAuth, gotTE string
	e.GET("/test", func(c echo.Context) error {
		gotProxyAuth = c.Request().Header.Get("Proxy-Authorization")
		gotTE = c.Request().Header.Get("TE")
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Proxy-Authorization", "Basic abc")
	req.Header.Set("TE", "trailers")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if gotProxyAuth != "" {
		t.Errorf("Proxy-Authorization header should be stripped, got %q", gotProxyAuth)
	}
	if gotTE != "" {
		t.Errorf("TE header should be stripped, got %q", gotTE)
	}
}
