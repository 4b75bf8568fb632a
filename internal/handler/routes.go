package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires all route handlers onto the Echo instance. The
// :tenant segment is opaque; it is forwarded verbatim in the upstream path.
func RegisterRoutes(e *echo.Echo, chat *ChatHandler, models *ModelsHandler, info *InfoHandler) {
	e.GET("/", info.Root)
	e.GET("/healthz", info.Healthz)
	e.GET("/debug/info", info.DebugInfo)

	e.GET("/v1/models", models.Handle)
	e.GET("/:tenant/v1/models", models.Handle)

	e.POST("/v1/chat/completions", chat.Handle)
	e.POST("/:tenant/v1/chat/completions", chat.Handle)
}
