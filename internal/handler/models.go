package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"chat-proxy-go/internal/service"
)

// ModelsHandler relays the upstream model list.
type ModelsHandler struct {
	service *service.RelayService
	logger  *slog.Logger
}

// NewModelsHandler creates a ModelsHandler.
func NewModelsHandler(svc *service.RelayService, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{
		service: svc,
		logger:  logger.With("component", "models_handler"),
	}
}

// Handle serves GET [/:tenant]/v1/models as a buffered passthrough.
func (h *ModelsHandler) Handle(c echo.Context) error {
	tenant := c.Param("tenant")

	res, err := h.service.Models(c.Request().Context(), tenant, c.Request().Header)
	if err != nil {
		h.logger.Error("models fetch failed", "err", err, "tenant", tenant)
		return c.JSON(http.StatusBadGateway, errorBody("Failed to fetch models: "+rootCause(err).Error()))
	}

	if res.IsJSON {
		return c.JSONBlob(res.StatusCode, res.Body)
	}
	return c.Blob(res.StatusCode, echo.MIMETextPlainCharsetUTF8, res.Body)
}
