package model

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers exposes the lifecycle controller over HTTP.
type Handlers struct {
	controller *Controller
}

// NewHandlers creates handlers for the controller.
func NewHandlers(controller *Controller) *Handlers {
	return &Handlers{controller: controller}
}

// RegisterRoutes mounts the model endpoints on g.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetStatus)
	g.POST("/check", h.Check)
	g.POST("/download", h.StartDownload)
	g.POST("/cancel", h.Cancel)
	g.POST("/retry", h.Retry)
}

// GetStatus returns the current lifecycle status.
// GET /api/v1/model
func (h *Handlers) GetStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.controller.Status())
}

// Check re-runs the local asset check.
// POST /api/v1/model/check
func (h *Handlers) Check(c echo.Context) error {
	state := h.controller.Start(context.Background())
	return c.JSON(http.StatusOK, map[string]any{"state": state})
}

// StartDownload begins or resumes the asset transfer. Pre-flight storage
// failures are reported synchronously; a request arriving while a transfer
// is live returns the unchanged state.
// POST /api/v1/model/download
func (h *Handlers) StartDownload(c echo.Context) error {
	// The transfer outlives the HTTP request, so it must not inherit the
	// request context.
	state, err := h.controller.StartDownload(context.Background())
	if err != nil {
		status := http.StatusInternalServerError
		var storageErr *StorageError
		var validationErr *ValidationError
		switch {
		case errors.As(err, &storageErr):
			status = http.StatusInsufficientStorage
		case errors.As(err, &validationErr):
			status = http.StatusBadRequest
		}
		return c.JSON(status, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusAccepted, map[string]any{"state": state})
}

// Cancel stops an in-progress transfer. The partial file is kept for later
// resume.
// POST /api/v1/model/cancel
func (h *Handlers) Cancel(c echo.Context) error {
	h.controller.Cancel()
	return c.JSON(http.StatusOK, map[string]string{"message": "Download cancelled"})
}

// Retry re-enters the lifecycle after a terminal failure.
// POST /api/v1/model/retry
func (h *Handlers) Retry(c echo.Context) error {
	state := h.controller.Retry(context.Background())
	return c.JSON(http.StatusAccepted, map[string]any{"state": state})
}
