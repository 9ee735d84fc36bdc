package chat

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Handlers exposes chat operations over HTTP.
type Handlers struct {
	service *Service
}

// NewHandlers creates handlers for the chat service.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes mounts the chat endpoints on g.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/sessions", h.ListSessions)
	g.GET("/sessions/:id", h.GetSession)
	g.GET("/sessions/:id/messages", h.Messages)
	g.DELETE("/sessions/:id", h.DeleteSession)
	g.POST("/messages", h.Send)
}

// ListSessions returns all chat sessions.
// GET /api/v1/chat/sessions
func (h *Handlers) ListSessions(c echo.Context) error {
	sessions, err := h.service.ListSessions(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, sessions)
}

// GetSession returns one session.
// GET /api/v1/chat/sessions/:id
func (h *Handlers) GetSession(c echo.Context) error {
	sess, err := h.service.GetSession(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, sess)
}

// Messages returns a session's messages.
// GET /api/v1/chat/sessions/:id/messages
func (h *Handlers) Messages(c echo.Context) error {
	msgs, err := h.service.Messages(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, msgs)
}

// DeleteSession removes a session and its messages.
// DELETE /api/v1/chat/sessions/:id
func (h *Handlers) DeleteSession(c echo.Context) error {
	err := h.service.DeleteSession(c.Request().Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

// Send posts a user message and returns the assistant's reply.
// POST /api/v1/chat/messages
func (h *Handlers) Send(c echo.Context) error {
	var req SendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message text is required"})
	}

	resp, err := h.service.Send(c.Request().Context(), req)
	switch {
	case errors.Is(err, ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, ErrEngineNotReady):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}
