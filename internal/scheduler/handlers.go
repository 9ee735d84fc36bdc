package scheduler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers exposes the registered maintenance tasks over HTTP.
type Handlers struct {
	scheduler *Scheduler
}

// NewHandlers creates handlers for the scheduler.
func NewHandlers(s *Scheduler) *Handlers {
	return &Handlers{scheduler: s}
}

// RegisterRoutes mounts the task endpoints on g.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListTasks)
	g.GET("/:id", h.GetTask)
	g.POST("/:id/run", h.RunTask)
}

// ListTasks returns all registered tasks.
// GET /api/v1/tasks
func (h *Handlers) ListTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.scheduler.ListTasks())
}

// GetTask returns one task by ID.
// GET /api/v1/tasks/:id
func (h *Handlers) GetTask(c echo.Context) error {
	info, err := h.scheduler.GetTask(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, info)
}

// RunTask triggers a task outside its schedule.
// POST /api/v1/tasks/:id/run
func (h *Handlers) RunTask(c echo.Context) error {
	if err := h.scheduler.RunNow(c.Param("id")); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrTaskNotFound):
			status = http.StatusNotFound
		case errors.Is(err, ErrTaskRunning):
			status = http.StatusConflict
		}
		return c.JSON(status, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"message": "Task triggered"})
}
