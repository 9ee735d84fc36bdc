package scheduler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestRouter(t *testing.T, s *Scheduler) *echo.Echo {
	t.Helper()
	e := echo.New()
	NewHandlers(s).RegisterRoutes(e.Group("/api/v1/tasks"))
	return e
}

func TestTaskEndpoints(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int64
	if err := s.RegisterTask(TaskConfig{
		ID:          "nightly",
		Name:        "Nightly job",
		Description: "Housekeeping",
		Cron:        "0 3 * * *",
		Func:        func(ctx context.Context) error { runs.Add(1); return nil },
	}); err != nil {
		t.Fatalf("RegisterTask: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e := newTestRouter(t, s)

	// List includes the registered task.
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /tasks = %d, want 200", rec.Code)
	}
	var infos []TaskInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &infos); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "nightly" {
		t.Fatalf("List = %+v, want one entry with ID nightly", infos)
	}

	// Single-task lookup.
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/nightly", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /tasks/nightly = %d, want 200", rec.Code)
	}
	var info TaskInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if info.Description != "Housekeeping" {
		t.Fatalf("Description = %q", info.Description)
	}

	// Manual trigger runs the task.
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tasks/nightly/run", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST /tasks/nightly/run = %d, want 202", rec.Code)
	}
	waitFor(t, func() bool { return runs.Load() == 1 })
}

func TestTaskEndpointsUnknownID(t *testing.T) {
	s := newTestScheduler(t)
	e := newTestRouter(t, s)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tasks/ghost", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET /tasks/ghost = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tasks/ghost/run", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("POST /tasks/ghost/run = %d, want 404", rec.Code)
	}
}
