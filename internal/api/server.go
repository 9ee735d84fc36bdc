// Package api assembles the HTTP server: REST routes for the model
// lifecycle, chat and inventory, plus the websocket event stream.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/pocketsage/pocketsage/internal/chat"
	"github.com/pocketsage/pocketsage/internal/config"
	"github.com/pocketsage/pocketsage/internal/inventory"
	"github.com/pocketsage/pocketsage/internal/model"
	"github.com/pocketsage/pocketsage/internal/scheduler"
	"github.com/pocketsage/pocketsage/internal/websocket"
)

// Server handles HTTP requests for the PocketSage API.
type Server struct {
	echo      *echo.Echo
	hub       *websocket.Hub
	logger    zerolog.Logger
	cfg       *config.Config
	startTime time.Time

	controller *model.Controller
	chat       *chat.Service
	inventory  *inventory.Service
	scheduler  *scheduler.Scheduler
}

// NewServer creates a new API server instance.
func NewServer(cfg *config.Config, hub *websocket.Hub, ctrl *model.Controller, chatSvc *chat.Service, invSvc *inventory.Service, sched *scheduler.Scheduler, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:       e,
		hub:        hub,
		logger:     logger,
		cfg:        cfg,
		startTime:  time.Now(),
		controller: ctrl,
		chat:       chatSvc,
		inventory:  invSvc,
		scheduler:  sched,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())

	s.echo.Use(middleware.RequestID())

	s.echo.Use(middleware.BodyLimit("2M"))

	// CORS
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	// Gzip compression
	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Skip compression for WebSocket
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api/v1")
	api.GET("/status", s.getStatus)

	modelHandlers := model.NewHandlers(s.controller)
	modelHandlers.RegisterRoutes(api.Group("/model"))

	chatHandlers := chat.NewHandlers(s.chat)
	chatHandlers.RegisterRoutes(api.Group("/chat"))

	inventoryHandlers := inventory.NewHandlers(s.inventory)
	inventoryHandlers.RegisterRoutes(api.Group("/inventory"))

	taskHandlers := scheduler.NewHandlers(s.scheduler)
	taskHandlers.RegisterRoutes(api.Group("/tasks"))

	s.echo.GET("/ws", s.hub.HandleWebSocket)
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"version":   "0.1.0",
		"startTime": s.startTime.UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startTime).Round(time.Second).String(),
		"model":     s.controller.Status(),
		"clients":   s.hub.ClientCount(),
	})
}
