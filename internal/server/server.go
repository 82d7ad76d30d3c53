// Package server provides the HTTP API for chattrace.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chattrace/internal/chat"
)

// Server provides HTTP endpoints for chattrace.
type Server struct {
	echo    *echo.Echo
	chat    *chat.Service
	logger  *zap.Logger
	metrics *Metrics
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(chatSvc *chat.Service, logger *zap.Logger, cfg *Config) (*Server, error) {
	if chatSvc == nil {
		return nil, fmt.Errorf("chat service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		chat:    chatSvc,
		logger:  logger,
		metrics: NewMetrics(),
		config:  cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check and metrics
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	// API v1 routes
	v1 := s.echo.Group("/v1")
	v1.POST("/chat", s.handleChat)
	v1.POST("/feedback", s.handleFeedback)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleChat runs one conversation turn.
func (s *Server) handleChat(c echo.Context) error {
	var req chat.Request
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	start := time.Now()
	resp, err := s.chat.Respond(c.Request().Context(), req)
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.observeTurn("error", elapsed.Seconds())
		return echo.NewHTTPError(http.StatusBadGateway, "chat completion failed")
	}

	s.metrics.observeTurn("ok", elapsed.Seconds())
	s.metrics.observeTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	return c.JSON(http.StatusOK, resp)
}

// handleFeedback records a user score for a previous traced turn.
func (s *Server) handleFeedback(c echo.Context) error {
	var fb chat.Feedback
	if err := c.Bind(&fb); err != nil {
		s.logger.Warn("invalid feedback request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := s.chat.RecordFeedback(c.Request().Context(), fb); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.metrics.feedbackTotal.Inc()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
