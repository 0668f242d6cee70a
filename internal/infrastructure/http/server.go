package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	handlers "github.com/wekeepgrowing/research-agent/internal/adapter/handler/http"
	"github.com/wekeepgrowing/research-agent/internal/config"
	"github.com/wekeepgrowing/research-agent/pkg/logger"
	"go.uber.org/zap"
)

// Server wraps the Echo HTTP server for the research service.
type Server struct {
	config  *config.Config
	logger  *zap.Logger
	echo    *echo.Echo
	handler *handlers.ResearchHandler
}

// NewServer creates the HTTP server with middleware configured.
func NewServer(cfg *config.Config, log *zap.Logger, handler *handlers.ResearchHandler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Server.HTTP.Debug

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(logger.NewEchoRequestLogger(log))

	// SSE streams must outlive the request timeout; only non-streaming
	// routes are bounded.
	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: time.Duration(cfg.Server.HTTP.Timeout) * time.Second,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/v1/agent/tasks/:id/stream"
		},
	}))

	return &Server{
		config:  cfg,
		logger:  log,
		echo:    e,
		handler: handler,
	}
}

// Start registers routes and begins serving.
func (s *Server) Start() error {
	s.setupRoutes()

	addr := ":" + s.config.Server.HTTP.Port
	s.logger.Info("starting HTTP server", zap.String("address", addr))
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	v1 := s.echo.Group("/v1/agent")
	v1.POST("/research", s.handler.Submit)
	v1.GET("/tasks", s.handler.ListTasks)
	v1.GET("/tasks/:id", s.handler.GetTask)
	v1.DELETE("/tasks/:id", s.handler.DeleteTask)
	v1.GET("/tasks/:id/stream", s.handler.Stream)
}
