package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/requestarr/requestarr/internal/config"
	"github.com/requestarr/requestarr/internal/processor"
	"github.com/requestarr/requestarr/internal/requests"
	"github.com/requestarr/requestarr/internal/scheduler"
)

// Processor runs a processing pass over pending requests.
type Processor interface {
	ProcessPending(ctx context.Context) (*processor.BatchResult, error)
}

// TaskScheduler exposes the scheduled background tasks.
type TaskScheduler interface {
	ListTasks() []scheduler.TaskInfo
	GetTask(taskID string) (*scheduler.TaskInfo, error)
	RunNow(taskID string) error
}

// ServiceTester reports connectivity for one configured external service.
type ServiceTester interface {
	IsConfigured() bool
	Test(ctx context.Context) error
}

// Server handles HTTP requests for the Requestarr API.
type Server struct {
	echo      *echo.Echo
	cfg       *config.Config
	logger    zerolog.Logger
	store     *requests.Store
	processor Processor
	sched     TaskScheduler
	services  map[string]ServiceTester
	startTime time.Time
}

// NewServer creates a new API server instance.
func NewServer(cfg *config.Config, store *requests.Store, clf requests.Classifier, proc Processor, sched TaskScheduler, services map[string]ServiceTester, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		cfg:       cfg,
		logger:    logger.With().Str("component", "api").Logger(),
		store:     store,
		processor: proc,
		sched:     sched,
		services:  services,
		startTime: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes(clf)

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID
	s.echo.Use(middleware.RequestID())

	// CORS
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
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
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes(clf requests.Classifier) {
	// Health check
	s.echo.GET("/health", s.healthCheck)

	// API v1 group
	api := s.echo.Group("/api/v1")

	// System routes
	api.GET("/status", s.getStatus)
	api.GET("/services", s.getServices)

	// Request and classification routes
	requestHandlers := requests.NewHandler(s.store, clf, s.logger)
	requestHandlers.Register(api)

	// Processing routes
	api.POST("/process", s.runProcessor)

	// Task routes
	api.GET("/tasks", s.listTasks)
	api.GET("/tasks/:id", s.getTask)
	api.POST("/tasks/:id/run", s.runTask)
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

// --- Handler implementations ---

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := s.store.Stats(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"version":       config.Version,
		"startTime":     s.startTime.Format(time.RFC3339),
		"uptimeSeconds": int64(time.Since(s.startTime).Seconds()),
		"requests":      stats,
	})
}

// getServices tests connectivity for every registered external service.
// Unconfigured services are reported but not tested.
func (s *Server) getServices(c echo.Context) error {
	ctx := c.Request().Context()

	type serviceStatus struct {
		Name       string `json:"name"`
		Configured bool   `json:"configured"`
		Reachable  bool   `json:"reachable"`
		Error      string `json:"error,omitempty"`
	}

	statuses := make([]serviceStatus, 0, len(s.services))
	for name, svc := range s.services {
		status := serviceStatus{Name: name, Configured: svc.IsConfigured()}
		if status.Configured {
			if err := svc.Test(ctx); err != nil {
				status.Error = err.Error()
			} else {
				status.Reachable = true
			}
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })

	return c.JSON(http.StatusOK, statuses)
}

func (s *Server) runProcessor(c echo.Context) error {
	result, err := s.processor.ProcessPending(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) listTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, s.sched.ListTasks())
}

func (s *Server) getTask(c echo.Context) error {
	task, err := s.sched.GetTask(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) runTask(c echo.Context) error {
	if err := s.sched.RunNow(c.Param("id")); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}
