package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"nebnav/internal/lifecycle"
	"nebnav/internal/storage/sqlite"
)

// Server provides the HTTP surface over the lifecycle coordinator. It never
// mutates lifecycle state directly; every write goes through the coordinator.
type Server struct {
	engine    *gin.Engine
	coord     *lifecycle.Coordinator
	store     *sqlite.Store
	scheduler *lifecycle.Scheduler
	logger    *slog.Logger
	staticDir string
}

// New constructs the HTTP server with routes and middleware configured.
func New(coord *lifecycle.Coordinator, store *sqlite.Store, scheduler *lifecycle.Scheduler, logger *slog.Logger, staticDir string) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api"))

	srv := &Server{
		engine:    router,
		coord:     coord,
		store:     store,
		scheduler: scheduler,
		logger:    logger,
		staticDir: staticDir,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)

		tasks := api.Group("/tasks")
		{
			tasks.GET("", s.handleListTasks)
			tasks.POST("", s.handleCreateTasks)
			tasks.POST("/braindump", s.handleBrainDump)
			tasks.POST("/:id/complete", s.handleCompleteTask)
			tasks.POST("/:id/delegate", s.handleDelegateTask)
			tasks.POST("/:id/promote", s.handlePromoteTask)
			tasks.POST("/:id/restore", s.handleRestoreTask)
			tasks.PUT("/:id/effort", s.handleUpdateEffort)
			tasks.DELETE("/:id", s.handleArchiveTask)
		}

		api.POST("/evaporate", s.handleEvaporate)
		api.GET("/stars", s.handleListStars)
		api.GET("/log", s.handleListLogEntries)
		api.POST("/log", s.handleSaveLogEntry)
	}

	s.mountStatic()
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusFor maps the lifecycle error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrCategorization):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
