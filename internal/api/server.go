package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

const shutdownTimeout = 10 * time.Second

// RunTrigger starts one briefing run; *usecase.Runner satisfies it.
type RunTrigger interface {
	Trigger(ctx context.Context, trigger domain.Trigger, in domain.RunInput) (domain.RunRecord, error)
	Busy() bool
}

// Server exposes run triggering and run history over HTTP.
type Server struct {
	runner  RunTrigger
	history ports.RunRepository
	logger  *slog.Logger
	router  *gin.Engine
}

// NewServer builds the router. history may be nil when recording is disabled.
func NewServer(runner RunTrigger, history ports.RunRepository, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()

	s := &Server{
		runner:  runner,
		history: history,
		logger:  logger.With("component", "api"),
		router:  router,
	}

	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api")
	{
		api.POST("/runs", s.handleTriggerRun)
		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:id", s.handleGetRun)
	}

	return s
}

// Handler exposes the router for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
