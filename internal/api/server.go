// Package api exposes the guardrail service over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/trialguard-server/internal/catalog"
	"github.com/trialguard-server/internal/domain"
	"github.com/trialguard-server/internal/history"
	"github.com/trialguard-server/internal/middleware"
	"github.com/trialguard-server/internal/service"
)

// Extractor is the free-text extraction collaborator. Optional: match
// requests may carry an already-structured profile.
type Extractor interface {
	Extract(ctx context.Context, rawText string) (*domain.PatientProfile, error)
}

// Server represents the HTTP server.
type Server struct {
	config    *domain.Config
	logger    *logrus.Logger
	matcher   *service.MatcherService
	catalog   *catalog.Catalog
	store     history.Store
	extractor Extractor

	router *gin.Engine
	server *http.Server
}

// NewServer creates a new HTTP server instance. store and extractor may
// be nil; the corresponding endpoints degrade gracefully.
func NewServer(
	config *domain.Config,
	logger *logrus.Logger,
	matcher *service.MatcherService,
	cat *catalog.Catalog,
	store history.Store,
	extractor Extractor,
) *Server {
	if config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())
	router.Use(middleware.RateLimit(config.Server.RateLimit, config.Server.RateBurst))
	if config.Server.RequestTimeout > 0 {
		router.Use(middleware.RequestTimeout(config.Server.RequestTimeout))
	}

	server := &Server{
		config:    config,
		logger:    logger,
		matcher:   matcher,
		catalog:   cat,
		store:     store,
		extractor: extractor,
		router:    router,
	}

	server.setupRoutes()

	return server
}

// Start starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/match", s.handleMatch)
		v1.POST("/profile/normalize", s.handleNormalizeProfile)
		v1.POST("/profile/validate", s.handleValidateProfile)
		v1.POST("/trials/validate", s.handleValidateTrials)
		v1.POST("/guardrails/apply", s.handleApplyGuardrails)
		v1.GET("/trials", s.handleListTrials)
		v1.GET("/trials/:nct_id", s.handleGetTrial)
		v1.GET("/history", s.handleHistory)
	}
}

// corsMiddleware adds CORS headers to responses.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Correlation-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
