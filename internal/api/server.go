// Package api exposes the suggestion engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clinic-suggestion-engine/internal/domain"
	"github.com/clinic-suggestion-engine/internal/middleware"
	"github.com/clinic-suggestion-engine/internal/service"
)

// HealthChecker reports the reachability of the knowledge base backend.
type HealthChecker func(ctx context.Context) error

// KnowledgeInfo supplies knowledge base details for the health endpoint,
// such as snapshot age and catalog size.
type KnowledgeInfo func() map[string]interface{}

// Server represents the HTTP server
type Server struct {
	config    domain.ServerConfig
	router    *gin.Engine
	server    *http.Server
	log       *logrus.Logger
	health    HealthChecker
	kbInfo    KnowledgeInfo
	suggester *service.MedicineSuggester
	dosage    *service.DosageSuggester
	checker   *service.InteractionChecker
	optimizer *service.PrescriptionOptimizer
}

// NewServer creates a new HTTP server wired to the suggestion services.
func NewServer(
	cfg *domain.Config,
	suggester *service.MedicineSuggester,
	dosage *service.DosageSuggester,
	checker *service.InteractionChecker,
	optimizer *service.PrescriptionOptimizer,
	health HealthChecker,
	logger *logrus.Logger,
) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(corsMiddleware())
	if cfg.Server.RateLimit > 0 {
		router.Use(middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst).Middleware())
	}

	server := &Server{
		config:    cfg.Server,
		router:    router,
		log:       logger,
		health:    health,
		suggester: suggester,
		dosage:    dosage,
		checker:   checker,
		optimizer: optimizer,
	}

	server.setupRoutes()

	return server
}

// SetKnowledgeInfo attaches a knowledge base detail provider to the
// health endpoint.
func (s *Server) SetKnowledgeInfo(info KnowledgeInfo) {
	s.kbInfo = info
}

// Router exposes the gin engine, primarily for handler tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start starts the HTTP server and blocks until the context is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving HTTP: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/suggestions/medicines", s.handleSuggestMedicines)
		v1.POST("/suggestions/dosage", s.handleSuggestDosage)
		v1.POST("/interactions/check", s.handleCheckInteractions)
		v1.POST("/prescriptions/optimize", s.handleOptimizePrescription)
	}
}

// corsMiddleware adds CORS headers to responses
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
