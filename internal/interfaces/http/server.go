package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/medikos/caseflow/internal/application/service"
	"github.com/medikos/caseflow/internal/domain/workflow"
)

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Server is the REST front of the case lifecycle engine
type Server struct {
	srv     *http.Server
	handler *Handler
	logger  *zap.Logger
}

// NewServer builds the gin router and wires all routes
func NewServer(cfg ServerConfig, handler *Handler, wsHandler gin.HandlerFunc, logger *zap.Logger) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "caseflow",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	h := handler
	api := router.Group("/api")
	{
		api.POST("/cases", h.CreateCase)
		api.GET("/cases/:id", h.GetCase)
		api.GET("/cases/:id/history", h.GetHistory)
		api.POST("/cases/:id/edit", h.EditCase)

		api.POST("/cases/:id/submit", h.action(workflow.RoleCreator, func(c *gin.Context, in service.ActionInput) (*service.ActionResult, error) {
			return h.cases.Submit(c.Request.Context(), in)
		}))
		api.POST("/cases/:id/claim", h.action("", func(c *gin.Context, in service.ActionInput) (*service.ActionResult, error) {
			return h.cases.Claim(c.Request.Context(), in)
		}))
		api.POST("/cases/:id/release", h.action("", func(c *gin.Context, in service.ActionInput) (*service.ActionResult, error) {
			return h.cases.Release(c.Request.Context(), in)
		}))
		api.POST("/cases/:id/approve", h.action("", func(c *gin.Context, in service.ActionInput) (*service.ActionResult, error) {
			return h.cases.Approve(c.Request.Context(), in)
		}))
		api.POST("/cases/:id/approve-conditional", h.action("", func(c *gin.Context, in service.ActionInput) (*service.ActionResult, error) {
			return h.cases.ApproveConditional(c.Request.Context(), in)
		}))
		api.POST("/cases/:id/reject", h.action("", func(c *gin.Context, in service.ActionInput) (*service.ActionResult, error) {
			return h.cases.Reject(c.Request.Context(), in)
		}))
		api.POST("/cases/:id/derive", h.action("", func(c *gin.Context, in service.ActionInput) (*service.ActionResult, error) {
			return h.cases.Derive(c.Request.Context(), in)
		}))
		api.POST("/cases/:id/escalate", h.action("", func(c *gin.Context, in service.ActionInput) (*service.ActionResult, error) {
			return h.cases.Escalate(c.Request.Context(), in)
		}))
		api.POST("/cases/:id/observe", h.action("", func(c *gin.Context, in service.ActionInput) (*service.ActionResult, error) {
			return h.cases.Observe(c.Request.Context(), in)
		}))
		api.POST("/cases/:id/return", h.action("", func(c *gin.Context, in service.ActionInput) (*service.ActionResult, error) {
			return h.cases.Return(c.Request.Context(), in)
		}))

		api.GET("/queues/tier/:n", h.TierQueue)
		api.GET("/reviewers/:id/cases", h.ReviewerCases)

		api.GET("/users/:id/notifications", h.Notifications)
		api.POST("/users/:id/notifications/read", h.MarkRead)
		api.POST("/users/:id/notifications/read-all", h.MarkAllRead)
	}

	if wsHandler != nil {
		router.GET("/ws", wsHandler)
	}

	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  logger,
	}
}

// Start begins serving; it blocks until the listener fails or Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
