// Package api exposes reconciliation over HTTP.
//
// Routes:
//
//	GET    /api/health
//	POST   /api/reconcile                      stateless run, both lists in the body
//	POST   /api/sessions                       create an upload session
//	GET    /api/sessions/:id                   session counts and last run
//	POST   /api/sessions/:id/ledger            append ledger records (CSV or JSON)
//	POST   /api/sessions/:id/bank              append bank records (CSV or JSON)
//	DELETE /api/sessions/:id/uploads           drop every upload of the session
//	POST   /api/sessions/:id/reconcile?tolerance=N
package api

import (
	"time"

	"ledger-bank-reconciler/internal/reconciler"
	"ledger-bank-reconciler/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterConfig holds the HTTP settings of the server
type RouterConfig struct {
	AllowOrigins   []string      `json:"allow_origins" mapstructure:"allow_origins"`
	RequestTimeout time.Duration `json:"request_timeout" mapstructure:"request_timeout"`
	MaxUploadBytes int64         `json:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// DefaultRouterConfig returns the settings used by `reconciler serve`
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		AllowOrigins:   []string{"http://localhost:3000"},
		RequestTimeout: 30 * time.Second,
		MaxUploadBytes: 32 << 20,
	}
}

// NewRouter builds the gin engine serving the reconciliation API
func NewRouter(config *RouterConfig, service *reconciler.Service, store reconciler.TransactionStore, log logger.Logger) *gin.Engine {
	if config == nil {
		config = DefaultRouterConfig()
	}
	log = logger.OrGlobal(log).WithComponent("api")

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     config.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	h := NewHandler(config, service, store, log)

	api := r.Group("/api")
	api.GET("/health", h.Health)
	api.POST("/reconcile", h.Reconcile)

	sessions := api.Group("/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("/:id", h.GetSession)
		sessions.POST("/:id/ledger", h.UploadLedger)
		sessions.POST("/:id/bank", h.UploadBank)
		sessions.DELETE("/:id/uploads", h.ClearSession)
		sessions.POST("/:id/reconcile", h.ReconcileSession)
	}

	return r
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logger.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		})
		if c.Writer.Status() >= 500 {
			entry.Error("Request failed")
			return
		}
		entry.Debug("Request served")
	}
}
