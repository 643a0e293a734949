package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dataghost-gateway/internal/shared/config"
	"dataghost-gateway/internal/shared/metrics"
	"dataghost-gateway/internal/shared/server/middleware"
	"dataghost-gateway/internal/shared/server/respond"
	"dataghost-gateway/internal/workspace"
)

const (
	healthPath  = "/api/v1/health"
	metricsPath = "/api/v1/metrics"
)

// RouterDeps are the handlers the router mounts.
type RouterDeps struct {
	Config      config.Config
	Workspace   *workspace.Handler
	RateLimiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(healthPath, metricsPath),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())

	if deps.Workspace != nil {
		askLimit := middleware.RateLimit(deps.RateLimiter, "ASK", middleware.RateLimitRule{
			Rate:  deps.Config.AskRatePerSec,
			Burst: deps.Config.AskBurst,
		})
		deps.Workspace.RegisterRoutes(api, askLimit)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
