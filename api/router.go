package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/stealthshot/api/handler"
	"github.com/use-agent/stealthshot/api/middleware"
	"github.com/use-agent/stealthshot/cache"
	"github.com/use-agent/stealthshot/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → per-route rate limit cost
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
// cc may be nil to disable verdict caching.
func NewRouter(pool handler.PoolReporter, det handler.Evaluator, rn handler.Researcher, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(pool, det, startTime))

	// Protected group: auth and rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	limiter := middleware.NewLimiter(cfg.RateLimit)
	light := limiter.Cost(1)

	// Client-supplied paths are confined to the artifact directory.
	root := cfg.Capture.OutputDir

	// Detect
	protected.POST("/detect", light, handler.Detect(det, cc, root))
	protected.POST("/detect/batch", light, handler.DetectBatch(det, cc, cfg.Detect.Workers, root))

	// Probe
	protected.POST("/probe", light, handler.Probe(rn))

	// Capture launches a browser, so it costs more.
	protected.POST("/capture", limiter.Cost(cfg.RateLimit.CaptureCost), handler.PostCapture(rn, root))
	protected.GET("/capture/:id", light, handler.GetCapture())

	return r
}
