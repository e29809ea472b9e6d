// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns:
// tracing, correlation IDs, logging, panic recovery, metrics, CORS, and
// rate limiting.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ca-la/studio-backend/internal/announce"
	"github.com/ca-la/studio-backend/internal/config"
	"github.com/ca-la/studio-backend/internal/http/handlers"
	"github.com/ca-la/studio-backend/internal/http/middleware"
	"github.com/ca-la/studio-backend/internal/services"
)

// Deps carries the wired application components the router mounts.
type Deps struct {
	Steps *services.ApprovalStepService
	Feed  *services.NotificationFeedService
	Hub   *announce.Hub
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given
// Gin engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after the logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per user/IP)
//  8. CORS
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)
	r.Use(rl.Handler(middleware.KeyByUserOrIP()))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(deps.Steps, deps.Feed)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Approval steps
		api.PATCH("/approval-steps/:id", h.UpdateApprovalStep)

		// Notification feed
		api.GET("/notifications", h.ListNotifications)
		api.GET("/notifications/unread-count", h.UnreadNotificationCount)
		api.PUT("/notifications/read", h.MarkAllNotificationsRead)
		api.PUT("/notifications/:id/read", h.MarkNotificationRead)
		api.PUT("/notifications/:id/archive", h.ArchiveNotification)

		// Real-time delivery
		api.GET("/notifications/stream", handlers.StreamNotifications(deps.Hub))
	}
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
