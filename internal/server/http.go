// Package server assembles the HTTP and gRPC servers of the user directory.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	healthhandler "user-directory/internal/health/handler"
	"user-directory/internal/server/middleware"
	userhandler "user-directory/internal/user/handler"
)

// HealthPath is served outside the rate limiter and the access log.
const HealthPath = "/healthz"

// HTTPDeps holds the handlers and settings for the REST server.
type HTTPDeps struct {
	Users  *userhandler.Handler
	Health *healthhandler.Server
	// Limiter, if non-nil, rate limits every route except HealthPath.
	Limiter *middleware.IPRateLimiter
	Log     *zap.Logger
}

// NewRouter returns the gin engine serving the user routes and HealthPath.
// Unknown routes and methods answer with the RouteNotFound envelope.
func NewRouter(deps HTTPDeps) *gin.Engine {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = false
	r.Use(
		middleware.RequestID(),
		middleware.Telemetry(),
		middleware.AccessLog(log, HealthPath),
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			log.Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
			userhandler.Fail(c, http.StatusInternalServerError, userhandler.CodeInternal, "Internal server error", "")
		}),
	)

	if deps.Health != nil {
		r.GET(HealthPath, deps.Health.HTTP)
	}

	api := r.Group("")
	if deps.Limiter != nil {
		api.Use(deps.Limiter.Handler(func(c *gin.Context) {
			userhandler.Fail(c, http.StatusTooManyRequests, userhandler.CodeRateLimited, "Too many requests", "")
		}))
	}
	if deps.Users != nil {
		deps.Users.RegisterRoutes(api)
	}

	r.NoRoute(func(c *gin.Context) {
		userhandler.Fail(c, http.StatusNotFound, userhandler.CodeRouteNotFound, "Route not found", "")
	})
	return r
}

// NewHTTPServer wraps handler in an http.Server listening on addr.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
