package router // router registers the HTTP routes of the catalog service

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/game-catalog/internal/handler"
	"github.com/iliyamo/game-catalog/internal/metrics"
	"github.com/iliyamo/game-catalog/internal/middleware"
)

// Deps bundles what the routes need.  Cache and RateLimit may be
// pass-through middleware when Redis is unavailable.
type Deps struct {
	Games     *handler.GameHandler
	JWTSecret string
	Cache     echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
}

// RegisterRoutes registers the health checks and the metrics endpoint.
func RegisterRoutes(e *echo.Echo, h *handler.Health) {
	e.GET("/health", h.Live)
	e.GET("/health/live", h.Live)
	e.GET("/health/ready", h.Ready)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAPI registers the catalog routes.  Reads are public and cached;
// writes, ordering and the library require a bearer token.
func RegisterAPI(e *echo.Echo, d Deps) {
	api := e.Group("/api")

	api.GET("/games", d.Games.List, d.Cache)
	api.GET("/games/:id", d.Games.Get, d.Cache)

	auth := api.Group("", middleware.JWTAuth(d.JWTSecret))
	auth.POST("/games", d.Games.Create)
	auth.PUT("/games/:id", d.Games.Update)
	auth.DELETE("/games/:id", d.Games.Delete)
	// The limiter runs after JWTAuth so buckets can be keyed per user.
	auth.POST("/games/:id/order", d.Games.PlaceOrder, d.RateLimit)
	auth.GET("/library", d.Games.Library)
}
