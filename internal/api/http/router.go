package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-gateway/internal/api/http/handlers"
	"github.com/spec-kit/auth-gateway/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health *handlers.HealthHandler
	Auth   *handlers.AuthHandler
	Gate   *auth.Gate
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	protected := authGroup.Group("", cfg.Gate.Handle)
	protected.Get("/me", cfg.Auth.Me)
}
