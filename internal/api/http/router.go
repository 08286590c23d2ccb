package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Dashboard      *handlers.DashboardHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	dashboard := app.Group("/dashboard")
	dashboard.Get("", cfg.Dashboard.Placeholder)
	dashboard.Post("/login", cfg.Dashboard.Login)

	api := dashboard.Group("/api", cfg.AuthMiddleware.Handle)
	api.Get("/tickets", cfg.Dashboard.ListTickets)
	api.Get("/tickets/:id", cfg.Dashboard.GetTicket)
	api.Get("/stats", cfg.Dashboard.Stats)
}
