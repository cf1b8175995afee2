package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/user-service/internal/api/http/handlers"
	"github.com/spec-kit/user-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Post("/register", cfg.Auth.Register)
	app.Get("/register/verify", cfg.Auth.VerifyEmail)
	app.Post("/login", cfg.Auth.Login)
	app.Post("/token/refresh", cfg.Auth.Refresh)
	app.Post("/password/forgot", cfg.Auth.ForgotPassword)
	app.Post("/password/reset", cfg.Auth.ResetPassword)

	app.Post("/logout", cfg.AuthMiddleware.Handle, cfg.Auth.Logout)

	users := app.Group("/users", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	users.Get("/", auth.RequireAdminRole(), cfg.Users.List)
	users.Get("/:id", cfg.Users.Get)
	users.Patch("/:id", cfg.Users.Update)
	users.Delete("/:id", auth.RequireAdminRole(), cfg.Users.Delete)
	users.Patch("/:id/role", auth.RequireAdminRole(), cfg.Users.UpdateRole)
}

// NewApp builds the fiber app with middlewares and routes registered.
// Immutable is required: method, path and param strings outlive the handler
// as metric labels, cache keys and log fields.
func NewApp(name string, mw MiddlewareConfig, routes RouteConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      name,
		Immutable:    true,
		ErrorHandler: ErrorHandler(mw.Logger),
	})
	RegisterMiddlewares(app, mw.Logger, mw.Timeout)
	RegisterRoutes(app, routes)
	return app
}
