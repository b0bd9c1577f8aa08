package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/casetrack/internal/api/handlers"
	"github.com/opsdesk/casetrack/internal/config"
	"github.com/opsdesk/casetrack/internal/middleware"
	"github.com/opsdesk/casetrack/internal/models"
)

type Router struct {
	app            *fiber.App
	authHandler    *handlers.AuthHandler
	leadHandler    *handlers.LeadHandler
	caseHandler    *handlers.CaseHandler
	userHandler    *handlers.UserHandler
	authMiddleware *middleware.AuthMiddleware
	rateLimiter    *middleware.RateLimiter
	rateLimit      config.RateLimitConfig
}

func NewRouter(
	app *fiber.App,
	authHandler *handlers.AuthHandler,
	leadHandler *handlers.LeadHandler,
	caseHandler *handlers.CaseHandler,
	userHandler *handlers.UserHandler,
	authMiddleware *middleware.AuthMiddleware,
	rateLimiter *middleware.RateLimiter,
	rateLimit config.RateLimitConfig,
) *Router {
	return &Router{
		app:            app,
		authHandler:    authHandler,
		leadHandler:    leadHandler,
		caseHandler:    caseHandler,
		userHandler:    userHandler,
		authMiddleware: authMiddleware,
		rateLimiter:    rateLimiter,
		rateLimit:      rateLimit,
	}
}

func (r *Router) SetupRoutes() {
	// Public routes
	r.app.Get("/api/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "OK",
			"message": "Backend server is running",
		})
	})
	r.app.Post("/api/auth/login", r.rateLimiter.RateLimit(middleware.RateLimitConfig{
		Enabled: r.rateLimit.Enabled,
		Limit:   r.rateLimit.Limit,
		Window:  r.rateLimit.Window,
	}), r.authHandler.Login)

	// Protected routes
	protected := r.app.Group("/api", r.authMiddleware.Authenticate())
	protected.Post("/auth/password", r.authHandler.ChangePassword)
	protected.Get("/me", func(c *fiber.Ctx) error {
		user := c.Locals("user")
		return c.JSON(user)
	})

	protected.Get("/leads", r.leadHandler.Search)
	protected.Get("/leads/:ckt", r.leadHandler.Get)

	protected.Get("/cases", r.caseHandler.List)
	protected.Post("/cases", r.caseHandler.Create)
	protected.Put("/cases/:id", r.caseHandler.Update)
	protected.Delete("/cases/:id", r.caseHandler.Delete)

	// Admin-only account management
	users := protected.Group("/users", r.authMiddleware.RequireRole(models.RoleAdmin))
	users.Get("/", r.userHandler.List)
	users.Post("/", r.userHandler.Create)
	users.Put("/:id", r.userHandler.Update)
	users.Delete("/:id", r.userHandler.Delete)
}
