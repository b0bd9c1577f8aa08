package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/redis/go-redis/v9"

	"github.com/opsdesk/casetrack/internal/api/handlers"
	"github.com/opsdesk/casetrack/internal/api/router"
	"github.com/opsdesk/casetrack/internal/config"
	"github.com/opsdesk/casetrack/internal/middleware"
	"github.com/opsdesk/casetrack/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize storage
	db, err := storage.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	store := storage.NewGormStorage(db)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName: "casetrack",
	})

	// Middleware
	app.Use(cors.New())
	app.Use(logger.New())

	// Initialize handlers and middleware
	authHandler := handlers.NewAuthHandler(store, cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	leadHandler := handlers.NewLeadHandler(store)
	caseHandler := handlers.NewCaseHandler(store)
	userHandler := handlers.NewUserHandler(store)
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(newLimiterStore(cfg.Redis), cfg.Server.RateLimit.Enabled)

	// Initialize router
	apiRouter := router.NewRouter(
		app,
		authHandler,
		leadHandler,
		caseHandler,
		userHandler,
		authMiddleware,
		rateLimiter,
		cfg.Server.RateLimit,
	)

	// Setup routes
	apiRouter.SetupRoutes()

	// Start server
	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// newLimiterStore prefers Redis so limits hold across instances, and falls
// back to the in-process store when Redis is unreachable.
func newLimiterStore(cfg config.RedisConfig) middleware.RateLimitStore {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Redis unavailable, using in-memory rate limit store: %v", err)
		return middleware.NewMemoryStore()
	}
	return middleware.NewRedisStore(client)
}
