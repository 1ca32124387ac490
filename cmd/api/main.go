package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/rotaplan/rotaplan_core/internal/api"
	"github.com/rotaplan/rotaplan_core/internal/cache"
	"github.com/rotaplan/rotaplan_core/internal/db"
	"github.com/rotaplan/rotaplan_core/internal/middleware"
	"github.com/rotaplan/rotaplan_core/internal/osrm"
	"github.com/rotaplan/rotaplan_core/internal/planner"
	"github.com/rotaplan/rotaplan_core/internal/repo"
)

func main() {
	log.Println("Starting RotaPlan API server...")

	pool, err := db.Connect(db.LoadConfigFromEnv())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	log.Println("✓ Database connection established")

	// Redis is optional: without it snaps are uncached and rate limiting
	// is off, but plans still compute
	var redisCache *cache.Cache
	if redisCache, err = cache.New(cache.LoadConfigFromEnv()); err != nil {
		log.Printf("⚠ Redis unavailable, running without snap cache: %v", err)
		redisCache = nil
	} else {
		defer redisCache.Close()
		log.Println("✓ Redis connection established")
	}

	roads := osrm.NewClient(osrm.LoadConfigFromEnv())
	if redisCache != nil {
		roads = roads.WithSnapCache(redisCache)
	}

	employees := repo.NewEmployeeRepo(pool)
	plans := repo.NewPlanRepo(pool)

	p := planner.New(employees, roads, plans)
	editor := planner.NewEditor(employees, roads, plans)
	handlers := api.NewHandlers(p, editor, plans, employees, pool, redisCache)

	app := fiber.New(fiber.Config{
		AppName:      "RotaPlan API",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // plan creation can hold a solve budget of up to 60s per attempt
		IdleTimeout:  120 * time.Second,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	app.Get("/health", handlers.Health)

	v1 := app.Group("/v1")
	if redisCache != nil {
		v1.Post("/plans", middleware.RateLimit(redisCache, middleware.DefaultRateLimits()), handlers.CreatePlan)
	} else {
		v1.Post("/plans", handlers.CreatePlan)
	}
	v1.Get("/plans", handlers.ListPlans)
	v1.Get("/shifts", handlers.ListShifts)
	v1.Get("/plans/:id", handlers.GetPlan)
	v1.Delete("/plans/:id", handlers.DeletePlan)

	v1.Post("/routes/:id/move", handlers.MoveStops(true))
	v1.Post("/routes/:id/move/preview", handlers.MoveStops(false))
	v1.Post("/routes/:id/reorder", handlers.Reorder(true))
	v1.Post("/routes/:id/reorder/preview", handlers.Reorder(false))
	v1.Post("/routes/:id/employees", handlers.AddEmployee(true))
	v1.Post("/routes/:id/employees/preview", handlers.AddEmployee(false))
	v1.Delete("/routes/:id/employees/:employeeID", handlers.RemoveEmployee(true))
	v1.Post("/routes/:id/employees/:employeeID/remove-preview", handlers.RemoveEmployee(false))

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	port := getEnv("API_PORT", "8080")
	addr := fmt.Sprintf(":%s", port)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("🚀 Server listening on http://localhost%s", addr)
	log.Printf("📍 Create plan: POST http://localhost%s/v1/plans", addr)
	log.Printf("❤️  Health check: http://localhost%s/health", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// errorHandler handles errors returned from handlers
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error: %v", err)

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
