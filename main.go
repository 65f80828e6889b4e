package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"homewright/config"
	"homewright/metrics"
	"homewright/middleware"
	"homewright/models"
	"homewright/routes"
	"homewright/utils"
	"homewright/worker"
)

func main() {
	logger := log.New(os.Stdout, "MAIN: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Error reporting
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry init failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.SeedDefaults(config.DB); err != nil {
		logger.Fatalf("Failed to seed defaults: %v", err)
	}

	// Optional Redis for the scheduler tick lease
	if err := config.ConnectRedis(); err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}

	metrics.Init()

	// Create Fiber app
	app := fiber.New()
	app.Use(middleware.CORS())

	// Content generation pipeline
	generator := utils.NewContentGenerator(config.AppConfig.LLM)
	contentWorker := worker.NewContentWorker(
		config.DB,
		generator,
		config.Redis,
		log.New(os.Stdout, "CONTENT: ", log.Ldate|log.Ltime|log.Lshortfile),
	)

	// Email drip pipeline
	mailer := utils.NewMailer(&config.AppConfig)
	dripEngine := utils.NewDripEngine(config.DB, log.New(os.Stdout, "DRIP: ", log.LstdFlags))
	dripWorker := worker.NewDripWorker(
		config.DB,
		dripEngine,
		mailer,
		log.New(os.Stdout, "DRIP: ", log.Ldate|log.Ltime|log.Lshortfile),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go contentWorker.Start(ctx)
	go dripWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB, contentWorker, dripEngine)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Stop the workers before the listener goes away
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Println("Shutdown signal received")
		cancel()
		_ = app.Shutdown()
	}()

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
