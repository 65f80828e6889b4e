package routes

import (
	"log"
	"os"

	controller "homewright/controllers"
	"homewright/middleware"
	"homewright/utils"
	"homewright/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, contentWorker *worker.ContentWorker, dripEngine *utils.DripEngine) {
	authController := controller.NewAuthController(log.New(os.Stdout, "AUTH: ", log.LstdFlags))
	articleController := controller.NewArticleController(db, log.New(os.Stdout, "ARTICLE: ", log.LstdFlags))
	leadController := controller.NewLeadController(db, dripEngine, log.New(os.Stdout, "LEAD: ", log.LstdFlags))
	schedulerController := controller.NewSchedulerController(db, contentWorker, log.New(os.Stdout, "SCHEDULER: ", log.LstdFlags))

	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	auth.Post("/login", authController.Login)

	// Public API
	api := app.Group("/api/v1", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	formLimiter := middleware.FormRateLimiter()
	api.Post("/leads", formLimiter, leadController.CreateLead)
	api.Post("/subscribe", formLimiter, leadController.Subscribe)
	api.Get("/unsubscribe", leadController.Unsubscribe)
	api.Get("/articles", articleController.ListArticles)
	api.Get("/articles/:slug", articleController.GetArticle)

	// Admin API (JWT protected)
	admin := api.Group("/admin", middleware.Protected())
	admin.Get("/scheduler", schedulerController.GetConfig)
	admin.Put("/scheduler", schedulerController.UpdateConfig)
	admin.Post("/scheduler/run", schedulerController.TriggerRun)
	admin.Get("/activity", schedulerController.ListActivity)
	admin.Post("/queue/:id/retry", schedulerController.RetryQueueItem)
	admin.Get("/leads", leadController.ListLeads)
	admin.Get("/subscribers", leadController.ListSubscribers)

	// Live activity feed for the admin dashboard
	admin.Use("/activity/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	admin.Get("/activity/ws", websocket.New(schedulerController.ActivityStream()))
}
