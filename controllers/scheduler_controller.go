package controller

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"homewright/models"
	"homewright/worker"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SchedulerController struct {
	DB     *gorm.DB
	Worker *worker.ContentWorker
	Logger *log.Logger
}

func NewSchedulerController(db *gorm.DB, cw *worker.ContentWorker, logger *log.Logger) *SchedulerController {
	return &SchedulerController{
		DB:     db,
		Worker: cw,
		Logger: logger,
	}
}

// GetConfig returns the content generator's scheduler state.
func (sc *SchedulerController) GetConfig(c *fiber.Ctx) error {
	var cfg models.SchedulerConfig
	err := sc.DB.Where("job_name = ?", models.ContentGeneratorJob).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Scheduler config not found",
		})
	}
	if err != nil {
		sc.Logger.Printf("Error loading scheduler config: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load scheduler config",
		})
	}
	return c.JSON(cfg)
}

type updateConfigInput struct {
	Enabled        *bool     `json:"enabled"`
	ArticlesPerDay *int      `json:"articles_per_day"`
	Topics         *[]string `json:"topics"`
}

// UpdateConfig applies a partial admin update. Out-of-range quota
// values are clamped to [1,10] rather than rejected.
func (sc *SchedulerController) UpdateConfig(c *fiber.Ctx) error {
	var input updateConfigInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var cfg models.SchedulerConfig
	if err := sc.DB.Where("job_name = ?", models.ContentGeneratorJob).First(&cfg).Error; err != nil {
		sc.Logger.Printf("Error loading scheduler config: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load scheduler config",
		})
	}

	updates := map[string]interface{}{}
	if input.Enabled != nil {
		updates["enabled"] = *input.Enabled
	}
	if input.ArticlesPerDay != nil {
		updates["articles_per_day"] = models.ClampArticlesPerDay(*input.ArticlesPerDay)
	}
	if input.Topics != nil {
		if len(*input.Topics) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "topics cannot be empty",
			})
		}
		if err := cfg.SetTopics(*input.Topics); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid topics",
			})
		}
		updates["topics"] = cfg.Topics
	}

	if len(updates) > 0 {
		if err := sc.DB.Model(&cfg).Updates(updates).Error; err != nil {
			sc.Logger.Printf("Error updating scheduler config: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update scheduler config",
			})
		}
	}

	return c.JSON(cfg)
}

// TriggerRun generates one article immediately, bypassing the quota
// check. Scheduler state still advances, so the next automatic run
// respects the spacing from this manual one.
func (sc *SchedulerController) TriggerRun(c *fiber.Ctx) error {
	var cfg models.SchedulerConfig
	if err := sc.DB.Where("job_name = ?", models.ContentGeneratorJob).First(&cfg).Error; err != nil {
		sc.Logger.Printf("Error loading scheduler config: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load scheduler config",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	if err := sc.Worker.GenerateOnce(ctx, &cfg, time.Now()); err != nil {
		sc.Logger.Printf("Manual generation failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Generation failed: " + err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Article generated",
	})
}

// ListActivity returns the bot activity log, newest first.
func (sc *SchedulerController) ListActivity(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.Query("limit", "25"))
	if limit < 1 || limit > 100 {
		limit = 25
	}

	query := sc.DB.Model(&models.BotActivityLog{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch activity log",
		})
	}

	var entries []models.BotActivityLog
	if err := query.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&entries).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch activity log",
		})
	}

	return c.JSON(fiber.Map{
		"activity": entries,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// RetryQueueItem flips a failed drip email back to pending so the next
// processor tick picks it up. Failed items are never retried
// automatically.
func (sc *SchedulerController) RetryQueueItem(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid queue item id",
		})
	}

	var item models.EmailQueueItem
	if err := sc.DB.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Queue item not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load queue item",
		})
	}

	if item.Status != models.QueueFailed {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Only failed items can be retried",
		})
	}

	if err := sc.DB.Model(&item).Updates(map[string]interface{}{
		"status":        models.QueuePending,
		"scheduled_for": time.Now(),
		"error_message": "",
	}).Error; err != nil {
		sc.Logger.Printf("Error requeueing item %d: %v", item.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to requeue item",
		})
	}

	sc.Logger.Printf("Requeued failed queue item %d", item.ID)
	return c.JSON(item)
}
