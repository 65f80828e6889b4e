package controller

import (
	"errors"
	"log"
	"strconv"

	"homewright/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ArticleController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewArticleController(db *gorm.DB, logger *log.Logger) *ArticleController {
	return &ArticleController{
		DB:     db,
		Logger: logger,
	}
}

// ListArticles returns published articles, newest first.
func (ac *ArticleController) ListArticles(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.Query("limit", "12"))
	if limit < 1 || limit > 50 {
		limit = 12
	}

	query := ac.DB.Model(&models.Article{}).Where("status = ?", models.ArticlePublished)
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		ac.Logger.Printf("Error counting articles: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch articles",
		})
	}

	var articles []models.Article
	if err := query.Order("published_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&articles).Error; err != nil {
		ac.Logger.Printf("Error fetching articles: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch articles",
		})
	}

	return c.JSON(fiber.Map{
		"articles": articles,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// GetArticle returns one published article by slug and bumps its view
// counter.
func (ac *ArticleController) GetArticle(c *fiber.Ctx) error {
	slug := c.Params("slug")

	var article models.Article
	err := ac.DB.Where("slug = ? AND status = ?", slug, models.ArticlePublished).First(&article).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Article not found",
		})
	}
	if err != nil {
		ac.Logger.Printf("Error fetching article %s: %v", slug, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch article",
		})
	}

	// View counter only; article content is immutable after publish
	if err := ac.DB.Model(&article).
		Update("view_count", gorm.Expr("view_count + ?", 1)).Error; err != nil {
		ac.Logger.Printf("Error bumping view count for %s: %v", slug, err)
	}

	return c.JSON(article)
}
