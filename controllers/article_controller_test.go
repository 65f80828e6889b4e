package controller

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"homewright/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Article{},
		&models.EmailSequence{},
		&models.EmailTemplate{},
		&models.Subscriber{},
		&models.SubscriberSequence{},
		&models.EmailQueueItem{},
		&models.Lead{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func seedArticle(t *testing.T, db *gorm.DB, slug, status string) models.Article {
	t.Helper()
	now := time.Now()
	article := models.Article{
		Slug:        slug,
		Title:       "Choosing the Right Lot",
		Excerpt:     "excerpt",
		Content:     "<p>body</p>",
		Category:    "Home Building",
		Status:      status,
		PublishedAt: &now,
	}
	if err := db.Create(&article).Error; err != nil {
		t.Fatalf("failed to seed article: %v", err)
	}
	return article
}

func newArticleApp(db *gorm.DB) *fiber.App {
	ac := NewArticleController(db, log.New(io.Discard, "", 0))
	app := fiber.New()
	app.Get("/api/v1/articles", ac.ListArticles)
	app.Get("/api/v1/articles/:slug", ac.GetArticle)
	return app
}

func TestListArticlesReturnsOnlyPublished(t *testing.T) {
	db := newTestDB(t)
	seedArticle(t, db, "published-post-1", models.ArticlePublished)
	seedArticle(t, db, "draft-post-1", models.ArticleDraft)

	app := newArticleApp(db)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/articles", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Articles []models.Article `json:"articles"`
		Total    int64            `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Total != 1 || len(body.Articles) != 1 {
		t.Fatalf("expected exactly the published article, got total=%d len=%d", body.Total, len(body.Articles))
	}
	if body.Articles[0].Slug != "published-post-1" {
		t.Errorf("slug = %q, want published-post-1", body.Articles[0].Slug)
	}
}

func TestGetArticleBumpsViewCount(t *testing.T) {
	db := newTestDB(t)
	article := seedArticle(t, db, "published-post-1", models.ArticlePublished)

	app := newArticleApp(db)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/articles/published-post-1", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var reloaded models.Article
	if err := db.First(&reloaded, article.ID).Error; err != nil {
		t.Fatalf("failed to reload article: %v", err)
	}
	if reloaded.ViewCount != 1 {
		t.Errorf("viewCount = %d, want 1", reloaded.ViewCount)
	}
}

func TestGetArticleUnknownSlugReturns404(t *testing.T) {
	db := newTestDB(t)
	app := newArticleApp(db)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/articles/nope", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetArticleDraftIsHidden(t *testing.T) {
	db := newTestDB(t)
	seedArticle(t, db, "draft-post-1", models.ArticleDraft)

	app := newArticleApp(db)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/articles/draft-post-1", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for draft", resp.StatusCode)
	}
}
