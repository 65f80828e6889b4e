package worker

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"homewright/models"
	"homewright/utils"

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
		&models.SchedulerConfig{},
		&models.BotActivityLog{},
		&models.Article{},
		&models.EmailSequence{},
		&models.EmailTemplate{},
		&models.Subscriber{},
		&models.SubscriberSequence{},
		&models.EmailQueueItem{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

type stubGenerator struct {
	article utils.GeneratedArticle
	err     error
	calls   int
}

func (s *stubGenerator) Generate(ctx context.Context, topic string) (*utils.GeneratedArticle, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	article := s.article
	if article.Title == "" {
		article.Title = topic
	}
	if article.Content == "" {
		article.Content = "<p>body</p>"
	}
	return &article, nil
}

func newTestWorker(db *gorm.DB, gen *stubGenerator) *ContentWorker {
	return NewContentWorker(db, gen, nil, log.New(io.Discard, "", 0))
}

func seedConfig(t *testing.T, db *gorm.DB, perDay int, lastRun *time.Time) {
	t.Helper()
	cfg := models.SchedulerConfig{
		JobName:        models.ContentGeneratorJob,
		Enabled:        true,
		ArticlesPerDay: perDay,
		LastRunAt:      lastRun,
	}
	if err := cfg.SetTopics([]string{"Choosing a lot", "Construction loans"}); err != nil {
		t.Fatalf("failed to set topics: %v", err)
	}
	if err := db.Create(&cfg).Error; err != nil {
		t.Fatalf("failed to seed scheduler config: %v", err)
	}
}

func loadConfig(t *testing.T, db *gorm.DB) models.SchedulerConfig {
	t.Helper()
	var cfg models.SchedulerConfig
	if err := db.Where("job_name = ?", models.ContentGeneratorJob).First(&cfg).Error; err != nil {
		t.Fatalf("failed to load scheduler config: %v", err)
	}
	return cfg
}

func countArticles(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.Article{}).Count(&n).Error; err != nil {
		t.Fatalf("failed to count articles: %v", err)
	}
	return n
}

// at builds a local-time instant on a fixed date, away from any
// midnight edge.
func at(day, hour, minute int) time.Time {
	return time.Date(2025, 3, day, hour, minute, 0, 0, time.Local)
}

func TestTickSkipsWithinQuotaWindow(t *testing.T) {
	db := newTestDB(t)
	lastRun := at(10, 8, 0)
	seedConfig(t, db, 2, &lastRun) // quota 2/day -> 12h min gap

	gen := &stubGenerator{}
	cw := newTestWorker(db, gen)

	// 6h elapsed, same day: quota satisfied recently enough
	if err := cw.RunTick(context.Background(), at(10, 14, 0)); err != nil {
		t.Fatalf("RunTick returned error: %v", err)
	}

	if gen.calls != 0 {
		t.Errorf("expected no generation, got %d calls", gen.calls)
	}
	if n := countArticles(t, db); n != 0 {
		t.Errorf("expected 0 articles, got %d", n)
	}
	cfg := loadConfig(t, db)
	if cfg.LastRunAt == nil || !cfg.LastRunAt.Equal(lastRun) {
		t.Errorf("lastRunAt should be untouched on skip, got %v", cfg.LastRunAt)
	}
}

func TestTickProceedsAfterQuotaWindow(t *testing.T) {
	db := newTestDB(t)
	lastRun := at(10, 8, 0)
	seedConfig(t, db, 2, &lastRun)

	gen := &stubGenerator{}
	cw := newTestWorker(db, gen)

	// 12.5h elapsed, same day: window passed
	now := at(10, 20, 30)
	if err := cw.RunTick(context.Background(), now); err != nil {
		t.Fatalf("RunTick returned error: %v", err)
	}

	if gen.calls != 1 {
		t.Fatalf("expected 1 generation call, got %d", gen.calls)
	}
	if n := countArticles(t, db); n != 1 {
		t.Fatalf("expected 1 article, got %d", n)
	}

	cfg := loadConfig(t, db)
	if cfg.LastRunAt == nil || !cfg.LastRunAt.Equal(now) {
		t.Errorf("lastRunAt = %v, want %v", cfg.LastRunAt, now)
	}
	wantNext := now.Add(12 * time.Hour) // tomorrow 08:30
	if cfg.NextRunAt == nil || !cfg.NextRunAt.Equal(wantNext) {
		t.Errorf("nextRunAt = %v, want %v", cfg.NextRunAt, wantNext)
	}
}

func TestTickForcesRunWhenLastRunWasYesterday(t *testing.T) {
	db := newTestDB(t)
	lastRun := at(9, 23, 0)
	seedConfig(t, db, 1, &lastRun) // 1/day -> 24h min gap

	gen := &stubGenerator{}
	cw := newTestWorker(db, gen)

	// Only 1.5h elapsed, but the last run was a previous calendar day
	if err := cw.RunTick(context.Background(), at(10, 0, 30)); err != nil {
		t.Fatalf("RunTick returned error: %v", err)
	}

	if gen.calls != 1 {
		t.Errorf("expected forced generation, got %d calls", gen.calls)
	}
	if n := countArticles(t, db); n != 1 {
		t.Errorf("expected 1 article, got %d", n)
	}
}

func TestFirstTickRunsWithoutLastRun(t *testing.T) {
	db := newTestDB(t)
	seedConfig(t, db, 3, nil)

	gen := &stubGenerator{}
	cw := newTestWorker(db, gen)

	if err := cw.RunTick(context.Background(), at(10, 9, 0)); err != nil {
		t.Fatalf("RunTick returned error: %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("expected 1 generation call, got %d", gen.calls)
	}
}

func TestDisabledConfigSkips(t *testing.T) {
	db := newTestDB(t)
	seedConfig(t, db, 1, nil)
	if err := db.Model(&models.SchedulerConfig{}).
		Where("job_name = ?", models.ContentGeneratorJob).
		Update("enabled", false).Error; err != nil {
		t.Fatalf("failed to disable config: %v", err)
	}

	gen := &stubGenerator{}
	cw := newTestWorker(db, gen)

	if err := cw.RunTick(context.Background(), at(10, 9, 0)); err != nil {
		t.Fatalf("RunTick returned error: %v", err)
	}
	if gen.calls != 0 {
		t.Errorf("disabled scheduler should not generate, got %d calls", gen.calls)
	}
}

func TestFailedGenerationDoesNotAdvanceLastRun(t *testing.T) {
	db := newTestDB(t)
	lastRun := at(9, 8, 0)
	seedConfig(t, db, 1, &lastRun)

	gen := &stubGenerator{err: errors.New("malformed llm output")}
	cw := newTestWorker(db, gen)

	if err := cw.RunTick(context.Background(), at(10, 9, 0)); err == nil {
		t.Fatal("expected error from failed generation")
	}

	cfg := loadConfig(t, db)
	if cfg.LastRunAt == nil || !cfg.LastRunAt.Equal(lastRun) {
		t.Errorf("lastRunAt should not advance on failure, got %v", cfg.LastRunAt)
	}
	if n := countArticles(t, db); n != 0 {
		t.Errorf("expected 0 articles after failure, got %d", n)
	}

	var activity models.BotActivityLog
	if err := db.Order("id DESC").First(&activity).Error; err != nil {
		t.Fatalf("expected an activity log entry: %v", err)
	}
	if activity.Status != models.ActivityFailed {
		t.Errorf("activity status = %q, want %q", activity.Status, models.ActivityFailed)
	}
	if activity.ArticlesGenerated != 0 {
		t.Errorf("articlesGenerated = %d, want 0", activity.ArticlesGenerated)
	}
}

func TestSuccessfulRunLogsCompletedActivity(t *testing.T) {
	db := newTestDB(t)
	seedConfig(t, db, 1, nil)

	cw := newTestWorker(db, &stubGenerator{})
	if err := cw.RunTick(context.Background(), at(10, 9, 0)); err != nil {
		t.Fatalf("RunTick returned error: %v", err)
	}

	var activity models.BotActivityLog
	if err := db.Order("id DESC").First(&activity).Error; err != nil {
		t.Fatalf("expected an activity log entry: %v", err)
	}
	if activity.Status != models.ActivityCompleted {
		t.Errorf("activity status = %q, want %q", activity.Status, models.ActivityCompleted)
	}
	if activity.ArticlesGenerated != 1 {
		t.Errorf("articlesGenerated = %d, want 1", activity.ArticlesGenerated)
	}
}

func TestDuplicateTitlesGetDistinctSlugs(t *testing.T) {
	db := newTestDB(t)
	seedConfig(t, db, 10, nil)

	gen := &stubGenerator{article: utils.GeneratedArticle{
		Title:   "Choosing the Right Lot",
		Content: "<p>body</p>",
	}}
	cw := newTestWorker(db, gen)

	cfg := loadConfig(t, db)
	now := at(10, 9, 0)
	if err := cw.GenerateOnce(context.Background(), &cfg, now); err != nil {
		t.Fatalf("first GenerateOnce failed: %v", err)
	}
	cfg = loadConfig(t, db)
	if err := cw.GenerateOnce(context.Background(), &cfg, now.Add(time.Millisecond)); err != nil {
		t.Fatalf("second GenerateOnce failed: %v", err)
	}

	var articles []models.Article
	if err := db.Find(&articles).Error; err != nil {
		t.Fatalf("failed to load articles: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}
	if articles[0].Slug == articles[1].Slug {
		t.Errorf("identical titles produced identical slugs: %q", articles[0].Slug)
	}
	if articles[0].Title != articles[1].Title {
		t.Errorf("titles should match: %q vs %q", articles[0].Title, articles[1].Title)
	}
}
