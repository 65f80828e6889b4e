package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"homewright/metrics"
	"homewright/models"
	"homewright/utils"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	contentTickInterval = 30 * time.Minute
	// Lease expires before the next tick so a crashed holder never
	// blocks the schedule for more than one interval
	contentLeaseTTL = 25 * time.Minute
	contentLeaseKey = "homewright:lease:" + models.ContentGeneratorJob
)

// ArticleGenerator produces one article for a topic. Satisfied by
// utils.ContentGenerator.
type ArticleGenerator interface {
	Generate(ctx context.Context, topic string) (*utils.GeneratedArticle, error)
}

// ContentWorker runs the article generation schedule: every tick it
// loads the persisted config and decides whether today's quota calls
// for a new article.
type ContentWorker struct {
	DB        *gorm.DB
	Generator ArticleGenerator
	Redis     *redis.Client // nil when running without a tick lease
	Logger    *log.Logger
}

func NewContentWorker(db *gorm.DB, generator ArticleGenerator, rdb *redis.Client, logger *log.Logger) *ContentWorker {
	return &ContentWorker{
		DB:        db,
		Generator: generator,
		Redis:     rdb,
		Logger:    logger,
	}
}

func (cw *ContentWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	cw.Logger.Println("Content worker started")

	ticker := time.NewTicker(contentTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cw.Logger.Println("Content worker shutting down...")
			return
		case <-ticker.C:
			cw.runScheduled(ctx)
		}
	}
}

func (cw *ContentWorker) runScheduled(ctx context.Context) {
	if !cw.acquireLease(ctx) {
		cw.Logger.Println("Tick lease held elsewhere, skipping")
		return
	}

	if err := cw.RunTick(ctx, time.Now()); err != nil {
		cw.Logger.Printf("Content tick failed: %v", err)
		logrus.WithFields(logrus.Fields{
			"job": models.ContentGeneratorJob,
		}).WithError(err).Error("content tick failed")
		sentry.CaptureException(err)
	}
}

// RunTick applies the quota/cadence policy for a single tick at the
// given time. Spacing between runs is 24h divided by the daily quota.
// A last run from a previous calendar day forces a run regardless of
// elapsed time, so missed ticks self-heal without a date-keyed counter.
func (cw *ContentWorker) RunTick(ctx context.Context, now time.Time) error {
	var cfg models.SchedulerConfig
	err := cw.DB.Where("job_name = ?", models.ContentGeneratorJob).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cw.Logger.Println("No scheduler config found, skipping tick")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load scheduler config: %w", err)
	}

	if !cfg.Enabled {
		return nil
	}

	minGap := cfg.MinTimeBetweenRuns()
	if cfg.LastRunAt != nil && sameCalendarDay(*cfg.LastRunAt, now) && now.Sub(*cfg.LastRunAt) < minGap {
		cw.Logger.Printf("Quota satisfied %s ago (min gap %s), skipping",
			now.Sub(*cfg.LastRunAt).Round(time.Minute), minGap)
		return nil
	}

	return cw.GenerateOnce(ctx, &cfg, now)
}

// GenerateOnce produces exactly one article and advances the schedule
// state. Also the path behind the admin "generate now" trigger, which
// bypasses the quota check.
func (cw *ContentWorker) GenerateOnce(ctx context.Context, cfg *models.SchedulerConfig, now time.Time) error {
	topics := cfg.TopicList()
	if len(topics) == 0 {
		return fmt.Errorf("scheduler config has no topics")
	}
	topic := topics[rand.Intn(len(topics))]

	activity := models.BotActivityLog{
		ActivityType: models.ContentGeneratorJob,
		Description:  fmt.Sprintf("Generating article for topic: %s", topic),
		Status:       models.ActivityStarted,
	}
	if err := cw.DB.Create(&activity).Error; err != nil {
		return fmt.Errorf("failed to create activity log entry: %w", err)
	}

	generated, err := cw.Generator.Generate(ctx, topic)
	if err != nil {
		// lastRunAt is deliberately not advanced: the next tick
		// retries generation instead of waiting out a full gap
		cw.failActivity(&activity, topic, err)
		metrics.GenerationFailures.Inc()
		return fmt.Errorf("generation failed for topic %q: %w", topic, err)
	}

	tags, err := json.Marshal(generated.Tags)
	if err != nil {
		cw.failActivity(&activity, topic, err)
		return fmt.Errorf("failed to serialize tags: %w", err)
	}

	article := models.Article{
		Slug:            utils.UniqueSlug(generated.Title, now),
		Title:           generated.Title,
		Excerpt:         generated.Excerpt,
		Content:         generated.Content,
		Category:        generated.Category,
		Tags:            datatypes.JSON(tags),
		MetaTitle:       generated.MetaTitle,
		MetaDescription: generated.MetaDescription,
		Status:          models.ArticlePublished,
		PublishedAt:     &now,
	}
	if err := cw.DB.Create(&article).Error; err != nil {
		cw.failActivity(&activity, topic, err)
		return fmt.Errorf("failed to persist article: %w", err)
	}

	nextRun := now.Add(cfg.MinTimeBetweenRuns())
	if err := cw.DB.Model(cfg).Updates(map[string]interface{}{
		"last_run_at": now,
		"next_run_at": nextRun,
	}).Error; err != nil {
		cw.failActivity(&activity, topic, err)
		return fmt.Errorf("failed to update scheduler state: %w", err)
	}

	result, _ := json.Marshal(map[string]string{"topic": topic, "slug": article.Slug})
	if err := cw.DB.Model(&activity).Updates(map[string]interface{}{
		"status":             models.ActivityCompleted,
		"articles_generated": 1,
		"result":             datatypes.JSON(result),
	}).Error; err != nil {
		return fmt.Errorf("failed to finalize activity log entry: %w", err)
	}

	metrics.ArticlesGenerated.Inc()
	cw.Logger.Printf("Published article %q (slug %s)", article.Title, article.Slug)
	return nil
}

func (cw *ContentWorker) failActivity(activity *models.BotActivityLog, topic string, cause error) {
	result, _ := json.Marshal(map[string]string{"topic": topic, "error": cause.Error()})
	if err := cw.DB.Model(activity).Updates(map[string]interface{}{
		"status": models.ActivityFailed,
		"result": datatypes.JSON(result),
	}).Error; err != nil {
		cw.Logger.Printf("Failed to record activity failure: %v", err)
	}
}

// acquireLease grabs the per-job Redis lease for this tick. Without
// Redis the worker assumes it is the only instance.
func (cw *ContentWorker) acquireLease(ctx context.Context) bool {
	if cw.Redis == nil {
		return true
	}
	ok, err := cw.Redis.SetNX(ctx, contentLeaseKey, time.Now().Format(time.RFC3339), contentLeaseTTL).Result()
	if err != nil {
		cw.Logger.Printf("Lease check failed, proceeding without it: %v", err)
		return true
	}
	return ok
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}
