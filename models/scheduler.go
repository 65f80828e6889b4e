package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Job names for SchedulerConfig rows
const ContentGeneratorJob = "content_generator"

// Activity log statuses
const (
	ActivityStarted    = "started"
	ActivityInProgress = "in_progress"
	ActivityCompleted  = "completed"
	ActivityFailed     = "failed"
)

// Daily article quota bounds
const (
	MinArticlesPerDay = 1
	MaxArticlesPerDay = 10
)

// SchedulerConfig holds the persisted state of a recurring background job.
// One row per job name; the content generator is the only job today.
type SchedulerConfig struct {
	gorm.Model
	JobName string `gorm:"uniqueIndex;not null" json:"job_name"`
	Enabled bool   `gorm:"default:true" json:"enabled"`

	ArticlesPerDay int `gorm:"default:1" json:"articles_per_day"`

	LastRunAt *time.Time `json:"last_run_at"`
	NextRunAt *time.Time `json:"next_run_at"`

	// Ordered list of topics the generator picks from, stored as JSON
	Topics datatypes.JSON `json:"topics"`
}

// MinTimeBetweenRuns derives the target spacing between generation runs
// from the daily quota.
func (sc *SchedulerConfig) MinTimeBetweenRuns() time.Duration {
	return 24 * time.Hour / time.Duration(ClampArticlesPerDay(sc.ArticlesPerDay))
}

func (sc *SchedulerConfig) TopicList() []string {
	var topics []string
	if len(sc.Topics) == 0 {
		return topics
	}
	if err := json.Unmarshal(sc.Topics, &topics); err != nil {
		return nil
	}
	return topics
}

func (sc *SchedulerConfig) SetTopics(topics []string) error {
	raw, err := json.Marshal(topics)
	if err != nil {
		return err
	}
	sc.Topics = datatypes.JSON(raw)
	return nil
}

// ClampArticlesPerDay forces the quota into [1,10]. Out-of-range values
// are clamped rather than rejected.
func ClampArticlesPerDay(n int) int {
	if n < MinArticlesPerDay {
		return MinArticlesPerDay
	}
	if n > MaxArticlesPerDay {
		return MaxArticlesPerDay
	}
	return n
}

// BotActivityLog is an append-only audit trail of scheduler attempts.
// A row is created with status "started" before generation and updated
// exactly once to a terminal status.
type BotActivityLog struct {
	gorm.Model
	ActivityType string `gorm:"not null;index" json:"activity_type"`
	Description  string `json:"description"`
	Status       string `gorm:"default:'started';index" json:"status"`

	Result            datatypes.JSON `json:"result"`
	ArticlesGenerated int            `gorm:"default:0" json:"articles_generated"`
}
