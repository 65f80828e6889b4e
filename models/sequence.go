package models

import (
	"time"

	"gorm.io/gorm"
)

// Sequence trigger types
const (
	TriggerLeadMagnet = "lead_magnet"
	TriggerNewsletter = "newsletter_signup"
)

// Enrollment statuses
const (
	EnrollmentActive       = "active"
	EnrollmentCompleted    = "completed"
	EnrollmentUnsubscribed = "unsubscribed"
)

// Queue item statuses
const (
	QueuePending   = "pending"
	QueueSent      = "sent"
	QueueFailed    = "failed"
	QueueCancelled = "cancelled"
)

// EmailSequence is a named drip campaign definition. Seeded once,
// effectively static at runtime.
type EmailSequence struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description"`
	TriggerType string `json:"trigger_type"`
	Active      bool   `gorm:"default:true" json:"active"`

	Templates []EmailTemplate `gorm:"foreignKey:SequenceID" json:"templates,omitempty"`
}

// EmailTemplate is one step of a sequence. OrderIndex is the step
// identity: unique and contiguous from 1 within a sequence. The delay
// fields say how long after the *previous* step this one fires.
type EmailTemplate struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`
	OrderIndex int  `gorm:"not null" json:"order_index"`

	Subject     string `gorm:"not null" json:"subject"`
	HTMLContent string `gorm:"type:text" json:"html_content"`
	TextContent string `gorm:"type:text" json:"text_content"`

	DelayDays  int  `gorm:"default:0" json:"delay_days"`
	DelayHours int  `gorm:"default:0" json:"delay_hours"`
	Active     bool `gorm:"default:true" json:"active"`
}

// Delay converts the authoring-friendly day/hour fields into a duration.
func (t *EmailTemplate) Delay() time.Duration {
	return time.Duration(t.DelayDays)*24*time.Hour + time.Duration(t.DelayHours)*time.Hour
}

// SubscriberSequence tracks one subscriber's progress through one
// sequence. CurrentStep is the last completed order index, 0 before the
// first send. At most one active enrollment exists per
// (subscriber, sequence) pair.
type SubscriberSequence struct {
	gorm.Model
	SubscriberID uint `gorm:"not null;index" json:"subscriber_id"`
	SequenceID   uint `gorm:"not null;index" json:"sequence_id"`

	CurrentStep int    `gorm:"default:0" json:"current_step"`
	Status      string `gorm:"default:'active';index" json:"status"`

	LastEmailSentAt *time.Time `json:"last_email_sent_at"`
	CompletedAt     *time.Time `json:"completed_at"`
}

// EmailQueueItem is the single source of truth for "what sends next".
// Exactly one pending item exists per active enrollment.
type EmailQueueItem struct {
	gorm.Model
	SubscriberID uint `gorm:"not null;index" json:"subscriber_id"`
	TemplateID   uint `gorm:"not null;index" json:"template_id"`
	SequenceID   uint `gorm:"not null;index" json:"sequence_id"`

	ScheduledFor time.Time `gorm:"not null;index" json:"scheduled_for"`
	Status       string    `gorm:"default:'pending';index" json:"status"`

	SentAt       *time.Time `json:"sent_at"`
	ErrorMessage string     `json:"error_message"`
	Attempts     int        `gorm:"default:0" json:"attempts"`

	// Stable idempotency key, set as the outbound Message-Id so a
	// crash-retry resend is detectable downstream
	DedupeKey string `gorm:"uniqueIndex" json:"dedupe_key"`
}
