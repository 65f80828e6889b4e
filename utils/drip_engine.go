package utils

import (
	"errors"
	"fmt"
	"log"
	"time"

	"homewright/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrAlreadyEnrolled  = errors.New("subscriber already enrolled in sequence")
	ErrSequenceInactive = errors.New("sequence is not active")
)

// DripEngine owns the enrollment and advancement rules for email
// sequences. The queue item is the single source of truth for what
// sends next: exactly one pending item exists per active enrollment,
// so a restart resumes by re-scanning for due items.
type DripEngine struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDripEngine(db *gorm.DB, logger *log.Logger) *DripEngine {
	return &DripEngine{
		DB:     db,
		Logger: logger,
	}
}

// Enroll starts a subscriber on a sequence. At most once per
// (subscriber, sequence): a prior active or completed enrollment makes
// this a no-op error. Step 1 is enqueued immediately; delay fields
// govern the gap before the *next* step, not the first.
func (de *DripEngine) Enroll(subscriberID, sequenceID uint, now time.Time) (*models.SubscriberSequence, error) {
	var existing models.SubscriberSequence
	err := de.DB.Where("subscriber_id = ? AND sequence_id = ? AND status IN ?",
		subscriberID, sequenceID,
		[]string{models.EnrollmentActive, models.EnrollmentCompleted}).
		First(&existing).Error
	if err == nil {
		return nil, ErrAlreadyEnrolled
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing enrollment: %w", err)
	}

	var sequence models.EmailSequence
	if err := de.DB.First(&sequence, sequenceID).Error; err != nil {
		return nil, fmt.Errorf("failed to load sequence: %w", err)
	}
	if !sequence.Active {
		return nil, ErrSequenceInactive
	}

	var first models.EmailTemplate
	if err := de.DB.Where("sequence_id = ? AND order_index = ? AND active = ?",
		sequenceID, 1, true).First(&first).Error; err != nil {
		return nil, fmt.Errorf("sequence %q has no active first step: %w", sequence.Name, err)
	}

	enrollment := models.SubscriberSequence{
		SubscriberID: subscriberID,
		SequenceID:   sequenceID,
		CurrentStep:  0,
		Status:       models.EnrollmentActive,
	}
	if err := de.DB.Create(&enrollment).Error; err != nil {
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}

	if err := de.enqueue(subscriberID, sequenceID, &first, now); err != nil {
		return nil, err
	}

	de.Logger.Printf("Enrolled subscriber %d in sequence %q", subscriberID, sequence.Name)
	return &enrollment, nil
}

// EnrollByName is Enroll keyed by sequence name, for callers that only
// know the seeded name.
func (de *DripEngine) EnrollByName(subscriberID uint, sequenceName string, now time.Time) (*models.SubscriberSequence, error) {
	var sequence models.EmailSequence
	if err := de.DB.Where("name = ?", sequenceName).First(&sequence).Error; err != nil {
		return nil, fmt.Errorf("failed to load sequence %q: %w", sequenceName, err)
	}
	return de.Enroll(subscriberID, sequence.ID, now)
}

// Advance records a successful send and schedules whatever comes next.
// The next step's scheduled time is relative to the actual send time,
// not the originally planned time, so a late processor run never
// compresses subsequent gaps below the authored delays.
func (de *DripEngine) Advance(item *models.EmailQueueItem, tmpl *models.EmailTemplate, now time.Time) error {
	if err := de.DB.Model(item).Updates(map[string]interface{}{
		"status":  models.QueueSent,
		"sent_at": now,
	}).Error; err != nil {
		return fmt.Errorf("failed to mark queue item sent: %w", err)
	}

	var enrollment models.SubscriberSequence
	if err := de.DB.Where("subscriber_id = ? AND sequence_id = ? AND status = ?",
		item.SubscriberID, item.SequenceID, models.EnrollmentActive).
		First(&enrollment).Error; err != nil {
		return fmt.Errorf("failed to load active enrollment: %w", err)
	}

	if err := de.DB.Model(&enrollment).Updates(map[string]interface{}{
		"current_step":       tmpl.OrderIndex,
		"last_email_sent_at": now,
	}).Error; err != nil {
		return fmt.Errorf("failed to advance enrollment: %w", err)
	}

	var next models.EmailTemplate
	err := de.DB.Where("sequence_id = ? AND order_index = ? AND active = ?",
		item.SequenceID, tmpl.OrderIndex+1, true).First(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Last step sent - the sequence is complete
		if err := de.DB.Model(&enrollment).Updates(map[string]interface{}{
			"status":       models.EnrollmentCompleted,
			"completed_at": now,
		}).Error; err != nil {
			return fmt.Errorf("failed to complete enrollment: %w", err)
		}
		de.Logger.Printf("Subscriber %d completed sequence %d", item.SubscriberID, item.SequenceID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up next step: %w", err)
	}

	return de.enqueue(item.SubscriberID, item.SequenceID, &next, now.Add(next.Delay()))
}

// HaltSubscriber stops all drip activity for a subscriber: active
// enrollments become unsubscribed and their pending queue items are
// cancelled so no further sends are attempted.
func (de *DripEngine) HaltSubscriber(subscriberID uint, now time.Time) error {
	if err := de.DB.Model(&models.SubscriberSequence{}).
		Where("subscriber_id = ? AND status = ?", subscriberID, models.EnrollmentActive).
		Update("status", models.EnrollmentUnsubscribed).Error; err != nil {
		return fmt.Errorf("failed to unsubscribe enrollments: %w", err)
	}

	if err := de.DB.Model(&models.EmailQueueItem{}).
		Where("subscriber_id = ? AND status = ?", subscriberID, models.QueuePending).
		Update("status", models.QueueCancelled).Error; err != nil {
		return fmt.Errorf("failed to cancel pending queue items: %w", err)
	}

	de.Logger.Printf("Halted all sequences for subscriber %d", subscriberID)
	return nil
}

func (de *DripEngine) enqueue(subscriberID, sequenceID uint, tmpl *models.EmailTemplate, scheduledFor time.Time) error {
	queueItem := models.EmailQueueItem{
		SubscriberID: subscriberID,
		TemplateID:   tmpl.ID,
		SequenceID:   sequenceID,
		ScheduledFor: scheduledFor,
		Status:       models.QueuePending,
		DedupeKey:    uuid.NewString(),
	}
	if err := de.DB.Create(&queueItem).Error; err != nil {
		return fmt.Errorf("failed to enqueue step %d: %w", tmpl.OrderIndex, err)
	}
	return nil
}
