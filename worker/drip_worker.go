package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"homewright/metrics"
	"homewright/models"
	"homewright/utils"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const (
	dripTickInterval = 15 * time.Minute
	sendAttempts     = 3
)

// EmailSender delivers one outbound email with bounded retries.
// Satisfied by utils.Mailer.
type EmailSender interface {
	SendWithRetry(ctx context.Context, email utils.OutboundEmail, attempts int) error
}

// DripWorker is the queue processor: each tick it scans for due
// pending queue items, sends them, and lets the drip engine advance
// the enrollment.
type DripWorker struct {
	DB      *gorm.DB
	Engine  *utils.DripEngine
	Sender  EmailSender
	Limiter *rate.Limiter
	Logger  *log.Logger
}

func NewDripWorker(db *gorm.DB, engine *utils.DripEngine, sender EmailSender, logger *log.Logger) *DripWorker {
	return &DripWorker{
		DB:     db,
		Engine: engine,
		Sender: sender,
		// Keeps bursts of due emails inside typical SMTP limits
		Limiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
		Logger:  logger,
	}
}

func (dw *DripWorker) Start(ctx context.Context) {
	time.Sleep(10 * time.Second)

	dw.Logger.Println("Drip worker started")

	ticker := time.NewTicker(dripTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			dw.Logger.Println("Drip worker shutting down...")
			return
		case <-ticker.C:
			dw.ProcessDueItems(ctx, time.Now())
		}
	}
}

// ProcessDueItems handles every pending queue item whose scheduled
// time has passed. Item failures are isolated: one bad send never
// stops the rest of the scan.
func (dw *DripWorker) ProcessDueItems(ctx context.Context, now time.Time) {
	var items []models.EmailQueueItem
	if err := dw.DB.Where("status = ? AND scheduled_for <= ?", models.QueuePending, now).
		Order("scheduled_for").Find(&items).Error; err != nil {
		dw.Logger.Printf("Error fetching due queue items: %v", err)
		return
	}

	for i := range items {
		if err := dw.processItem(ctx, &items[i], now); err != nil {
			dw.Logger.Printf("Error processing queue item %d: %v", items[i].ID, err)
			logrus.WithFields(logrus.Fields{
				"queue_item_id": items[i].ID,
				"subscriber_id": items[i].SubscriberID,
			}).WithError(err).Error("drip send failed")
			sentry.CaptureException(err)
		}
	}
}

func (dw *DripWorker) processItem(ctx context.Context, item *models.EmailQueueItem, now time.Time) error {
	var subscriber models.Subscriber
	if err := dw.DB.First(&subscriber, item.SubscriberID).Error; err != nil {
		return dw.failItem(item, fmt.Errorf("failed to load subscriber: %w", err))
	}

	var enrollment models.SubscriberSequence
	err := dw.DB.Where("subscriber_id = ? AND sequence_id = ?",
		item.SubscriberID, item.SequenceID).First(&enrollment).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to load enrollment: %w", err)
	}

	// Re-check at the last possible moment so an unsubscribe between
	// enqueue and send wins
	if !subscriber.IsActive || enrollment.Status != models.EnrollmentActive {
		if err := dw.DB.Model(item).Update("status", models.QueueCancelled).Error; err != nil {
			return fmt.Errorf("failed to cancel queue item: %w", err)
		}
		metrics.EmailsCancelled.Inc()
		dw.Logger.Printf("Cancelled queue item %d (subscriber %d inactive or unenrolled)", item.ID, item.SubscriberID)
		return nil
	}

	var tmpl models.EmailTemplate
	if err := dw.DB.First(&tmpl, item.TemplateID).Error; err != nil {
		return dw.failItem(item, fmt.Errorf("failed to load template: %w", err))
	}

	email, err := dw.renderEmail(&subscriber, &tmpl, item.DedupeKey)
	if err != nil {
		return dw.failItem(item, err)
	}

	if err := dw.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter stopped by context: %w", err)
	}

	if err := dw.Sender.SendWithRetry(ctx, email, sendAttempts); err != nil {
		metrics.EmailFailures.Inc()
		// The enrollment stays where it was: no later step can jump
		// ahead of a failed one
		return dw.failItem(item, err)
	}

	metrics.EmailsSent.Inc()
	dw.Logger.Printf("Sent step %d of sequence %d to %s", tmpl.OrderIndex, item.SequenceID, subscriber.Email)

	return dw.Engine.Advance(item, &tmpl, now)
}

func (dw *DripWorker) renderEmail(subscriber *models.Subscriber, tmpl *models.EmailTemplate, dedupeKey string) (utils.OutboundEmail, error) {
	data := map[string]string{
		"Name":  subscriber.Name,
		"Email": subscriber.Email,
	}
	if data["Name"] == "" {
		data["Name"] = "there"
	}

	htmlBody, err := utils.RenderBody(tmpl.HTMLContent, data)
	if err != nil {
		return utils.OutboundEmail{}, fmt.Errorf("failed to render html body: %w", err)
	}
	textBody, err := utils.RenderBody(tmpl.TextContent, data)
	if err != nil {
		return utils.OutboundEmail{}, fmt.Errorf("failed to render text body: %w", err)
	}

	return utils.OutboundEmail{
		To:        subscriber.Email,
		ToName:    subscriber.Name,
		Subject:   tmpl.Subject,
		HTMLBody:  htmlBody,
		TextBody:  textBody,
		DedupeKey: dedupeKey,
	}, nil
}

func (dw *DripWorker) failItem(item *models.EmailQueueItem, cause error) error {
	if err := dw.DB.Model(item).Updates(map[string]interface{}{
		"status":        models.QueueFailed,
		"error_message": cause.Error(),
		"attempts":      item.Attempts + sendAttempts,
	}).Error; err != nil {
		return fmt.Errorf("failed to mark queue item failed (original: %v): %w", cause, err)
	}
	return cause
}
