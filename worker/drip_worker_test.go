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

	"gorm.io/gorm"
)

type fakeSender struct {
	err  error
	sent []utils.OutboundEmail
}

func (f *fakeSender) SendWithRetry(ctx context.Context, email utils.OutboundEmail, attempts int) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, email)
	return nil
}

// seedDrip creates a 3-step sequence (delays 0, 2d, 2d), a subscriber,
// and an active enrollment with step 1 pending.
func seedDrip(t *testing.T, db *gorm.DB, engine *utils.DripEngine, enrolledAt time.Time) models.Subscriber {
	t.Helper()

	seq := models.EmailSequence{Name: "welcome", TriggerType: models.TriggerLeadMagnet, Active: true}
	if err := db.Create(&seq).Error; err != nil {
		t.Fatalf("failed to create sequence: %v", err)
	}
	for i, delayDays := range []int{0, 2, 2} {
		tmpl := models.EmailTemplate{
			SequenceID:  seq.ID,
			OrderIndex:  i + 1,
			Subject:     "Step subject",
			HTMLContent: "<p>Hi {{.Name}}</p>",
			TextContent: "Hi {{.Name}}",
			DelayDays:   delayDays,
			Active:      true,
		}
		if err := db.Create(&tmpl).Error; err != nil {
			t.Fatalf("failed to create template: %v", err)
		}
	}

	sub := models.Subscriber{
		Email:            "buyer@example.com",
		Name:             "Dana",
		IsActive:         true,
		UnsubscribeToken: "tok-" + enrolledAt.Format("150405"),
	}
	if err := db.Create(&sub).Error; err != nil {
		t.Fatalf("failed to create subscriber: %v", err)
	}

	if _, err := engine.Enroll(sub.ID, seq.ID, enrolledAt); err != nil {
		t.Fatalf("failed to enroll subscriber: %v", err)
	}
	return sub
}

func pendingItems(t *testing.T, db *gorm.DB) []models.EmailQueueItem {
	t.Helper()
	var items []models.EmailQueueItem
	if err := db.Where("status = ?", models.QueuePending).Order("id").Find(&items).Error; err != nil {
		t.Fatalf("failed to load pending items: %v", err)
	}
	return items
}

func newDripWorker(db *gorm.DB, engine *utils.DripEngine, sender EmailSender) *DripWorker {
	return NewDripWorker(db, engine, sender, log.New(io.Discard, "", 0))
}

func TestDueItemSendsAndAdvances(t *testing.T) {
	db := newTestDB(t)
	engine := utils.NewDripEngine(db, log.New(io.Discard, "", 0))
	t0 := at(10, 9, 0)
	sub := seedDrip(t, db, engine, t0)

	sender := &fakeSender{}
	dw := newDripWorker(db, engine, sender)
	dw.ProcessDueItems(context.Background(), t0)

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email sent, got %d", len(sender.sent))
	}
	if sender.sent[0].To != sub.Email {
		t.Errorf("sent to %q, want %q", sender.sent[0].To, sub.Email)
	}
	if sender.sent[0].DedupeKey == "" {
		t.Error("outbound email should carry a dedupe key")
	}

	var enrollment models.SubscriberSequence
	if err := db.Where("subscriber_id = ?", sub.ID).First(&enrollment).Error; err != nil {
		t.Fatalf("failed to load enrollment: %v", err)
	}
	if enrollment.CurrentStep != 1 {
		t.Errorf("currentStep = %d, want 1", enrollment.CurrentStep)
	}
	if enrollment.Status != models.EnrollmentActive {
		t.Errorf("status = %q, want active", enrollment.Status)
	}

	// Exactly one pending item remains: step 2, two days out
	pending := pendingItems(t, db)
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending item, got %d", len(pending))
	}
	wantAt := t0.Add(48 * time.Hour)
	if !pending[0].ScheduledFor.Equal(wantAt) {
		t.Errorf("step 2 scheduled for %v, want %v", pending[0].ScheduledFor, wantAt)
	}
}

func TestLateProcessingSchedulesFromActualSendTime(t *testing.T) {
	db := newTestDB(t)
	engine := utils.NewDripEngine(db, log.New(io.Discard, "", 0))
	t0 := at(10, 9, 0)
	seedDrip(t, db, engine, t0)

	sender := &fakeSender{}
	dw := newDripWorker(db, engine, sender)

	// Step 1 goes out on time
	dw.ProcessDueItems(context.Background(), t0)

	// Processor is down past step 2's due time; the email still sends
	// late rather than being skipped
	late := t0.Add(48*time.Hour + 3*time.Hour)
	dw.ProcessDueItems(context.Background(), late)

	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 emails sent, got %d", len(sender.sent))
	}

	// Step 3 schedules relative to the actual send, not the plan
	pending := pendingItems(t, db)
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending item, got %d", len(pending))
	}
	wantAt := late.Add(48 * time.Hour)
	if !pending[0].ScheduledFor.Equal(wantAt) {
		t.Errorf("step 3 scheduled for %v, want %v", pending[0].ScheduledFor, wantAt)
	}
}

func TestFutureItemIsNotSent(t *testing.T) {
	db := newTestDB(t)
	engine := utils.NewDripEngine(db, log.New(io.Discard, "", 0))
	t0 := at(10, 9, 0)
	seedDrip(t, db, engine, t0)

	sender := &fakeSender{}
	dw := newDripWorker(db, engine, sender)

	dw.ProcessDueItems(context.Background(), t0)
	// Step 2 is due at t0+48h; a scan before that must not touch it
	dw.ProcessDueItems(context.Background(), t0.Add(24*time.Hour))

	if len(sender.sent) != 1 {
		t.Errorf("expected only step 1 sent, got %d sends", len(sender.sent))
	}
}

func TestUnsubscribeCancelsPendingItem(t *testing.T) {
	db := newTestDB(t)
	engine := utils.NewDripEngine(db, log.New(io.Discard, "", 0))
	t0 := at(10, 9, 0)
	sub := seedDrip(t, db, engine, t0)

	sender := &fakeSender{}
	dw := newDripWorker(db, engine, sender)
	dw.ProcessDueItems(context.Background(), t0)

	// Unsubscribe lands between step 1 and the scan for step 2
	if err := engine.HaltSubscriber(sub.ID, t0.Add(time.Hour)); err != nil {
		t.Fatalf("HaltSubscriber failed: %v", err)
	}

	dw.ProcessDueItems(context.Background(), t0.Add(72*time.Hour))

	if len(sender.sent) != 1 {
		t.Errorf("no email should send after unsubscribe, got %d sends", len(sender.sent))
	}

	var cancelled int64
	if err := db.Model(&models.EmailQueueItem{}).
		Where("status = ?", models.QueueCancelled).Count(&cancelled).Error; err != nil {
		t.Fatalf("failed to count cancelled items: %v", err)
	}
	if cancelled != 1 {
		t.Errorf("expected 1 cancelled item, got %d", cancelled)
	}
	if len(pendingItems(t, db)) != 0 {
		t.Error("no pending items should remain after unsubscribe")
	}
}

func TestInactiveSubscriberCancelsAtSendTime(t *testing.T) {
	db := newTestDB(t)
	engine := utils.NewDripEngine(db, log.New(io.Discard, "", 0))
	t0 := at(10, 9, 0)
	sub := seedDrip(t, db, engine, t0)

	// Subscriber flagged inactive directly, enrollment left active
	if err := db.Model(&models.Subscriber{}).Where("id = ?", sub.ID).
		Update("is_active", false).Error; err != nil {
		t.Fatalf("failed to deactivate subscriber: %v", err)
	}

	sender := &fakeSender{}
	dw := newDripWorker(db, engine, sender)
	dw.ProcessDueItems(context.Background(), t0)

	if len(sender.sent) != 0 {
		t.Errorf("inactive subscriber must not be sent to, got %d sends", len(sender.sent))
	}

	var item models.EmailQueueItem
	if err := db.First(&item).Error; err != nil {
		t.Fatalf("failed to load queue item: %v", err)
	}
	if item.Status != models.QueueCancelled {
		t.Errorf("item status = %q, want cancelled", item.Status)
	}
}

func TestFailedSendDoesNotAdvanceEnrollment(t *testing.T) {
	db := newTestDB(t)
	engine := utils.NewDripEngine(db, log.New(io.Discard, "", 0))
	t0 := at(10, 9, 0)
	sub := seedDrip(t, db, engine, t0)

	sender := &fakeSender{err: errors.New("smtp connection refused")}
	dw := newDripWorker(db, engine, sender)
	dw.ProcessDueItems(context.Background(), t0)

	var item models.EmailQueueItem
	if err := db.First(&item).Error; err != nil {
		t.Fatalf("failed to load queue item: %v", err)
	}
	if item.Status != models.QueueFailed {
		t.Errorf("item status = %q, want failed", item.Status)
	}
	if item.ErrorMessage == "" {
		t.Error("failed item should record an error message")
	}

	var enrollment models.SubscriberSequence
	if err := db.Where("subscriber_id = ?", sub.ID).First(&enrollment).Error; err != nil {
		t.Fatalf("failed to load enrollment: %v", err)
	}
	if enrollment.CurrentStep != 0 {
		t.Errorf("currentStep = %d, want 0 after failed send", enrollment.CurrentStep)
	}

	// No next step was scheduled: the failed step blocks progression
	if len(pendingItems(t, db)) != 0 {
		t.Error("no pending item should exist after a failed send")
	}
}
