package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"production-output-backend/internal/errs"
	"production-output-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// AlertStore is the data the workers need.
type AlertStore interface {
	GetReading(ctx context.Context, id int64) (model.OutputReading, error)
	SubscriptionsForMachine(ctx context.Context, machineID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// WorkerPool sends out-of-tolerance alerts for stored readings.
type WorkerPool struct {
	size    int
	jobs    chan int64
	store   AlertStore
	webpush *webpush.Options
	sender  NotificationSender
	logger  *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, store AlertStore, webpushOptions *webpush.Options, logger *zap.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size*16),
		store:   store,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		logger:  logger,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := wp.logger.With(zap.Int("worker", id))
	log.Debug("alert worker started")
	for {
		select {
		case readingID := <-wp.jobs:
			log.Debug("processing reading", zap.Int64("reading_id", readingID))
			wp.sendAlertsForReading(ctx, readingID)
		case <-ctx.Done():
			log.Debug("alert worker shutting down")
			return
		}
	}
}

// Dispatch queues an alert for a reading. When the queue is full the alert
// is dropped rather than blocking the caller.
func (wp *WorkerPool) Dispatch(readingID int64) {
	select {
	case wp.jobs <- readingID:
	default:
		wp.logger.Warn("alert queue full, dropping alert", zap.Int64("reading_id", readingID))
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

// Message renders the alert text for a reading.
func Message(r model.OutputReading) string {
	expected := "n/a"
	if r.ExpectedOutput != nil {
		expected = fmt.Sprintf("%.2f", *r.ExpectedOutput)
	}
	return fmt.Sprintf("%s %s %s: output %.2f vs expected %s (%+.2f%%)",
		r.MachineID, r.Material, r.SizePN, r.ActualOutput, expected, r.DeviationPct)
}

// sendAlertsForReading loads the reading and alerts every subscriber of its machine.
func (wp *WorkerPool) sendAlertsForReading(ctx context.Context, readingID int64) {
	reading, err := wp.store.GetReading(ctx, readingID)
	if err != nil {
		wp.logger.Error("failed to load reading for alert", zap.Int64("reading_id", readingID), zap.Error(err))
		return
	}

	subscriptions, err := wp.store.SubscriptionsForMachine(ctx, reading.MachineID)
	if err != nil {
		wp.logger.Error("failed to fetch subscriptions", zap.String("machine", reading.MachineID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	wp.logger.Info("sending out-of-tolerance alerts",
		zap.Int("count", len(subscriptions)),
		zap.String("machine", reading.MachineID),
		zap.Int64("reading_id", readingID))

	message := []byte(Message(reading))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, message)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Warn("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.logger.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil && !errors.Is(err, errs.ErrNotFound) {
			wp.logger.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
