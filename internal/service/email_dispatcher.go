package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-book-exchange/internal/models"
	"github.com/noah-isme/campus-book-exchange/pkg/jobs"
	"github.com/noah-isme/campus-book-exchange/pkg/mailer"
)

const emailJobKind = "email"

// EmailDispatcher delivers settlement notices by email on a background queue
// so request latency never depends on the broker.
type EmailDispatcher struct {
	mailer  mailer.Mailer
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewEmailDispatcher wires a worker queue in front of the mailer.
func NewEmailDispatcher(m mailer.Mailer, cfg jobs.QueueConfig, metrics *MetricsService, logger *zap.Logger) *EmailDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &EmailDispatcher{mailer: m, metrics: metrics, logger: logger}
	cfg.Logger = logger
	d.queue = jobs.NewQueue("email", d.handle, cfg)
	return d
}

// Start launches the delivery workers.
func (d *EmailDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop waits for the workers to exit.
func (d *EmailDispatcher) Stop() {
	d.queue.Stop()
}

// Notify turns committed notifications into emails. Failures to enqueue are
// logged; the notification rows already exist.
func (d *EmailDispatcher) Notify(notifications []models.Notification) {
	if d == nil {
		return
	}
	for _, n := range notifications {
		msg := mailer.Message{To: n.UserEmail, Subject: "Campus Book Exchange update", Body: n.Message, SentAt: n.GeneratedAt}
		if err := d.queue.TryEnqueue(jobs.Job{Kind: emailJobKind, Payload: msg}); err != nil {
			d.metrics.RecordEmail(OutcomeFailed)
			d.logger.Warn("email not queued", zap.String("to", n.UserEmail), zap.Error(err))
		}
	}
}

func (d *EmailDispatcher) handle(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mailer.Message)
	if !ok {
		return fmt.Errorf("unexpected email payload %T", job.Payload)
	}
	if err := d.mailer.Send(ctx, msg); err != nil {
		d.metrics.RecordEmail(OutcomeFailed)
		return err
	}
	d.metrics.RecordEmail(OutcomeAccepted)
	return nil
}
