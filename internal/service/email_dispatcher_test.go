package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-book-exchange/internal/models"
	"github.com/noah-isme/campus-book-exchange/pkg/jobs"
	"github.com/noah-isme/campus-book-exchange/pkg/mailer"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) Close() error { return nil }

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func TestEmailDispatcherDeliversNotifications(t *testing.T) {
	rec := &recordingMailer{}
	d := NewEmailDispatcher(rec, jobs.QueueConfig{Workers: 1, RetryDelay: time.Millisecond}, NewMetricsService(), nil)
	d.Start(context.Background())
	defer d.Stop()

	d.Notify([]models.Notification{
		{UserEmail: "buyer@campus.edu", Message: "won"},
		{UserEmail: "seller@campus.edu", Message: "completed"},
	})

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.ElementsMatch(t, []string{"buyer@campus.edu", "seller@campus.edu"}, []string{rec.sent[0].To, rec.sent[1].To})
}

func TestEmailDispatcherNilSafe(t *testing.T) {
	var d *EmailDispatcher
	d.Notify([]models.Notification{{UserEmail: "x@campus.edu"}})
}
