package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrNoRecipient is returned for messages without a destination address.
var ErrNoRecipient = errors.New("mailer: message has no recipient")

// Message is one outbound email. Delivery is handled by a separate worker
// that consumes the broker queue.
type Message struct {
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// Validate ensures the message can be routed.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	return nil
}

// Mailer hands messages off for delivery.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPMailer publishes messages as persistent JSON onto a durable queue.
type AMQPMailer struct {
	url    string
	queue  string
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   channel
	dial func() (channel, error)
}

// NewAMQPMailer connects to the broker and declares the queue.
func NewAMQPMailer(url, queue string, logger *zap.Logger) (*AMQPMailer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &AMQPMailer{url: url, queue: queue, logger: logger}
	m.dial = m.connect
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.channelLocked(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *AMQPMailer) connect() (channel, error) {
	conn, err := amqp.Dial(m.url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(m.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", m.queue, err)
	}
	m.conn = conn
	return ch, nil
}

func (m *AMQPMailer) channelLocked() (channel, error) {
	if m.ch != nil {
		return m.ch, nil
	}
	ch, err := m.dial()
	if err != nil {
		return nil, err
	}
	m.ch = ch
	return ch, nil
}

func (m *AMQPMailer) resetLocked() {
	if m.ch != nil {
		_ = m.ch.Close()
		m.ch = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
}

// Send publishes the message. A broken channel is dropped so the next call
// reconnects.
func (m *AMQPMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ch, err := m.channelLocked()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", m.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    msg.SentAt,
		Body:         body,
	})
	if err != nil {
		m.resetLocked()
		return fmt.Errorf("publish to %s: %w", m.queue, err)
	}
	m.logger.Debug("email queued", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

// Close releases the broker connection.
func (m *AMQPMailer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return nil
}

// LogMailer writes messages to the logger instead of a broker. Used when
// the mailer is disabled.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	m.logger.Info("email skipped (mailer disabled)", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

func (m *LogMailer) Close() error { return nil }
