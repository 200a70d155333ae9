// Package mailer turns queued security alerts into emails.
package mailer

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wneessen/go-mail"

	"github.com/DannyIGuesss/el-frijolito-site/internal/notifications"
	"github.com/DannyIGuesss/el-frijolito-site/internal/observability"
)

//go:embed templates/*.html
var templatesFS embed.FS

var lockoutTmpl = template.Must(template.ParseFS(templatesFS, "templates/lockout_alert.html"))

// ErrPoison marks a message that can never be delivered, no matter how often
// it is retried.
var ErrPoison = errors.New("undeliverable message")

const lockoutSubject = "El Frijolito admin - account locked"

// Sender is satisfied by SMTPSender; tests fake it.
type Sender interface {
	Send(ctx context.Context, msgs ...*mail.Msg) error
}

type Config struct {
	From        string
	To          []string
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

type Mailer struct {
	sender  Sender
	cfg     Config
	log     *slog.Logger
	metrics *observability.DeliveryMetrics
	ready   atomic.Bool
	sleep   func(ctx context.Context, d time.Duration) error
}

func New(sender Sender, cfg Config, log *slog.Logger, metrics *observability.DeliveryMetrics) *Mailer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.Backoff == nil {
		cfg.Backoff = ExponentialBackoff(time.Second, 30*time.Second)
	}
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewDeliveryMetrics()
	}

	return &Mailer{
		sender:  sender,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		sleep:   sleepCtx,
	}
}

// BuildLockoutMessage renders the alert email.
func (m *Mailer) BuildLockoutMessage(alert notifications.LockoutAlert) (*mail.Msg, error) {
	if len(m.cfg.To) == 0 {
		return nil, fmt.Errorf("%w: no alert recipients configured", ErrPoison)
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("%w: from: %w", ErrPoison, err)
	}
	if err := msg.To(m.cfg.To...); err != nil {
		return nil, fmt.Errorf("%w: to: %w", ErrPoison, err)
	}
	msg.Subject(lockoutSubject)

	data := struct {
		Email       string
		Name        string
		Attempts    int
		LockedUntil string
	}{
		Email:       alert.Email,
		Name:        alert.Name,
		Attempts:    alert.Attempts,
		LockedUntil: alert.LockedUntil.UTC().Format("Jan 2, 2006 15:04 MST"),
	}
	if err := msg.SetBodyHTMLTemplate(lockoutTmpl, data); err != nil {
		return nil, fmt.Errorf("%w: render: %w", ErrPoison, err)
	}

	return msg, nil
}

// Handle decodes one queue message and sends it, retrying transient SMTP
// failures with backoff. Errors wrapping ErrPoison must not be retried.
func (m *Mailer) Handle(ctx context.Context, body []byte) error {
	_, payload, err := notifications.DecodeMessage(body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPoison, err)
	}

	alert, ok := payload.(notifications.LockoutAlert)
	if !ok {
		return fmt.Errorf("%w: unexpected payload %T", ErrPoison, payload)
	}

	msg, err := m.BuildLockoutMessage(alert)
	if err != nil {
		return err
	}

	var sendErr error
	for attempt := 0; attempt < m.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			m.metrics.IncRetried()
			if err := m.sleep(ctx, m.cfg.Backoff(attempt-1)); err != nil {
				return err
			}
		}

		sendErr = m.sender.Send(ctx, msg)
		if sendErr == nil {
			m.log.InfoContext(ctx, "lockout alert sent", "user_id", alert.UserID, "attempt", attempt+1)
			return nil
		}

		m.log.WarnContext(ctx, "lockout alert send failed", "user_id", alert.UserID, "attempt", attempt+1, "err", sendErr)
	}

	return fmt.Errorf("send lockout alert after %d attempts: %w", m.cfg.MaxAttempts, sendErr)
}

// Run consumes deliveries until ctx is done or the channel closes.
// Poison messages are dropped. A message that still fails after all retries
// is requeued once and dropped on its second delivery.
func (m *Mailer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	m.ready.Store(true)
	defer m.ready.Store(false)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			m.process(ctx, d)
		}
	}
}

func (m *Mailer) process(ctx context.Context, d amqp.Delivery) {
	m.metrics.IncReceived()
	start := time.Now()
	err := m.Handle(ctx, d.Body)
	m.metrics.ObserveDuration(time.Since(start))

	switch {
	case err == nil:
		m.metrics.IncSent()
		if ackErr := d.Ack(false); ackErr != nil {
			m.log.Error("ack failed", "delivery_tag", d.DeliveryTag, "err", ackErr)
		}
	case errors.Is(err, ErrPoison) || d.Redelivered:
		m.metrics.IncDeadLettered()
		m.log.Error("dropping alert message", "delivery_tag", d.DeliveryTag, "redelivered", d.Redelivered, "err", err)
		_ = d.Nack(false, false)
	default:
		m.log.Warn("requeueing alert message", "delivery_tag", d.DeliveryTag, "err", err)
		_ = d.Nack(false, true)
	}
}

func (m *Mailer) Ready() bool { return m.ready.Load() }

func (m *Mailer) Metrics() *observability.DeliveryMetrics { return m.metrics }

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
