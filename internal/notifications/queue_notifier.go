package notifications

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultAlertQueue = "security_alerts"

// Publisher is the part of *amqp.Channel the notifier uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// QueueNotifier hands alerts to cmd/mailer through RabbitMQ.
type QueueNotifier struct {
	pub   Publisher
	queue string
	now   func() time.Time
}

func NewQueueNotifier(pub Publisher, queue string) *QueueNotifier {
	if queue == "" {
		queue = DefaultAlertQueue
	}
	return &QueueNotifier{pub: pub, queue: queue, now: time.Now}
}

// DeclareAlertQueue makes sure the durable queue exists before publishing
// or consuming.
func DeclareAlertQueue(ch *amqp.Channel, queue string) (amqp.Queue, error) {
	if queue == "" {
		queue = DefaultAlertQueue
	}
	return ch.QueueDeclare(queue, true, false, false, false, nil)
}

func (n *QueueNotifier) SendLockoutAlert(ctx context.Context, alert LockoutAlert) error {
	body, err := EncodeMessage(MessageLockoutAlert, alert, n.now())
	if err != nil {
		return err
	}

	// not mandatory: nothing listens for returns, and the queue is declared
	// on every (re)connect
	err = n.pub.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(MessageLockoutAlert),
		Timestamp:    n.now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish lockout alert: %w", err)
	}

	return nil
}
