package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of *amqp.Channel a ChannelPublisher drives.
type Channel interface {
	Publisher
	IsClosed() bool
	Close() error
}

// DialFunc opens a fresh connection and a channel on it. closeConn tears
// the connection down.
type DialFunc func() (ch Channel, closeConn func() error, err error)

// DialAlertChannel connects to url and declares the alert queue on the new
// channel, so a broker that restarted without the queue gets it back.
func DialAlertChannel(url, queue string, timeout time.Duration) DialFunc {
	return func() (Channel, func() error, error) {
		conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(timeout), Locale: "en_US"})
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
		}

		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
		}

		if _, err := DeclareAlertQueue(ch, queue); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, nil, fmt.Errorf("declare %s: %w", queue, err)
		}

		return ch, conn.Close, nil
	}
}

// ChannelPublisher publishes on one channel and redials when the broker
// has closed it. A publish that fails on a dead channel is not retried;
// the next one reconnects.
type ChannelPublisher struct {
	dial DialFunc

	mu        sync.Mutex
	ch        Channel
	closeConn func() error
}

func NewChannelPublisher(dial DialFunc) *ChannelPublisher {
	return &ChannelPublisher{dial: dial}
}

// Connect dials eagerly. cmd/api uses it to fail fast at startup.
func (p *ChannelPublisher) Connect() error {
	_, err := p.channel()
	return err
}

func (p *ChannelPublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	ch, err := p.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
	if err != nil && ch.IsClosed() {
		p.mu.Lock()
		if p.ch == ch {
			p.dropLocked()
		}
		p.mu.Unlock()
	}

	return err
}

func (p *ChannelPublisher) channel() (Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.dropLocked()

	ch, closeConn, err := p.dial()
	if err != nil {
		return nil, err
	}

	p.ch, p.closeConn = ch, closeConn
	return ch, nil
}

func (p *ChannelPublisher) dropLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.closeConn != nil {
		_ = p.closeConn()
	}
	p.ch, p.closeConn = nil, nil
}

func (p *ChannelPublisher) Close() {
	p.mu.Lock()
	p.dropLocked()
	p.mu.Unlock()
}
