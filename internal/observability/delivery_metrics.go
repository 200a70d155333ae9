package observability

import (
	"sync/atomic"
	"time"
)

// DeliveryMetrics counts what the mailer did with alert messages. The mailer
// logs a snapshot periodically and on shutdown.
type DeliveryMetrics struct {
	received     atomic.Uint64
	sent         atomic.Uint64
	retried      atomic.Uint64
	deadLettered atomic.Uint64

	// nanoseconds
	durationCount atomic.Uint64
	durationTotal atomic.Int64
	durationMax   atomic.Int64
}

func NewDeliveryMetrics() *DeliveryMetrics {
	return &DeliveryMetrics{}
}

func (m *DeliveryMetrics) IncReceived()     { m.received.Add(1) }
func (m *DeliveryMetrics) IncSent()         { m.sent.Add(1) }
func (m *DeliveryMetrics) IncRetried()      { m.retried.Add(1) }
func (m *DeliveryMetrics) IncDeadLettered() { m.deadLettered.Add(1) }

func (m *DeliveryMetrics) ObserveDuration(d time.Duration) {
	ns := d.Nanoseconds()
	m.durationCount.Add(1)
	m.durationTotal.Add(ns)

	for {
		curr := m.durationMax.Load()
		if ns <= curr {
			return
		}
		if m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

type DeliverySnapshot struct {
	Received        uint64
	Sent            uint64
	Retried         uint64
	DeadLettered    uint64
	AverageDuration time.Duration
	MaxDuration     time.Duration
}

func (m *DeliveryMetrics) Snapshot() DeliverySnapshot {
	count := m.durationCount.Load()

	var avg time.Duration
	if count > 0 {
		avg = time.Duration(m.durationTotal.Load() / int64(count))
	}

	return DeliverySnapshot{
		Received:        m.received.Load(),
		Sent:            m.sent.Load(),
		Retried:         m.retried.Load(),
		DeadLettered:    m.deadLettered.Load(),
		AverageDuration: avg,
		MaxDuration:     time.Duration(m.durationMax.Load()),
	}
}
