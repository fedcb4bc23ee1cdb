package event

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

type (
	Queueable interface {
		Type() string
		Expired() bool
		Process(ctx context.Context) error
	}

	Base struct {
		expireAt  time.Time
		eventType string
	}

	// Job is a Queueable backed by a plain function.
	Job struct {
		Base
		run func(ctx context.Context) error
	}

	// Bus is a bounded fire-and-forget queue. Producers never block.
	Bus struct {
		q       chan Queueable
		dropped atomic.Int64
		logger  *log.Entry
	}
)

func CreateBase(eventType string, expiresAt time.Time) Base {
	return Base{
		expireAt:  expiresAt,
		eventType: eventType,
	}
}

func (b Base) Expired() bool {
	return !b.expireAt.IsZero() && time.Now().After(b.expireAt)
}

func (b Base) Type() string {
	return b.eventType
}

func NewJob(eventType string, ttl time.Duration, run func(ctx context.Context) error) *Job {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	return &Job{Base: CreateBase(eventType, expiresAt), run: run}
}

func (j *Job) Process(ctx context.Context) error {
	return j.run(ctx)
}

func NewBus(size int) *Bus {
	if size <= 0 {
		size = 1024
	}
	return &Bus{
		q:      make(chan Queueable, size),
		logger: log.WithField("object", "EventBus"),
	}
}

// Enqueue reports false when the queue is full and the event was dropped.
func (b *Bus) Enqueue(event Queueable) bool {
	select {
	case b.q <- event:
		return true
	default:
		b.dropped.Add(1)
		b.logger.WithField("type", event.Type()).Warn("event queue is full, dropping event")
		return false
	}
}

func (b *Bus) Len() int {
	return len(b.q)
}

func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

func (b *Bus) pop() Queueable {
	select {
	case q := <-b.q:
		return q
	default:
		return nil
	}
}
