// Package ratelimit delays rather than rejects requests from a sender that
// arrive faster than one per interval.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/phishguard/internal/infra"
)

type (
	Clock func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	// Admission is the outcome of Admit. Notify is set for the first delayed
	// request of a waiting interval only.
	Admission struct {
		Wait   time.Duration
		Notify bool
	}

	Limiter struct {
		interval time.Duration
		idle     time.Duration
		now      Clock
		sleep    Sleep
		senders  sync.Map
		logger   *log.Entry

		runCancel context.CancelFunc
		wg        sync.WaitGroup
	}

	senderState struct {
		mu          sync.Mutex
		lastSlot    time.Time
		noticeUntil time.Time
	}

	Option func(*Limiter)
)

func WithClock(now Clock) Option {
	return func(l *Limiter) { l.now = now }
}

func WithSleep(sleep Sleep) Option {
	return func(l *Limiter) { l.sleep = sleep }
}

func New(interval, idle time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		interval: interval,
		idle:     idle,
		now:      time.Now,
		sleep:    infra.SleepContext,
		logger:   log.WithField("object", "RateLimiter"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (a Admission) Immediate() bool {
	return a.Wait <= 0
}

// Admit reserves the next free slot for senderID and reports how long the caller must wait for it.
func (l *Limiter) Admit(senderID int64) Admission {
	if l.interval <= 0 {
		return Admission{}
	}
	value, _ := l.senders.LoadOrStore(senderID, &senderState{})
	st := value.(*senderState)

	st.mu.Lock()
	defer st.mu.Unlock()

	now := l.now()
	slot := now
	if !st.lastSlot.IsZero() {
		if next := st.lastSlot.Add(l.interval); next.After(now) {
			slot = next
		}
	}
	st.lastSlot = slot

	admission := Admission{Wait: slot.Sub(now)}
	if admission.Wait > 0 && !now.Before(st.noticeUntil) {
		admission.Notify = true
		st.noticeUntil = slot
	}
	return admission
}

// Wait blocks until senderID is admitted. onNotice runs before the wait when a courtesy notice is due.
func (l *Limiter) Wait(ctx context.Context, senderID int64, onNotice func(wait time.Duration)) error {
	admission := l.Admit(senderID)
	if admission.Immediate() {
		return nil
	}
	if admission.Notify && onNotice != nil {
		onNotice(admission.Wait)
	}
	l.logger.WithFields(log.Fields{
		"user_id": senderID,
		"wait":    admission.Wait.String(),
	}).Trace("throttling sender")
	return l.sleep(ctx, admission.Wait)
}

// Sweep drops senders idle for longer than the idle bound and returns how many were removed.
func (l *Limiter) Sweep() int {
	if l.idle <= 0 {
		return 0
	}
	now := l.now()
	removed := 0
	l.senders.Range(func(key, value any) bool {
		st := value.(*senderState)
		st.mu.Lock()
		stale := now.Sub(st.lastSlot) > l.idle
		st.mu.Unlock()
		if stale {
			l.senders.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

func (l *Limiter) Len() int {
	n := 0
	l.senders.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

func (l *Limiter) Start(ctx context.Context) error {
	if l.runCancel != nil {
		return errors.New("rate limiter already started")
	}
	if l.idle <= 0 {
		return nil
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.runCancel = cancel
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.idle)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if n := l.Sweep(); n > 0 {
					l.logger.WithField("removed", n).Debug("swept idle senders")
				}
			}
		}
	}()
	return nil
}

func (l *Limiter) Stop(context.Context) error {
	if l.runCancel == nil {
		return nil
	}
	l.runCancel()
	l.runCancel = nil
	l.wg.Wait()
	return nil
}
