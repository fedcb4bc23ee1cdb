package event

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const profileInterval = 5 * time.Minute

// Worker drains a Bus sequentially, giving every event its own timeout.
type Worker struct {
	bus        *Bus
	jobTimeout time.Duration
	logger     *log.Entry

	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

func NewWorker(bus *Bus, jobTimeout time.Duration) *Worker {
	if jobTimeout <= 0 {
		jobTimeout = 10 * time.Second
	}
	return &Worker{
		bus:        bus,
		jobTimeout: jobTimeout,
		logger:     log.WithField("context", "event_worker"),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	if w.runCancel != nil {
		return errors.New("event worker already started")
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.runCancel = cancel
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(runCtx)
	}()
	return nil
}

// Stop ends the loop and processes whatever is still queued while ctx allows.
func (w *Worker) Stop(ctx context.Context) error {
	if w.runCancel == nil {
		return nil
	}
	w.runCancel()
	w.runCancel = nil
	w.wg.Wait()

	for {
		if ctx.Err() != nil {
			if n := w.bus.Len(); n > 0 {
				w.logger.WithField("left", n).Warn("event worker stopped with unprocessed events")
			}
			return nil
		}
		event := w.bus.pop()
		if event == nil {
			return nil
		}
		w.process(ctx, event)
	}
}

func (w *Worker) run(ctx context.Context) {
	w.logger.Trace("events runner go")
	profileTicker := time.NewTicker(profileInterval)
	defer profileTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("shutting down event worker by cancelled context")
			return
		case <-profileTicker.C:
			if qlen := w.bus.Len(); qlen > 0 {
				w.logger.Debugf("unprocessed queue length: %d", qlen)
			}
		case event := <-w.bus.q:
			w.process(ctx, event)
		}
	}
}

func (w *Worker) process(ctx context.Context, event Queueable) {
	if event.Expired() {
		w.logger.WithField("type", event.Type()).Trace("skip expired event")
		return
	}
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.jobTimeout)
	defer cancel()
	if err := event.Process(jobCtx); err != nil {
		w.logger.WithFields(log.Fields{
			"type":  event.Type(),
			"error": err.Error(),
		}).Warn("event processing failed")
	}
}
