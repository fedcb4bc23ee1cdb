package event

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestBusDropsWhenFull(t *testing.T) {
	t.Parallel()

	bus := NewBus(1)
	noop := func(context.Context) error { return nil }
	if !bus.Enqueue(NewJob("first", 0, noop)) {
		t.Fatalf("first enqueue must succeed")
	}
	if bus.Enqueue(NewJob("second", 0, noop)) {
		t.Fatalf("second enqueue must be dropped")
	}
	if bus.Dropped() != 1 {
		t.Fatalf("unexpected dropped count: %d", bus.Dropped())
	}
}

func TestWorkerProcessesAndSkipsExpired(t *testing.T) {
	t.Parallel()

	bus := NewBus(8)
	var processed atomic.Int32
	done := make(chan struct{}, 4)
	job := func(context.Context) error {
		processed.Add(1)
		done <- struct{}{}
		return nil
	}

	expired := NewJob("expired", time.Nanosecond, job)
	time.Sleep(time.Millisecond)
	bus.Enqueue(expired)
	bus.Enqueue(NewJob("failing", 0, func(ctx context.Context) error {
		done <- struct{}{}
		return errors.New("store down")
	}))
	bus.Enqueue(NewJob("ok", time.Minute, job))

	worker := NewWorker(bus, time.Second)
	if err := worker.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("jobs were not processed")
		}
	}
	if err := worker.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if processed.Load() != 1 {
		t.Fatalf("expected only the live job to run, got %d", processed.Load())
	}
}

func TestWorkerStopDrainsQueue(t *testing.T) {
	t.Parallel()

	bus := NewBus(8)
	worker := NewWorker(bus, time.Second)
	if err := worker.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	var processed atomic.Int32
	for i := 0; i < 5; i++ {
		bus.Enqueue(NewJob("count", 0, func(context.Context) error {
			processed.Add(1)
			return nil
		}))
	}
	if err := worker.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if processed.Load() != 5 {
		t.Fatalf("expected all queued jobs to run, got %d", processed.Load())
	}
}
