package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iamwavecut/phishguard/internal/db"
	"github.com/iamwavecut/phishguard/internal/event"
)

type memoryStore struct {
	mu         sync.Mutex
	activity   []db.UserActivity
	actions    map[int64]db.Action
	reputation int
	classifier int
}

func (s *memoryStore) RecordUserActivity(_ context.Context, activity db.UserActivity, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, activity)
	return nil
}

func (s *memoryStore) RecordAction(_ context.Context, userID int64, action db.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actions == nil {
		s.actions = make(map[int64]db.Action)
	}
	s.actions[userID] = action
	return nil
}

func (s *memoryStore) RecordAPIUsage(_ context.Context, reputationCalls, classifierCalls int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reputation += reputationCalls
	s.classifier += classifierCalls
	return nil
}

func TestRecorderWritesThroughWorker(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	bus := event.NewBus(16)
	rec := NewRecorder(store, bus)

	rec.UserActivity(db.UserActivity{UserID: 5, UserName: "eve"})
	rec.UserActivity(db.UserActivity{})
	rec.Action(5, db.Action{Link: true})
	rec.Action(5, db.Action{})
	rec.APIUsage(1, 1)
	rec.APIUsage(0, 0)

	if bus.Len() != 3 {
		t.Fatalf("expected 3 queued writes, got %d", bus.Len())
	}

	worker := event.NewWorker(bus, time.Second)
	if err := worker.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := worker.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.activity) != 1 || !store.actions[5].Link || store.reputation != 1 || store.classifier != 1 {
		t.Fatalf("unexpected store state: %+v", store)
	}
}

func TestRecorderNeverBlocksOnFullQueue(t *testing.T) {
	t.Parallel()

	bus := event.NewBus(1)
	rec := NewRecorder(&memoryStore{}, bus)
	for i := 0; i < 10; i++ {
		rec.APIUsage(1, 0)
	}
	if bus.Len() != 1 || bus.Dropped() != 9 {
		t.Fatalf("len=%d dropped=%d", bus.Len(), bus.Dropped())
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	t.Parallel()

	var rec *Recorder
	rec.APIUsage(1, 1)
	NewRecorder(nil, event.NewBus(1)).Action(1, db.Action{File: true})
}
