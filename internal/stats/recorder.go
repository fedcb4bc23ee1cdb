package stats

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/phishguard/internal/db"
	"github.com/iamwavecut/phishguard/internal/event"
)

const jobTTL = time.Minute

type Store interface {
	RecordUserActivity(ctx context.Context, activity db.UserActivity, at time.Time) error
	RecordAction(ctx context.Context, userID int64, action db.Action) error
	RecordAPIUsage(ctx context.Context, reputationCalls, classifierCalls int) error
}

// Recorder queues statistics writes on the bus. Callers never wait for the store.
type Recorder struct {
	store  Store
	bus    *event.Bus
	now    func() time.Time
	logger *log.Entry
}

func NewRecorder(store Store, bus *event.Bus) *Recorder {
	return &Recorder{
		store:  store,
		bus:    bus,
		now:    time.Now,
		logger: log.WithField("object", "StatsRecorder"),
	}
}

func (r *Recorder) UserActivity(activity db.UserActivity) {
	if r == nil || activity.UserID == 0 {
		return
	}
	at := r.now()
	r.enqueue("user_activity", func(ctx context.Context) error {
		return r.store.RecordUserActivity(ctx, activity, at)
	})
}

func (r *Recorder) Action(userID int64, action db.Action) {
	if userID == 0 || action == (db.Action{}) {
		return
	}
	r.enqueue("user_action", func(ctx context.Context) error {
		return r.store.RecordAction(ctx, userID, action)
	})
}

func (r *Recorder) APIUsage(reputationCalls, classifierCalls int) {
	if reputationCalls == 0 && classifierCalls == 0 {
		return
	}
	r.enqueue("api_usage", func(ctx context.Context) error {
		return r.store.RecordAPIUsage(ctx, reputationCalls, classifierCalls)
	})
}

func (r *Recorder) enqueue(kind string, run func(ctx context.Context) error) {
	if r == nil || r.store == nil || r.bus == nil {
		return
	}
	if !r.bus.Enqueue(event.NewJob(kind, jobTTL, run)) {
		r.logger.WithField("kind", kind).Debug("stats write dropped")
	}
}
