package prefilter

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// AdminLookup asks the transport whether userID administers chatID.
type AdminLookup func(ctx context.Context, chatID, userID int64) (bool, error)

type adminKey struct {
	chatID int64
	userID int64
}

type adminEntry struct {
	isAdmin   bool
	expiresAt time.Time
}

// AdminCache memoizes admin lookups per (chat, sender) for a fixed TTL.
// Failed lookups are not cached and count as non-admin.
type AdminCache struct {
	store  sync.Map
	ttl    time.Duration
	lookup AdminLookup
	now    func() time.Time
	logger *log.Entry

	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

func NewAdminCache(lookup AdminLookup, ttl time.Duration) *AdminCache {
	return &AdminCache{
		ttl:    ttl,
		lookup: lookup,
		now:    time.Now,
		logger: log.WithField("object", "AdminCache"),
	}
}

func (c *AdminCache) IsAdmin(ctx context.Context, chatID, userID int64) bool {
	key := adminKey{chatID: chatID, userID: userID}
	if val, ok := c.store.Load(key); ok {
		entry := val.(*adminEntry)
		if c.now().Before(entry.expiresAt) {
			return entry.isAdmin
		}
	}

	isAdmin, err := c.lookup(ctx, chatID, userID)
	if err != nil {
		c.logger.WithFields(log.Fields{
			"chat_id": chatID,
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("admin lookup failed, treating sender as regular member")
		return false
	}
	c.store.Store(key, &adminEntry{isAdmin: isAdmin, expiresAt: c.now().Add(c.ttl)})
	return isAdmin
}

// Invalidate forgets the cached status, e.g. after a permission change.
func (c *AdminCache) Invalidate(chatID, userID int64) {
	c.store.Delete(adminKey{chatID: chatID, userID: userID})
}

func (c *AdminCache) Sweep() int {
	now := c.now()
	removed := 0
	c.store.Range(func(key, val any) bool {
		if !now.Before(val.(*adminEntry).expiresAt) {
			c.store.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

func (c *AdminCache) Start(ctx context.Context) error {
	if c.runCancel != nil {
		return errors.New("admin cache already started")
	}
	if c.ttl <= 0 {
		return nil
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.runCancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.ttl)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
	return nil
}

func (c *AdminCache) Stop(context.Context) error {
	if c.runCancel == nil {
		return nil
	}
	c.runCancel()
	c.runCancel = nil
	c.wg.Wait()
	return nil
}
