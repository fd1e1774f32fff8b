package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/DarrylTHJ/derivcoach/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateSession(ctx context.Context, rec *model.SessionRecord) error {
	if err := s.primary.CreateSession(ctx, rec); err != nil {
		return err
	}
	s.cacheSession(ctx, rec)
	return nil
}

func (s *CachedStore) UpdateSessionStats(ctx context.Context, sessionID string, wins, losses, streak int, balance decimal.Decimal) error {
	if err := s.primary.UpdateSessionStats(ctx, sessionID, wins, losses, streak, balance); err != nil {
		return err
	}
	// Invalidate cache; next read will re-populate.
	s.rdb.Del(ctx, sessionKey(sessionID))
	return nil
}

func (s *CachedStore) InsertEvent(ctx context.Context, ev *model.EventRecord) error {
	if err := s.primary.InsertEvent(ctx, ev); err != nil {
		return err
	}
	// Invalidate the event list for this session.
	s.rdb.Del(ctx, eventsKey(ev.SessionID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetSession(ctx context.Context, sessionID string) (*model.SessionRecord, error) {
	data, err := s.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == nil {
		var rec model.SessionRecord
		if json.Unmarshal(data, &rec) == nil {
			return &rec, nil
		}
	}

	// Cache miss: read from primary.
	rec, err := s.primary.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.cacheSession(ctx, rec)
	return rec, nil
}

func (s *CachedStore) GetEventsBySession(ctx context.Context, sessionID string, limit int) ([]model.EventRecord, error) {
	data, err := s.rdb.Get(ctx, eventsKey(sessionID)).Bytes()
	if err == nil {
		var events []model.EventRecord
		if json.Unmarshal(data, &events) == nil && len(events) >= limit {
			if limit > 0 && len(events) > limit {
				events = events[:limit]
			}
			return events, nil
		}
	}

	// Cache miss.
	events, err := s.primary.GetEventsBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(events); err == nil {
		s.rdb.Set(ctx, eventsKey(sessionID), data, s.ttl)
	}
	return events, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListSessions(ctx context.Context, limit int) ([]model.SessionRecord, error) {
	return s.primary.ListSessions(ctx, limit)
}

// --- Cache helpers ---

func (s *CachedStore) cacheSession(ctx context.Context, rec *model.SessionRecord) {
	if data, err := json.Marshal(rec); err == nil {
		s.rdb.Set(ctx, sessionKey(rec.SessionID), data, s.ttl)
	}
}

func sessionKey(id string) string { return fmt.Sprintf("session:%s", id) }
func eventsKey(id string) string  { return fmt.Sprintf("events:%s", id) }
