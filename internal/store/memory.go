package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/DarrylTHJ/derivcoach/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.SessionRecord
	events   []model.EventRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*model.SessionRecord),
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, rec *model.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[rec.SessionID]; exists {
		return fmt.Errorf("session %s already exists", rec.SessionID)
	}

	// Store a copy to avoid external mutation.
	copy := *rec
	s.sessions[rec.SessionID] = &copy
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (*model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	copy := *rec
	return &copy, nil
}

func (s *MemoryStore) ListSessions(_ context.Context, limit int) ([]model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]model.SessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		sessions = append(sessions, *rec)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (s *MemoryStore) UpdateSessionStats(_ context.Context, sessionID string, wins, losses, streak int, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	rec.Wins = wins
	rec.Losses = losses
	rec.Streak = streak
	rec.Balance = balance
	return nil
}

func (s *MemoryStore) InsertEvent(_ context.Context, ev *model.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, *ev)
	return nil
}

func (s *MemoryStore) GetEventsBySession(_ context.Context, sessionID string, limit int) ([]model.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.EventRecord
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].SessionID == sessionID {
			result = append(result, s.events[i])
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}
