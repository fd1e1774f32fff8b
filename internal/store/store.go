// Package store defines the persistence interface for the coach engine's
// dashboard data. Implementations include PostgreSQL (source of truth),
// Redis (read-through cache), and in-memory (for testing and development).
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/DarrylTHJ/derivcoach/internal/model"
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. Writes are best-effort from
// the engine's point of view: a failing store never blocks trade processing.
type Store interface {
	// --- Session operations ---

	// CreateSession persists a new monitoring session.
	CreateSession(ctx context.Context, s *model.SessionRecord) error

	// GetSession retrieves a session by its session ID.
	GetSession(ctx context.Context, sessionID string) (*model.SessionRecord, error)

	// ListSessions returns the most recent sessions, newest first.
	ListSessions(ctx context.Context, limit int) ([]model.SessionRecord, error)

	// UpdateSessionStats updates counters and balance after a settlement.
	UpdateSessionStats(ctx context.Context, sessionID string, wins, losses, streak int, balance decimal.Decimal) error

	// --- Immutable event log ---

	// InsertEvent appends an immutable coaching event.
	InsertEvent(ctx context.Context, ev *model.EventRecord) error

	// GetEventsBySession returns events for a session, newest first.
	GetEventsBySession(ctx context.Context, sessionID string, limit int) ([]model.EventRecord, error)
}
