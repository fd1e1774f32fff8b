package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/DarrylTHJ/derivcoach/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateSession(ctx context.Context, rec *model.SessionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trading_sessions (session_id, initial_balance, currency, wins, losses, streak, balance, started_at)
		 VALUES ($1, $2::NUMERIC, $3, $4, $5, $6, $7::NUMERIC, $8)`,
		rec.SessionID, rec.InitialBalance.String(), rec.Currency,
		rec.Wins, rec.Losses, rec.Streak,
		rec.Balance.String(), rec.StartedAt,
	)
	return err
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (*model.SessionRecord, error) {
	var rec model.SessionRecord
	var initialBalance, balance string

	err := s.pool.QueryRow(ctx,
		`SELECT session_id, initial_balance::TEXT, currency, wins, losses, streak, balance::TEXT, started_at
		 FROM trading_sessions WHERE session_id = $1`, sessionID).
		Scan(&rec.SessionID, &initialBalance, &rec.Currency,
			&rec.Wins, &rec.Losses, &rec.Streak,
			&balance, &rec.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}

	rec.InitialBalance, _ = decimal.NewFromString(initialBalance)
	rec.Balance, _ = decimal.NewFromString(balance)

	return &rec, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, limit int) ([]model.SessionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT session_id, initial_balance::TEXT, currency, wins, losses, streak, balance::TEXT, started_at
		 FROM trading_sessions ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.SessionRecord
	for rows.Next() {
		var rec model.SessionRecord
		var initialBalance, balance string
		if err := rows.Scan(&rec.SessionID, &initialBalance, &rec.Currency,
			&rec.Wins, &rec.Losses, &rec.Streak,
			&balance, &rec.StartedAt); err != nil {
			return nil, err
		}
		rec.InitialBalance, _ = decimal.NewFromString(initialBalance)
		rec.Balance, _ = decimal.NewFromString(balance)
		sessions = append(sessions, rec)
	}
	return sessions, rows.Err()
}

func (s *PostgresStore) UpdateSessionStats(ctx context.Context, sessionID string, wins, losses, streak int, balance decimal.Decimal) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE trading_sessions
		 SET wins = $2, losses = $3, streak = $4, balance = $5::NUMERIC
		 WHERE session_id = $1`,
		sessionID, wins, losses, streak, balance.String(),
	)
	return err
}

func (s *PostgresStore) InsertEvent(ctx context.Context, ev *model.EventRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trading_events (id, session_id, event_type, amount, balance, message, loss_percent, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7::NUMERIC, $8)`,
		ev.ID, ev.SessionID, ev.EventType,
		ev.Amount.String(), ev.Balance.String(),
		ev.Message, ev.LossPercent.String(),
		ev.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetEventsBySession(ctx context.Context, sessionID string, limit int) ([]model.EventRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, event_type, amount::TEXT, balance::TEXT, message, loss_percent::TEXT, created_at
		 FROM trading_events WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.EventRecord
	for rows.Next() {
		var ev model.EventRecord
		var amount, balance, lossPercent string

		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.EventType,
			&amount, &balance, &ev.Message, &lossPercent, &ev.CreatedAt); err != nil {
			return nil, err
		}

		ev.Amount, _ = decimal.NewFromString(amount)
		ev.Balance, _ = decimal.NewFromString(balance)
		ev.LossPercent, _ = decimal.NewFromString(lossPercent)

		events = append(events, ev)
	}
	return events, rows.Err()
}
