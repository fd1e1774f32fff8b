package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DarrylTHJ/derivcoach/internal/model"
	"github.com/DarrylTHJ/derivcoach/internal/store"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedSession(t *testing.T, ms *store.MemoryStore, id string, startedAt time.Time) {
	t.Helper()
	err := ms.CreateSession(context.Background(), &model.SessionRecord{
		SessionID:      id,
		InitialBalance: d("1000"),
		Currency:       "USD",
		Balance:        d("1000"),
		StartedAt:      startedAt,
	})
	if err != nil {
		t.Fatalf("seed session %s: %v", id, err)
	}
}

func TestCreateAndGetSession(t *testing.T) {
	ms := store.NewMemoryStore()
	seedSession(t, ms, "sess-1", time.Now())

	rec, err := ms.GetSession(context.Background(), "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.InitialBalance.Equal(d("1000")) {
		t.Errorf("initial balance = %s", rec.InitialBalance)
	}

	if err := ms.CreateSession(context.Background(), &model.SessionRecord{SessionID: "sess-1"}); err == nil {
		t.Error("duplicate session ID should fail")
	}
	if _, err := ms.GetSession(context.Background(), "missing"); err == nil {
		t.Error("missing session should fail")
	}
}

func TestListSessions_NewestFirstWithLimit(t *testing.T) {
	ms := store.NewMemoryStore()
	base := time.Now()
	seedSession(t, ms, "sess-old", base.Add(-2*time.Hour))
	seedSession(t, ms, "sess-mid", base.Add(-time.Hour))
	seedSession(t, ms, "sess-new", base)

	sessions, err := ms.ListSessions(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("len = %d, want 2", len(sessions))
	}
	if sessions[0].SessionID != "sess-new" || sessions[1].SessionID != "sess-mid" {
		t.Errorf("order = [%s %s], want newest first", sessions[0].SessionID, sessions[1].SessionID)
	}
}

func TestUpdateSessionStats(t *testing.T) {
	ms := store.NewMemoryStore()
	seedSession(t, ms, "sess-1", time.Now())

	if err := ms.UpdateSessionStats(context.Background(), "sess-1", 3, 2, -2, d("950")); err != nil {
		t.Fatal(err)
	}

	rec, err := ms.GetSession(context.Background(), "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Wins != 3 || rec.Losses != 2 || rec.Streak != -2 {
		t.Errorf("stats = %d/%d/%d", rec.Wins, rec.Losses, rec.Streak)
	}
	if !rec.Balance.Equal(d("950")) {
		t.Errorf("balance = %s", rec.Balance)
	}

	if err := ms.UpdateSessionStats(context.Background(), "missing", 1, 0, 1, d("1")); err == nil {
		t.Error("updating a missing session should fail")
	}
}

func TestEvents_NewestFirstFilteredBySession(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	for i, ev := range []model.EventRecord{
		{ID: "e1", SessionID: "sess-1", EventType: "connect"},
		{ID: "e2", SessionID: "sess-1", EventType: "win"},
		{ID: "e3", SessionID: "sess-2", EventType: "connect"},
		{ID: "e4", SessionID: "sess-1", EventType: "loss"},
	} {
		ev.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		if err := ms.InsertEvent(ctx, &ev); err != nil {
			t.Fatal(err)
		}
	}

	events, err := ms.GetEventsBySession(ctx, "sess-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].ID != "e4" || events[1].ID != "e2" {
		t.Errorf("order = [%s %s], want newest first", events[0].ID, events[1].ID)
	}
}
