package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/DarrylTHJ/derivcoach/internal/api"
	"github.com/DarrylTHJ/derivcoach/internal/coach"
	"github.com/DarrylTHJ/derivcoach/internal/feed"
	"github.com/DarrylTHJ/derivcoach/internal/model"
	"github.com/DarrylTHJ/derivcoach/internal/pattern"
	"github.com/DarrylTHJ/derivcoach/internal/relay"
	"github.com/DarrylTHJ/derivcoach/internal/session"
	"github.com/DarrylTHJ/derivcoach/internal/store"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// noopPresenter satisfies coach.Presenter for wiring tests.
type noopPresenter struct{}

func (noopPresenter) CoachMessage(coach.MessageKind, string) {}
func (noopPresenter) ThinkingStarted()                       {}
func (noopPresenter) ThinkingDone()                          {}
func (noopPresenter) PauseStarted(int, bool)                 {}
func (noopPresenter) PauseTick(int)                          {}
func (noopPresenter) PauseEnded(string)                      {}

type silentProvider struct{}

func (silentProvider) Message(context.Context, coach.MessageRequest) (string, error) {
	return "", nil
}

type testEnv struct {
	router chi.Router
	store  *store.MemoryStore
	engine *session.Engine
	pause  *coach.PauseController
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ms := store.NewMemoryStore()
	pause := coach.NewPauseController(time.Second, false, nil, noopPresenter{})
	dispatcher := coach.NewDispatcher(silentProvider{}, noopPresenter{}, pause, relay.NewClient(""), ms)
	detector := pattern.NewDetector(d("0.05"), d("0.10"), 3*time.Minute)
	engine := session.NewEngine(detector, dispatcher, ms)
	svc := api.NewService(ms, engine, pause)

	r := chi.NewRouter()
	r.Get("/api/v1/status", svc.GetStatus)
	r.Get("/api/v1/sessions", svc.ListSessions)
	r.Get("/api/v1/sessions/{sessionID}", svc.GetSession)
	r.Get("/api/v1/sessions/{sessionID}/events", svc.GetSessionEvents)
	r.Post("/api/v1/pause/dismiss", svc.DismissPause)

	return &testEnv{router: r, store: ms, engine: engine, pause: pause}
}

func (env *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func TestGetStatus_NoSession(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/api/v1/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp api.LiveStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Connected || resp.Session != nil {
		t.Errorf("resp = %+v, want disconnected", resp)
	}
}

func TestGetStatus_ActiveSession(t *testing.T) {
	env := newTestEnv(t)
	env.engine.HandleEvent(context.Background(), feed.Authorized{
		LoginID: "CR123456", Balance: d("1000"), Currency: "USD",
	})

	w := env.get(t, "/api/v1/status")
	var resp api.LiveStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Connected || resp.Session == nil {
		t.Fatalf("resp = %+v, want connected", resp)
	}
	if !resp.Session.StartBalance.Equal(d("1000")) {
		t.Errorf("start balance = %s", resp.Session.StartBalance)
	}
}

func TestListSessions(t *testing.T) {
	env := newTestEnv(t)
	base := time.Now()
	for i, id := range []string{"sess-a", "sess-b", "sess-c"} {
		err := env.store.CreateSession(context.Background(), &model.SessionRecord{
			SessionID: id,
			Currency:  "USD",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	w := env.get(t, "/api/v1/sessions?limit=2")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var sessions []model.SessionRecord
	if err := json.Unmarshal(w.Body.Bytes(), &sessions); err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 || sessions[0].SessionID != "sess-c" {
		t.Errorf("sessions = %+v, want two newest first", sessions)
	}
}

func TestListSessions_EmptyIsArray(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/api/v1/sessions")
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", got)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/api/v1/sessions/missing")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] == "" {
		t.Error("error body missing")
	}
}

func TestGetSessionEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, ev := range []model.EventRecord{
		{ID: "e1", SessionID: "sess-1", EventType: "connect"},
		{ID: "e2", SessionID: "sess-1", EventType: "win"},
	} {
		if err := env.store.InsertEvent(ctx, &ev); err != nil {
			t.Fatal(err)
		}
	}

	w := env.get(t, "/api/v1/sessions/sess-1/events")
	var events []model.EventRecord
	if err := json.Unmarshal(w.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].ID != "e2" {
		t.Errorf("events = %+v, want newest first", events)
	}
}

func TestDismissPause(t *testing.T) {
	env := newTestEnv(t)

	// Nothing active yet.
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/pause/dismiss", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 when idle", w.Code)
	}

	env.pause.Trigger()
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/pause/dismiss", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for active countdown", w.Code)
	}
	if env.pause.Active() {
		t.Error("pause should be idle after dismissal")
	}
}
