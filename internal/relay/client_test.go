package relay_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/DarrylTHJ/derivcoach/internal/relay"
)

func TestPublish_PostsEvent(t *testing.T) {
	var (
		mu      sync.Mutex
		payload map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		mu.Lock()
		payload = body
		mu.Unlock()
	}))
	defer srv.Close()

	c := relay.NewClient(srv.URL)
	amount := decimal.RequireFromString("15")
	c.Publish(relay.Event{
		SessionID: "sess-1",
		EventType: "win",
		Amount:    &amount,
		Message:   "Win +15.00",
	})
	c.Close()

	mu.Lock()
	defer mu.Unlock()
	if payload == nil {
		t.Fatal("no payload received")
	}
	if payload["event_type"] != "win" {
		t.Errorf("event_type = %v", payload["event_type"])
	}
	if payload["session_id"] != "sess-1" {
		t.Errorf("session_id = %v", payload["session_id"])
	}
	if _, ok := payload["loss_percent"]; ok {
		t.Error("empty loss_percent should be omitted")
	}
}

func TestPublish_FailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := relay.NewClient(srv.URL)
	c.Publish(relay.Event{SessionID: "sess-1", EventType: "loss"})
	c.Close() // must return without surfacing the failure
}

func TestPublish_DisabledWithoutURL(t *testing.T) {
	c := relay.NewClient("")
	c.Publish(relay.Event{SessionID: "sess-1", EventType: "win"})
	c.Close()
}
