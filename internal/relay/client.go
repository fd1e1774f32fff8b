// Package relay implements the best-effort event-sync client. Every
// state-changing event (connect, win, loss, pattern_alert) is posted to the
// persistence collaborator fire-and-forget: failures are counted and
// discarded, never retried, and never block trade processing.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DarrylTHJ/derivcoach/internal/metrics"
)

// Event is the wire payload for the sync collaborator.
type Event struct {
	SessionID      string           `json:"session_id"`
	EventType      string           `json:"event_type"` // connect | win | loss | pattern_alert
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Balance        *decimal.Decimal `json:"balance,omitempty"`
	InitialBalance *decimal.Decimal `json:"initial_balance,omitempty"`
	Currency       string           `json:"currency,omitempty"`
	Message        string           `json:"message,omitempty"`
	LossPercent    *decimal.Decimal `json:"loss_percent,omitempty"` // percentage, not fraction
	PatternType    string           `json:"pattern_type,omitempty"`
}

// Client posts events to the sync endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	wg         sync.WaitGroup
}

// NewClient creates a sync client for the given endpoint URL.
// An empty URL disables syncing entirely.
func NewClient(url string) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Publish sends the event asynchronously. It returns immediately; the
// request runs in its own goroutine and any failure is swallowed.
func (c *Client) Publish(ev Event) {
	if c.url == "" {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.post(ev)
	}()
}

// Close waits for outstanding publishes to finish.
func (c *Client) Close() {
	c.wg.Wait()
}

func (c *Client) post(ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.SyncFailures.Inc()
		slog.Debug("sync_failed", "event_type", ev.EventType, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.SyncFailures.Inc()
		slog.Debug("sync_rejected", "event_type", ev.EventType, "status", resp.StatusCode)
	}
}
