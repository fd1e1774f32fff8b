package feed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DarrylTHJ/derivcoach/internal/metrics"
)

// Reconnection backoff constants.
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterPercent  = 0.2

	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
)

// Listener manages the WebSocket connection to the Deriv API: authorize,
// subscribe to the balance and transaction channels, and deliver parsed
// events to the engine in arrival order.
//
// A dropped transport produces a Disconnected event (the engine resets to a
// clean slate); the listener then reconnects with backoff and a fresh
// authorization, which starts a brand-new session. In-flight contracts are
// never resynced across reconnects.
type Listener struct {
	url          string
	appID        int
	token        string
	pingInterval time.Duration
	events       chan<- Event

	conn     *websocket.Conn
	connMu   sync.Mutex
	backoff  time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewListener creates a listener that delivers events to the given channel.
func NewListener(url string, appID int, token string, pingInterval time.Duration, events chan<- Event) *Listener {
	return &Listener{
		url:          url,
		appID:        appID,
		token:        token,
		pingInterval: pingInterval,
		events:       events,
		backoff:      initialBackoff,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the listener loop with automatic reconnection.
func (l *Listener) Start(ctx context.Context) {
	l.wg.Add(1)
	go l.runLoop(ctx)
}

// Stop gracefully shuts down the listener.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() { close(l.stopChan) })
	l.closeConnection()
	l.wg.Wait()
}

func (l *Listener) runLoop(ctx context.Context) {
	defer l.wg.Done()

	for {
		select {
		case <-ctx.Done():
			slog.Info("feed_loop_stopping", "reason", "context cancelled")
			return
		case <-l.stopChan:
			slog.Info("feed_loop_stopping", "reason", "stop signal")
			return
		default:
		}

		if err := l.connect(ctx); err != nil {
			if apiErr, ok := err.(*APIError); ok {
				// Authorization rejection is surfaced and terminal:
				// retrying with the same token cannot succeed.
				slog.Error("feed_authorize_failed", "code", apiErr.Code, "message", apiErr.Message)
				l.emit(ctx, Disconnected{Err: apiErr})
				return
			}
			slog.Error("feed_connect_failed", "error", err, "backoff", l.backoff)
			l.waitBackoff(ctx)
			continue
		}

		metrics.FeedConnected.Set(1)

		if err := l.readLoop(ctx); err != nil {
			slog.Warn("feed_read_error", "error", err)
		}

		l.closeConnection()
		metrics.FeedConnected.Set(0)
		l.emit(ctx, Disconnected{})

		select {
		case <-ctx.Done():
			return
		case <-l.stopChan:
			return
		default:
			l.waitBackoff(ctx)
		}
	}
}

// connect dials, authorizes, and subscribes to both channels.
func (l *Listener) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	url := fmt.Sprintf("%s?app_id=%d", l.url, l.appID)
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial failed: %w", err)
	}

	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()

	slog.Info("feed_connected", "endpoint", l.url, "app_id", l.appID)

	if err := l.writeJSON(map[string]any{"authorize": l.token}); err != nil {
		return fmt.Errorf("authorize send failed: %w", err)
	}

	// The first frame answers the authorize request.
	_, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("authorize read failed: %w", err)
	}
	ev, perr := ParseMessage(data)
	if perr != nil {
		return perr // *APIError, authorization rejected
	}
	auth, ok := ev.(Authorized)
	if !ok {
		return fmt.Errorf("unexpected authorize response")
	}

	// Balance channel drives display only; the transaction channel drives
	// win/loss tracking.
	if err := l.writeJSON(map[string]any{"balance": 1, "subscribe": 1}); err != nil {
		return fmt.Errorf("balance subscribe failed: %w", err)
	}
	if err := l.writeJSON(map[string]any{"transaction": 1, "subscribe": 1}); err != nil {
		return fmt.Errorf("transaction subscribe failed: %w", err)
	}

	l.backoff = initialBackoff
	slog.Info("feed_authorized", "loginid", auth.LoginID, "currency", auth.Currency)

	l.emit(ctx, auth)

	l.wg.Add(1)
	go l.pingLoop(ctx, conn)

	return nil
}

// readLoop reads frames until the transport fails.
func (l *Listener) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stopChan:
			return nil
		default:
		}

		l.connMu.Lock()
		conn := l.conn
		l.connMu.Unlock()
		if conn == nil {
			return fmt.Errorf("connection is nil")
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}

		ev, perr := ParseMessage(data)
		if perr != nil {
			// Post-auth error frames (e.g. a rejected request on another
			// channel) do not model a trade; log and continue.
			slog.Warn("feed_api_error", "error", perr)
			continue
		}
		if ev == nil {
			continue
		}
		l.emit(ctx, ev)
	}
}

// pingLoop sends the application-level keep-alive at a fixed interval.
func (l *Listener) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.connMu.Lock()
			current := l.conn
			l.connMu.Unlock()
			if current != conn {
				return // connection was replaced
			}
			if err := l.writeJSON(map[string]any{"ping": 1}); err != nil {
				slog.Warn("feed_ping_failed", "error", err)
				return
			}
		}
	}
}

// emit delivers an event, blocking so feed order is preserved. A stop
// request does not short-circuit delivery: the final Disconnected event
// must reach the engine so the session is torn down.
func (l *Listener) emit(ctx context.Context, ev Event) {
	select {
	case l.events <- ev:
	case <-ctx.Done():
	}
}

func (l *Listener) writeJSON(v any) error {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	if l.conn == nil {
		return fmt.Errorf("connection is nil")
	}
	l.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return l.conn.WriteJSON(v)
}

// closeConnection safely closes the WebSocket connection.
func (l *Listener) closeConnection() {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
		slog.Info("feed_disconnected")
	}
}

// waitBackoff waits for the backoff duration with jitter.
func (l *Listener) waitBackoff(ctx context.Context) {
	jitter := time.Duration(float64(l.backoff) * jitterPercent * (rand.Float64()*2 - 1))
	wait := l.backoff + jitter

	select {
	case <-ctx.Done():
	case <-l.stopChan:
	case <-time.After(wait):
	}

	l.backoff = time.Duration(float64(l.backoff) * backoffFactor)
	if l.backoff > maxBackoff {
		l.backoff = maxBackoff
	}
}
