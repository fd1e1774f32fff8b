package api

import (
	"log/slog"

	"github.com/DarrylTHJ/derivcoach/internal/coach"
)

// HubPresenter implements coach.Presenter by logging every message and
// broadcasting it to the dashboard WebSocket hub.
type HubPresenter struct {
	hub *Hub
}

// NewHubPresenter creates a presenter backed by the given hub.
func NewHubPresenter(hub *Hub) *HubPresenter {
	return &HubPresenter{hub: hub}
}

func (p *HubPresenter) CoachMessage(kind coach.MessageKind, text string) {
	slog.Info("coach_message", "kind", string(kind), "text", text)
	p.hub.Broadcast(WSMessage{Type: "coach_message", Kind: string(kind), Text: text})
}

func (p *HubPresenter) ThinkingStarted() {
	p.hub.Broadcast(WSMessage{Type: "thinking_started"})
}

func (p *HubPresenter) ThinkingDone() {
	p.hub.Broadcast(WSMessage{Type: "thinking_done"})
}

func (p *HubPresenter) PauseStarted(seconds int, dismissible bool) {
	slog.Warn("forced_pause_started", "seconds", seconds, "dismissible", dismissible)
	p.hub.Broadcast(WSMessage{Type: "forced_pause", Seconds: seconds, Dismissible: dismissible})
}

func (p *HubPresenter) PauseTick(remaining int) {
	p.hub.Broadcast(WSMessage{Type: "forced_pause_tick", Seconds: remaining})
}

func (p *HubPresenter) PauseEnded(reason string) {
	slog.Info("forced_pause_ended", "reason", reason)
	p.hub.Broadcast(WSMessage{Type: "forced_pause_ended", Reason: reason})
}
