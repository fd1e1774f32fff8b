// Package coach turns settled trades into coaching output: an immediate
// rule-based message, an asynchronous AI enrichment message, and, on severe
// drawdown, a forced-pause countdown.
//
// The coach narrates discipline quality only. It never produces or forwards
// buy/sell signals, price predictions, or trading recommendations.
package coach

// MessageKind is the display category of a coach message.
type MessageKind string

const (
	KindWin     MessageKind = "win"
	KindLoss    MessageKind = "loss"
	KindWarning MessageKind = "warning"
	KindNeutral MessageKind = "neutral"
	KindAI      MessageKind = "ai"
)

// Presenter is the display surface the dispatcher talks to. The concrete
// implementation is supplied by the host (dashboard WebSocket hub, logs).
// Presenter calls never touch session state.
type Presenter interface {
	// CoachMessage shows one coaching message.
	CoachMessage(kind MessageKind, text string)

	// ThinkingStarted shows the transient "thinking" indicator while an
	// enrichment request is outstanding; ThinkingDone removes it. The
	// dispatcher guarantees exactly one ThinkingDone per ThinkingStarted.
	ThinkingStarted()
	ThinkingDone()

	// PauseStarted announces a forced-pause countdown of the given number
	// of seconds. Dismissible is false in harsh mode.
	PauseStarted(seconds int, dismissible bool)
	// PauseTick reports the remaining seconds as the countdown runs.
	PauseTick(remaining int)
	// PauseEnded reports how the countdown ended: "dismissed" or "expired".
	PauseEnded(reason string)
}

// SessionTerminator is the capability invoked when a forced-pause countdown
// expires. The concrete implementation is environment-specific; the pause
// controller only invokes it.
type SessionTerminator interface {
	TerminateSession()
}
