package coach

import (
	"sync"
	"time"

	"github.com/DarrylTHJ/derivcoach/internal/metrics"
)

// PauseController runs the forced-pause countdown: Idle → CountdownActive →
// (Dismissed | Expired) → Idle. Triggered only on alert-tier losses. On
// expiry the SessionTerminator fires exactly once; a dismiss before expiry
// cancels the timer and fires nothing. In harsh mode Dismiss is refused.
type PauseController struct {
	countdown  time.Duration
	harsh      bool
	terminator SessionTerminator
	presenter  Presenter

	mu     sync.Mutex
	active bool
	cancel chan struct{}
}

// NewPauseController creates a controller. terminator may be nil, in which
// case expiry only reports the state change.
func NewPauseController(countdown time.Duration, harsh bool, terminator SessionTerminator, presenter Presenter) *PauseController {
	return &PauseController{
		countdown:  countdown,
		harsh:      harsh,
		terminator: terminator,
		presenter:  presenter,
	}
}

// Active reports whether a countdown is running.
func (p *PauseController) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Trigger starts the countdown. A trigger while a countdown is already
// active is a no-op: the running countdown keeps its deadline.
func (p *PauseController) Trigger() {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return
	}
	p.active = true
	p.cancel = make(chan struct{})
	cancel := p.cancel
	p.mu.Unlock()

	seconds := int(p.countdown / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	p.presenter.PauseStarted(seconds, !p.harsh)

	go p.run(cancel, seconds)
}

// Dismiss cancels an active countdown. Returns false when nothing is
// active or when harsh mode forbids dismissal.
func (p *PauseController) Dismiss() bool {
	p.mu.Lock()
	if !p.active || p.harsh {
		p.mu.Unlock()
		return false
	}
	p.active = false
	close(p.cancel)
	p.mu.Unlock()

	p.presenter.PauseEnded("dismissed")
	metrics.ForcedPauses.WithLabelValues("dismissed").Inc()
	return true
}

func (p *PauseController) run(cancel chan struct{}, seconds int) {
	step := p.countdown / time.Duration(seconds)

	for remaining := seconds; remaining > 0; remaining-- {
		select {
		case <-cancel:
			return
		case <-time.After(step):
			p.presenter.PauseTick(remaining - 1)
		}
	}

	// Reached zero without dismissal.
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return // dismissed in the final instant
	}
	p.active = false
	p.mu.Unlock()

	p.presenter.PauseEnded("expired")
	metrics.ForcedPauses.WithLabelValues("expired").Inc()
	if p.terminator != nil {
		p.terminator.TerminateSession()
	}
}
