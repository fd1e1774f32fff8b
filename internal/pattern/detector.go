// Package pattern flags behavioral risk on loss events: revenge trading
// (a loss settling shortly after the previous one) and drawdown severity
// relative to session-start capital.
package pattern

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/DarrylTHJ/derivcoach/internal/model"
)

// Detector evaluates loss events against fixed thresholds. It keeps only
// the timestamp of the immediately preceding loss; historical losses
// beyond that do not matter.
type Detector struct {
	warningThreshold decimal.Decimal // fraction of session-start capital
	alertThreshold   decimal.Decimal
	revengeWindow    time.Duration

	lastLossAt   time.Time
	hasPriorLoss bool
}

// NewDetector creates a detector with the given thresholds and revenge window.
func NewDetector(warning, alert decimal.Decimal, revengeWindow time.Duration) *Detector {
	return &Detector{
		warningThreshold: warning,
		alertThreshold:   alert,
		revengeWindow:    revengeWindow,
	}
}

// EvaluateLoss computes the signal for one loss and records its timestamp
// as the new "last loss time".
//
// Revenge trading is flagged iff a prior loss exists and this loss settled
// strictly within the window after it. Loss percent is absPnL divided by
// the session-start balance; a non-positive denominator yields zero rather
// than an error.
func (d *Detector) EvaluateLoss(absPnL, sessionStart decimal.Decimal, now time.Time) model.PatternSignal {
	revenge := d.hasPriorLoss && now.Sub(d.lastLossAt) < d.revengeWindow
	d.lastLossAt = now
	d.hasPriorLoss = true

	lossPercent := decimal.Zero
	if sessionStart.IsPositive() {
		lossPercent = absPnL.Div(sessionStart)
	}

	tier := model.TierNone
	switch {
	case lossPercent.GreaterThanOrEqual(d.alertThreshold):
		tier = model.TierAlert
	case lossPercent.GreaterThanOrEqual(d.warningThreshold):
		tier = model.TierWarning
	}

	return model.PatternSignal{
		RevengeTrading: revenge,
		LossPercent:    lossPercent,
		Tier:           tier,
	}
}

// Reset clears loss history. Called when a session ends.
func (d *Detector) Reset() {
	d.lastLossAt = time.Time{}
	d.hasPriorLoss = false
}
