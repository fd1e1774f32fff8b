package coach

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/DarrylTHJ/derivcoach/internal/model"
)

// Deterministic rule-based copy, substituted whenever the enrichment
// collaborator fails or returns nothing.

// winFallback varies by streak length.
func winFallback(streak int) string {
	if streak > 1 {
		return fmt.Sprintf("That's %d wins in a row! Stay disciplined — don't let confidence turn into overconfidence.", streak)
	}
	return "Good trade. Review what worked so you can repeat it."
}

// lossFallback selects copy by signal tier; revenge trading outranks the
// drawdown tiers.
func lossFallback(sig model.PatternSignal) string {
	switch {
	case sig.RevengeTrading:
		return "Pattern detected: Trading shortly after a loss. Consider taking a short break."
	case sig.Tier == model.TierAlert:
		pct := sig.LossPercent.Mul(decimal.NewFromInt(100))
		return fmt.Sprintf("Down %s%% from session start. Take a break to reassess.", pct.StringFixed(1))
	case sig.Tier == model.TierWarning:
		return "Capital is dropping. Check your risk per trade and stay disciplined."
	default:
		return "Small loss — part of the process. Stick to your plan."
	}
}

// connectMessage greets a freshly authorized session.
func connectMessage() string {
	return "You're connected! I'll analyze your trades and coach you in real-time using AI. Good luck!"
}
