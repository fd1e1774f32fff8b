package coach

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DarrylTHJ/derivcoach/internal/metrics"
	"github.com/DarrylTHJ/derivcoach/internal/model"
	"github.com/DarrylTHJ/derivcoach/internal/relay"
	"github.com/DarrylTHJ/derivcoach/internal/store"
)

// TradeContext is the immutable snapshot handed to the dispatcher when a
// trade settles. State is copied after statistics were applied, so an
// outstanding enrichment request never reads live session state.
type TradeContext struct {
	Trade  model.RealizedTrade
	State  model.SessionState
	Signal *model.PatternSignal // non-nil for losses
}

// Dispatcher produces coaching output for settled trades. Two messages fire
// per trade: the immediate local message (synchronous, always) and the
// enrichment message (one goroutine per trade; a slow collaborator never
// stalls processing of subsequent trades). It also relays events to the
// sync collaborator and records them in the local store.
type Dispatcher struct {
	provider  MessageProvider
	presenter Presenter
	pause     *PauseController
	relay     *relay.Client
	store     store.Store

	wg sync.WaitGroup
}

// NewDispatcher wires the dispatcher. pause may be nil when no forced-pause
// behavior is wanted (tests).
func NewDispatcher(provider MessageProvider, presenter Presenter, pause *PauseController, rc *relay.Client, st store.Store) *Dispatcher {
	return &Dispatcher{
		provider:  provider,
		presenter: presenter,
		pause:     pause,
		relay:     rc,
		store:     st,
	}
}

// SessionStarted greets a freshly authorized session and relays the
// connect event.
func (d *Dispatcher) SessionStarted(state model.SessionState) {
	d.presenter.CoachMessage(KindWin, connectMessage())

	initial := state.StartBalance
	balance := state.Balance
	d.relay.Publish(relay.Event{
		SessionID:      state.SessionID,
		EventType:      "connect",
		InitialBalance: &initial,
		Balance:        &balance,
		Currency:       state.Currency,
	})
}

// TradeSettled handles one realized trade: immediate message now, forced
// pause on alert-tier losses, then asynchronous enrichment.
func (d *Dispatcher) TradeSettled(ctx context.Context, tc TradeContext) {
	t := tc.Trade

	switch t.Outcome {
	case model.OutcomeBreakeven:
		// No counters, no sync, no enrichment. Just note it.
		d.presenter.CoachMessage(KindNeutral, fmt.Sprintf("Break even on %s. No loss, no gain.", t.Instrument))
		return

	case model.OutcomeWin:
		d.presenter.CoachMessage(KindWin, fmt.Sprintf("Win: +%s %s on %s",
			t.Profit.StringFixed(2), tc.State.Currency, t.Instrument))

	case model.OutcomeLoss:
		d.presenter.CoachMessage(KindLoss, fmt.Sprintf("Loss: -%s %s on %s",
			t.AbsPnL.StringFixed(2), tc.State.Currency, t.Instrument))

		if tc.Signal != nil && tc.Signal.Tier == model.TierAlert && d.pause != nil {
			d.pause.Trigger()
		}
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.enrich(ctx, tc)
	}()
}

// Wait blocks until all outstanding enrichment requests have completed.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// enrich runs the asynchronous half of a settlement: request the AI
// message, fall back to rule-based copy, then relay and record the event.
func (d *Dispatcher) enrich(ctx context.Context, tc TradeContext) {
	t := tc.Trade

	d.presenter.ThinkingStarted()
	start := time.Now()
	aiMsg, err := d.provider.Message(ctx, buildRequest(tc))
	metrics.CoachLatency.Observe(time.Since(start).Seconds())
	d.presenter.ThinkingDone()

	switch {
	case err != nil:
		metrics.CoachRequests.WithLabelValues("error").Inc()
		slog.Warn("coach_enrichment_failed", "error", err)
	case aiMsg == "":
		metrics.CoachRequests.WithLabelValues("empty").Inc()
	default:
		metrics.CoachRequests.WithLabelValues("ok").Inc()
	}

	if t.Outcome == model.OutcomeWin {
		d.finishWin(ctx, tc, aiMsg)
		return
	}
	d.finishLoss(ctx, tc, aiMsg)
}

func (d *Dispatcher) finishWin(ctx context.Context, tc TradeContext, aiMsg string) {
	if aiMsg != "" {
		d.presenter.CoachMessage(KindAI, aiMsg)
	} else {
		d.presenter.CoachMessage(KindWin, winFallback(tc.State.Streak))
	}

	syncMsg := aiMsg
	if syncMsg == "" {
		syncMsg = fmt.Sprintf("Win +%s", tc.Trade.AbsPnL.StringFixed(2))
	}

	amount := tc.Trade.Profit
	balance := tc.State.Balance
	d.relay.Publish(relay.Event{
		SessionID: tc.State.SessionID,
		EventType: "win",
		Amount:    &amount,
		Balance:   &balance,
		Message:   syncMsg,
	})

	d.recordEvent(ctx, model.EventRecord{
		SessionID: tc.State.SessionID,
		EventType: "win",
		Amount:    amount,
		Balance:   balance,
		Message:   syncMsg,
	})
}

func (d *Dispatcher) finishLoss(ctx context.Context, tc TradeContext, aiMsg string) {
	sig := tc.Signal
	if sig == nil {
		sig = &model.PatternSignal{}
	}

	if aiMsg != "" {
		// Revenge-flagged AI messages keep the loss styling so the
		// warning reads as a warning.
		kind := KindAI
		if sig.RevengeTrading {
			kind = KindLoss
		}
		d.presenter.CoachMessage(kind, aiMsg)
	} else {
		kind := KindLoss
		if !sig.RevengeTrading && sig.Tier != model.TierAlert {
			kind = KindWarning
		}
		d.presenter.CoachMessage(kind, lossFallback(*sig))
	}

	syncMsg := aiMsg
	if syncMsg == "" {
		syncMsg = fmt.Sprintf("Loss -%s", tc.Trade.AbsPnL.StringFixed(2))
	}

	amount := tc.Trade.AbsPnL.Neg()
	balance := tc.State.Balance
	lossPct := sig.LossPercent.Mul(decimal.NewFromInt(100))
	d.relay.Publish(relay.Event{
		SessionID:   tc.State.SessionID,
		EventType:   "loss",
		Amount:      &amount,
		Balance:     &balance,
		Message:     syncMsg,
		LossPercent: &lossPct,
	})

	d.recordEvent(ctx, model.EventRecord{
		SessionID:   tc.State.SessionID,
		EventType:   "loss",
		Amount:      amount,
		Balance:     balance,
		Message:     syncMsg,
		LossPercent: lossPct,
	})

	if sig.RevengeTrading {
		alertMsg := aiMsg
		if alertMsg == "" {
			alertMsg = "Possible revenge trading detected."
		}
		metrics.PatternAlerts.WithLabelValues("revenge_trading_risk").Inc()
		d.relay.Publish(relay.Event{
			SessionID:   tc.State.SessionID,
			EventType:   "pattern_alert",
			Message:     alertMsg,
			PatternType: "revenge_trading_risk",
		})
		d.recordEvent(ctx, model.EventRecord{
			SessionID: tc.State.SessionID,
			EventType: "pattern_alert",
			Message:   alertMsg,
		})
	}
}

// recordEvent persists one event locally. Persistence is observability
// here, not control flow: errors are logged and dropped.
func (d *Dispatcher) recordEvent(ctx context.Context, ev model.EventRecord) {
	ev.ID = uuid.New().String()
	ev.CreatedAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := d.store.InsertEvent(ctx, &ev); err != nil {
		slog.Warn("event_store_failed", "event_type", ev.EventType, "error", err)
	}
}

// buildRequest snapshots the trade context into the collaborator payload.
func buildRequest(tc TradeContext) MessageRequest {
	req := MessageRequest{
		EventType:           tc.Trade.Outcome.String(),
		Amount:              tc.Trade.Profit,
		Balance:             tc.State.Balance,
		Currency:            tc.State.Currency,
		Wins:                tc.State.Wins,
		Losses:              tc.State.Losses,
		Streak:              tc.State.Streak,
		SessionStartBalance: tc.State.StartBalance,
		TotalSessionTrades:  tc.State.TotalTrades(),
	}

	if tc.Trade.Outcome == model.OutcomeLoss {
		req.Amount = tc.Trade.AbsPnL.Neg()
		if tc.Signal != nil {
			req.IsRevengeTrading = tc.Signal.RevengeTrading
			pct := tc.Signal.LossPercent.Mul(decimal.NewFromInt(100))
			req.LossPercent = &pct
		}
	}
	return req
}
