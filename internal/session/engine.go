// Package session implements the trade-event reconciliation engine: it
// consumes the feed in arrival order, matches buys to sells into realized
// outcomes, maintains session statistics, and drives the coaching pipeline.
//
// All session state is owned by the single event-processing goroutine that
// calls HandleEvent; the only concurrency is the dispatcher's outstanding
// enrichment requests, which read context snapshots taken at dispatch time.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/DarrylTHJ/derivcoach/internal/coach"
	"github.com/DarrylTHJ/derivcoach/internal/feed"
	"github.com/DarrylTHJ/derivcoach/internal/metrics"
	"github.com/DarrylTHJ/derivcoach/internal/model"
	"github.com/DarrylTHJ/derivcoach/internal/pattern"
	"github.com/DarrylTHJ/derivcoach/internal/store"
)

var two = decimal.NewFromInt(2)

// Engine owns the session state and the open-contract map. Constructed at
// authorization, reset to a clean slate on transport loss.
type Engine struct {
	detector   *pattern.Detector
	dispatcher *coach.Dispatcher
	store      store.Store

	mu    sync.RWMutex // guards state for external snapshots only
	state *model.SessionState
	open  map[int64]model.OpenContract

	now func() time.Time
}

// NewEngine creates an engine with no active session.
func NewEngine(detector *pattern.Detector, dispatcher *coach.Dispatcher, st store.Store) *Engine {
	return &Engine{
		detector:   detector,
		dispatcher: dispatcher,
		store:      st,
		open:       make(map[int64]model.OpenContract),
		now:        time.Now,
	}
}

// Run consumes feed events until the channel closes or the context ends.
// Events are processed to completion one at a time, in arrival order.
func (e *Engine) Run(ctx context.Context, events <-chan feed.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.HandleEvent(ctx, ev)
		}
	}
}

// HandleEvent processes one feed event.
func (e *Engine) HandleEvent(ctx context.Context, ev feed.Event) {
	switch ev := ev.(type) {
	case feed.Authorized:
		e.startSession(ctx, ev)
	case feed.BalanceUpdate:
		e.setBalance(ev.Balance)
	case feed.TransactionEvent:
		e.processTransaction(ctx, ev.Txn)
	case feed.Disconnected:
		e.endSession()
	}
}

// Snapshot returns a copy of the current session state, or false when no
// session is active.
func (e *Engine) Snapshot() (model.SessionState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return model.SessionState{}, false
	}
	return *e.state, true
}

// startSession begins a fresh monitoring session from an authorization
// snapshot. The balance at authorization becomes the session-start balance
// used as the loss-percent denominator for the whole session.
func (e *Engine) startSession(ctx context.Context, auth feed.Authorized) {
	state := &model.SessionState{
		SessionID:    uuid.New().String(),
		Balance:      auth.Balance,
		Currency:     auth.Currency,
		StartBalance: auth.Balance,
		StartedAt:    e.now().UTC(),
	}
	if state.Currency == "" {
		state.Currency = "USD"
	}

	e.mu.Lock()
	e.state = state
	e.open = make(map[int64]model.OpenContract)
	e.mu.Unlock()
	e.detector.Reset()

	if err := e.store.CreateSession(ctx, &model.SessionRecord{
		SessionID:      state.SessionID,
		InitialBalance: state.StartBalance,
		Currency:       state.Currency,
		Balance:        state.Balance,
		StartedAt:      state.StartedAt,
	}); err != nil {
		slog.Warn("session_store_failed", "error", err)
	}

	slog.Info("session_started",
		"session_id", state.SessionID,
		"balance", state.Balance.String(),
		"currency", state.Currency,
	)

	e.dispatcher.SessionStarted(*state)
}

// endSession clears all session state and open contracts. Deliberate
// fail-safe to a clean slate: in-flight contracts are not carried across
// a transport loss.
func (e *Engine) endSession() {
	e.mu.Lock()
	hadSession := e.state != nil
	var id string
	if hadSession {
		id = e.state.SessionID
	}
	e.state = nil
	e.open = make(map[int64]model.OpenContract)
	e.mu.Unlock()
	e.detector.Reset()

	if hadSession {
		slog.Info("session_reset", "session_id", id)
	}
}

// setBalance records a balance-channel push. Display only: never used for
// win/loss classification.
func (e *Engine) setBalance(balance decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != nil {
		e.state.Balance = balance
	}
}

// processTransaction runs the reconciler over one buy/sell record.
func (e *Engine) processTransaction(ctx context.Context, txn model.Transaction) {
	e.mu.RLock()
	active := e.state != nil
	e.mu.RUnlock()
	if !active || txn.Action == "" {
		return
	}

	// Transaction-embedded balance updates the display, nothing else.
	e.setBalance(txn.Balance)

	switch txn.Action {
	case "buy":
		// A purchase reduces the balance; it is never a loss.
		instrument := txn.DisplayName
		if instrument == "" {
			instrument = "Unknown"
		}
		e.mu.Lock()
		e.open[txn.ContractID] = model.OpenContract{
			BuyAmount:    txn.Amount.Abs(),
			Instrument:   instrument,
			PurchaseTime: txn.TransactionTime,
		}
		e.mu.Unlock()

	case "sell":
		trade := e.reconcile(txn)
		e.settle(ctx, trade)
	}
	// Anything else: the feed may emit actions the reconciler does not
	// model. Silent skip, no state change.
}

// reconcile matches a sell against its open contract and removes the
// entry. A sell with no matching purchase (client connected mid-trade, or
// a duplicate settlement) takes the heuristic fallback: half the payout if
// positive, otherwise a nominal -1. The result is tagged Estimated.
func (e *Engine) reconcile(txn model.Transaction) model.RealizedTrade {
	sellAmount := txn.Amount

	e.mu.Lock()
	oc, found := e.open[txn.ContractID]
	delete(e.open, txn.ContractID)
	e.mu.Unlock()

	trade := model.RealizedTrade{
		ContractID: txn.ContractID,
		SettledAt:  e.now(),
	}

	if found {
		trade.Instrument = oc.Instrument
		trade.Profit = sellAmount.Sub(oc.BuyAmount)
	} else {
		trade.Instrument = txn.DisplayName
		if trade.Instrument == "" {
			trade.Instrument = "Unknown"
		}
		trade.Estimated = true
		if sellAmount.IsPositive() {
			trade.Profit = sellAmount.Div(two)
		} else {
			trade.Profit = decimal.NewFromInt(-1)
		}
	}

	trade.AbsPnL = trade.Profit.Abs()
	switch {
	case trade.Profit.IsPositive():
		trade.Outcome = model.OutcomeWin
	case trade.Profit.IsNegative():
		trade.Outcome = model.OutcomeLoss
	default:
		trade.Outcome = model.OutcomeBreakeven
	}
	return trade
}

// settle applies statistics, evaluates patterns on losses, and dispatches.
func (e *Engine) settle(ctx context.Context, trade model.RealizedTrade) {
	metrics.TradesSettled.WithLabelValues(trade.Outcome.String()).Inc()
	if trade.Estimated {
		metrics.EstimatedOutcomes.Inc()
	}

	var signal *model.PatternSignal

	e.mu.Lock()
	state := e.state
	switch trade.Outcome {
	case model.OutcomeWin:
		state.Wins++
		if state.Streak >= 0 {
			state.Streak++
		} else {
			state.Streak = 1
		}

	case model.OutcomeLoss:
		state.Losses++
		if state.Streak <= 0 {
			state.Streak--
		} else {
			state.Streak = -1
		}
		sig := e.detector.EvaluateLoss(trade.AbsPnL, state.StartBalance, trade.SettledAt)
		state.LastLossTime = trade.SettledAt
		state.HasPriorLoss = true
		signal = &sig

	case model.OutcomeBreakeven:
		// No counter or streak change.
	}
	snapshot := *state
	e.mu.Unlock()

	slog.Info("trade_settled",
		"session_id", snapshot.SessionID,
		"contract_id", trade.ContractID,
		"instrument", trade.Instrument,
		"outcome", trade.Outcome.String(),
		"profit", trade.Profit.String(),
		"estimated", trade.Estimated,
		"streak", snapshot.Streak,
	)

	if trade.Outcome != model.OutcomeBreakeven {
		if err := e.store.UpdateSessionStats(ctx, snapshot.SessionID,
			snapshot.Wins, snapshot.Losses, snapshot.Streak, snapshot.Balance); err != nil {
			slog.Warn("session_store_failed", "error", err)
		}
	}

	e.dispatcher.TradeSettled(ctx, coach.TradeContext{
		Trade:  trade,
		State:  snapshot,
		Signal: signal,
	})
}
