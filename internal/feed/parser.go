// Package feed handles the WebSocket connection and message parsing for the
// Deriv transaction stream.
package feed

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/DarrylTHJ/derivcoach/internal/model"
)

// Event is a parsed feed message delivered to the engine.
type Event interface{ feedEvent() }

// Authorized signals a successful authorization. Carries the account
// snapshot used to seed a new session.
type Authorized struct {
	LoginID  string
	Balance  decimal.Decimal
	Currency string
}

// BalanceUpdate is a balance-channel push. Display-only: it must never
// drive win/loss classification.
type BalanceUpdate struct {
	Balance  decimal.Decimal
	Currency string
}

// TransactionEvent wraps one buy/sell record from the transaction stream.
type TransactionEvent struct {
	Txn model.Transaction
}

// Disconnected signals loss of the underlying transport.
type Disconnected struct {
	Err error
}

func (Authorized) feedEvent()       {}
func (BalanceUpdate) feedEvent()    {}
func (TransactionEvent) feedEvent() {}
func (Disconnected) feedEvent()     {}

// APIError is an error frame from the Deriv API.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// rawMessage mirrors the envelope of every Deriv API frame.
type rawMessage struct {
	MsgType string    `json:"msg_type"`
	Error   *APIError `json:"error,omitempty"`

	Authorize *struct {
		LoginID  string          `json:"loginid"`
		Balance  decimal.Decimal `json:"balance"`
		Currency string          `json:"currency"`
	} `json:"authorize,omitempty"`

	Balance *struct {
		Balance  decimal.Decimal `json:"balance"`
		Currency string          `json:"currency"`
	} `json:"balance,omitempty"`

	Transaction *model.Transaction `json:"transaction,omitempty"`
}

// ParseMessage parses a raw frame into a feed Event.
//
// Returns (nil, nil) for frames the engine does not model (ping responses,
// subscription echoes, unknown msg_types): the feed is semi-trusted and a
// message we don't understand is skipped, never an error.
// An error frame is returned as *APIError so the caller can decide whether
// it is fatal (authorization) or ignorable.
func ParseMessage(data []byte) (Event, error) {
	var msg rawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		// Malformed frame: silent skip, no state change.
		return nil, nil
	}

	if msg.Error != nil {
		return nil, msg.Error
	}

	switch msg.MsgType {
	case "authorize":
		if msg.Authorize == nil {
			return nil, nil
		}
		return Authorized{
			LoginID:  msg.Authorize.LoginID,
			Balance:  msg.Authorize.Balance,
			Currency: msg.Authorize.Currency,
		}, nil

	case "balance":
		if msg.Balance == nil {
			return nil, nil
		}
		return BalanceUpdate{
			Balance:  msg.Balance.Balance,
			Currency: msg.Balance.Currency,
		}, nil

	case "transaction":
		if msg.Transaction == nil || msg.Transaction.Action == "" {
			// Action-less transaction frames (subscription echo) carry no trade.
			return nil, nil
		}
		return TransactionEvent{Txn: *msg.Transaction}, nil
	}

	return nil, nil
}
