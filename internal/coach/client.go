package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MessageRequest is the payload sent to the coaching-message collaborator.
type MessageRequest struct {
	EventType           string           `json:"event_type"` // "win" or "loss"
	Amount              decimal.Decimal  `json:"amount"`     // signed: negative for losses
	Balance             decimal.Decimal  `json:"balance"`
	Currency            string           `json:"currency"`
	Wins                int              `json:"wins"`
	Losses              int              `json:"losses"`
	Streak              int              `json:"streak"`
	SessionStartBalance decimal.Decimal  `json:"session_start_balance"`
	IsRevengeTrading    bool             `json:"is_revenge_trading,omitempty"`
	LossPercent         *decimal.Decimal `json:"loss_percent,omitempty"` // percentage
	TotalSessionTrades  int              `json:"total_session_trades"`
}

// MessageProvider produces a short coaching message for a trade context.
// An empty string with nil error means the collaborator had nothing to say.
type MessageProvider interface {
	Message(ctx context.Context, req MessageRequest) (string, error)
}

// forbiddenAdvice strips accidental trade-recommendation language from
// collaborator output. The no-signals rule is enforced here, on the caller
// side, not trusted to the collaborator.
var forbiddenAdvice = regexp.MustCompile(`(?i)\b(buy|sell|long|short|enter|exit)\s+(now|at|this|the|position)`)

// Client is the HTTP coaching-message client.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a coaching client for the given endpoint URL.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Message requests one coaching message. Network errors, non-2xx statuses,
// and empty bodies all surface as ("", err) or ("", nil); the dispatcher
// substitutes the rule-based fallback in every such case.
func (c *Client) Message(ctx context.Context, reqBody MessageRequest) (string, error) {
	if c.url == "" {
		return "", nil
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal coach request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build coach request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("coach request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("coach request: status %d", resp.StatusCode)
	}

	var out struct {
		Message *string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode coach response: %w", err)
	}
	if out.Message == nil {
		return "", nil
	}

	msg := strings.TrimSpace(forbiddenAdvice.ReplaceAllString(*out.Message, ""))
	return msg, nil
}
