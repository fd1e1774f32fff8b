package feed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DarrylTHJ/derivcoach/internal/feed"
)

var upgrader = websocket.Upgrader{}

// fakeDerivServer accepts one connection, answers the authorize request,
// then runs script against the connection.
func fakeDerivServer(t *testing.T, authResponse string, script func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("app_id") == "" {
			t.Error("app_id query parameter missing")
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		var authReq map[string]any
		if err := conn.ReadJSON(&authReq); err != nil {
			return
		}
		if _, ok := authReq["authorize"]; !ok {
			t.Errorf("first request = %v, want authorize", authReq)
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(authResponse)); err != nil {
			return
		}

		// Drain subscribe requests and pings.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		if script != nil {
			script(conn)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func receiveEvent(t *testing.T, events <-chan feed.Event) feed.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed event")
		return nil
	}
}

func TestListener_AuthorizeSubscribeAndStream(t *testing.T) {
	url := fakeDerivServer(t,
		`{"msg_type":"authorize","authorize":{"loginid":"CR123456","balance":1000,"currency":"USD"}}`,
		func(conn *websocket.Conn) {
			conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"msg_type":"balance","balance":{"balance":995,"currency":"USD"}}`))
			conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"msg_type":"transaction","transaction":{"action":"buy","amount":-5,"balance":995,"contract_id":11}}`))
		})

	events := make(chan feed.Event, 16)
	l := feed.NewListener(url, 1089, "test-token", time.Minute, events)
	l.Start(context.Background())
	defer l.Stop()

	auth, ok := receiveEvent(t, events).(feed.Authorized)
	if !ok {
		t.Fatal("first event should be Authorized")
	}
	if auth.LoginID != "CR123456" || auth.Currency != "USD" {
		t.Errorf("authorized = %+v", auth)
	}

	if _, ok := receiveEvent(t, events).(feed.BalanceUpdate); !ok {
		t.Fatal("second event should be BalanceUpdate")
	}

	txn, ok := receiveEvent(t, events).(feed.TransactionEvent)
	if !ok {
		t.Fatal("third event should be TransactionEvent")
	}
	if txn.Txn.ContractID != 11 || txn.Txn.Action != "buy" {
		t.Errorf("transaction = %+v", txn.Txn)
	}
}

func TestListener_DisconnectEmittedOnTransportLoss(t *testing.T) {
	url := fakeDerivServer(t,
		`{"msg_type":"authorize","authorize":{"loginid":"CR123456","balance":1000,"currency":"USD"}}`,
		func(conn *websocket.Conn) {
			conn.Close()
		})

	events := make(chan feed.Event, 16)
	l := feed.NewListener(url, 1089, "test-token", time.Minute, events)
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)
	defer func() {
		cancel()
		l.Stop()
	}()

	if _, ok := receiveEvent(t, events).(feed.Authorized); !ok {
		t.Fatal("first event should be Authorized")
	}
	if _, ok := receiveEvent(t, events).(feed.Disconnected); !ok {
		t.Fatal("transport loss should emit Disconnected")
	}
}

func TestListener_AuthRejectionIsTerminal(t *testing.T) {
	url := fakeDerivServer(t,
		`{"msg_type":"authorize","error":{"code":"InvalidToken","message":"The token is invalid."}}`,
		nil)

	events := make(chan feed.Event, 16)
	l := feed.NewListener(url, 1089, "bad-token", time.Minute, events)
	l.Start(context.Background())
	defer l.Stop()

	disc, ok := receiveEvent(t, events).(feed.Disconnected)
	if !ok {
		t.Fatal("auth rejection should emit Disconnected")
	}
	apiErr, ok := disc.Err.(*feed.APIError)
	if !ok {
		t.Fatalf("err = %v, want *APIError", disc.Err)
	}
	if apiErr.Code != "InvalidToken" {
		t.Errorf("code = %q", apiErr.Code)
	}

	// No reconnect attempt follows a terminal rejection.
	select {
	case ev := <-events:
		t.Fatalf("unexpected event after terminal rejection: %T", ev)
	case <-time.After(200 * time.Millisecond):
	}
}
