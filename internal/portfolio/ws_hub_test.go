package portfolio_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerly/networth-engine/internal/portfolio"
	"github.com/ledgerly/networth-engine/internal/store"
)

func startServer(t *testing.T, e *testEnv) string {
	t.Helper()
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"
}

// dialHub opens a socket for userID and waits until the hub holds want clients.
func dialHub(t *testing.T, e *testEnv, url, userID string, want int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"?user_id="+userID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return e.hub.Clients() == want }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) portfolio.WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg portfolio.WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestWSHub_PushesNetWorthAfterWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := portfolio.NewWSHub()
	go hub.Run(ctx)

	e := newTestEnv(t, hub)
	createUser(t, e, "u1", "USD")
	conn := dialHub(t, e, startServer(t, e), "u1", 1)

	w := e.do(t, "POST", "/users/u1/cash", `{"kind":"BANK","balance":"1000","currency":"AED"}`)
	require.Equal(t, 201, w.Code)

	msg := readMessage(t, conn)
	assert.Equal(t, portfolio.MsgNetWorthUpdated, msg.Type)
	assert.Equal(t, "u1", msg.UserID)
	assert.Equal(t, "USD", msg.Currency)
	assert.Equal(t, "270", msg.NetWorth)
	assert.False(t, msg.Approximate)

	rec, err := e.ms.GetRecords(ctx, "u1")
	require.NoError(t, err)
	w = e.do(t, "DELETE", "/users/u1/cash/"+rec.Cash[0].ID, nil)
	require.Equal(t, 204, w.Code)

	msg = readMessage(t, conn)
	assert.Equal(t, portfolio.MsgNetWorthUpdated, msg.Type)
	assert.Equal(t, "0", msg.NetWorth)
}

func TestWSHub_RatesUpdate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := portfolio.NewWSHub()
	go hub.Run(ctx)

	e := newTestEnv(t, hub)
	conn := dialHub(t, e, startServer(t, e), store.DemoUser.ID, 1)

	w := e.do(t, "POST", "/rates", `[{"target":"GBP","rate":"0.21"}]`)
	require.Equal(t, 201, w.Code, w.Body.String())

	assert.Equal(t, portfolio.MsgRatesUpdated, readMessage(t, conn).Type)
}

func TestWSHub_NetWorthOnlyReachesItsUser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := portfolio.NewWSHub()
	go hub.Run(ctx)

	e := newTestEnv(t, hub)
	createUser(t, e, "u1", "AED")
	createUser(t, e, "u2", "AED")
	url := startServer(t, e)
	own := dialHub(t, e, url, "u1", 1)
	other := dialHub(t, e, url, "u2", 2)

	w := e.do(t, "POST", "/users/u1/cash", `{"kind":"BANK","balance":"987654","currency":"AED"}`)
	require.Equal(t, 201, w.Code)
	w = e.do(t, "POST", "/rates", `[{"target":"GBP","rate":"0.21"}]`)
	require.Equal(t, 201, w.Code)

	msg := readMessage(t, own)
	assert.Equal(t, portfolio.MsgNetWorthUpdated, msg.Type)
	assert.Equal(t, "987654", msg.NetWorth)
	assert.Equal(t, portfolio.MsgRatesUpdated, readMessage(t, own).Type)

	// Messages are delivered in order, so u2's first message is the rate update.
	msg = readMessage(t, other)
	assert.Equal(t, portfolio.MsgRatesUpdated, msg.Type)
	assert.Empty(t, msg.UserID)
	assert.Empty(t, msg.NetWorth)
}

func TestWSHub_RequiresKnownUser(t *testing.T) {
	e := newTestEnv(t, portfolio.NewWSHub())

	w := e.do(t, "GET", "/ws", nil)
	assert.Equal(t, 400, w.Code)

	w = e.do(t, "GET", "/ws?user_id=ghost", nil)
	assert.Equal(t, 404, w.Code)
}

func TestWSHub_BroadcastWithoutClientsDoesNotBlock(t *testing.T) {
	hub := portfolio.NewWSHub()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Broadcast(portfolio.WSMessage{Type: portfolio.MsgNetWorthUpdated})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked with no running hub")
	}
}
