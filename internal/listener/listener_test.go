package listener

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeNode struct {
	mu       sync.Mutex
	requests []subscribeRequest
	conns    int
	// onConnect runs after subscriptions are read; returning closes the conn.
	onConnect func(conn *websocket.Conn, n int)
	expect    int
}

func (f *fakeNode) handler(t *testing.T) http.Handler {
	upgrader := websocket.Upgrader{}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		f.mu.Lock()
		f.conns++
		n := f.conns
		f.mu.Unlock()

		for i := 0; i < f.expect; i++ {
			var req subscribeRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			f.mu.Lock()
			f.requests = append(f.requests, req)
			f.mu.Unlock()
			_ = conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": 100 + req.ID})
		}
		f.onConnect(conn, n)
	})
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

const logsFrame = `{"jsonrpc":"2.0","method":"logsNotification","params":{"subscription":101,"result":{
	"context":{"slot":42},"value":{"signature":"sigA","err":null,
	"logs":["Program ` + raydium + ` invoke [1]","Program log: Instruction: Swap"]}}}}`

func TestListenerStreamsCandidates(t *testing.T) {
	node := &fakeNode{expect: 3}
	node.onConnect = func(conn *websocket.Conn, _ int) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(logsFrame))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"method":"accountNotification","params":{"subscription":103,"result":{
			"context":{"slot":43},"value":{"data":["AQ==","base64"],"owner":"Owner","lamports":1}}}}`))
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
	srv := httptest.NewServer(node.handler(t))
	defer srv.Close()

	l := New(Config{
		Endpoint:          wsURL(srv),
		Programs:          []string{raydium},
		Accounts:          []string{"Watched"},
		SubscribeInterval: time.Millisecond,
	}, testLogger())
	sub := l.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	c, err := sub.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sigA", c.Signature)
	assert.True(t, c.SwapHint)

	c, err = sub.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Watched", c.Instructions[0].Accounts[0].Pubkey)

	node.mu.Lock()
	methods := make([]string, 0, len(node.requests))
	for _, r := range node.requests {
		methods = append(methods, r.Method)
	}
	first, _ := json.Marshal(node.requests[0].Params)
	node.mu.Unlock()
	assert.Equal(t, []string{"logsSubscribe", "programSubscribe", "accountSubscribe"}, methods)
	assert.JSONEq(t, `[{"mentions":["`+raydium+`"]},{"commitment":"processed"}]`, string(first))

	stats := l.Statistics()
	assert.Equal(t, uint64(2), stats.Candidates)
	assert.Equal(t, uint64(1), stats.Malformed)
	assert.True(t, l.HealthCheck().Healthy)

	l.Stop()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	_, err = sub.Recv(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestListenerReconnects(t *testing.T) {
	node := &fakeNode{expect: 1}
	node.onConnect = func(conn *websocket.Conn, n int) {
		if n == 1 {
			// Drop the first session right away.
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(logsFrame))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
	srv := httptest.NewServer(node.handler(t))
	defer srv.Close()

	l := New(Config{
		Endpoint:       wsURL(srv),
		Programs:       []string{raydium},
		Filters:        []string{FilterLogs},
		ReconnectDelay: 10 * time.Millisecond,
	}, testLogger())
	sub := l.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	c, err := sub.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sigA", c.Signature)
	assert.GreaterOrEqual(t, l.Statistics().Reconnects, uint64(1))

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHealthCheckInactive(t *testing.T) {
	l := New(Config{Endpoint: "ws://127.0.0.1:1"}, testLogger())
	h := l.HealthCheck()
	assert.False(t, h.Healthy)
	assert.True(t, h.LastActive.IsZero())
}
