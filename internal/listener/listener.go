// Package listener streams Solana log, program and account notifications
// over WebSocket and republishes them as Candidates on a bounded broadcast
// ring.
package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Subscription filters.
const (
	FilterLogs    = "logs"
	FilterProgram = "program"
)

// Config controls what the listener subscribes to and how it reconnects.
type Config struct {
	Endpoint   string
	Programs   []string
	Accounts   []string
	Filters    []string
	Commitment string

	ReconnectDelay    time.Duration
	SubscribeInterval time.Duration
	Capacity          int
	HealthWindow      time.Duration
}

func (c *Config) applyDefaults() {
	if len(c.Filters) == 0 {
		c.Filters = []string{FilterLogs, FilterProgram}
	}
	if c.Commitment == "" {
		c.Commitment = "processed"
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.SubscribeInterval <= 0 {
		c.SubscribeInterval = 100 * time.Millisecond
	}
	if c.Capacity <= 0 {
		c.Capacity = 1000
	}
	if c.HealthWindow <= 0 {
		c.HealthWindow = 60 * time.Second
	}
}

func (c Config) has(filter string) bool {
	for _, f := range c.Filters {
		if f == filter {
			return true
		}
	}
	return false
}

type subscribeRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// Listener maintains the WebSocket session. Run reconnects until ctx is
// cancelled or Stop is called, and closes the broadcaster on exit.
type Listener struct {
	cfg    Config
	out    *Broadcaster[domain.Candidate]
	dialer websocket.Dialer
	logger *slog.Logger

	onPublish func(domain.CandidateSource)

	stop     chan struct{}
	stopOnce sync.Once

	writeMu sync.Mutex

	// Per-session subscription bookkeeping for account notifications.
	subMu    sync.Mutex
	pending  map[uint64]string
	accounts map[uint64]string

	messages   atomic.Uint64
	candidates atomic.Uint64
	malformed  atomic.Uint64
	reconnects atomic.Uint64
	errCount   atomic.Uint64
	lastActive atomic.Int64
}

// New creates a Listener. Nothing is dialled until Run.
func New(cfg Config, logger *slog.Logger) *Listener {
	cfg.applyDefaults()
	return &Listener{
		cfg:      cfg,
		out:      NewBroadcaster[domain.Candidate](cfg.Capacity),
		dialer:   websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		logger:   logger.With(slog.String("component", "listener")),
		stop:     make(chan struct{}),
		pending:  make(map[uint64]string),
		accounts: make(map[uint64]string),
	}
}

// Subscribe returns a new reader of the candidate stream.
func (l *Listener) Subscribe() *Subscription[domain.Candidate] {
	return l.out.Subscribe()
}

// OnPublish registers fn to observe every published candidate. It must be
// called before Run.
func (l *Listener) OnPublish(fn func(domain.CandidateSource)) {
	l.onPublish = fn
}

// Publish injects a candidate into the stream. Used for replay and tests.
func (l *Listener) Publish(c domain.Candidate) {
	l.candidates.Add(1)
	if l.onPublish != nil {
		l.onPublish(c.Source)
	}
	l.out.Publish(c)
}

// Run connects and streams until ctx is done or Stop is called. A dropped
// connection is retried after the reconnect delay.
func (l *Listener) Run(ctx context.Context) error {
	defer l.out.Close()

	l.logger.Info("listener starting",
		slog.String("endpoint", l.cfg.Endpoint),
		slog.Int("programs", len(l.cfg.Programs)),
		slog.Int("accounts", len(l.cfg.Accounts)),
	)
	for {
		err := l.session(ctx)
		if l.stopped(ctx) {
			l.logger.Info("listener stopped")
			return nil
		}
		l.errCount.Add(1)
		l.reconnects.Add(1)
		l.logger.Warn("websocket disconnected, reconnecting",
			slog.Any("error", err),
			slog.Duration("backoff", l.cfg.ReconnectDelay),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-l.stop:
			return nil
		case <-time.After(l.cfg.ReconnectDelay):
		}
	}
}

func (l *Listener) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-l.stop:
		return true
	default:
		return false
	}
}

// Stop ends Run. It is safe to call more than once.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Listener) session(ctx context.Context) error {
	conn, _, err := l.dialer.DialContext(ctx, l.cfg.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("listener: dial: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-l.stop:
		case <-done:
		}
		conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go l.pingLoop(conn, done)

	l.resetSubscriptions()
	if err := l.subscribe(ctx, conn); err != nil {
		return err
	}
	l.touch()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("listener: read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		l.handle(data)
	}
}

func (l *Listener) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			l.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			l.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (l *Listener) requests() []subscribeRequest {
	var id uint64
	next := func() uint64 { id++; return id }

	var reqs []subscribeRequest
	if l.cfg.has(FilterLogs) {
		for _, p := range l.cfg.Programs {
			reqs = append(reqs, subscribeRequest{
				JSONRPC: "2.0", ID: next(), Method: "logsSubscribe",
				Params: []any{
					map[string]any{"mentions": []string{p}},
					map[string]any{"commitment": l.cfg.Commitment},
				},
			})
		}
	}
	if l.cfg.has(FilterProgram) {
		for _, p := range l.cfg.Programs {
			reqs = append(reqs, subscribeRequest{
				JSONRPC: "2.0", ID: next(), Method: "programSubscribe",
				Params: []any{
					p,
					map[string]any{"commitment": l.cfg.Commitment, "encoding": "base64"},
				},
			})
		}
	}
	for _, a := range l.cfg.Accounts {
		reqs = append(reqs, subscribeRequest{
			JSONRPC: "2.0", ID: next(), Method: "accountSubscribe",
			Params: []any{
				a,
				map[string]any{"commitment": l.cfg.Commitment, "encoding": "base64"},
			},
		})
	}
	return reqs
}

func (l *Listener) subscribe(ctx context.Context, conn *websocket.Conn) error {
	reqs := l.requests()
	for i, req := range reqs {
		if req.Method == "accountSubscribe" {
			l.subMu.Lock()
			l.pending[req.ID] = req.Params[0].(string)
			l.subMu.Unlock()
		}

		l.writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := conn.WriteJSON(req)
		l.writeMu.Unlock()
		if err != nil {
			return fmt.Errorf("listener: %s: %w", req.Method, err)
		}

		if i < len(reqs)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.cfg.SubscribeInterval):
			}
		}
	}
	l.logger.Info("subscriptions sent", slog.Int("count", len(reqs)))
	return nil
}

func (l *Listener) resetSubscriptions() {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	clear(l.pending)
	clear(l.accounts)
}

func (l *Listener) handle(data []byte) {
	l.messages.Add(1)
	l.touch()

	var msg rpcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		l.malformed.Add(1)
		return
	}

	if msg.Method == "" {
		l.handleAck(msg)
		return
	}

	cand, err := parseNotification(msg, time.Now(), l.resolveAccount)
	if err != nil {
		l.malformed.Add(1)
		l.logger.Debug("dropping notification", slog.String("error", err.Error()))
		return
	}
	if cand == nil {
		return
	}
	l.Publish(*cand)
}

func (l *Listener) handleAck(msg rpcMessage) {
	if msg.ID == nil {
		l.malformed.Add(1)
		return
	}
	if msg.Error != nil {
		l.errCount.Add(1)
		l.logger.Warn("subscription rejected",
			slog.Uint64("id", *msg.ID),
			slog.Int("code", msg.Error.Code),
			slog.String("message", msg.Error.Message),
		)
		return
	}

	l.subMu.Lock()
	defer l.subMu.Unlock()
	pubkey, ok := l.pending[*msg.ID]
	if !ok {
		return
	}
	delete(l.pending, *msg.ID)
	var subID uint64
	if err := json.Unmarshal(msg.Result, &subID); err != nil {
		l.malformed.Add(1)
		return
	}
	l.accounts[subID] = pubkey
}

func (l *Listener) resolveAccount(sub uint64) string {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	return l.accounts[sub]
}

func (l *Listener) touch() {
	l.lastActive.Store(time.Now().UnixNano())
}

// Statistics returns the listener counters.
func (l *Listener) Statistics() domain.ListenerStats {
	return domain.ListenerStats{
		Messages:    l.messages.Load(),
		Candidates:  l.candidates.Load(),
		Malformed:   l.malformed.Load(),
		Reconnects:  l.reconnects.Load(),
		Errors:      l.errCount.Load(),
		Subscribers: l.out.Subscribers(),
	}
}

// HealthCheck reports healthy while a message was seen within the health
// window.
func (l *Listener) HealthCheck() domain.ComponentHealth {
	var last time.Time
	if ns := l.lastActive.Load(); ns > 0 {
		last = time.Unix(0, ns)
	}
	healthy := !last.IsZero() && time.Since(last) < l.cfg.HealthWindow
	msg := "Mempool listener active"
	if !healthy {
		msg = "Mempool listener inactive"
	}
	return domain.ComponentHealth{
		Healthy:       healthy,
		LastActive:    last,
		ErrorCount:    l.errCount.Load(),
		StatusMessage: msg,
	}
}

// IsLagged reports whether err is a lag notification from Recv.
func IsLagged(err error) (uint64, bool) {
	var lag *LaggedError
	if errors.As(err, &lag) {
		return lag.Missed, true
	}
	return 0, false
}
