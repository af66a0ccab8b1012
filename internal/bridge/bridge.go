// Package bridge owns the single outbound connection from a viewer process to
// the relay and routes inbound frames to handlers by message type.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Synthetic message types dispatched by the bridge itself.
const (
	TypeConnected    = "connected"
	TypeDisconnected = "disconnected"
	TypeUnknown      = "unknown"
	// Wildcard handlers receive every frame after the type-specific ones.
	Wildcard = "*"
)

// DefaultRetryDelay is the fixed wait between connection attempts.
const DefaultRetryDelay = 3 * time.Second

type State int

const (
	Disconnected State = iota
	Connecting
	Live
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Live:
		return "live"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Message is one inbound frame. Data holds the full JSON object.
type Message struct {
	Type string
	Data json.RawMessage
}

// Decode unmarshals the frame into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

type Handler func(Message)

// Option configures a Bridge.
type Option func(*Bridge)

// WithRetryDelay overrides DefaultRetryDelay.
func WithRetryDelay(d time.Duration) Option {
	return func(b *Bridge) { b.retryDelay = d }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(b *Bridge) { b.dialer = d }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// Bridge is explicitly constructed and shared by reference between every
// consumer that needs relay traffic. Handlers run sequentially on the
// bridge's own goroutine, in registration order.
type Bridge struct {
	url        string
	retryDelay time.Duration
	dialer     *websocket.Dialer
	logger     *slog.Logger

	hmu      sync.RWMutex
	handlers map[string][]Handler

	mu     sync.Mutex
	state  State
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

func New(url string, opts ...Option) *Bridge {
	b := &Bridge{
		url:        url,
		retryDelay: DefaultRetryDelay,
		dialer:     websocket.DefaultDialer,
		logger:     slog.Default(),
		handlers:   make(map[string][]Handler),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// On registers h for typ (or Wildcard). Returns b for chaining.
func (b *Bridge) On(typ string, h Handler) *Bridge {
	b.hmu.Lock()
	defer b.hmu.Unlock()
	b.handlers[typ] = append(b.handlers[typ], h)
	return b
}

// State returns the current connection state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Start begins connecting in the background. Calling Start on a running
// bridge is a no-op.
func (b *Bridge) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	b.state = Connecting
	go b.run(ctx, b.done)
}

// Stop closes the connection and waits for the run loop to exit. Idempotent.
func (b *Bridge) Stop() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	if cancel == nil {
		b.mu.Unlock()
		return
	}
	b.cancel = nil
	// Cancel under mu so session either sees ctx done or has already
	// published its conn.
	cancel()
	conn := b.conn
	b.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	<-done
	b.setState(Disconnected)
}

func (b *Bridge) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		b.setState(Connecting)
		b.session(ctx)
		if ctx.Err() != nil {
			return
		}
		b.logger.Debug("bridge: retrying", "in", b.retryDelay)
		t := time.NewTimer(b.retryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// session runs one connection attempt to completion.
func (b *Bridge) session(ctx context.Context) {
	conn, _, err := b.dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		b.logger.Debug("bridge: dial failed", "url", b.url, "err", err)
		return
	}
	b.mu.Lock()
	if ctx.Err() != nil {
		b.mu.Unlock()
		conn.Close()
		return
	}
	b.conn = conn
	b.mu.Unlock()

	// Unblock ReadMessage when ctx ends, whether by Stop or the parent.
	sessionDone := make(chan struct{})
	defer close(sessionDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-sessionDone:
		}
	}()

	b.logger.Info("bridge: connected", "url", b.url)
	b.dispatch(Message{Type: TypeConnected, Data: json.RawMessage(`{}`)})

	live := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		msg, ok := parse(data)
		if !ok {
			continue
		}
		if !live {
			live = true
			b.setState(Live)
		}
		b.dispatch(msg)
	}

	b.mu.Lock()
	b.conn = nil
	b.mu.Unlock()
	conn.Close()

	if ctx.Err() != nil {
		return
	}
	b.setState(Connecting)
	b.logger.Info("bridge: disconnected", "retry", b.retryDelay)
	b.dispatch(Message{Type: TypeDisconnected, Data: json.RawMessage(`{}`)})
}

func parse(data []byte) (Message, bool) {
	var env struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, false
	}
	typ := TypeUnknown
	if env.Type != nil && *env.Type != "" {
		typ = *env.Type
	}
	return Message{Type: typ, Data: json.RawMessage(data)}, true
}

// dispatch calls the handlers for msg.Type and then the wildcard handlers.
func (b *Bridge) dispatch(msg Message) {
	b.hmu.RLock()
	exact := append([]Handler(nil), b.handlers[msg.Type]...)
	wild := append([]Handler(nil), b.handlers[Wildcard]...)
	b.hmu.RUnlock()

	for _, h := range exact {
		b.call(h, msg)
	}
	for _, h := range wild {
		b.call(h, msg)
	}
}

// call isolates a handler panic so sibling handlers still run.
func (b *Bridge) call(h Handler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("bridge: handler panicked", "type", msg.Type, "panic", r)
		}
	}()
	h(msg)
}

func (b *Bridge) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// Dispatch delivers msg to handlers as if it had arrived on the wire.
// Used in tests only.
func (b *Bridge) Dispatch(msg Message) {
	b.dispatch(msg)
}
