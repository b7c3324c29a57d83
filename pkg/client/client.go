package client

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	logpkg "github.com/opaline-ai/spyglass/pkg/log"
)

// State is the connection lifecycle state.
type State int32

// Connection states. Offline is reached only through explicit Close or
// the post-grace teardown; transport failures go through Reconnecting.
const (
	StateOffline State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Callbacks are one subscriber's handlers. Any field may be nil.
type Callbacks struct {
	OnLog         func(LogRecord)
	OnLogBatch    func([]LogRecord)
	OnTelemetry   func(TelemetrySnapshot)
	OnTrace       func(TraceEntry)
	OnUpdate      func(updates []json.RawMessage)
	OnError       func(error)
	OnStateChange func(State)
}

// Options configures a Client. URL is required; everything else has a
// default.
type Options struct {
	URL            string
	Logger         logpkg.Logger
	Dialer         *websocket.Dialer
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Grace          time.Duration
	CoalesceWindow time.Duration
	PingInterval   time.Duration
}

// Client multiplexes one websocket across any number of subscribers.
// The connection is dialed when the first subscriber arrives and torn
// down a grace period after the last one leaves, so components that
// subscribe and unsubscribe in quick succession reuse the live
// connection instead of churning.
type Client struct {
	opts   Options
	logger logpkg.Logger
	disp   *dispatcher

	state    atomic.Int32
	lastPong atomic.Int64

	mu     sync.Mutex
	subs   map[int]Callbacks
	nextID int
	grace  *time.Timer
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// New constructs a Client. No connection is made until Subscribe.
func New(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.ErrorLevel))
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.Grace <= 0 {
		opts.Grace = 5 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 15 * time.Second
	}
	c := &Client{
		opts:   opts,
		logger: opts.Logger.With(logpkg.Component("client")),
		subs:   map[int]Callbacks{},
	}
	c.disp = newDispatcher(c, c.logger, opts.CoalesceWindow)
	c.state.Store(int32(StateOffline))
	return c
}

// State returns the current connection state.
func (c *Client) State() State { return State(c.state.Load()) }

// LastPong returns when the server last answered a ping, or the zero
// time before the first pong.
func (c *Client) LastPong() time.Time {
	ms := c.lastPong.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Subscribe registers callbacks and returns an unsubscribe function.
// The first subscriber triggers the dial; a subscriber arriving within
// the grace window after the last departure cancels the pending
// teardown and reuses the connection. Subscribe on a closed client is
// a no-op.
func (c *Client) Subscribe(cb Callbacks) (unsubscribe func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return func() {}
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = cb
	if c.grace != nil {
		c.grace.Stop()
		c.grace = nil
	}
	var (
		ctx  context.Context
		done chan struct{}
	)
	start := c.cancel == nil
	if start {
		ctx, c.cancel = context.WithCancel(context.Background())
		done = make(chan struct{})
		c.done = done
	}
	c.mu.Unlock()

	if start {
		go c.run(ctx, done)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			if len(c.subs) == 0 && c.cancel != nil && !c.closed && c.grace == nil {
				c.grace = time.AfterFunc(c.opts.Grace, c.teardownAfterGrace)
			}
		})
	}
}

// teardownAfterGrace fires when the grace window elapses with no
// subscribers. A subscriber that arrived in the meantime aborts it.
func (c *Client) teardownAfterGrace() {
	c.mu.Lock()
	c.grace = nil
	if len(c.subs) > 0 || c.cancel == nil {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	c.logger.Debug("grace elapsed, releasing connection")
	cancel()
	<-done
}

// Close tears the connection down immediately and marks the client
// terminal. Pending backoff and grace timers are cancelled.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	if c.grace != nil {
		c.grace.Stop()
		c.grace = nil
	}
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.subs = map[int]Callbacks{}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	c.setState(StateOffline)
}

func (c *Client) subscribers() []Callbacks {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Callbacks, 0, len(c.subs))
	for _, cb := range c.subs {
		out = append(out, cb)
	}
	return out
}

func (c *Client) pongReceived() {
	c.lastPong.Store(time.Now().UnixMilli())
}

func (c *Client) setState(s State) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	c.logger.Debug("state change", logpkg.Str("state", s.String()))
	for _, cb := range c.subscribers() {
		if cb.OnStateChange != nil {
			cb.OnStateChange(s)
		}
	}
}

// run is the reconnection loop: dial, serve until the transport drops,
// back off, repeat. Exits only on context cancellation.
func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer c.disp.stop()
	defer c.setState(StateOffline)

	attempt := 0
	for {
		c.setState(StateConnecting)
		ws, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !c.waitBackoff(ctx, attempt, err) {
				return
			}
			attempt++
			continue
		}
		c.setState(StateConnected)
		attempt = 0
		c.serve(ctx, ws)
		if ctx.Err() != nil {
			return
		}
		if !c.waitBackoff(ctx, attempt, nil) {
			return
		}
		attempt++
	}
}

// waitBackoff enters Reconnecting and sleeps the jittered delay for
// this attempt. Returns false when cancelled mid-wait.
func (c *Client) waitBackoff(ctx context.Context, attempt int, cause error) bool {
	c.setState(StateReconnecting)
	delay := backoff(attempt, c.opts.BaseDelay, c.opts.MaxDelay)
	if cause != nil {
		c.logger.Debug("dial failed, backing off",
			logpkg.Err(cause), logpkg.Int("attempt", attempt), logpkg.Dur("delay", delay))
	} else {
		c.logger.Debug("connection lost, backing off",
			logpkg.Int("attempt", attempt), logpkg.Dur("delay", delay))
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// serve reads the established connection until it fails, keeping it
// alive with periodic JSON pings. Returns once the transport is gone.
func (c *Client) serve(ctx context.Context, ws *websocket.Conn) {
	c.pongReceived()
	readDone := make(chan struct{})

	// Closing the socket is what unblocks the read loop on cancel.
	go func() {
		select {
		case <-ctx.Done():
		case <-readDone:
		}
		_ = ws.Close()
	}()

	go func() {
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-readDone:
				return
			case <-ticker.C:
				_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := ws.WriteMessage(websocket.TextMessage, pingFrame()); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			break
		}
		ev, err := decodeEnvelope(raw)
		if err != nil {
			c.logger.Warn("discarding malformed frame", logpkg.Err(err))
			continue
		}
		c.disp.dispatch(ev)
	}
	close(readDone)
}
