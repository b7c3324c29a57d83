package hub

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opaline-ai/spyglass/internal/event"
	logpkg "github.com/opaline-ai/spyglass/pkg/log"
)

// State is the lifecycle state of a connection.
type State int32

// Connection states.
const (
	StateActive State = iota
	StateDraining
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// errBadMessage marks an inbound frame that failed to decode. The read
// loop logs and skips these; only real transport errors tear down the
// connection.
var errBadMessage = errors.New("malformed message")

// transport abstracts the wire so tests can stand in for a websocket.
type transport interface {
	WriteMessage(b []byte, deadline time.Time) error
	Ping(deadline time.Time) error
	ReadMessage() ([]byte, error)
	Close() error
}

// Conn is one registered observer. The outbound buffer is owned by the
// connection: the broadcast path enqueues under the connection's own
// lock (making drop-oldest atomic) and the sender goroutine is the sole
// consumer.
type Conn struct {
	id     string
	tr     transport
	filter *Filter

	mu  sync.Mutex
	out chan *event.Event

	state         atomic.Int32
	dropped       atomic.Uint64
	lastHeartbeat atomic.Int64 // unix ms

	closeOnce sync.Once
	done      chan struct{}

	sendTimeout time.Duration
	hub         *Hub
}

func newConn(h *Hub, tr transport, filter *Filter, id string) *Conn {
	c := &Conn{
		id:          id,
		tr:          tr,
		filter:      filter,
		out:         make(chan *event.Event, h.bufCap),
		done:        make(chan struct{}),
		sendTimeout: h.sendTimeout,
		hub:         h,
	}
	c.state.Store(int32(StateActive))
	c.lastHeartbeat.Store(time.Now().UnixMilli())
	return c
}

// ID returns the opaque connection id.
func (c *Conn) ID() string { return c.id }

// State returns the current lifecycle state.
func (c *Conn) State() State { return State(c.state.Load()) }

// Dropped returns how many events drop-oldest has discarded.
func (c *Conn) Dropped() uint64 { return c.dropped.Load() }

// Queued returns the current outbound buffer depth.
func (c *Conn) Queued() int { return len(c.out) }

// LastHeartbeat returns the last liveness signal time.
func (c *Conn) LastHeartbeat() time.Time {
	return time.UnixMilli(c.lastHeartbeat.Load())
}

func (c *Conn) touch() { c.lastHeartbeat.Store(time.Now().UnixMilli()) }

// enqueue places ev in the outbound buffer, evicting the oldest buffered
// event when full. Returns whether an eviction happened. Enqueue on a
// closed connection is a no-op.
func (c *Conn) enqueue(ev *event.Event) (dropped bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State() == StateClosed {
		return false
	}
	select {
	case c.out <- ev:
		return false
	default:
	}
	// Buffer full: discard the oldest, keep the newest. Recency beats
	// completeness for a live diagnostics stream.
	select {
	case <-c.out:
	default:
	}
	select {
	case c.out <- ev:
	default:
	}
	c.dropped.Add(1)
	return true
}

// writeLoop drains the buffer and transmits with a bounded deadline.
// Any write failure closes the connection; other connections are
// unaffected.
func (c *Conn) writeLoop() {
	defer c.hub.unregister(c.id)
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.out:
			b, err := ev.Encode()
			if err != nil {
				c.hub.logger.Warn("dropping unencodable event",
					logpkg.Str("conn", c.id), logpkg.Str("type", string(ev.Type)), logpkg.Err(err))
				continue
			}
			if err := c.tr.WriteMessage(b, time.Now().Add(c.sendTimeout)); err != nil {
				if c.State() != StateClosed {
					c.hub.logger.Debug("send failed, closing connection",
						logpkg.Str("conn", c.id), logpkg.Err(err))
				}
				return
			}
		}
	}
}

// readLoop consumes inbound frames. Observers are read-mostly: the only
// meaningful inbound message is a JSON ping, answered with a pong event
// on this connection alone (browser clients cannot observe websocket
// control frames). Malformed frames are logged and skipped.
func (c *Conn) readLoop() {
	defer c.hub.unregister(c.id)
	for {
		raw, err := c.tr.ReadMessage()
		if err != nil {
			if c.State() != StateClosed {
				c.hub.logger.Debug("observer disconnected",
					logpkg.Str("conn", c.id), logpkg.Err(err))
			}
			return
		}
		ev, err := event.Decode(raw)
		if err != nil {
			c.hub.logger.Warn("discarding malformed frame",
				logpkg.Str("conn", c.id), logpkg.Err(err))
			continue
		}
		switch ev.Type {
		case event.TypePing:
			c.touch()
			c.enqueue(event.NewPong())
		default:
			// Observers do not publish; anything else is ignored.
		}
	}
}

// close transitions to closed, stops the sender, and releases the
// transport. Safe to call repeatedly.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)
		_ = c.tr.Close()
	})
}

// wsTransport adapts a gorilla websocket connection.
type wsTransport struct {
	ws *websocket.Conn
}

func newWSTransport(ws *websocket.Conn, onPong func()) *wsTransport {
	ws.SetPongHandler(func(string) error {
		onPong()
		return nil
	})
	return &wsTransport{ws: ws}
}

func (t *wsTransport) WriteMessage(b []byte, deadline time.Time) error {
	_ = t.ws.SetWriteDeadline(deadline)
	return t.ws.WriteMessage(websocket.TextMessage, b)
}

func (t *wsTransport) Ping(deadline time.Time) error {
	return t.ws.WriteControl(websocket.PingMessage, nil, deadline)
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, b, err := t.ws.ReadMessage()
	return b, err
}

func (t *wsTransport) Close() error { return t.ws.Close() }
