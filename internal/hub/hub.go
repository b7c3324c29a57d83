package hub

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/opaline-ai/spyglass/internal/event"
	"github.com/opaline-ai/spyglass/pkg/id"
	logpkg "github.com/opaline-ai/spyglass/pkg/log"
)

// Options configures a Hub. Zero values fall back to defaults.
type Options struct {
	Logger            logpkg.Logger
	BufferCapacity    int
	HistorySize       int
	SendTimeout       time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	Metrics           *Metrics
}

// Hub is the diagnostics broadcaster: it owns the connection registry
// and fans submitted events out to every registered observer.
type Hub struct {
	logger logpkg.Logger

	bufCap            int
	sendTimeout       time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	mu     sync.Mutex
	conns  map[string]*Conn
	closed bool

	history *History
	ids     *id.Generator
	metrics *Metrics
}

// New constructs a Hub.
func New(opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.ErrorLevel))
	}
	if opts.BufferCapacity <= 0 {
		opts.BufferCapacity = 100
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 200
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 5 * time.Second
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 2 * time.Second
	}
	if opts.HeartbeatTimeout <= 0 {
		opts.HeartbeatTimeout = 3 * opts.HeartbeatInterval
	}
	return &Hub{
		logger:            opts.Logger.With(logpkg.Component("hub")),
		bufCap:            opts.BufferCapacity,
		sendTimeout:       opts.SendTimeout,
		heartbeatInterval: opts.HeartbeatInterval,
		heartbeatTimeout:  opts.HeartbeatTimeout,
		conns:             map[string]*Conn{},
		history:           NewHistory(opts.HistorySize),
		ids:               id.NewGenerator(),
		metrics:           opts.Metrics,
	}
}

// Submit accepts an event from any producer and fans it out. It never
// blocks on a slow consumer: a full buffer sheds its oldest entry
// instead. Events of log kinds are retained in the bounded history for
// the polled REST fallback.
func (h *Hub) Submit(ev *event.Event) {
	if ev == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = h.ids.Next().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	h.metrics.submitted(string(ev.Type))
	switch ev.Type {
	case event.TypeLog, event.TypeLogBatch:
		h.history.Append(ev)
	}
	h.broadcast(ev)
}

// broadcast copies current membership under the lock, releases it, then
// enqueues outside the lock. Holding the lock through the enqueue phase
// would let one stalled connection block registration and every later
// broadcast, which is exactly the failure this layout exists to avoid.
func (h *Hub) broadcast(ev *event.Event) {
	h.mu.Lock()
	targets := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if !c.filter.Match(ev) {
			continue
		}
		if c.enqueue(ev) {
			h.metrics.dropped()
			h.logger.Debug("buffer full, dropped oldest",
				logpkg.Str("conn", c.id), logpkg.Uint64("dropped_total", c.Dropped()))
		}
	}
}

// register adds the connection and starts its sender. A connection is in
// the registry exactly while its sender goroutine runs.
func (h *Hub) register(c *Conn) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.close()
		return false
	}
	h.conns[c.id] = c
	n := len(h.conns)
	h.mu.Unlock()

	h.metrics.connections(n)
	go c.writeLoop()
	h.logger.Info("observer connected", logpkg.Str("conn", c.id), logpkg.Int("connections", n))
	return true
}

// unregister removes the connection and tears it down. Removal happens
// before close so no new enqueue targets the connection, and the sender
// stops before any further transmission. Safe to call repeatedly.
func (h *Hub) unregister(connID string) {
	h.mu.Lock()
	c, ok := h.conns[connID]
	if ok {
		delete(h.conns, connID)
	}
	n := len(h.conns)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.close()
	h.metrics.connections(n)
	h.logger.Info("observer removed",
		logpkg.Str("conn", connID),
		logpkg.Uint64("dropped_total", c.Dropped()),
		logpkg.Int("connections", n))
}

// Snapshot returns a copy of current membership ordered by id.
func (h *Hub) Snapshot() []*Conn {
	h.mu.Lock()
	out := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		out = append(out, c)
	}
	h.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// History returns up to limit most recent retained log events,
// oldest first.
func (h *Hub) History(limit int) []*event.Event {
	return h.history.Recent(limit)
}

// attach registers a connection over an arbitrary transport and returns
// it. Exposed inside the package so tests can substitute transports.
func (h *Hub) attach(tr transport, filter *Filter) (*Conn, bool) {
	c := newConn(h, tr, filter, uuid.NewString())
	return c, h.register(c)
}

// ServeWS registers an upgraded websocket as an observer and blocks
// servicing its read side until the connection ends. filterExpr, when
// non-empty, is a CEL expression limiting which events this observer
// receives.
func (h *Hub) ServeWS(ws *websocket.Conn, filterExpr string) error {
	filter, err := NewFilter(filterExpr)
	if err != nil {
		_ = ws.Close()
		return err
	}
	var c *Conn
	tr := newWSTransport(ws, func() {
		if c != nil {
			c.touch()
		}
	})
	c, ok := h.attach(tr, filter)
	if !ok {
		return nil
	}
	c.readLoop()
	return nil
}

// Close evicts every connection and rejects new registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = map[string]*Conn{}
	h.mu.Unlock()

	for _, c := range conns {
		c.state.Store(int32(StateDraining))
		c.close()
	}
	h.metrics.connections(0)
}
