package connection

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skyezerfox/headsync/protocol"
	"github.com/skyezerfox/headsync/store"
)

// Config carries the server-side knobs. Zero values select defaults;
// IdleTimeout 0 disables the idle kick.
type Config struct {
	MaxPlayers    int
	TickRate      int
	ExcludeSelf   bool
	MaxFrameBytes int
	SendQueue     int
	JoinTimeout   time.Duration
	IdleTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = 100
	}
	if c.TickRate <= 0 {
		c.TickRate = 30
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = protocol.DefaultMaxFrameBytes
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 8
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = 5 * time.Second
	}
	return c
}

// Manager tracks every live handler for join/leave bookkeeping and
// broadcast fan-out.
type Manager struct {
	sync.Mutex
	handlers map[uuid.UUID]*Handler

	store *store.Store
	cfg   Config
}

// NewManager creates a manager over the given authoritative store.
func NewManager(st *store.Store, cfg Config) *Manager {
	return &Manager{
		handlers: make(map[uuid.UUID]*Handler),
		store:    st,
		cfg:      cfg.withDefaults(),
	}
}

// Config returns the manager's effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// NewHandler wraps an accepted connection. The caller runs Handle in its
// own goroutine.
func (m *Manager) NewHandler(conn net.Conn) *Handler {
	return &Handler{
		manager: m,
		conn:    conn,
		fr:      protocol.NewFrameReader(conn, m.cfg.MaxFrameBytes),
		send:    make(chan []byte, m.cfg.SendQueue),
		done:    make(chan struct{}),
	}
}

func (m *Manager) add(h *Handler) bool {
	m.Lock()
	defer m.Unlock()
	if len(m.handlers) >= m.cfg.MaxPlayers {
		return false
	}
	m.handlers[h.id] = h
	return true
}

func (m *Manager) remove(h *Handler) {
	m.Lock()
	defer m.Unlock()
	if cur, ok := m.handlers[h.id]; ok && cur == h {
		delete(m.handlers, h.id)
	}
}

// Count returns the number of joined players.
func (m *Manager) Count() int {
	m.Lock()
	defer m.Unlock()
	return len(m.handlers)
}

func (m *Manager) snapshotHandlers() []*Handler {
	m.Lock()
	defer m.Unlock()
	out := make([]*Handler, 0, len(m.handlers))
	for _, h := range m.handlers {
		out = append(out, h)
	}
	return out
}

// Fanout enqueues the same frame to every live handler. Closing handlers
// drop the enqueue silently; the caller never observes individual
// delivery failures.
func (m *Manager) Fanout(frame []byte) {
	for _, h := range m.snapshotHandlers() {
		h.Enqueue(frame)
	}
}

// FanoutFunc enqueues a per-recipient frame, used when snapshots exclude
// the recipient's own entry.
func (m *Manager) FanoutFunc(fn func(id uuid.UUID) []byte) {
	for _, h := range m.snapshotHandlers() {
		h.Enqueue(fn(h.id))
	}
}
