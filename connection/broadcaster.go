package connection

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skyezerfox/headsync/models"
	"github.com/skyezerfox/headsync/protocol"
	"github.com/skyezerfox/headsync/store"
)

// Broadcaster periodically serializes the store into a Snapshot frame and
// fans it out to every handler's send queue. A fixed tick bounds outbound
// bandwidth regardless of how fast clients send; ticks where nothing
// changed send nothing.
type Broadcaster struct {
	store   *store.Store
	manager *Manager

	interval    time.Duration
	excludeSelf bool
	lastGen     uint64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewBroadcaster builds a broadcaster over the manager's store using the
// manager's tick rate and self-exclusion policy.
func NewBroadcaster(st *store.Store, m *Manager) *Broadcaster {
	cfg := m.Config()
	return &Broadcaster{
		store:       st,
		manager:     m,
		interval:    time.Second / time.Duration(cfg.TickRate),
		excludeSelf: cfg.ExcludeSelf,
		stop:        make(chan struct{}),
	}
}

// Run ticks until Stop. Run it in its own goroutine.
func (b *Broadcaster) Run() {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.Tick()
		case <-b.stop:
			return
		}
	}
}

func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() { close(b.stop) })
}

// Tick performs one fan-out pass. Exported so tests can drive broadcasts
// without waiting on the ticker.
func (b *Broadcaster) Tick() {
	gen := b.store.Generation()
	if gen == b.lastGen {
		return
	}
	b.lastGen = gen

	entries := b.store.Snapshot()
	if !b.excludeSelf {
		b.manager.Fanout(protocol.Encode(protocol.Snapshot{Entries: entries}))
		return
	}
	b.manager.FanoutFunc(func(id uuid.UUID) []byte {
		filtered := make([]models.PlayerState, 0, len(entries))
		for _, e := range entries {
			if e.ID != id {
				filtered = append(filtered, e)
			}
		}
		return protocol.Encode(protocol.Snapshot{Entries: filtered})
	})
}
