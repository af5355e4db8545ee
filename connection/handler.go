package connection

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/skyezerfox/headsync/protocol"
)

// Handler owns one accepted connection end to end: the join handshake,
// the receive loop, and the write pump draining the send queue.
type Handler struct {
	manager *Manager
	conn    net.Conn
	fr      *protocol.FrameReader

	id   uuid.UUID
	name string

	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

// ID returns the player id assigned at join time.
func (h *Handler) ID() uuid.UUID {
	return h.id
}

// Handle runs the session until the peer leaves, errors out, or times
// out. It must run in its own goroutine; it spawns the write pump itself.
func (h *Handler) Handle() {
	if err := h.join(); err != nil {
		log.Warn().Err(err).Str("addr", h.conn.RemoteAddr().String()).Msg("Join failed")
		h.teardown()
		return
	}
	go h.writePump()
	h.readLoop()
	h.teardown()
}

func (h *Handler) readLoop() {
	idle := h.manager.cfg.IdleTimeout
	for {
		if idle > 0 {
			_ = h.conn.SetReadDeadline(time.Now().Add(idle))
		}
		msg, err := h.fr.Read()
		if err != nil {
			switch {
			case protocol.IsProtocolError(err):
				log.Warn().Err(err).Str("username", h.name).Msg("Dropping connection on protocol error")
			case errors.Is(err, io.EOF):
				log.Info().Str("username", h.name).Msg("Disconnected")
			default:
				log.Info().Err(err).Str("username", h.name).Msg("Connection lost")
			}
			return
		}

		switch m := msg.(type) {
		case protocol.PoseUpdate:
			if !m.Pose.Finite() {
				log.Warn().Str("username", h.name).Msg("Ignoring non-finite pose")
				continue
			}
			h.manager.store.Upsert(h.id, m.Pose)
		case protocol.Leave:
			log.Info().Str("username", h.name).Msg("Player left")
			return
		default:
			log.Debug().Int32("tag", msg.Tag()).Str("username", h.name).Msg("Ignoring unexpected message")
		}
	}
}

// teardown releases everything exactly once: the player record, the
// registry slot, the write pump, and the socket. Other clients stop
// seeing this player on the next broadcast tick.
func (h *Handler) teardown() {
	h.closeOnce.Do(func() {
		h.manager.store.Remove(h.id)
		h.manager.remove(h)
		close(h.done)
		_ = h.conn.Close()
	})
}
