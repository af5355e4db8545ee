package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/skyezerfox/headsync/constants"
	"github.com/skyezerfox/headsync/models"
	"github.com/skyezerfox/headsync/protocol"
	"github.com/skyezerfox/headsync/utils"
)

// join runs the handshake: read Join, allocate an id, insert the player
// record, reply JoinAck. Every failure path leaves cleanup to teardown.
func (h *Handler) join() error {
	cfg := h.manager.cfg

	_ = h.conn.SetReadDeadline(time.Now().Add(cfg.JoinTimeout))
	msg, err := h.fr.Read()
	if err != nil {
		return fmt.Errorf("read join: %w", err)
	}
	join, ok := msg.(protocol.Join)
	if !ok {
		return fmt.Errorf("expected join, got tag %d", msg.Tag())
	}
	if join.Version != constants.ProtocolVersion {
		return fmt.Errorf("peer speaks protocol %d, want %d", join.Version, constants.ProtocolVersion)
	}

	name := join.Name
	if name == "" {
		name = "head-" + utils.RandString(5)
	}

	h.id = uuid.New()
	h.name = name
	if !h.manager.add(h) {
		return errors.New("server is full")
	}
	h.manager.store.Upsert(h.id, models.IdentityPose())

	ack := protocol.Encode(protocol.JoinAck{
		PlayerID: h.id,
		TickHz:   int32(cfg.TickRate),
	})
	_ = h.conn.SetWriteDeadline(time.Now().Add(cfg.JoinTimeout))
	if _, err := h.conn.Write(ack); err != nil {
		return fmt.Errorf("write join ack: %w", err)
	}
	_ = h.conn.SetWriteDeadline(time.Time{})
	_ = h.conn.SetReadDeadline(time.Time{})

	log.Info().
		Str("username", h.name).
		Str("id", h.id.String()).
		Str("addr", h.conn.RemoteAddr().String()).
		Msg("Player joined")
	return nil
}
