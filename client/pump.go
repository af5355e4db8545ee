package client

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/skyezerfox/headsync/models"
	"github.com/skyezerfox/headsync/protocol"
)

// readLoop ingests snapshots until the connection dies.
func (s *Session) readLoop() {
	for {
		msg, err := s.fr.Read()
		if err != nil {
			s.fail(fmt.Errorf("receive: %w", err))
			return
		}
		if snap, ok := msg.(protocol.Snapshot); ok {
			s.applySnapshot(snap.Entries)
		}
	}
}

// sendLoop throttles pose updates to the tick rate and sweeps stale
// remote players. A dirty pose goes out on the next tick; an unchanged
// one is resent at the keepalive interval so the server's idle timeout
// never fires on a player who is merely standing still.
func (s *Session) sendLoop() {
	hz := s.opts.SendHz
	if hz <= 0 {
		hz = int(s.tickHz)
	}
	if hz <= 0 {
		hz = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()
	sweep := time.NewTicker(s.opts.StaleAfter / 2)
	defer sweep.Stop()

	lastSent := time.Now()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			pose, dirty := s.local, s.dirty
			s.dirty = false
			s.mu.Unlock()
			if !dirty && time.Since(lastSent) < s.opts.Keepalive {
				continue
			}
			if err := s.write(protocol.Encode(protocol.PoseUpdate{Pose: pose})); err != nil {
				s.fail(fmt.Errorf("send pose: %w", err))
				return
			}
			lastSent = time.Now()
		case <-sweep.C:
			s.evictStale()
		case <-s.done:
			return
		}
	}
}

// applySnapshot replaces the remote table with the snapshot's entries
// (minus the local player) and fires the render callback when the view
// actually changed.
func (s *Session) applySnapshot(entries []models.PlayerState) {
	now := time.Now()
	s.mu.Lock()
	changed := false
	next := make(map[uuid.UUID]RemotePlayer, len(entries))
	for _, e := range entries {
		if e.ID == s.id {
			continue
		}
		if prev, ok := s.remotes[e.ID]; !ok || prev.Pose != e.Pose {
			changed = true
		}
		next[e.ID] = RemotePlayer{ID: e.ID, Pose: e.Pose, LastSeen: now}
	}
	if len(next) != len(s.remotes) {
		changed = true
	}
	s.remotes = next
	var view []models.PlayerState
	if changed && s.opts.OnRemotePlayers != nil {
		view = s.viewLocked()
	}
	s.mu.Unlock()

	if view != nil {
		s.opts.OnRemotePlayers(view)
	}
}

// evictStale drops remote players unseen for StaleAfter. With snapshots
// flowing, absence alone removes a player; this covers the server going
// silent while the transport stays up.
func (s *Session) evictStale() {
	cutoff := time.Now().Add(-s.opts.StaleAfter)
	s.mu.Lock()
	changed := false
	for id, rp := range s.remotes {
		if rp.LastSeen.Before(cutoff) {
			delete(s.remotes, id)
			changed = true
		}
	}
	var view []models.PlayerState
	if changed && s.opts.OnRemotePlayers != nil {
		view = s.viewLocked()
	}
	s.mu.Unlock()

	if view != nil {
		s.opts.OnRemotePlayers(view)
	}
}
