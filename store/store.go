// Package store holds the server's authoritative player state. It is the
// only structure mutated by multiple goroutines: every connection handler
// writes its own player's pose, the broadcaster reads all of them.
package store

import (
	"sync"

	"github.com/google/uuid"

	"github.com/skyezerfox/headsync/models"
)

// PlayerRecord is the authoritative state for one connected player. Seq
// increases by one for every accepted pose write.
type PlayerRecord struct {
	ID   uuid.UUID
	Pose models.Pose
	Seq  uint64
}

// Store maps player ids to their latest pose. The lock is held O(1) per
// operation and never across I/O; snapshots copy out under the lock so
// readers get a consistent point-in-time view.
type Store struct {
	mu      sync.Mutex
	players map[uuid.UUID]*PlayerRecord
	gen     uint64
}

func NewStore() *Store {
	return &Store{players: make(map[uuid.UUID]*PlayerRecord)}
}

// Upsert records the latest pose for id, inserting the record if it does
// not exist yet. Last write wins per id.
func (s *Store) Upsert(id uuid.UUID, pose models.Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.players[id]
	if !ok {
		rec = &PlayerRecord{ID: id}
		s.players[id] = rec
	}
	rec.Pose = pose
	rec.Seq++
	s.gen++
}

// Remove drops id's record. Removing an absent id is a no-op.
func (s *Store) Remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[id]; !ok {
		return
	}
	delete(s.players, id)
	s.gen++
}

// Snapshot returns a consistent copy of every player's latest pose.
func (s *Store) Snapshot() []models.PlayerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PlayerState, 0, len(s.players))
	for _, rec := range s.players {
		out = append(out, models.PlayerState{ID: rec.ID, Pose: rec.Pose})
	}
	return out
}

// Generation counts mutations. The broadcaster skips a tick when it has
// not moved since the previous one.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Seq returns the write count for id, or 0 when absent.
func (s *Store) Seq(id uuid.UUID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.players[id]; ok {
		return rec.Seq
	}
	return 0
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}
