package game

import (
	"sync/atomic"
	"time"
)

// FighterSnapshot is an immutable copy of a fighter for rendering.
type FighterSnapshot struct {
	ID   FighterID `json:"id"`
	Name string    `json:"name"`
	Fighter
}

// MatchSnapshot is a complete read-only view of a match. It holds only
// value types, so a copy never aliases live match state.
type MatchSnapshot struct {
	Sequence   uint64    `json:"sequence"`   // Monotonic publish counter
	Timestamp  time.Time `json:"timestamp"`  // When the snapshot was published
	TickNumber uint64    `json:"tickNumber"` // Match tick this represents

	State      MatchState         `json:"state"`
	Winner     FighterID          `json:"winner"`
	WinnerName string             `json:"winnerName,omitempty"`
	Fighters   [2]FighterSnapshot `json:"fighters"`
	Pickup     Pickup             `json:"pickup"`
	Arena      Arena              `json:"arena"`
}

// Fighter returns the snapshot of one fighter.
func (s *MatchSnapshot) Fighter(id FighterID) FighterSnapshot {
	if !id.Valid() {
		return FighterSnapshot{}
	}
	return s.Fighters[id-1]
}

// SnapshotBuffer publishes snapshots from the tick goroutine to any number
// of readers without a lock. Readers always see a fully written snapshot.
type SnapshotBuffer struct {
	current  atomic.Pointer[MatchSnapshot]
	sequence atomic.Uint64
}

// NewSnapshotBuffer creates an empty buffer. Load returns a zero snapshot
// until the first Publish.
func NewSnapshotBuffer() *SnapshotBuffer {
	b := &SnapshotBuffer{}
	b.current.Store(&MatchSnapshot{})
	return b
}

// Publish stamps the snapshot and makes it the latest.
func (b *SnapshotBuffer) Publish(snap MatchSnapshot) {
	snap.Sequence = b.sequence.Add(1)
	snap.Timestamp = time.Now()
	b.current.Store(&snap)
}

// Load returns the latest snapshot. Callers must not modify it.
func (b *SnapshotBuffer) Load() *MatchSnapshot {
	return b.current.Load()
}
