package game

import (
	"log"
	"math/rand"
	"sync"
)

// MatchState is the lifecycle phase of a match.
type MatchState uint8

const (
	Idle MatchState = iota
	Running
	Finished
)

// String returns the wire name of the state.
func (s MatchState) String() string {
	switch s {
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return "idle"
	}
}

// MarshalText encodes the state as its wire name.
func (s MatchState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TickResult reports what one simulation step did.
type TickResult struct {
	Ticked   bool      // false when the match was not running
	Tick     uint64    // tick number after the step
	Finished bool      // the match ended during this step
	Winner   FighterID // set when Finished
	Damage   [2]int    // damage taken by P1 and P2
	Healed   [2]bool   // pickup collected by P1 and P2
}

// EventSink receives match events. *EventLog implements it.
type EventSink interface {
	EmitSimple(eventType EventType, tickNum uint64, fighter string, payload interface{}) bool
}

// Match owns both fighters and the pickup. All mutation goes through its
// methods, which are serialized by a single mutex so an intent can never
// land in the middle of a tick.
type Match struct {
	mu sync.Mutex

	arena    Arena
	rng      *rand.Rand
	state    MatchState
	fighters [2]Fighter
	pickup   Pickup
	winner   FighterID

	tickCount uint64

	events    EventSink
	snapshots *SnapshotBuffer
}

// NewMatch creates an idle match. The rng drives pickup placement and is
// owned by the match from here on. An arena too small for a full-health
// fighter is grown to fit one.
func NewMatch(arena Arena, rng *rand.Rand) *Match {
	if fit := arena.Fit(); fit != arena {
		log.Printf("⚠️ Arena %.0fx%.0f is smaller than a fighter, using %.0fx%.0f",
			arena.Width, arena.Height, fit.Width, fit.Height)
		arena = fit
	}
	m := &Match{
		arena:     arena,
		rng:       rng,
		snapshots: NewSnapshotBuffer(),
	}
	m.resetLocked()
	m.publishLocked()
	return m
}

// SetEventSink attaches an event sink. Pass nil to detach.
func (m *Match) SetEventSink(sink EventSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = sink
}

// Arena returns the play field.
func (m *Match) Arena() Arena {
	return m.arena
}

// State returns the current lifecycle phase.
func (m *Match) State() MatchState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start moves an idle match to Running. It reports whether the transition
// happened; a running or finished match is left untouched.
func (m *Match) Start() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Idle {
		return false
	}
	m.state = Running
	m.emit(EventTypeMatchStart, "", MatchPayload{State: m.state.String()})
	m.publishLocked()

	log.Printf("🥊 Match started")
	return true
}

// Reset returns the match to Idle from any state: fresh fighters, a new
// random pickup and no winner.
func (m *Match) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetLocked()
	m.emit(EventTypeMatchReset, "", PickupPayload{X: m.pickup.Position.X, Y: m.pickup.Position.Y})
	m.publishLocked()

	log.Printf("🔄 Match reset")
}

func (m *Match) resetLocked() {
	m.state = Idle
	m.winner = NoFighter
	m.tickCount = 0
	m.fighters = initialFighters()
	for i := range m.fighters {
		m.fighters[i].Position = m.arena.Clamp(m.fighters[i].Position, m.fighters[i].Size)
	}
	m.pickup = SpawnPickup(m.arena, m.rng)
}

// SetIntent replaces a fighter's heading and guard.
func (m *Match) SetIntent(id FighterID, direction Vector2, orientation Orientation) error {
	return m.ApplyIntent(id, Intent{Direction: direction, Orientation: orientation})
}

// ApplyIntent replaces a fighter's heading and guard as one unit. Invalid
// input is rejected and the previous intent stays in effect. Input is only
// accepted while the match is running.
func (m *Match) ApplyIntent(id FighterID, in Intent) error {
	if !id.Valid() {
		return ErrUnknownFighter
	}
	if err := in.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Running {
		return ErrMatchNotRunning
	}
	f := &m.fighters[id-1]
	f.Direction = in.Direction
	f.Orientation = in.Orientation
	return nil
}

// Tick runs one fixed-order simulation step: move P1, move P2, resolve
// combat, P1 then P2 against the pickup, then check for a knockout.
// It does nothing unless the match is running.
func (m *Match) Tick() TickResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Running {
		return TickResult{Tick: m.tickCount, Winner: m.winner}
	}

	m.tickCount++
	res := TickResult{Ticked: true, Tick: m.tickCount}

	p1 := Advance(m.fighters[0], m.arena)
	p2 := Advance(m.fighters[1], m.arena)

	d1, d2 := ResolveCombat(p1, p2)
	if d1 > 0 {
		p1.setHealth(p1.Health-d1, m.arena)
		m.emit(EventTypeDamage, P1.String(), DamagePayload{Victim: P1.String(), Damage: d1, Health: p1.Health})
	}
	if d2 > 0 {
		p2.setHealth(p2.Health-d2, m.arena)
		m.emit(EventTypeDamage, P2.String(), DamagePayload{Victim: P2.String(), Damage: d2, Health: p2.Health})
	}
	res.Damage = [2]int{d1, d2}

	// P2 is tested against wherever P1's collection moved the pickup.
	var healed bool
	p1, m.pickup, healed = CollectPickup(p1, m.pickup, m.arena, m.rng)
	if healed {
		res.Healed[0] = true
		m.emitHeal(P1, p1)
	}
	p2, m.pickup, healed = CollectPickup(p2, m.pickup, m.arena, m.rng)
	if healed {
		res.Healed[1] = true
		m.emitHeal(P2, p2)
	}

	m.fighters = [2]Fighter{p1, p2}

	if m.tickCount%60 == 0 {
		m.emit(EventTypeTick, "", TickPayload{P1Health: p1.Health, P2Health: p2.Health})
	}

	// P1 is checked first, so a double knockout goes to P2.
	switch {
	case p1.IsDead():
		m.finishLocked(P2)
	case p2.IsDead():
		m.finishLocked(P1)
	}
	if m.state == Finished {
		res.Finished = true
		res.Winner = m.winner
	}

	m.publishLocked()
	return res
}

func (m *Match) finishLocked(winner FighterID) {
	m.state = Finished
	m.winner = winner
	m.emit(EventTypeMatchFinish, winner.String(), FinishPayload{
		Winner:   winner.String(),
		Ticks:    m.tickCount,
		P1Health: m.fighters[0].Health,
		P2Health: m.fighters[1].Health,
	})
	log.Printf("🏆 %s wins after %d ticks", winner, m.tickCount)
}

func (m *Match) emitHeal(id FighterID, f Fighter) {
	m.emit(EventTypeHeal, id.String(), HealPayload{Fighter: id.String(), Amount: HealthBoost, Health: f.Health})
	m.emit(EventTypePickupRespawn, "", PickupPayload{X: m.pickup.Position.X, Y: m.pickup.Position.Y})
}

func (m *Match) emit(eventType EventType, fighter string, payload interface{}) {
	if m.events == nil {
		return
	}
	m.events.EmitSimple(eventType, m.tickCount, fighter, payload)
}

// Fighter returns a copy of one fighter.
func (m *Match) Fighter(id FighterID) (Fighter, bool) {
	if !id.Valid() {
		return Fighter{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fighters[id-1], true
}

// Snapshot returns a consistent copy of the whole match taken under the lock.
func (m *Match) Snapshot() MatchSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Latest returns the most recently published snapshot without locking.
// It is refreshed after every tick and every lifecycle change.
func (m *Match) Latest() *MatchSnapshot {
	return m.snapshots.Load()
}

func (m *Match) publishLocked() {
	m.snapshots.Publish(m.snapshotLocked())
}

func (m *Match) snapshotLocked() MatchSnapshot {
	snap := MatchSnapshot{
		TickNumber: m.tickCount,
		State:      m.state,
		Winner:     m.winner,
		WinnerName: m.winner.String(),
		Pickup:     m.pickup,
		Arena:      m.arena,
	}
	for i, f := range m.fighters {
		id := FighterID(i + 1)
		snap.Fighters[i] = FighterSnapshot{ID: id, Name: id.String(), Fighter: f}
	}
	return snap
}
