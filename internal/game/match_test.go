package game

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
)

// recordingSink captures emitted events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []EventType
}

func (r *recordingSink) EmitSimple(eventType EventType, tickNum uint64, fighter string, payload interface{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return true
}

func (r *recordingSink) count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == t {
			n++
		}
	}
	return n
}

func newTestMatch(seed int64) *Match {
	return NewMatch(DefaultArena, rand.New(rand.NewSource(seed)))
}

// setupKnockout puts P1 one hit from death, about to run its unguarded
// side into P2's guard. The pickup is parked out of reach.
func setupKnockout(m *Match) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fighters[0] = Fighter{
		Position:    Vec(100, 100),
		Direction:   Vec(1, 0),
		Health:      Damage,
		Size:        SizeForHealth(Damage),
		Orientation: Horizontal,
	}
	m.fighters[1] = Fighter{
		Position:    Vec(128, 80),
		Direction:   Vec(-1, 0),
		Health:      MaxHealth,
		Size:        BaseSize,
		Orientation: Vertical,
	}
	m.pickup = Pickup{Position: Vec(700, 20)}
}

func TestNewMatch(t *testing.T) {
	m := newTestMatch(1)

	if m.State() != Idle {
		t.Errorf("Expected idle, got %v", m.State())
	}

	want := initialFighters()
	for i, id := range []FighterID{P1, P2} {
		f, ok := m.Fighter(id)
		if !ok {
			t.Fatalf("Fighter %v not found", id)
		}
		if f != want[i] {
			t.Errorf("%v: expected %+v, got %+v", id, want[i], f)
		}
	}

	snap := m.Latest()
	if snap.State != Idle || snap.TickNumber != 0 {
		t.Errorf("Unexpected initial snapshot: %+v", snap)
	}
	if snap.Sequence == 0 {
		t.Error("Initial snapshot was not published")
	}
	if !inArena(snap.Pickup, DefaultArena) {
		t.Errorf("Pickup out of bounds: %+v", snap.Pickup.Position)
	}
}

func TestNewMatchGrowsTinyArena(t *testing.T) {
	m := NewMatch(Arena{Width: 50, Height: 15}, rand.New(rand.NewSource(3)))

	a := m.Arena()
	if a.Width != BaseSize || a.Height != BaseSize {
		t.Fatalf("Expected arena grown to %vx%v, got %+v", BaseSize, BaseSize, a)
	}

	m.Start()
	for i := 0; i < 5; i++ {
		m.Tick()
		snap := m.Snapshot()
		for _, fs := range snap.Fighters {
			p := fs.Position
			if p.X < 0 || p.Y < 0 || p.X > a.Width-fs.Size || p.Y > a.Height-fs.Size {
				t.Fatalf("Tick %d: %s outside arena at %+v size %v", i, fs.Name, p, fs.Size)
			}
		}
		if !inArena(snap.Pickup, a) {
			t.Fatalf("Tick %d: pickup out of bounds: %+v", i, snap.Pickup.Position)
		}
	}
}

func TestMatchTickRequiresRunning(t *testing.T) {
	m := newTestMatch(1)
	before := m.Snapshot()

	res := m.Tick()
	if res.Ticked {
		t.Error("Idle match should not tick")
	}

	after := m.Snapshot()
	if after.Fighters != before.Fighters || after.TickNumber != 0 {
		t.Error("Idle tick changed match state")
	}
}

func TestMatchStart(t *testing.T) {
	m := newTestMatch(1)

	if !m.Start() {
		t.Fatal("Start should succeed from idle")
	}
	if m.State() != Running {
		t.Errorf("Expected running, got %v", m.State())
	}
	if m.Start() {
		t.Error("Start should be a no-op while running")
	}
	if m.Latest().State != Running {
		t.Error("Start did not publish a snapshot")
	}
}

func TestMatchTickMovesFighters(t *testing.T) {
	m := newTestMatch(1)
	m.Start()

	res := m.Tick()
	if !res.Ticked || res.Tick != 1 {
		t.Fatalf("Expected tick 1, got %+v", res)
	}

	p1, _ := m.Fighter(P1)
	p2, _ := m.Fighter(P2)
	if p1.Position != Vec(105, 100) {
		t.Errorf("Expected P1 at (105,100), got %+v", p1.Position)
	}
	if p2.Position != Vec(595, 400) {
		t.Errorf("Expected P2 at (595,400), got %+v", p2.Position)
	}
	if m.Latest().TickNumber != 1 {
		t.Errorf("Expected snapshot at tick 1, got %d", m.Latest().TickNumber)
	}
}

func TestMatchApplyIntent(t *testing.T) {
	m := newTestMatch(1)

	if err := m.ApplyIntent(P1, IntentUp); !errors.Is(err, ErrMatchNotRunning) {
		t.Errorf("Expected ErrMatchNotRunning while idle, got %v", err)
	}

	m.Start()

	if err := m.ApplyIntent(P1, IntentUp); err != nil {
		t.Fatalf("ApplyIntent failed: %v", err)
	}
	f, _ := m.Fighter(P1)
	if f.Direction != Vec(0, -1) || f.Orientation != Horizontal {
		t.Errorf("Intent not applied: %+v", f)
	}

	err := m.SetIntent(P1, Vec(1, 1), Vertical)
	if !errors.Is(err, ErrInvalidIntent) {
		t.Errorf("Expected ErrInvalidIntent for diagonal, got %v", err)
	}
	f, _ = m.Fighter(P1)
	if f.Direction != Vec(0, -1) {
		t.Errorf("Rejected intent should keep previous heading, got %+v", f.Direction)
	}

	if err := m.ApplyIntent(FighterID(3), IntentDown); !errors.Is(err, ErrUnknownFighter) {
		t.Errorf("Expected ErrUnknownFighter, got %v", err)
	}
}

func TestMatchKnockout(t *testing.T) {
	m := newTestMatch(1)
	sink := &recordingSink{}
	m.SetEventSink(sink)
	m.Start()
	setupKnockout(m)

	res := m.Tick()
	if !res.Finished {
		t.Fatalf("Expected match to finish, got %+v", res)
	}
	if res.Winner != P2 {
		t.Errorf("Expected P2 to win, got %v", res.Winner)
	}
	if res.Damage != [2]int{Damage, 0} {
		t.Errorf("Expected damage [10 0], got %v", res.Damage)
	}

	p1, _ := m.Fighter(P1)
	if p1.Health != 0 || p1.Size != MinSize {
		t.Errorf("Expected dead P1 at min size, got %+v", p1)
	}
	if m.State() != Finished {
		t.Errorf("Expected finished, got %v", m.State())
	}

	snap := m.Latest()
	if snap.Winner != P2 || snap.WinnerName != "Player 2" {
		t.Errorf("Snapshot winner wrong: %v %q", snap.Winner, snap.WinnerName)
	}

	if sink.count(EventTypeDamage) != 1 || sink.count(EventTypeMatchFinish) != 1 {
		t.Errorf("Unexpected events: %v", sink.events)
	}

	// Finished is terminal until reset.
	frozen := m.Snapshot()
	if m.Tick().Ticked {
		t.Error("Finished match should not tick")
	}
	if m.Start() {
		t.Error("Start should not restart a finished match")
	}
	if err := m.ApplyIntent(P1, IntentDown); !errors.Is(err, ErrMatchNotRunning) {
		t.Errorf("Expected ErrMatchNotRunning, got %v", err)
	}
	if m.Snapshot().Fighters != frozen.Fighters {
		t.Error("Finished match state changed")
	}
}

func TestMatchDoubleKnockoutFavoursP2(t *testing.T) {
	m := newTestMatch(1)
	m.Start()

	m.mu.Lock()
	m.fighters[0].Health = 0
	m.fighters[1].Health = 0
	m.pickup = Pickup{Position: Vec(380, 20)}
	m.mu.Unlock()

	res := m.Tick()
	if !res.Finished || res.Winner != P2 {
		t.Errorf("Expected P2 to win a double knockout, got %+v", res)
	}
}

func TestMatchPickupOrder(t *testing.T) {
	const seed = 42
	m := newTestMatch(seed)
	m.Start()

	m.mu.Lock()
	m.fighters[0] = hurtFighter(300, 300, 60)
	m.fighters[1] = hurtFighter(310, 300, 60)
	m.fighters[1].Direction = Vec(-1, 0)
	m.pickup = Pickup{Position: Vec(325, 320)}
	m.mu.Unlock()

	// Both land on (305,300) with centers on the pickup. Equal overlap is a
	// vertical hit and neither guards top/bottom, so nobody is damaged.
	res := m.Tick()
	if res.Damage != [2]int{0, 0} {
		t.Fatalf("Expected no damage, got %v", res.Damage)
	}
	if !res.Healed[0] {
		t.Fatal("P1 should collect the pickup first")
	}

	ref := rand.New(rand.NewSource(seed))
	SpawnPickup(DefaultArena, ref) // consumed by NewMatch
	want := SpawnPickup(DefaultArena, ref)

	// P2 as it stood before testing the relocated pickup.
	p2 := hurtFighter(305, 300, 60)
	p2WantHeal := Distance(p2.Center(), want.Center()) < p2.Size/2+PickupRadius
	if p2WantHeal {
		want = SpawnPickup(DefaultArena, ref)
	}

	if res.Healed[1] != p2WantHeal {
		t.Errorf("P2 healed = %v, want %v", res.Healed[1], p2WantHeal)
	}
	if got := m.Snapshot().Pickup; got != want {
		t.Errorf("Expected pickup at %+v, got %+v", want.Position, got.Position)
	}

	p1, _ := m.Fighter(P1)
	if p1.Health != 80 || p1.Size != 80 {
		t.Errorf("Expected P1 healed to 80, got %+v", p1)
	}
}

func TestMatchReset(t *testing.T) {
	m := newTestMatch(1)
	m.Start()
	setupKnockout(m)
	m.Tick()

	seqBefore := m.Latest().Sequence
	m.Reset()

	snap := m.Snapshot()
	if snap.State != Idle || snap.Winner != NoFighter || snap.TickNumber != 0 {
		t.Errorf("Reset left stale state: %+v", snap)
	}
	if snap.WinnerName != "" {
		t.Errorf("Expected no winner name, got %q", snap.WinnerName)
	}
	want := initialFighters()
	if snap.Fighters[0].Fighter != want[0] || snap.Fighters[1].Fighter != want[1] {
		t.Error("Reset did not restore starting fighters")
	}
	if m.Latest().Sequence <= seqBefore {
		t.Error("Reset did not publish a snapshot")
	}
	if !m.Start() {
		t.Error("Match should start again after reset")
	}
}

func TestMatchInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	intents := []Intent{IntentUp, IntentDown, IntentLeft, IntentRight}
	m := newTestMatch(7)
	m.Start()

	for i := 0; i < 20000; i++ {
		if rng.Intn(10) == 0 {
			id := FighterID(rng.Intn(2) + 1)
			if err := m.ApplyIntent(id, intents[rng.Intn(len(intents))]); err != nil {
				t.Fatalf("tick %d: ApplyIntent failed: %v", i, err)
			}
		}

		res := m.Tick()
		if res.Damage[0] > 0 && res.Damage[1] > 0 {
			t.Fatalf("tick %d: both fighters damaged", i)
		}

		snap := m.Snapshot()
		for _, fs := range snap.Fighters {
			f := fs.Fighter
			if f.Health < 0 || f.Health > MaxHealth {
				t.Fatalf("tick %d: %s health out of range: %d", i, fs.Name, f.Health)
			}
			if f.Size != SizeForHealth(f.Health) {
				t.Fatalf("tick %d: %s size %v does not match health %d", i, fs.Name, f.Size, f.Health)
			}
			if f.Position.X < 0 || f.Position.Y < 0 ||
				f.Position.X > DefaultArena.Width-f.Size || f.Position.Y > DefaultArena.Height-f.Size {
				t.Fatalf("tick %d: %s outside arena at %+v size %v", i, fs.Name, f.Position, f.Size)
			}
			if _, err := IntentForDirection(f.Direction); err != nil {
				t.Fatalf("tick %d: %s heading is not cardinal: %+v", i, fs.Name, f.Direction)
			}
		}
		if !inArena(snap.Pickup, DefaultArena) {
			t.Fatalf("tick %d: pickup out of bounds: %+v", i, snap.Pickup.Position)
		}

		if res.Finished {
			if snap.Winner == NoFighter {
				t.Fatalf("tick %d: finished without a winner", i)
			}
			m.Reset()
			m.Start()
		}
	}
}
