package game

import (
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestNewEngineDefaults(t *testing.T) {
	engine := NewEngine(newTestMatch(1), EngineConfig{})
	if engine.TickRate() != 60 {
		t.Errorf("Expected default 60 TPS, got %d", engine.TickRate())
	}
	if engine.Running() {
		t.Error("New engine should not be running")
	}
}

func TestNewEngineRejectsUnusableTickRate(t *testing.T) {
	engine := NewEngine(newTestMatch(1), EngineConfig{TickRate: 2_000_000_000})
	if engine.TickRate() != 60 {
		t.Errorf("Expected fallback to 60 TPS, got %d", engine.TickRate())
	}

	// Would panic in time.NewTicker with a zero interval.
	if !engine.Start() {
		t.Fatal("Start should succeed")
	}
	engine.Stop()
}

// TestEngineStartStop verifies the loop ticks and stops cleanly
func TestEngineStartStop(t *testing.T) {
	engine := NewEngine(newTestMatch(1), EngineConfig{TickRate: 200})

	if !engine.Start() {
		t.Fatal("Start should succeed")
	}
	if engine.Start() {
		t.Error("Second Start should be a no-op")
	}

	waitFor(t, 2*time.Second, func() bool { return engine.GetSnapshot().TickNumber >= 3 })

	engine.Stop()
	engine.Stop() // double stop is safe

	if engine.Running() {
		t.Error("Engine still running after Stop")
	}

	n := engine.GetSnapshot().TickNumber
	time.Sleep(30 * time.Millisecond)
	if engine.GetSnapshot().TickNumber != n {
		t.Error("Ticks continued after Stop")
	}
	if engine.Start() {
		t.Error("Stopped engine should not start again")
	}
}

func TestEngineResetSuppressesTicks(t *testing.T) {
	engine := NewEngine(newTestMatch(1), EngineConfig{TickRate: 500})
	defer engine.Stop()

	engine.Start()
	waitFor(t, 2*time.Second, func() bool { return engine.GetSnapshot().TickNumber >= 2 })

	engine.Reset()
	if engine.Running() {
		t.Error("Reset should halt the loop")
	}

	time.Sleep(30 * time.Millisecond)
	snap := engine.GetSnapshot()
	if snap.State != Idle || snap.TickNumber != 0 {
		t.Errorf("Stale tick after reset: state %v tick %d", snap.State, snap.TickNumber)
	}
}

func TestEngineHaltsOnKnockout(t *testing.T) {
	match := newTestMatch(1)
	setupKnockout(match)

	finished := make(chan FighterID, 1)
	ticks := make(chan TickResult, 16)

	engine := NewEngine(match, EngineConfig{TickRate: 100})
	engine.SetCallbacks(
		func(res TickResult, took time.Duration) {
			select {
			case ticks <- res:
			default:
			}
		},
		func(winner FighterID) { finished <- winner },
	)
	defer engine.Stop()

	engine.Start()

	select {
	case winner := <-finished:
		if winner != P2 {
			t.Errorf("Expected P2 to win, got %v", winner)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onFinish was not called")
	}

	if engine.Running() {
		t.Error("Loop should halt once the match is finished")
	}

	res := <-ticks
	if !res.Ticked || !res.Finished {
		t.Errorf("Expected finishing tick result, got %+v", res)
	}
}

func TestEngineStopFromFinishCallback(t *testing.T) {
	match := newTestMatch(1)
	setupKnockout(match)

	engine := NewEngine(match, EngineConfig{TickRate: 200})
	stopped := make(chan struct{})
	engine.SetCallbacks(nil, func(FighterID) {
		engine.Stop()
		close(stopped)
	})

	engine.Start()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop inside onFinish did not return")
	}

	// The loop exits once the callback returns.
	done := make(chan struct{})
	go func() {
		engine.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Tick goroutine did not exit")
	}
	if engine.Start() {
		t.Error("Stopped engine should not start again")
	}
}

func TestEngineStopFromTickCallback(t *testing.T) {
	engine := NewEngine(newTestMatch(1), EngineConfig{TickRate: 200})
	stopped := make(chan struct{})
	var once sync.Once
	engine.SetCallbacks(func(TickResult, time.Duration) {
		once.Do(func() {
			engine.Stop()
			close(stopped)
		})
	}, nil)

	engine.Start()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop inside onTick did not return")
	}

	waitFor(t, 2*time.Second, func() bool { return !engine.Running() })
	n := engine.GetSnapshot().TickNumber
	time.Sleep(30 * time.Millisecond)
	if engine.GetSnapshot().TickNumber != n {
		t.Error("Ticks continued after Stop")
	}
}

func TestEngineToggle(t *testing.T) {
	match := newTestMatch(1)
	setupKnockout(match)
	engine := NewEngine(match, EngineConfig{TickRate: 100})
	defer engine.Stop()

	if got := engine.Toggle(); got != Running {
		t.Fatalf("Expected toggle to start the match, got %v", got)
	}

	waitFor(t, 2*time.Second, func() bool { return match.State() == Finished })

	if got := engine.Toggle(); got != Idle {
		t.Errorf("Expected toggle to reset a finished match, got %v", got)
	}
	if got := engine.Toggle(); got != Running {
		t.Errorf("Expected toggle to start again, got %v", got)
	}
}

func TestEngineStep(t *testing.T) {
	match := newTestMatch(1)
	engine := NewEngine(match, EngineConfig{TickRate: 60})

	var calls int
	engine.SetCallbacks(func(TickResult, time.Duration) { calls++ }, nil)

	if res := engine.Step(); res.Ticked {
		t.Error("Step should not tick an idle match")
	}

	match.Start()
	for i := 0; i < 3; i++ {
		engine.Step()
	}

	if calls != 3 {
		t.Errorf("Expected 3 onTick calls, got %d", calls)
	}
	if match.Latest().TickNumber != 3 {
		t.Errorf("Expected tick 3, got %d", match.Latest().TickNumber)
	}
}
