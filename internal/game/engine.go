package game

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// EngineConfig configures the tick driver.
type EngineConfig struct {
	TickRate int // Steps per second
}

// Engine drives a Match at a fixed tick rate while it is running.
//
// Every exit from Running (knockout, reset, stop) halts the ticker and
// bumps the run epoch while holding the engine lock. A tick goroutine
// re-checks its epoch under the same lock before stepping, so once Reset
// or Stop returns no stale tick can touch the match.
type Engine struct {
	match    *Match
	tickRate int

	mu      sync.Mutex
	epoch   uint64
	ticker  *time.Ticker
	cancel  chan struct{}
	stopped bool
	wg      sync.WaitGroup

	// notifying counts tick goroutines currently inside a callback.
	notifying atomic.Int32

	onTick   func(res TickResult, took time.Duration)
	onFinish func(winner FighterID)
}

// NewEngine creates a driver for match. Nothing runs until Start. A tick
// rate that is not positive, or too high for a ticker, means 60.
func NewEngine(match *Match, cfg EngineConfig) *Engine {
	if cfg.TickRate <= 0 || time.Second/time.Duration(cfg.TickRate) <= 0 {
		if cfg.TickRate != 0 {
			log.Printf("⚠️ Tick rate %d unusable, using 60", cfg.TickRate)
		}
		cfg.TickRate = 60
	}
	return &Engine{
		match:    match,
		tickRate: cfg.TickRate,
	}
}

// SetCallbacks sets event callbacks. They run on the tick goroutine,
// outside the engine lock, so they may call back into the engine. A Stop
// issued while a callback runs does not wait for the tick goroutine; the
// halted loop exits as soon as the callback returns. Call before Start.
func (e *Engine) SetCallbacks(onTick func(TickResult, time.Duration), onFinish func(FighterID)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTick = onTick
	e.onFinish = onFinish
}

// Match returns the driven match.
func (e *Engine) Match() *Match {
	return e.match
}

// TickRate returns the configured steps per second.
func (e *Engine) TickRate() int {
	return e.tickRate
}

// Start begins the match and the tick loop. Calling it while running, or
// on a finished match, does nothing.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startLocked()
}

func (e *Engine) startLocked() bool {
	if e.stopped {
		return false
	}
	started := e.match.Start()
	if e.match.State() == Running && e.cancel == nil {
		e.launchLocked()
	}
	return started
}

// Reset halts the tick loop and returns the match to Idle.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.haltLocked()
	e.match.Reset()
}

// Toggle is the single start/restart control: a finished match is reset,
// anything else is started.
func (e *Engine) Toggle() MatchState {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.match.State() == Finished {
		e.haltLocked()
		e.match.Reset()
	} else {
		e.startLocked()
	}
	return e.match.State()
}

// ApplyIntent forwards player input to the match.
func (e *Engine) ApplyIntent(id FighterID, in Intent) error {
	return e.match.ApplyIntent(id, in)
}

// Step runs exactly one tick outside the timer. It is meant for
// frame-stepped harnesses and tests; it honours the same lifecycle rules.
func (e *Engine) Step() TickResult {
	e.mu.Lock()
	res, notice := e.stepLocked()
	e.mu.Unlock()

	e.notify(res, notice)
	return res
}

// Running reports whether the tick loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

// Stop halts the loop for good and waits for the tick goroutine to exit.
// Called from a callback it only halts, since the goroutine it would wait
// for is its caller.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	e.haltLocked()
	e.mu.Unlock()

	if e.notifying.Load() == 0 {
		e.wg.Wait()
	}
	log.Println("🛑 Tick driver stopped")
}

// GetSnapshot returns the latest published snapshot without locking.
func (e *Engine) GetSnapshot() *MatchSnapshot {
	return e.match.Latest()
}

func (e *Engine) launchLocked() {
	e.epoch++
	epoch := e.epoch
	cancel := make(chan struct{})
	ticker := time.NewTicker(time.Second / time.Duration(e.tickRate))
	e.cancel = cancel
	e.ticker = ticker

	e.wg.Add(1)
	go e.loop(epoch, cancel, ticker)

	log.Printf("🎮 Tick driver started at %d TPS", e.tickRate)
}

// haltLocked cancels the pending timer and invalidates its epoch.
func (e *Engine) haltLocked() {
	e.epoch++
	if e.cancel == nil {
		return
	}
	close(e.cancel)
	e.ticker.Stop()
	e.cancel = nil
	e.ticker = nil
}

func (e *Engine) loop(epoch uint64, cancel <-chan struct{}, ticker *time.Ticker) {
	defer e.wg.Done()

	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			e.mu.Lock()
			if e.epoch != epoch {
				// Scheduled before a halt; drop it.
				e.mu.Unlock()
				return
			}
			res, notice := e.stepLocked()
			e.mu.Unlock()

			e.notifying.Add(1)
			e.notify(res, notice)
			e.notifying.Add(-1)
			if !res.Ticked || res.Finished {
				return
			}
		}
	}
}

type tickNotice struct {
	onTick   func(TickResult, time.Duration)
	onFinish func(FighterID)
	took     time.Duration
}

func (e *Engine) stepLocked() (TickResult, tickNotice) {
	begin := time.Now()
	res := e.match.Tick()
	if !res.Ticked || res.Finished {
		e.haltLocked()
	}
	return res, tickNotice{onTick: e.onTick, onFinish: e.onFinish, took: time.Since(begin)}
}

func (e *Engine) notify(res TickResult, n tickNotice) {
	if !res.Ticked {
		return
	}
	if n.onTick != nil {
		n.onTick(res, n.took)
	}
	if res.Finished && n.onFinish != nil {
		n.onFinish(res.Winner)
	}
}
