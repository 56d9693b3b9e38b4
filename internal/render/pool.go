package render

import (
	"errors"
	"log"
	"runtime"
	"sync"

	"arena-duel/internal/game"
)

// FramePool renders and writes PNG frames on a set of worker goroutines so
// a headless simulation never waits on encoding or disk.
type FramePool struct {
	renderer   *Renderer
	numWorkers int
	jobChan    chan frameJob
	wg         sync.WaitGroup
	running    bool
	mu         sync.Mutex

	errMu sync.Mutex
	errs  []error
	saved int
}

// frameJob is one snapshot bound for one file.
type frameJob struct {
	path string
	snap game.MatchSnapshot
}

// NewFramePool creates a pool. If numWorkers is 0 it defaults to NumCPU.
func NewFramePool(renderer *Renderer, numWorkers int) *FramePool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	// Cap at reasonable maximum
	if numWorkers > 16 {
		numWorkers = 16
	}

	return &FramePool{
		renderer:   renderer,
		numWorkers: numWorkers,
	}
}

// Workers returns the worker count.
func (p *FramePool) Workers() int {
	return p.numWorkers
}

// Start begins the workers.
func (p *FramePool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.jobChan = make(chan frameJob, p.numWorkers*2)
	p.wg.Add(p.numWorkers)
	for i := 0; i < p.numWorkers; i++ {
		go p.worker(p.jobChan)
	}
}

// Submit queues a frame. The snapshot is copied, so the caller may keep
// stepping the match. Without running workers the frame is written inline.
func (p *FramePool) Submit(path string, snap *game.MatchSnapshot) {
	job := frameJob{path: path, snap: *snap}

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		p.process(job)
		return
	}
	// Blocks when the queue is full; that is the backpressure on the sim.
	p.jobChan <- job
	p.mu.Unlock()
}

// Wait stops the workers after the queue drains and returns every write
// error joined together.
func (p *FramePool) Wait() error {
	p.mu.Lock()
	if p.running {
		p.running = false
		close(p.jobChan)
	}
	p.mu.Unlock()

	p.wg.Wait()

	p.errMu.Lock()
	defer p.errMu.Unlock()
	return errors.Join(p.errs...)
}

// Saved returns the number of frames written so far.
func (p *FramePool) Saved() int {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.saved
}

func (p *FramePool) worker(jobs <-chan frameJob) {
	defer p.wg.Done()

	for job := range jobs {
		p.process(job)
	}
}

func (p *FramePool) process(job frameJob) {
	err := p.renderer.SavePNG(job.path, &job.snap)

	p.errMu.Lock()
	defer p.errMu.Unlock()
	if err != nil {
		p.errs = append(p.errs, err)
		return
	}
	p.saved++
	log.Printf("🖼️ Wrote %s (tick %d)", job.path, job.snap.TickNumber)
}
