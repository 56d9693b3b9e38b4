package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	EventBufferSize    = 1024                   // Ring buffer size
	MaxEventsPerSec    = 2000                   // Global rate limit
	BatchFlushSize     = 64                     // Events per batch write
	BatchFlushInterval = 100 * time.Millisecond // How often to flush
)

// EventLog is a bounded, rate-limited event log. Emit never blocks the
// tick: events go into a ring buffer and a background writer appends them
// to the output as newline-delimited JSON.
type EventLog struct {
	mu        sync.Mutex
	buffer    [EventBufferSize]Event
	writeHead uint64 // next sequence to assign
	readHead  uint64 // next sequence to flush

	limiter *rate.Limiter

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	out    io.Writer
	closer io.Closer

	droppedCount atomic.Uint64
	totalCount   atomic.Uint64
}

// NewEventLog creates a stopped event log.
func NewEventLog() *EventLog {
	return &EventLog{
		limiter:  rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		stopChan: make(chan struct{}),
	}
}

// ErrEventLogStarted is returned by Start on a log that already has a
// writer or has been stopped.
var ErrEventLogStarted = errors.New("event log already started")

// Start opens filePath for append and begins the async writer. A log
// starts once; later calls fail before touching the file system.
func (el *EventLog) Start(filePath string) error {
	select {
	case <-el.stopChan:
		return ErrEventLogStarted
	default:
	}
	if !el.running.CompareAndSwap(false, true) {
		return ErrEventLogStarted
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		el.running.Store(false)
		return fmt.Errorf("open event log %s: %w", filePath, err)
	}
	el.closer = file
	el.launch(file)
	return nil
}

// StartWriter begins the async writer on an arbitrary destination. It does
// nothing if a writer is already running.
func (el *EventLog) StartWriter(w io.Writer) {
	if el.running.Swap(true) {
		return
	}
	el.launch(w)
}

func (el *EventLog) launch(w io.Writer) {
	el.out = w
	el.writerWg.Add(1)
	go el.writerLoop()
}

// Stop flushes pending events and closes the output. Safe to call twice.
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		wasRunning := el.running.Swap(false)
		close(el.stopChan)
		if wasRunning {
			el.writerWg.Wait()
		}
		if el.closer != nil {
			el.closer.Close()
		}
	})
}

// Emit queues an event. It returns false when the log is stopped or the
// event was rate limited. A full buffer drops the oldest event.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}
	if !el.limiter.Allow() {
		el.droppedCount.Add(1)
		return false
	}

	el.mu.Lock()
	if el.writeHead-el.readHead >= EventBufferSize {
		el.readHead++
		el.droppedCount.Add(1)
	}
	event.Sequence = el.writeHead
	el.buffer[el.writeHead%EventBufferSize] = event
	el.writeHead++
	el.mu.Unlock()

	el.totalCount.Add(1)
	return true
}

// EmitSimple builds and queues an event in one call.
func (el *EventLog) EmitSimple(eventType EventType, tickNum uint64, fighter string, payload interface{}) bool {
	return el.Emit(NewEvent(eventType, tickNum, fighter, payload))
}

func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)

	for {
		select {
		case <-el.stopChan:
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}
		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

func (el *EventLog) collectBatch(batch []Event) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()

	for el.readHead < el.writeHead && len(batch) < BatchFlushSize {
		batch = append(batch, el.buffer[el.readHead%EventBufferSize])
		el.readHead++
	}
	return batch
}

func (el *EventLog) flushBatch(batch []Event) {
	for _, event := range batch {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		data = append(data, '\n')
		el.out.Write(data)
	}
}

// GetStats returns counters for monitoring.
func (el *EventLog) GetStats() map[string]interface{} {
	el.mu.Lock()
	pending := el.writeHead - el.readHead
	el.mu.Unlock()

	return map[string]interface{}{
		"total":   el.totalCount.Load(),
		"dropped": el.droppedCount.Load(),
		"pending": pending,
		"running": el.running.Load(),
	}
}

// GetDroppedCount returns the number of dropped events.
func (el *EventLog) GetDroppedCount() uint64 {
	return el.droppedCount.Load()
}

// GetTotalCount returns the number of accepted events.
func (el *EventLog) GetTotalCount() uint64 {
	return el.totalCount.Load()
}
