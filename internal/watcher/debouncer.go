package watcher

import (
	"sync"
	"time"
)

// BatchDebouncer collects events and emits them together once no new event
// has arrived for the delay.
type BatchDebouncer struct {
	delay time.Duration
	emit  func([]Event)

	mu     sync.Mutex
	timer  *time.Timer
	events []Event
	// epoch invalidates timers that fired after a Cancel or Flush.
	epoch uint64
}

// NewBatchDebouncer creates a batch debouncer. A zero delay still batches
// events arriving in the same instant.
func NewBatchDebouncer(delay time.Duration, emit func([]Event)) *BatchDebouncer {
	return &BatchDebouncer{delay: delay, emit: emit}
}

// Add queues an event and restarts the quiet period.
func (b *BatchDebouncer) Add(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, event)
	if b.timer != nil {
		b.timer.Stop()
	}
	epoch := b.epoch
	b.timer = time.AfterFunc(b.delay, func() { b.fire(epoch) })
}

func (b *BatchDebouncer) fire(epoch uint64) {
	b.mu.Lock()
	if epoch != b.epoch {
		b.mu.Unlock()
		return
	}
	events := b.take()
	b.mu.Unlock()

	if len(events) > 0 && b.emit != nil {
		b.emit(events)
	}
}

// take empties the batch; b.mu must be held.
func (b *BatchDebouncer) take() []Event {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.epoch++
	events := b.events
	b.events = nil
	return events
}

// Cancel drops pending events.
func (b *BatchDebouncer) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.take()
}

// Flush emits pending events now.
func (b *BatchDebouncer) Flush() {
	b.mu.Lock()
	events := b.take()
	b.mu.Unlock()

	if len(events) > 0 && b.emit != nil {
		b.emit(events)
	}
}

// EventCount returns the number of pending events
func (b *BatchDebouncer) EventCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
