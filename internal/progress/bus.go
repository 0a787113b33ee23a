package progress

import "sync"

// Bus is an in-process publish/subscribe fan-out for job events. Publishing
// never blocks: events for a subscriber whose buffer is full are dropped,
// so a stalled consumer cannot stall an import.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscription
}

type subscription struct {
	jobID string // empty receives every job's events
	ch    chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

// Subscribe registers interest in one job's events, or in all jobs when
// jobID is empty. The returned cancel function unregisters and closes the
// channel; it is safe to call more than once.
func (b *Bus) Subscribe(jobID string, buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 16
	}

	sub := &subscription{
		jobID: jobID,
		ch:    make(chan Event, buffer),
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}

	return sub.ch, cancel
}

// Publish delivers an event to every matching subscriber without blocking.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if sub.jobID != "" && sub.jobID != ev.JobID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}
