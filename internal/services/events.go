package services

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"juju/internal/providers"
)

type EventKind int

const (
	SessionChanged EventKind = iota
	ProjectsChanged
	ActivityTypesChanged
)

func (k EventKind) String() string {
	switch k {
	case SessionChanged:
		return "sessionChanged"
	case ProjectsChanged:
		return "projectsChanged"
	case ActivityTypesChanged:
		return "activityTypesChanged"
	default:
		return "unknown"
	}
}

// Event is published after a change has been persisted.
type Event struct {
	Kind       EventKind `json:"kind"`
	SessionID  string    `json:"session_id,omitempty"`
	ProjectIDs []string  `json:"project_ids,omitempty"`
	At         time.Time `json:"at"`
}

// Subscription delivers events on C until Close is called.
type Subscription struct {
	C <-chan Event

	id     uint64
	ch     chan Event
	broker *broker
	once   sync.Once
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.remove(s.id)
	})
}

type broker struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscription
	nextID  uint64
	dropped atomic.Uint64
	logger  providers.Logger
}

func newBroker(logger providers.Logger) *broker {
	return &broker{
		subs:   make(map[uint64]*Subscription),
		logger: logger,
	}
}

func (b *broker) subscribe(buffer int) *Subscription {
	if buffer < 0 {
		buffer = 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, id: b.nextID, ch: ch, broker: b}
	b.subs[sub.id] = sub
	return sub
}

func (b *broker) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// publish never blocks; a subscriber whose buffer is full misses the event.
func (b *broker) publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
			b.dropped.Inc()
			b.logger.Warnf(providers.TypeApp, "Subscriber %d is not keeping up, dropped %s event", id, e.Kind)
		}
	}
}

func (b *broker) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
