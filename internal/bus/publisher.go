package bus

import (
	"sync"

	"github.com/mfelder/turnstile/internal/logging"
)

// Publisher is a fire-and-forget sink for domain events.
type Publisher interface {
	Publish(ev Event)
}

// Subscriber handles published events. Returning an error logs the failure
// but never interrupts the publishing turn.
type Subscriber func(ev Event) error

// Fanout dispatches events to named subscribers in registration order.
type Fanout struct {
	mu   sync.RWMutex
	subs []namedSubscriber
	log  *logging.Logger
}

type namedSubscriber struct {
	name string
	fn   Subscriber
}

// NewFanout creates an empty fanout publisher.
func NewFanout(log *logging.Logger) *Fanout {
	return &Fanout{log: log.Sub("bus")}
}

// Subscribe registers a subscriber under a name used for logging.
func (f *Fanout) Subscribe(name string, fn Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, namedSubscriber{name: name, fn: fn})
	f.log.Debug().Str("subscriber", name).Msg("subscriber registered")
}

// Publish delivers the event to every subscriber. Subscriber errors are
// logged and swallowed.
func (f *Fanout) Publish(ev Event) {
	f.mu.RLock()
	subs := make([]namedSubscriber, len(f.subs))
	copy(subs, f.subs)
	f.mu.RUnlock()

	for _, s := range subs {
		if err := s.fn(ev); err != nil {
			f.log.Warn().
				Err(err).
				Str("event", ev.EventName()).
				Str("subscriber", s.name).
				Msg("event subscriber error")
		}
	}
}

// Nop is a Publisher that discards all events.
type Nop struct{}

// Publish discards the event.
func (Nop) Publish(Event) {}
