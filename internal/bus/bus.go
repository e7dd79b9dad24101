// Package bus implements the campaign event feed: a single ordered,
// unbounded stream fanned out to any number of independent listeners.
//
// Unlike the UI notification channel, which is bounded and allowed to
// drop, the bus guarantees delivery: every listener observes every event
// in emission order, and shutdown waits for each listener to process
// everything queued at the cutoff before its drain handle fires.
package bus

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gopkg.in/tomb.v2"

	"github.com/s22625/fuzzmon/internal/campaign"
)

// Handler is invoked once per event, in arrival order.
type Handler func(campaign.Event)

// Bus is the ordered multi-consumer event feed. Producers append to a
// shared log; each listener drains the log at its own pace, so a slow
// listener never blocks producers or other listeners.
type Bus struct {
	mu        sync.Mutex
	cond      *sync.Cond
	events    []campaign.Event
	closed    bool
	cutoff    int
	listeners []*Listener
}

// New creates an empty bus.
func New() *Bus {
	b := &Bus{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish appends an event to the feed. Events published after Close
// are discarded. A zero timestamp is stamped with the current time.
func (b *Bus) Publish(ev campaign.Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.events = append(b.events, ev)
	b.cond.Broadcast()
}

// Register adds a listener whose handler runs once per event in order.
// The returned Listener's Done channel fires only after the handler has
// processed every event queued at the moment Close was called.
func (b *Bus) Register(name string, h Handler) *Listener {
	l := &Listener{name: name, bus: b, handler: h}

	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()

	l.tomb.Go(l.drain)
	return l
}

// Close marks the shutdown cutoff. Listeners keep draining until they
// reach it, then their drain handles fire.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.cutoff = len(b.events)
	b.cond.Broadcast()
}

// Drain closes the bus and waits up to timeout for every listener to
// finish. It returns a ShutdownIncomplete-style error naming listeners
// that failed to drain, which implies event loss and must be surfaced
// as a warning rather than swallowed.
func (b *Bus) Drain(timeout time.Duration) error {
	b.Close()

	b.mu.Lock()
	listeners := make([]*Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	// One absolute deadline shared by all listeners. An expired deadline
	// makes the remaining waits fire immediately instead of blocking.
	deadline := time.Now().Add(timeout)

	var stuck []string
	for _, l := range listeners {
		select {
		case <-l.Done():
			if err := l.Err(); err != nil {
				stuck = append(stuck, fmt.Sprintf("%s: %v", l.name, err))
			}
		case <-time.After(time.Until(deadline)):
			stuck = append(stuck, fmt.Sprintf("%s: drain timed out", l.name))
		}
	}
	if len(stuck) > 0 {
		return fmt.Errorf("shutdown incomplete, possible event loss: %s", strings.Join(stuck, "; "))
	}
	return nil
}

// Len returns the number of events published so far.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Listener drains the bus on its own goroutine. Its lifecycle is owned
// by a tomb so a panicking handler is recorded instead of crashing the
// process.
type Listener struct {
	name    string
	bus     *Bus
	handler Handler
	tomb    tomb.Tomb
	next    int
}

// Done returns the drain handle: it fires once every event queued at
// the shutdown cutoff has been processed, or the handler failed.
func (l *Listener) Done() <-chan struct{} { return l.tomb.Dead() }

// Err reports the handler failure that ended the listener, if any.
func (l *Listener) Err() error {
	err := l.tomb.Err()
	if err == tomb.ErrStillAlive {
		return nil
	}
	return err
}

func (l *Listener) drain() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	b := l.bus
	for {
		b.mu.Lock()
		for l.next >= len(b.events) && !b.closed {
			b.cond.Wait()
		}
		if b.closed && l.next >= b.cutoff {
			b.mu.Unlock()
			return nil
		}
		// Copy the pending batch so the handler runs unlocked.
		end := len(b.events)
		if b.closed && end > b.cutoff {
			end = b.cutoff
		}
		batch := b.events[l.next:end]
		l.next = end
		b.mu.Unlock()

		for _, ev := range batch {
			l.handler(ev)
		}
	}
}
