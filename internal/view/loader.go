package view

import (
	"context"
	"sync"

	"github.com/JonMunkholm/viewkit/internal/async"
	"github.com/JonMunkholm/viewkit/internal/bus"
)

// TopicState is the bus topic for StateEvent.
const TopicState = "view.state"

// StateEvent is published whenever a Loader changes state.
type StateEvent struct {
	View     string
	State    State
	Previous State
	Err      error
}

// Loader counts the pending initialization futures of a view. The view is
// loading while any future is pending, errored once one fails and ready
// when all have succeeded.
type Loader struct {
	name string
	bus  *bus.Bus

	mu      sync.Mutex
	pending int
	state   State
	err     error
}

// NewLoader creates an idle loader. b may be nil.
func NewLoader(name string, b *bus.Bus) *Loader {
	return &Loader{name: name, bus: b, state: StateIdle}
}

// Track registers w. Once w settles the pending count drops and the state
// is recomputed. A failure is sticky: later successes do not clear it.
func (l *Loader) Track(ctx context.Context, w async.Waiter) {
	if w == nil {
		return
	}

	l.mu.Lock()
	l.pending++
	ev, changed := l.transition()
	l.mu.Unlock()
	l.publish(ev, changed)

	go func() {
		var err error
		select {
		case <-w.Done():
			err = w.Err()
		case <-ctx.Done():
			err = ctx.Err()
		}

		l.mu.Lock()
		l.pending--
		if err != nil && l.err == nil {
			l.err = err
		}
		ev, changed := l.transition()
		l.mu.Unlock()
		l.publish(ev, changed)
	}()
}

// transition recomputes the state. Callers hold l.mu.
func (l *Loader) transition() (StateEvent, bool) {
	next := StateReady
	switch {
	case l.err != nil:
		next = StateError
	case l.pending > 0:
		next = StateLoading
	}
	if next == l.state {
		return StateEvent{}, false
	}
	ev := StateEvent{View: l.name, State: next, Previous: l.state, Err: l.err}
	l.state = next
	return ev, true
}

func (l *Loader) publish(ev StateEvent, changed bool) {
	if changed {
		l.bus.Publish(TopicState, ev)
	}
}

// State returns the current state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Pending returns the number of unsettled futures.
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

// Err returns the first failure, if any.
func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}
