// Package view holds the small pieces shared by every interactive view:
// lifecycle state strings, explicit event bindings and initialization
// tracking.
package view

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// State is the lifecycle state of a view. Its string form is used as a CSS
// class on the view's root element.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// ErrNoHandler is returned by Dispatch for an unbound event.
var ErrNoHandler = errors.New("no handler for event")

// Handler reacts to one event. arg is the raw event argument, typically a
// query or form value.
type Handler func(ctx context.Context, arg string) error

// Events maps event names to handlers.
//
// A view declares its own bindings and pulls in shared ones explicitly:
//
//	events := view.Events{"sort": sortHandler}.Include(baseEvents)
type Events map[string]Handler

// Include returns a new binding set holding base's bindings overlaid with
// e's. Neither input is modified.
func (e Events) Include(base Events) Events {
	out := make(Events, len(base)+len(e))
	maps.Copy(out, base)
	maps.Copy(out, e)
	return out
}

// Dispatch runs the handler bound to name.
func (e Events) Dispatch(ctx context.Context, name, arg string) error {
	h, ok := e[name]
	if !ok || h == nil {
		return fmt.Errorf("%w: %q", ErrNoHandler, name)
	}
	return h(ctx, arg)
}

// Names returns the bound event names in sorted order.
func (e Events) Names() []string {
	return slices.Sorted(maps.Keys(e))
}
