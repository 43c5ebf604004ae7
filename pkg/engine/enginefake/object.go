// Package enginefake is an in-memory engine binding for tests. Objects are scripted with
// per-command handlers and record every call they receive.
package enginefake

import (
	"context"
	"fmt"
	"sync"

	"github.com/morezero/browser-bridge/pkg/engine"
)

// Handler implements one command on a fake object.
type Handler func(ctx context.Context, o *Object, args engine.Args) (any, error)

// Call is a recorded invocation.
type Call struct {
	Command string
	Args    engine.Args
}

// Object is a scriptable engine.Object. It is Identified when created with a non-empty id,
// and is always Faceted and an EventSource.
type Object struct {
	typ string
	id  string

	mu        sync.Mutex
	handlers  map[string]Handler
	facets    map[string]*Object
	listeners map[string][]func(any)
	calls     []Call
}

// NewObject creates a fake of type typ. An empty id makes the object unidentified.
func NewObject(typ, id string) *Object {
	return &Object{
		typ:       typ,
		id:        id,
		handlers:  make(map[string]Handler),
		facets:    make(map[string]*Object),
		listeners: make(map[string][]func(any)),
	}
}

// Type implements engine.Object.
func (o *Object) Type() string { return o.typ }

// ID implements engine.Identified.
func (o *Object) ID() string { return o.id }

// Handle installs h for command and returns o.
func (o *Object) Handle(command string, h Handler) *Object {
	o.mu.Lock()
	o.handlers[command] = h
	o.mu.Unlock()
	return o
}

// Returns installs a handler that always returns v.
func (o *Object) Returns(command string, v any) *Object {
	return o.Handle(command, func(context.Context, *Object, engine.Args) (any, error) { return v, nil })
}

// Fails installs a handler that always fails with err.
func (o *Object) Fails(command string, err error) *Object {
	return o.Handle(command, func(context.Context, *Object, engine.Args) (any, error) { return nil, err })
}

// WithFacet adds an unidentified facet of type typ and returns it.
func (o *Object) WithFacet(typ string) *Object {
	f := NewObject(typ, "")
	o.mu.Lock()
	o.facets[typ] = f
	o.mu.Unlock()
	return f
}

// Call implements engine.Object.
func (o *Object) Call(ctx context.Context, command string, args engine.Args) (any, error) {
	o.mu.Lock()
	o.calls = append(o.calls, Call{Command: command, Args: args})
	h, ok := o.handlers[command]
	o.mu.Unlock()
	if !ok {
		return nil, engine.Unsupported(o.typ, command)
	}
	return h(ctx, o, args)
}

// Facet implements engine.Faceted.
func (o *Object) Facet(facetType string) (engine.Object, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	f, ok := o.facets[facetType]
	if !ok {
		return nil, false
	}
	return f, true
}

// On implements engine.EventSource.
func (o *Object) On(event string, handler func(payload any)) error {
	if event == "" {
		return fmt.Errorf("enginefake - empty event name")
	}
	o.mu.Lock()
	o.listeners[event] = append(o.listeners[event], handler)
	o.mu.Unlock()
	return nil
}

// Emit delivers payload to every listener of event and returns how many were called.
func (o *Object) Emit(event string, payload any) int {
	o.mu.Lock()
	ls := append([]func(any){}, o.listeners[event]...)
	o.mu.Unlock()
	for _, l := range ls {
		l(payload)
	}
	return len(ls)
}

// Listeners returns the number of listeners bound to event.
func (o *Object) Listeners(event string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.listeners[event])
}

// Calls returns a copy of the recorded calls.
func (o *Object) Calls() []Call {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Call(nil), o.calls...)
}

// CallCount returns how many times command was invoked.
func (o *Object) CallCount(command string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, c := range o.calls {
		if c.Command == command {
			n++
		}
	}
	return n
}
