package pwengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/morezero/browser-bridge/pkg/engine"
)

// op implements one capability-spec operation on a bound playwright object.
type op func(ctx context.Context, args engine.Args) (any, error)

// subscribe binds handler to a native playwright event.
type subscribe func(handler func(payload any))

// waitFunc waits for one native event. Playwright removes its listener when the wait ends,
// including on timeout.
type waitFunc func(event string, timeout *float64) (any, error)

// object is the adapter for every playwright type. Its operation table, facets and event
// table are filled by the bind* function of its type.
type object struct {
	l   *Launcher
	typ string
	id  string

	ops    map[string]op
	events map[string]subscribe
	wait   waitFunc

	facetMu sync.Mutex
	facets  map[string]func() *object
	built   map[string]*object
}

func newObject(l *Launcher, typ string) *object {
	return &object{
		l:      l,
		typ:    typ,
		ops:    make(map[string]op),
		events: make(map[string]subscribe),
		facets: make(map[string]func() *object),
		built:  make(map[string]*object),
	}
}

func (o *object) Type() string { return o.typ }

func (o *object) ID() string { return o.id }

func (o *object) Call(ctx context.Context, command string, args engine.Args) (any, error) {
	fn, ok := o.ops[command]
	if !ok {
		return nil, engine.Unsupported(o.typ, command)
	}
	return fn(ctx, args)
}

// Facet returns the facet adapter, building it on first use.
func (o *object) Facet(facetType string) (engine.Object, bool) {
	o.facetMu.Lock()
	defer o.facetMu.Unlock()
	if f, ok := o.built[facetType]; ok {
		return f, true
	}
	build, ok := o.facets[facetType]
	if !ok {
		return nil, false
	}
	f := build()
	o.built[facetType] = f
	return f, true
}

// On binds a handler to a native event. Payloads are wrapped before delivery.
func (o *object) On(event string, handler func(payload any)) error {
	sub, ok := o.events[event]
	if !ok {
		return fmt.Errorf("%w: %s has no %q event", engine.ErrUnsupported, o.typ, event)
	}
	sub(func(payload any) { handler(o.l.wrap(payload)) })
	return nil
}

func (o *object) handle(name string, fn op) {
	o.ops[name] = fn
}

// waitForEvent resolves with the next payload of an event. It accepts the event name and an
// optional {"timeout": ms} object; without one the wait ends with ctx's deadline.
func (o *object) waitForEvent(ctx context.Context, args engine.Args) (any, error) {
	event, err := args.String(0)
	if err != nil {
		return nil, err
	}
	var opts struct {
		Timeout *float64 `json:"timeout"`
	}
	if _, err := args.Decode(1, &opts); err != nil {
		return nil, err
	}
	if _, ok := o.events[event]; !ok || o.wait == nil {
		return nil, fmt.Errorf("%w: %s has no %q event", engine.ErrUnsupported, o.typ, event)
	}

	timeout := opts.Timeout
	if timeout == nil {
		if deadline, ok := ctx.Deadline(); ok {
			ms := float64(time.Until(deadline).Milliseconds())
			if ms < 1 {
				ms = 1
			}
			timeout = &ms
		}
	}

	type waited struct {
		payload any
		err     error
	}
	ch := make(chan waited, 1)
	go func() {
		p, err := o.wait(event, timeout)
		ch <- waited{p, err}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return o.l.wrap(res.payload), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// options decodes args[i] into a single-element slice for playwright's variadic options.
func options[T any](args engine.Args, i int) ([]T, error) {
	var v T
	ok, err := args.Decode(i, &v)
	if err != nil || !ok {
		return nil, err
	}
	return []T{v}, nil
}

// done adapts a playwright call returning only an error.
func done(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return nil, nil
}

func errMissing(i int, what string) error {
	return fmt.Errorf("argument %d: required %s is missing", i, what)
}

func value[T any](v T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

func scriptSource(args engine.Args, i int) (string, error) {
	s, err := args.Script(i)
	if err != nil {
		return "", err
	}
	return s.Source(), nil
}

// evalArg decodes the optional argument passed to the page function.
func evalArg(args engine.Args, i int) ([]any, error) {
	if !args.Has(i) {
		return nil, nil
	}
	var v any
	if _, err := args.Decode(i, &v); err != nil {
		return nil, err
	}
	return []any{v}, nil
}
