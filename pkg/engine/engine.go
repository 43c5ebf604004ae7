// Package engine defines the ports the bridge uses to talk to a browser-automation engine.
//
// An engine binding wraps every object it hands back (browsers, pages, responses...) in a
// value implementing Object. The dispatcher never reflects on engine values: it only calls
// Object.Call with an operation name and positional Args, and inspects the optional
// Identified, Faceted and EventSource capabilities.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupported is returned by a binding for an operation it has no handler for.
	ErrUnsupported = errors.New("operation not supported by engine binding")
	// ErrUnknownKind is returned for an engine kind outside the supported set.
	ErrUnknownKind = errors.New("unsupported engine kind")
)

// Object is a live object inside the engine.
type Object interface {
	// Type is the capability-spec type name (e.g. "Page").
	Type() string
	// Call runs the named operation with positional arguments.
	Call(ctx context.Context, command string, args Args) (any, error)
}

// Identified is implemented by objects that carry a natural identity.
type Identified interface {
	Object
	ID() string
}

// Faceted is implemented by objects exposing sub-objects reached by a fixed relation
// (the Mouse or Keyboard of a Page). Facet must return the same object on every call.
type Faceted interface {
	Object
	Facet(facetType string) (Object, bool)
}

// EventSource is implemented by objects supporting native event subscription.
type EventSource interface {
	Object
	On(event string, handler func(payload any)) error
}

// Script is client-supplied source text already compiled by the bridge.
type Script interface {
	Source() string
}

// Launcher creates root browser objects.
type Launcher interface {
	Launch(ctx context.Context, kind Kind, args Args) (Object, error)
	Close() error
}

// IdentityOf returns the natural identity of o, if it has one.
func IdentityOf(o Object) (string, bool) {
	idf, ok := o.(Identified)
	if !ok {
		return "", false
	}
	id := idf.ID()
	return id, id != ""
}

// Kind names an underlying browser engine.
type Kind string

const (
	KindChromium Kind = "chromium"
	KindFirefox  Kind = "firefox"
	KindWebKit   Kind = "webkit"
)

// ParseKind maps a client-facing engine name to a Kind. "chrome" is accepted as an alias of
// chromium.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "chrome", "chromium":
		return KindChromium, nil
	case "firefox":
		return KindFirefox, nil
	case "webkit":
		return KindWebKit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
}

// Unsupported builds the error a binding returns for an operation without a handler.
func Unsupported(typ, command string) error {
	return fmt.Errorf("%w: %s.%s", ErrUnsupported, typ, command)
}
