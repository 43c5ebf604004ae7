// Package registry implements the object registry: the session-scoped table of live remote
// objects addressable by id.
package registry

import (
	"errors"

	"github.com/morezero/browser-bridge/pkg/engine"
)

var (
	// ErrNotFound is returned for an id that is not registered.
	ErrNotFound = errors.New("no such object")
	// ErrNoFacet is returned when the parent exists but has no facet of the requested type.
	ErrNoFacet = errors.New("no such facet")
	// ErrIDTaken is returned when a different object is inserted under an id already in use.
	ErrIDTaken = errors.New("object id already registered")
	// ErrInvalidHandle is returned for a handle without id, type or object.
	ErrInvalidHandle = errors.New("invalid handle")
)

// Handle is a registry-owned reference to a live engine object.
type Handle struct {
	ID     string
	Type   string
	Object engine.Object
	// Parent is set for facet handles: the id of the object the facet was reached from.
	Parent string
}

// Ref returns the serialized form of the handle.
func (h Handle) Ref() ObjectRef {
	return ObjectRef{ID: h.ID, Type: h.Type}
}

// IsFacet reports whether the handle was resolved through a facet relation.
func (h Handle) IsFacet() bool {
	return h.Parent != ""
}

// ObjectRef is how a registered object is rendered to clients.
type ObjectRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// HealthOutput holds the registry part of the health report.
type HealthOutput struct {
	Status    string         `json:"status"`
	Objects   int            `json:"objects"`
	ByType    map[string]int `json:"byType,omitempty"`
	Timestamp string         `json:"timestamp"`
}
