// Package capspec holds the capability spec: the immutable table of which operations are legal
// on which remote object type.
package capspec

import (
	"fmt"
	"sort"
)

// EventWaitOperation is the operation whose presence marks a type as supporting events.
const EventWaitOperation = "waitForEvent"

// Arg describes one positional argument of an operation.
type Arg struct {
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Order    int    `json:"order" yaml:"order"`
	Optional bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
}

// Document is the persisted form: type name -> operation name -> arguments.
type Document map[string]map[string][]Arg

// Spec is a loaded capability spec. It is read-only and safe for concurrent use.
type Spec struct {
	types map[string]map[string][]Arg
}

// New builds a Spec from a document. Arguments of each operation are sorted by Order and
// must be numbered 0..n-1.
func New(doc Document) (*Spec, error) {
	types := make(map[string]map[string][]Arg, len(doc))
	for typ, ops := range doc {
		if typ == "" {
			return nil, fmt.Errorf("%s - empty type name", logPrefix)
		}
		table := make(map[string][]Arg, len(ops))
		for op, args := range ops {
			sorted := make([]Arg, len(args))
			copy(sorted, args)
			sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
			for i, a := range sorted {
				if a.Order != i {
					return nil, fmt.Errorf("%s - %s.%s: argument orders must be 0..%d without gaps or duplicates", logPrefix, typ, op, len(sorted)-1)
				}
			}
			table[op] = sorted
		}
		types[typ] = table
	}
	return &Spec{types: types}, nil
}

// HasType reports whether typ is declared.
func (s *Spec) HasType(typ string) bool {
	_, ok := s.types[typ]
	return ok
}

// HasOperation reports whether name is declared on typ. Argument shapes are not checked.
func (s *Spec) HasOperation(typ, name string) bool {
	_, ok := s.types[typ][name]
	return ok
}

// Operation returns the declared arguments of typ.name.
func (s *Spec) Operation(typ, name string) ([]Arg, bool) {
	args, ok := s.types[typ][name]
	if !ok {
		return nil, false
	}
	out := make([]Arg, len(args))
	copy(out, args)
	return out, true
}

// SupportsEventWaiting reports whether typ declares the wait-for-event operation.
func (s *Spec) SupportsEventWaiting(typ string) bool {
	return s.HasOperation(typ, EventWaitOperation)
}

// Types returns the declared type names in sorted order.
func (s *Spec) Types() []string {
	out := make([]string, 0, len(s.types))
	for t := range s.types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Operations returns the operations of typ in sorted order.
func (s *Spec) Operations(typ string) []string {
	ops := s.types[typ]
	out := make([]string, 0, len(ops))
	for op := range ops {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}
