// Package tagger assigns synthetic identities to engine results that carry none of their own.
//
// Tagging is driven by a closed rule table keyed by operation name (and, for waitForEvent, by
// the event name argument). Results of any other operation are never tagged.
package tagger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/morezero/browser-bridge/pkg/engine"
)

var (
	// ErrKindMismatch is returned when the result's type is not the kind the rule expects.
	ErrKindMismatch = errors.New("result type does not match synthetic kind")
	// ErrHasIdentity is returned for results that already carry a natural identity.
	ErrHasIdentity = errors.New("result already has an identity")
)

// Synthetic kinds.
const (
	KindVideo       = "Video"
	KindFileChooser = "FileChooser"
	KindDownload    = "Download"
)

type rule struct {
	command string
	event   string
	kind    string
}

var rules = []rule{
	{command: "video", kind: KindVideo},
	{command: "waitForEvent", event: "filechooser", kind: KindFileChooser},
	{command: "waitForEvent", event: "download", kind: KindDownload},
}

// KindFor returns the synthetic kind for the result of command called with args, if the rule
// table maps it to one.
func KindFor(command string, args engine.Args) (string, bool) {
	for _, r := range rules {
		if r.command != command {
			continue
		}
		if r.event == "" {
			return r.kind, true
		}
		event, err := args.String(0)
		if err == nil && event == r.event {
			return r.kind, true
		}
	}
	return "", false
}

// Kinds returns every synthetic kind the rule table can produce.
func Kinds() []string {
	seen := make(map[string]bool, len(rules))
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		if !seen[r.kind] {
			seen[r.kind] = true
			out = append(out, r.kind)
		}
	}
	return out
}

// Tagged is an engine object with a bridge-assigned identity. It implements engine.Identified
// and forwards everything else to the wrapped object.
type Tagged struct {
	engine.Object
	id string
}

// ID returns the synthetic id.
func (t *Tagged) ID() string { return t.id }

// Unwrap returns the engine object.
func (t *Tagged) Unwrap() engine.Object { return t.Object }

// Tag wraps obj with a fresh id of the form Kind@<uuid>. The engine object is not modified.
func Tag(obj engine.Object, kind string) (*Tagged, error) {
	if obj == nil {
		return nil, fmt.Errorf("%w: nil result for %s", ErrKindMismatch, kind)
	}
	if obj.Type() != kind {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrKindMismatch, obj.Type(), kind)
	}
	if id, ok := engine.IdentityOf(obj); ok {
		return nil, fmt.Errorf("%w: %s", ErrHasIdentity, id)
	}
	return &Tagged{Object: obj, id: kind + "@" + uuid.NewString()}, nil
}
