package dispatcher

import (
	"slices"

	"github.com/morezero/browser-bridge/pkg/engine"
	"github.com/morezero/browser-bridge/pkg/registry"
	"github.com/morezero/browser-bridge/pkg/tagger"
)

// unidentified is how an engine object without any identity is rendered.
type unidentified struct {
	Type string `json:"type"`
}

// normalize renders the result of command. Results the tagger maps get a synthetic identity;
// identified objects are registered; lists are normalized element-wise.
func (d *Dispatcher) normalize(command string, args engine.Args, value any) (any, error) {
	if kind, ok := tagger.KindFor(command, args); ok {
		if obj, isObj := value.(engine.Object); isObj && obj != nil {
			if _, identified := engine.IdentityOf(obj); !identified {
				return d.tag(obj, kind)
			}
		}
	}
	return d.render(value, false)
}

// normalizeEvent renders an event payload. Unidentified payload objects of a synthetic kind
// are tagged, since no command result will ever name them.
func (d *Dispatcher) normalizeEvent(payload any) (any, error) {
	return d.render(payload, true)
}

func (d *Dispatcher) render(value any, tagKinds bool) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case engine.Object:
		return d.renderObject(v, tagKinds)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			r, err := d.render(item, tagKinds)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case []engine.Object:
		out := make([]any, len(v))
		for i, item := range v {
			r, err := d.renderObject(item, tagKinds)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			r, err := d.render(item, tagKinds)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	default:
		return value, nil
	}
}

func (d *Dispatcher) renderObject(obj engine.Object, tagKinds bool) (any, error) {
	if obj == nil {
		return nil, nil
	}
	if _, ok := engine.IdentityOf(obj); ok {
		return d.register(obj)
	}
	if tagKinds && slices.Contains(tagger.Kinds(), obj.Type()) {
		return d.tag(obj, obj.Type())
	}
	return unidentified{Type: obj.Type()}, nil
}

// tag gives obj a synthetic identity, reusing the one it got earlier in the session.
func (d *Dispatcher) tag(obj engine.Object, kind string) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.tagged[obj]; ok {
		return d.register(t)
	}
	t, err := tagger.Tag(obj, kind)
	if err != nil {
		return nil, newError(KindInvocation, err, "%v", err)
	}
	ref, err := d.register(t)
	if err != nil {
		return nil, err
	}
	d.tagged[obj] = t
	return ref, nil
}

func (d *Dispatcher) register(obj engine.Object) (registry.ObjectRef, error) {
	id, _ := engine.IdentityOf(obj)
	h := registry.Handle{ID: id, Type: obj.Type(), Object: obj}
	if err := d.registry.Insert(h); err != nil {
		return registry.ObjectRef{}, newError(KindInvocation, err, "cannot register %s: %v", id, err)
	}
	return h.Ref(), nil
}
