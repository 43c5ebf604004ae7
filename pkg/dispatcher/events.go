package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/browser-bridge/pkg/engine"
	"github.com/morezero/browser-bridge/pkg/events"
	"github.com/morezero/browser-bridge/pkg/metrics"
	"github.com/morezero/browser-bridge/pkg/registry"
	"github.com/morezero/browser-bridge/pkg/script"
)

const eventsLogPrefix = "dispatcher:events"

// Subscription is the result of a successful on command.
type Subscription struct {
	Object     string `json:"object"`
	Event      string `json:"event"`
	Subscribed bool   `json:"subscribed"`
}

// subscribe binds a client callback to a native event of h. The callback body gets the
// normalized payload as event; each run is published through the event publisher.
func (d *Dispatcher) subscribe(h registry.Handle, args engine.Args) (any, error) {
	if !d.opts.AllowScripts || d.runner == nil {
		return nil, scriptsDisabled()
	}
	event, err := args.String(0)
	if err != nil {
		return nil, newError(KindRequest, err, "on requires the event name as argument 0")
	}
	body, err := args.String(1)
	if err != nil {
		return nil, newError(KindRequest, err, "on requires the callback body as argument 1")
	}
	src, ok := h.Object.(engine.EventSource)
	if !ok {
		return nil, newError(KindInvocation, engine.Unsupported(h.Type, onOperation), "%s %s does not emit events", h.Type, h.ID)
	}
	unit, err := script.CompileCallback(fmt.Sprintf("%s.on(%s)", h.ID, event), body)
	if err != nil {
		return nil, newError(KindInvocation, err, "%v", err)
	}

	objectID := h.ID
	if err := src.On(event, func(payload any) { d.fire(objectID, event, unit, payload) }); err != nil {
		return nil, err
	}
	slog.Info(fmt.Sprintf("%s - Subscribed to %s on %s", eventsLogPrefix, event, objectID))
	return Subscription{Object: objectID, Event: event, Subscribed: true}, nil
}

// fire runs on the engine's event goroutine.
func (d *Dispatcher) fire(objectID, event string, unit *script.Unit, payload any) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.CallbackTimeout)
	defer cancel()

	out := &events.CallbackEvent{
		Object:    objectID,
		Event:     event,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	normalized, err := d.normalizeEvent(payload)
	if err == nil {
		out.Result, err = d.runner.Call(ctx, unit, normalized)
	}
	if err != nil {
		out.Error = err.Error()
		slog.Warn(fmt.Sprintf("%s - %s callback on %s failed: %v", eventsLogPrefix, event, objectID, err))
	}
	metrics.ObserveCallback(event, err == nil)

	if perr := d.publisher.PublishCallback(ctx, out); perr != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish %s callback outcome for %s: %v", eventsLogPrefix, event, objectID, perr))
	}
}
