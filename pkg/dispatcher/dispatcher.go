package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/morezero/browser-bridge/pkg/capspec"
	"github.com/morezero/browser-bridge/pkg/db"
	"github.com/morezero/browser-bridge/pkg/engine"
	"github.com/morezero/browser-bridge/pkg/events"
	"github.com/morezero/browser-bridge/pkg/metrics"
	"github.com/morezero/browser-bridge/pkg/queue"
	"github.com/morezero/browser-bridge/pkg/registry"
	"github.com/morezero/browser-bridge/pkg/script"
	"github.com/morezero/browser-bridge/pkg/session"
)

const logPrefix = "dispatcher:dispatch"

// Journal receives one entry per handled command.
type Journal interface {
	Record(e db.CommandEntry)
}

// Options wires a Dispatcher. Spec, Registry, Session and Queue are required.
type Options struct {
	Spec     *capspec.Spec
	Registry *registry.Registry
	Session  *session.Manager
	Queue    *queue.Serializer
	// Runner runs event callbacks. Without one, on is rejected.
	Runner *script.Runner
	// Publisher delivers callback outcomes. Defaults to a no-op.
	Publisher events.EventPublisher
	Journal   Journal
	// AllowScripts enables the script-evaluation commands and event callbacks.
	AllowScripts bool
	// DefaultEngine is used for session requests that name no engine.
	DefaultEngine string
	// CallbackTimeout bounds each event callback run. Zero means 30s.
	CallbackTimeout time.Duration
}

// Dispatcher executes client requests against the live object graph.
type Dispatcher struct {
	spec      *capspec.Spec
	registry  *registry.Registry
	session   *session.Manager
	queue     *queue.Serializer
	runner    *script.Runner
	publisher events.EventPublisher
	journal   Journal
	opts      Options

	mu     sync.Mutex
	tagged map[engine.Object]engine.Object
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts Options) *Dispatcher {
	publisher := opts.Publisher
	if publisher == nil {
		publisher = &events.NoOpPublisher{}
	}
	if opts.CallbackTimeout <= 0 {
		opts.CallbackTimeout = 30 * time.Second
	}
	return &Dispatcher{
		spec:      opts.Spec,
		registry:  opts.Registry,
		session:   opts.Session,
		queue:     opts.Queue,
		runner:    opts.Runner,
		publisher: publisher,
		journal:   opts.Journal,
		opts:      opts,
		tagged:    make(map[engine.Object]engine.Object),
	}
}

// Spec returns the capability spec commands are checked against.
func (d *Dispatcher) Spec() *capspec.Spec { return d.spec }

// Submit queues req behind earlier commands for the same object and returns a channel that
// receives its result. The queue position is taken before Submit returns.
func (d *Dispatcher) Submit(ctx context.Context, req *CommandRequest) <-chan *Result {
	out := make(chan *Result, 1)
	start := time.Now()

	if req == nil || req.Object == "" || req.Command == "" {
		res := failure(newError(KindRequest, nil, "command request requires object and command"))
		d.observe(req, res, start)
		out <- res
		return out
	}

	outcome := d.queue.Submit(ctx, req.Object, func(ctx context.Context) (any, error) {
		return d.execute(ctx, req)
	})
	go func() {
		o := <-outcome
		res := success(o.Value)
		if o.Err != nil {
			res = failure(o.Err)
			slog.Debug(fmt.Sprintf("%s - %s.%s on %s failed (%s): %v", logPrefix, req.Type, req.Command, req.Object, res.Kind, o.Err))
		}
		d.observe(req, res, start)
		out <- res
	}()
	return out
}

// Dispatch runs req and waits for its result.
func (d *Dispatcher) Dispatch(ctx context.Context, req *CommandRequest) *Result {
	return <-d.Submit(ctx, req)
}

// execute runs on the object's queue turn.
func (d *Dispatcher) execute(ctx context.Context, req *CommandRequest) (any, error) {
	h, err := d.resolve(req)
	if err != nil {
		return nil, err
	}
	if !d.spec.HasOperation(h.Type, req.Command) {
		return nil, notACommand(req.Command, h.Type)
	}
	args, err := engine.ArgsFromJSON(req.Args)
	if err != nil {
		return nil, newError(KindRequest, err, "%v", err)
	}

	switch {
	case isScriptOperation(req.Command):
		if args, err = d.compileScript(req, args); err != nil {
			return nil, err
		}
	case req.Command == onOperation:
		if !d.spec.SupportsEventWaiting(h.Type) {
			return nil, newError(KindCapability, nil, "%s does not support event subscription", h.Type)
		}
		return d.subscribe(h, args)
	}

	value, err := h.Object.Call(ctx, req.Command, args)
	if err != nil {
		return nil, err
	}
	return d.normalize(req.Command, args, value)
}

// resolve finds the subject of req: the registered object, or a facet of it when req.Type
// differs from the registered type.
func (d *Dispatcher) resolve(req *CommandRequest) (registry.Handle, error) {
	h, err := d.registry.Lookup(req.Object)
	if err != nil {
		return registry.Handle{}, noSuchObject(req.Object, err)
	}
	if req.Type == "" || req.Type == h.Type {
		return h, nil
	}
	fh, err := d.registry.ResolveFacet(req.Object, req.Type)
	if err != nil {
		return registry.Handle{}, notAFacet(req.Type, req.Object, err)
	}
	return fh, nil
}

const onOperation = "on"

var scriptOperations = map[string]script.Mode{
	"evaluate":        script.Expression,
	"evaluateHandle":  script.Expression,
	"waitForFunction": script.Expression,
	"addInitScript":   script.Program,
}

func isScriptOperation(command string) bool {
	_, ok := scriptOperations[command]
	return ok
}

// compileScript replaces argument 0 with its compiled unit.
func (d *Dispatcher) compileScript(req *CommandRequest, args engine.Args) (engine.Args, error) {
	if !d.opts.AllowScripts {
		return nil, scriptsDisabled()
	}
	source, err := args.String(0)
	if err != nil {
		return nil, newError(KindRequest, err, "%s requires script source as argument 0", req.Command)
	}
	unit, err := script.Compile(fmt.Sprintf("%s.%s", req.Object, req.Command), source, scriptOperations[req.Command])
	if err != nil {
		return nil, newError(KindInvocation, err, "%v", err)
	}
	return args.With(0, unit), nil
}

// Launch starts a session and returns the root object reference.
func (d *Dispatcher) Launch(ctx context.Context, req *SessionRequest) *Result {
	name := d.opts.DefaultEngine
	var raw []byte
	if req != nil {
		if req.Type != "" {
			name = req.Type
		}
		raw = req.Args
	}
	args, err := engine.ArgsFromJSON(raw)
	if err != nil {
		metrics.ObserveLaunch(name, false)
		return failure(newError(KindRequest, err, "%v", err))
	}

	h, err := d.session.Launch(ctx, name, args)
	metrics.ObserveLaunch(name, err == nil)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - session start failed: %v", logPrefix, err))
		return failure(err)
	}
	metrics.SetObjects(d.registry.Len())
	return success(h.Ref())
}

// Shutdown tears the session down. It is always acknowledged.
func (d *Dispatcher) Shutdown(ctx context.Context) *Result {
	if err := d.session.Close(ctx); err != nil {
		slog.Warn(fmt.Sprintf("%s - session teardown: %v", logPrefix, err))
	}
	if d.runner != nil {
		d.runner.Close()
	}
	d.mu.Lock()
	d.tagged = make(map[engine.Object]engine.Object)
	d.mu.Unlock()
	metrics.SetObjects(d.registry.Len())
	return success(ShutdownMessage)
}

func (d *Dispatcher) observe(req *CommandRequest, res *Result, start time.Time) {
	elapsed := time.Since(start)
	typ, command, object := "unknown", "", ""
	if req != nil {
		command, object = req.Command, req.Object
		if d.spec.HasType(req.Type) {
			typ = req.Type
		}
	}
	if !d.spec.HasOperation(typ, command) {
		command = "unknown"
	}
	metrics.ObserveCommand(typ, command, string(res.Kind), elapsed)
	metrics.SetObjects(d.registry.Len())

	if d.journal != nil {
		d.journal.Record(db.CommandEntry{
			ObjectID:   object,
			ObjectType: typ,
			Command:    command,
			IsError:    res.Error,
			ErrorKind:  string(res.Kind),
			DurationMs: elapsed.Milliseconds(),
		})
	}
}
