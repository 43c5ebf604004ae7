package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
)

const logPrefix = "script:runner"

// ErrRunnerClosed is returned by Call after Close.
var ErrRunnerClosed = errors.New("script runner closed")

// Runner executes callback units on a single goja event loop, so callbacks never run
// concurrently with each other.
type Runner struct {
	mu     sync.RWMutex
	loop   *eventloop.EventLoop
	closed bool
}

type slogPrinter struct{}

func (slogPrinter) Log(msg string)   { slog.Info(fmt.Sprintf("%s - console: %s", logPrefix, msg)) }
func (slogPrinter) Warn(msg string)  { slog.Warn(fmt.Sprintf("%s - console: %s", logPrefix, msg)) }
func (slogPrinter) Error(msg string) { slog.Error(fmt.Sprintf("%s - console: %s", logPrefix, msg)) }

// NewRunner starts an event loop with console output routed to slog.
func NewRunner() *Runner {
	reg := new(require.Registry)
	reg.RegisterNativeModule("console", console.RequireWithPrinter(slogPrinter{}))

	loop := eventloop.NewEventLoop(eventloop.WithRegistry(reg))
	loop.Start()

	ready := make(chan struct{})
	loop.RunOnLoop(func(vm *goja.Runtime) {
		defer close(ready)
		vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	})
	<-ready

	return &Runner{loop: loop}
}

type callResult struct {
	value any
	err   error
}

// Call runs a callback unit with args and returns its exported result. A returned promise is
// awaited. The run is interrupted when ctx ends.
func (r *Runner) Call(ctx context.Context, unit *Unit, args ...any) (any, error) {
	if unit == nil || !unit.callback {
		return nil, fmt.Errorf("%s - not a callback unit", logPrefix)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrRunnerClosed
	}

	resCh := make(chan callResult, 1)
	r.loop.RunOnLoop(func(vm *goja.Runtime) {
		defer func() {
			if rec := recover(); rec != nil {
				resCh <- callResult{err: fmt.Errorf("panic in callback %s: %v", unit.name, rec)}
			}
		}()

		vm.ClearInterrupt()
		stop := context.AfterFunc(ctx, func() { vm.Interrupt(ctx.Err()) })
		defer stop()

		fnVal, err := vm.RunProgram(unit.program)
		if err != nil {
			resCh <- callResult{err: describe(ctx, err)}
			return
		}
		fn, ok := goja.AssertFunction(fnVal)
		if !ok {
			resCh <- callResult{err: fmt.Errorf("callback %s did not evaluate to a function", unit.name)}
			return
		}
		jsArgs := make([]goja.Value, len(args))
		for i, a := range args {
			jsArgs[i] = vm.ToValue(a)
		}
		out, err := fn(goja.Undefined(), jsArgs...)
		if err != nil {
			resCh <- callResult{err: describe(ctx, err)}
			return
		}
		if p, ok := out.Export().(*goja.Promise); ok {
			r.awaitPromise(ctx, p, resCh)
			return
		}
		resCh <- callResult{value: exportValue(out)}
	})

	select {
	case res := <-resCh:
		return res.value, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("callback %s: %w", unit.name, ctx.Err())
	}
}

// awaitPromise polls p on the loop until it settles; it must be called on the loop.
func (r *Runner) awaitPromise(ctx context.Context, p *goja.Promise, resCh chan<- callResult) {
	var check func()
	check = func() {
		if ctx.Err() != nil {
			return
		}
		switch p.State() {
		case goja.PromiseStateFulfilled:
			resCh <- callResult{value: exportValue(p.Result())}
		case goja.PromiseStateRejected:
			resCh <- callResult{err: fmt.Errorf("callback promise rejected: %v", p.Result().Export())}
		default:
			r.loop.SetTimeout(func(*goja.Runtime) { check() }, 5*time.Millisecond)
		}
	}
	check()
}

func exportValue(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}

func describe(ctx context.Context, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) && ctx.Err() != nil {
		return fmt.Errorf("callback interrupted: %w", ctx.Err())
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		return fmt.Errorf("callback exception: %s", exc.Value().String())
	}
	return err
}

// Close stops the event loop. Pending timers are discarded.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.loop.Stop()
	slog.Debug(fmt.Sprintf("%s - Event loop stopped", logPrefix))
}
