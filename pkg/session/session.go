// Package session owns the lifetime of the bridged browsers: it launches engine roots into
// the registry and tears everything down on shutdown.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/morezero/browser-bridge/pkg/engine"
	"github.com/morezero/browser-bridge/pkg/queue"
	"github.com/morezero/browser-bridge/pkg/registry"
	"github.com/morezero/browser-bridge/pkg/semver"
)

const logPrefix = "session:session"

var (
	// ErrUnsupportedEngine is returned for an engine name outside chrome|chromium|firefox|webkit.
	ErrUnsupportedEngine = errors.New("unsupported engine")
	// ErrClosed is returned by Launch after Close.
	ErrClosed = errors.New("session closed")
)

// LaunchError reports a failed session start.
type LaunchError struct {
	Engine string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s: %v", e.Engine, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Options configures a Manager.
type Options struct {
	// Headless is injected into launch options that do not set it.
	Headless bool
	// LaunchTimeout bounds a launch including the version check. Zero means no bound.
	LaunchTimeout time.Duration
	// MinVersion is a semver constraint the browser version must satisfy. Empty disables it.
	MinVersion string
}

// Manager launches browsers and tears down the session.
type Manager struct {
	launcher engine.Launcher
	registry *registry.Registry
	queue    *queue.Serializer
	opts     Options

	mu       sync.Mutex
	browsers []registry.Handle
	closed   bool
}

// NewManager creates a Manager. The queue is closed with the session.
func NewManager(launcher engine.Launcher, reg *registry.Registry, q *queue.Serializer, opts Options) *Manager {
	return &Manager{launcher: launcher, registry: reg, queue: q, opts: opts}
}

// Launch starts a browser of the named engine and registers it as a session root.
func (m *Manager) Launch(ctx context.Context, engineName string, args engine.Args) (registry.Handle, error) {
	kind, err := engine.ParseKind(engineName)
	if err != nil {
		return registry.Handle{}, &LaunchError{Engine: engineName, Err: fmt.Errorf("%w: %q", ErrUnsupportedEngine, engineName)}
	}

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return registry.Handle{}, &LaunchError{Engine: engineName, Err: ErrClosed}
	}

	args, err = withHeadlessDefault(args, m.opts.Headless)
	if err != nil {
		return registry.Handle{}, &LaunchError{Engine: engineName, Err: err}
	}

	if m.opts.LaunchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.LaunchTimeout)
		defer cancel()
	}

	start := time.Now()
	root, err := m.launcher.Launch(ctx, kind, args)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - Launch %s failed: %v", logPrefix, kind, err))
		return registry.Handle{}, &LaunchError{Engine: engineName, Err: err}
	}

	if err := m.checkVersion(ctx, root); err != nil {
		if _, cerr := root.Call(context.Background(), "close", nil); cerr != nil {
			slog.Warn(fmt.Sprintf("%s - closing rejected browser: %v", logPrefix, cerr))
		}
		return registry.Handle{}, &LaunchError{Engine: engineName, Err: err}
	}

	id, ok := engine.IdentityOf(root)
	if !ok {
		return registry.Handle{}, &LaunchError{Engine: engineName, Err: fmt.Errorf("%s - engine returned a %s without identity", logPrefix, root.Type())}
	}
	h := registry.Handle{ID: id, Type: root.Type(), Object: root}

	// Close may have run while the engine was launching; the browser must not outlive it.
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if _, cerr := root.Call(context.Background(), "close", nil); cerr != nil {
			slog.Warn(fmt.Sprintf("%s - closing browser launched during teardown: %v", logPrefix, cerr))
		}
		return registry.Handle{}, &LaunchError{Engine: engineName, Err: ErrClosed}
	}
	if err := m.registry.Insert(h); err != nil {
		m.mu.Unlock()
		return registry.Handle{}, &LaunchError{Engine: engineName, Err: err}
	}
	m.browsers = append(m.browsers, h)
	m.mu.Unlock()

	slog.Info(fmt.Sprintf("%s - Launched %s as %s in %s", logPrefix, kind, id, time.Since(start).Round(time.Millisecond)))
	return h, nil
}

func (m *Manager) checkVersion(ctx context.Context, root engine.Object) error {
	if m.opts.MinVersion == "" {
		return nil
	}
	v, err := root.Call(ctx, "version", nil)
	if err != nil {
		return fmt.Errorf("%s - reading browser version: %w", logPrefix, err)
	}
	version, ok := v.(string)
	if !ok {
		return fmt.Errorf("%s - browser version is %T, not a string", logPrefix, v)
	}
	return semver.CheckVersion(version, m.opts.MinVersion)
}

// Browsers returns the handles of the launched browsers.
func (m *Manager) Browsers() []registry.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]registry.Handle(nil), m.browsers...)
}

// Close drains the command queue, closes every launched browser, stops the engine and
// discards the registry. Calls after the first are no-ops.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	browsers := m.browsers
	m.browsers = nil
	m.mu.Unlock()

	slog.Info(fmt.Sprintf("%s - Closing session (%d browsers, %d objects)", logPrefix, len(browsers), m.registry.Len()))

	var errs []error
	if m.queue != nil {
		if err := m.queue.Close(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - queue did not drain: %v", logPrefix, err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, b := range browsers {
		b := b
		g.Go(func() error {
			if _, err := b.Object.Call(gctx, "close", nil); err != nil {
				return fmt.Errorf("%s - closing %s: %w", logPrefix, b.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}

	if err := m.launcher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("%s - stopping engine: %w", logPrefix, err))
	}
	m.registry.Reset()

	return errors.Join(errs...)
}

// withHeadlessDefault sets "headless" in the launch options unless the client set it.
func withHeadlessDefault(args engine.Args, headless bool) (engine.Args, error) {
	if !args.Has(0) {
		raw, _ := json.Marshal(map[string]bool{"headless": headless})
		if args.Len() == 0 {
			return engine.Args{json.RawMessage(raw)}, nil
		}
		return args.With(0, json.RawMessage(raw)), nil
	}
	var opts map[string]json.RawMessage
	if _, err := args.Decode(0, &opts); err != nil {
		return nil, fmt.Errorf("%s - launch options must be an object: %w", logPrefix, err)
	}
	if _, ok := opts["headless"]; ok {
		return args, nil
	}
	opts["headless"] = json.RawMessage(fmt.Sprintf("%t", headless))
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(opts); err != nil {
		return nil, err
	}
	return args.With(0, json.RawMessage(bytes.TrimSpace(buf.Bytes()))), nil
}
