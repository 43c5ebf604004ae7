// Package pwengine binds the engine ports to playwright-go.
//
// Every playwright object handed back to the bridge is wrapped exactly once: the launcher keeps
// an identity map from playwright object to adapter, so the same page returned by two different
// commands is the same engine.Object with the same id. Natural ids are Type@N, numbered per
// type in order of first appearance.
package pwengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/morezero/browser-bridge/pkg/engine"
)

const logPrefix = "pwengine:launcher"

// Options configures the playwright driver.
type Options struct {
	// Install downloads the driver and browsers before the first launch.
	Install bool
	// Verbose enables driver install output.
	Verbose bool
}

// Launcher implements engine.Launcher on playwright-go. The driver is started on first Launch.
type Launcher struct {
	opts Options

	mu       sync.Mutex
	pw       *playwright.Playwright
	counters map[string]int
	objects  map[any]*object
	stopped  bool
}

// NewLauncher creates a Launcher.
func NewLauncher(opts Options) *Launcher {
	return &Launcher{
		opts:     opts,
		counters: make(map[string]int),
		objects:  make(map[any]*object),
	}
}

func (l *Launcher) driver() (*playwright.Playwright, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return nil, errors.New("playwright driver stopped")
	}
	if l.pw != nil {
		return l.pw, nil
	}
	runOpts := &playwright.RunOptions{Verbose: l.opts.Verbose}
	if l.opts.Install {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("%s - failed to install driver: %w", logPrefix, err)
		}
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to start driver: %w", logPrefix, err)
	}
	l.pw = pw
	slog.Info(fmt.Sprintf("%s - Playwright driver started", logPrefix))
	return pw, nil
}

// Launch starts a browser of the given kind. args[0], when present, is decoded into
// playwright.BrowserTypeLaunchOptions.
func (l *Launcher) Launch(ctx context.Context, kind engine.Kind, args engine.Args) (engine.Object, error) {
	pw, err := l.driver()
	if err != nil {
		return nil, err
	}
	var bt playwright.BrowserType
	switch kind {
	case engine.KindChromium:
		bt = pw.Chromium
	case engine.KindFirefox:
		bt = pw.Firefox
	case engine.KindWebKit:
		bt = pw.WebKit
	default:
		return nil, fmt.Errorf("%w: %q", engine.ErrUnknownKind, kind)
	}
	launchOpts, err := options[playwright.BrowserTypeLaunchOptions](args, 0)
	if err != nil {
		return nil, err
	}

	type launched struct {
		b   playwright.Browser
		err error
	}
	ch := make(chan launched, 1)
	go func() {
		b, err := bt.Launch(launchOpts...)
		ch <- launched{b, err}
	}()
	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		slog.Info(fmt.Sprintf("%s - Launched %s %s", logPrefix, kind, res.b.Version()))
		return l.root(res.b), nil
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.b != nil {
				res.b.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// Close stops the driver. Browsers still open are closed by the driver.
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return nil
	}
	l.stopped = true
	l.objects = make(map[any]*object)
	if l.pw == nil {
		return nil
	}
	if err := l.pw.Stop(); err != nil {
		return fmt.Errorf("%s - failed to stop driver: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Playwright driver stopped", logPrefix))
	return nil
}

// adopt returns the adapter registered for key, or registers the one built by build.
// Identified adapters get the next Type@N id.
func (l *Launcher) adopt(key any, typ string, identified bool, build func(o *object)) *object {
	l.mu.Lock()
	defer l.mu.Unlock()
	if o, ok := l.objects[key]; ok {
		return o
	}
	o := newObject(l, typ)
	if identified {
		l.counters[typ]++
		o.id = fmt.Sprintf("%s@%d", typ, l.counters[typ])
	}
	l.objects[key] = o
	build(o)
	return o
}

// root adapts a launched browser.
func (l *Launcher) root(b playwright.Browser) engine.Object {
	return l.adopt(b, "Browser", true, func(o *object) { bindBrowser(o, b) })
}

// wrap converts a playwright value into an engine.Object. Values that are not playwright
// objects are returned unchanged; slices are wrapped element-wise.
func (l *Launcher) wrap(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case playwright.Browser:
		return l.root(x)
	case playwright.BrowserContext:
		return l.adopt(x, "BrowserContext", true, func(o *object) { bindContext(o, x) })
	case playwright.Page:
		return l.adopt(x, "Page", true, func(o *object) { bindPage(o, x) })
	case playwright.Response:
		return l.adopt(x, "Response", true, func(o *object) { bindResponse(o, x) })
	case playwright.Request:
		return l.adopt(x, "Request", true, func(o *object) { bindRequest(o, x) })
	case playwright.ElementHandle:
		return l.adopt(x, "ElementHandle", true, func(o *object) { bindElement(o, x) })
	case playwright.Download:
		return l.adopt(x, "Download", false, func(o *object) { bindDownload(o, x) })
	case playwright.Video:
		return l.adopt(x, "Video", false, func(o *object) { bindVideo(o, x) })
	case playwright.FileChooser:
		return l.adopt(x, "FileChooser", false, func(o *object) { bindFileChooser(o, x) })
	case playwright.ConsoleMessage:
		return map[string]any{"type": x.Type(), "text": x.Text()}
	case []playwright.Page:
		return wrapAll(l, x)
	case []playwright.BrowserContext:
		return wrapAll(l, x)
	case []playwright.ElementHandle:
		return wrapAll(l, x)
	case error:
		return x.Error()
	default:
		return v
	}
}

func wrapAll[T any](l *Launcher, items []T) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = l.wrap(it)
	}
	return out
}

// wrapOrNil wraps a playwright interface value that may hold nil.
func wrapOrNil[T comparable](l *Launcher, v T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	var zero T
	if v == zero {
		return nil, nil
	}
	return l.wrap(v), nil
}
