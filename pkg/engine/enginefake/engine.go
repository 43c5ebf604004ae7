package enginefake

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/morezero/browser-bridge/pkg/engine"
)

// DefaultVersion is what fake browsers report from version.
const DefaultVersion = "124.0.6367.29"

// Launch records one Launch call.
type Launch struct {
	Kind engine.Kind
	Args engine.Args
}

// Engine is a fake engine.Launcher that builds a small browser object graph: browsers open
// contexts and pages, pages navigate, evaluate scripts, expose Mouse and Keyboard facets,
// record videos and produce file choosers and downloads.
type Engine struct {
	mu       sync.Mutex
	counters map[string]int
	launches []Launch
	browsers []*Object
	closed   bool

	// LaunchErr, when set, makes Launch fail.
	LaunchErr error
	// Version is reported by browsers; defaults to DefaultVersion.
	Version string
	// Unidentified makes pages returned without a natural identity.
	Unidentified bool
}

// New creates an Engine.
func New() *Engine {
	return &Engine{counters: make(map[string]int), Version: DefaultVersion}
}

// NextID returns the next Type@N id.
func (e *Engine) NextID(typ string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counters[typ]++
	return fmt.Sprintf("%s@%d", typ, e.counters[typ])
}

// Launch implements engine.Launcher.
func (e *Engine) Launch(ctx context.Context, kind engine.Kind, args engine.Args) (engine.Object, error) {
	e.mu.Lock()
	e.launches = append(e.launches, Launch{Kind: kind, Args: args})
	closed, launchErr := e.closed, e.LaunchErr
	e.mu.Unlock()

	if closed {
		return nil, errors.New("enginefake - engine stopped")
	}
	if launchErr != nil {
		return nil, launchErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := e.NewBrowser()
	e.mu.Lock()
	e.browsers = append(e.browsers, b)
	e.mu.Unlock()
	return b, nil
}

// Close implements engine.Launcher.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Launches returns the recorded Launch calls.
func (e *Engine) Launches() []Launch {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Launch(nil), e.launches...)
}

// Browsers returns the launched browsers.
func (e *Engine) Browsers() []*Object {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Object(nil), e.browsers...)
}

// NewBrowser builds a browser supporting newPage, newContext, version, isConnected and close.
func (e *Engine) NewBrowser() *Object {
	b := NewObject("Browser", e.NextID("Browser"))
	connected := true
	var mu sync.Mutex
	b.Handle("newPage", func(context.Context, *Object, engine.Args) (any, error) {
		return e.NewPage(), nil
	})
	b.Handle("newContext", func(context.Context, *Object, engine.Args) (any, error) {
		return e.NewContext(), nil
	})
	b.Handle("version", func(context.Context, *Object, engine.Args) (any, error) {
		return e.Version, nil
	})
	b.Handle("isConnected", func(context.Context, *Object, engine.Args) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		return connected, nil
	})
	b.Handle("close", func(context.Context, *Object, engine.Args) (any, error) {
		mu.Lock()
		connected = false
		mu.Unlock()
		return nil, nil
	})
	return b
}

// NewContext builds a browser context supporting newPage, pages and close.
func (e *Engine) NewContext() *Object {
	c := NewObject("BrowserContext", e.NextID("BrowserContext"))
	var mu sync.Mutex
	var pages []any
	c.Handle("newPage", func(context.Context, *Object, engine.Args) (any, error) {
		p := e.NewPage()
		mu.Lock()
		pages = append(pages, p)
		mu.Unlock()
		return p, nil
	})
	c.Handle("pages", func(context.Context, *Object, engine.Args) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		return append([]any(nil), pages...), nil
	})
	c.Returns("close", nil)
	return c
}

// NewPage builds a page. See Engine for the supported commands.
func (e *Engine) NewPage() *Object {
	id := e.NextID("Page")
	if e.Unidentified {
		id = ""
	}
	p := NewObject("Page", id)
	mouse := p.WithFacet("Mouse")
	mouse.Returns("click", nil).Returns("move", nil)
	keyboard := p.WithFacet("Keyboard")
	keyboard.Returns("type", nil).Returns("press", nil)

	var mu sync.Mutex
	url := "about:blank"
	var video *Object

	p.Handle("goto", func(ctx context.Context, o *Object, args engine.Args) (any, error) {
		target, err := args.String(0)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		url = target
		mu.Unlock()
		return e.NewResponse(target, 200), nil
	})
	p.Handle("url", func(context.Context, *Object, engine.Args) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		return url, nil
	})
	p.Returns("title", "Example Domain")
	p.Handle("evaluate", func(ctx context.Context, o *Object, args engine.Args) (any, error) {
		s, err := args.Script(0)
		if err != nil {
			return nil, err
		}
		return map[string]any{"evaluated": s.Source()}, nil
	})
	p.Handle("addInitScript", func(ctx context.Context, o *Object, args engine.Args) (any, error) {
		_, err := args.Script(0)
		return nil, err
	})
	p.Handle("video", func(context.Context, *Object, engine.Args) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		if video == nil {
			video = NewObject("Video", "")
			video.Returns("path", "/tmp/videos/page.webm")
		}
		return video, nil
	})
	p.Handle("waitForEvent", func(ctx context.Context, o *Object, args engine.Args) (any, error) {
		event, err := args.String(0)
		if err != nil {
			return nil, err
		}
		switch event {
		case "filechooser":
			fc := NewObject("FileChooser", "")
			fc.Returns("isMultiple", false).Returns("setFiles", nil)
			return fc, nil
		case "download":
			d := NewObject("Download", "")
			d.Returns("suggestedFilename", "report.csv")
			return d, nil
		case "popup":
			return e.NewPage(), nil
		default:
			return nil, fmt.Errorf("enginefake - unsupported event %q", event)
		}
	})
	p.Handle("querySelectorAll", func(ctx context.Context, o *Object, args engine.Args) (any, error) {
		out := make([]any, 3)
		for i := range out {
			el := NewObject("ElementHandle", e.NextID("ElementHandle"))
			el.Returns("textContent", fmt.Sprintf("item %d", i))
			out[i] = el
		}
		return out, nil
	})
	p.Returns("screenshot", []byte("\x89PNG"))
	p.Returns("close", nil)
	return p
}

// NewResponse builds a response with status, ok and url.
func (e *Engine) NewResponse(url string, status int) *Object {
	r := NewObject("Response", e.NextID("Response"))
	r.Returns("status", status).Returns("ok", status < 400).Returns("url", url)
	return r
}
