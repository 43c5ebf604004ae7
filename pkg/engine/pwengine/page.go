package pwengine

import (
	"context"

	"github.com/playwright-community/playwright-go"

	"github.com/morezero/browser-bridge/pkg/engine"
)

// selectorOp binds a page method taking a selector and options.
func selectorOp[T any](fn func(selector string, opts ...T) error) op {
	return func(ctx context.Context, args engine.Args) (any, error) {
		sel, err := args.String(0)
		if err != nil {
			return nil, err
		}
		opts, err := options[T](args, 1)
		if err != nil {
			return nil, err
		}
		return done(fn(sel, opts...))
	}
}

// selectorTextOp binds a page method taking a selector, a string and options.
func selectorTextOp[T any](fn func(selector, text string, opts ...T) error) op {
	return func(ctx context.Context, args engine.Args) (any, error) {
		sel, err := args.String(0)
		if err != nil {
			return nil, err
		}
		text, err := args.String(1)
		if err != nil {
			return nil, err
		}
		opts, err := options[T](args, 2)
		if err != nil {
			return nil, err
		}
		return done(fn(sel, text, opts...))
	}
}

// selectorQueryOp binds a page method taking a selector and returning a string.
func selectorQueryOp[T any](fn func(selector string, opts ...T) (string, error)) op {
	return func(ctx context.Context, args engine.Args) (any, error) {
		sel, err := args.String(0)
		if err != nil {
			return nil, err
		}
		opts, err := options[T](args, 1)
		if err != nil {
			return nil, err
		}
		return value(fn(sel, opts...))
	}
}

func bindPage(o *object, p playwright.Page) {
	o.handle("addInitScript", func(ctx context.Context, args engine.Args) (any, error) {
		src, err := scriptSource(args, 0)
		if err != nil {
			return nil, err
		}
		return done(p.AddInitScript(playwright.Script{Content: playwright.String(src)}))
	})
	o.handle("bringToFront", func(ctx context.Context, args engine.Args) (any, error) {
		return done(p.BringToFront())
	})
	o.handle("check", selectorOp(p.Check))
	o.handle("click", selectorOp(p.Click))
	o.handle("close", func(ctx context.Context, args engine.Args) (any, error) {
		return done(p.Close())
	})
	o.handle("content", func(ctx context.Context, args engine.Args) (any, error) {
		return value(p.Content())
	})
	o.handle("context", func(ctx context.Context, args engine.Args) (any, error) {
		return wrapOrNil(o.l, p.Context(), nil)
	})
	o.handle("dblclick", selectorOp(p.Dblclick))
	o.handle("evaluate", func(ctx context.Context, args engine.Args) (any, error) {
		src, err := scriptSource(args, 0)
		if err != nil {
			return nil, err
		}
		arg, err := evalArg(args, 1)
		if err != nil {
			return nil, err
		}
		return value(p.Evaluate(src, arg...))
	})
	o.handle("fill", selectorTextOp(p.Fill))
	o.handle("focus", selectorOp(p.Focus))
	o.handle("goBack", func(ctx context.Context, args engine.Args) (any, error) {
		opts, err := options[playwright.PageGoBackOptions](args, 0)
		if err != nil {
			return nil, err
		}
		r, err := p.GoBack(opts...)
		return wrapOrNil(o.l, r, err)
	})
	o.handle("goForward", func(ctx context.Context, args engine.Args) (any, error) {
		opts, err := options[playwright.PageGoForwardOptions](args, 0)
		if err != nil {
			return nil, err
		}
		r, err := p.GoForward(opts...)
		return wrapOrNil(o.l, r, err)
	})
	o.handle("goto", func(ctx context.Context, args engine.Args) (any, error) {
		url, err := args.String(0)
		if err != nil {
			return nil, err
		}
		opts, err := options[playwright.PageGotoOptions](args, 1)
		if err != nil {
			return nil, err
		}
		r, err := p.Goto(url, opts...)
		return wrapOrNil(o.l, r, err)
	})
	o.handle("hover", selectorOp(p.Hover))
	o.handle("innerHTML", selectorQueryOp(p.InnerHTML))
	o.handle("innerText", selectorQueryOp(p.InnerText))
	o.handle("isClosed", func(ctx context.Context, args engine.Args) (any, error) {
		return p.IsClosed(), nil
	})
	o.handle("keyboard", func(ctx context.Context, args engine.Args) (any, error) {
		return facetRef(o, "Keyboard"), nil
	})
	o.handle("mouse", func(ctx context.Context, args engine.Args) (any, error) {
		return facetRef(o, "Mouse"), nil
	})
	o.handle("pdf", func(ctx context.Context, args engine.Args) (any, error) {
		opts, err := options[playwright.PagePdfOptions](args, 0)
		if err != nil {
			return nil, err
		}
		return value(p.PDF(opts...))
	})
	o.handle("press", selectorTextOp(p.Press))
	o.handle("querySelector", func(ctx context.Context, args engine.Args) (any, error) {
		sel, err := args.String(0)
		if err != nil {
			return nil, err
		}
		el, err := p.QuerySelector(sel)
		return wrapOrNil(o.l, el, err)
	})
	o.handle("querySelectorAll", func(ctx context.Context, args engine.Args) (any, error) {
		sel, err := args.String(0)
		if err != nil {
			return nil, err
		}
		els, err := p.QuerySelectorAll(sel)
		if err != nil {
			return nil, err
		}
		return wrapAll(o.l, els), nil
	})
	o.handle("reload", func(ctx context.Context, args engine.Args) (any, error) {
		opts, err := options[playwright.PageReloadOptions](args, 0)
		if err != nil {
			return nil, err
		}
		r, err := p.Reload(opts...)
		return wrapOrNil(o.l, r, err)
	})
	o.handle("screenshot", func(ctx context.Context, args engine.Args) (any, error) {
		opts, err := options[playwright.PageScreenshotOptions](args, 0)
		if err != nil {
			return nil, err
		}
		return value(p.Screenshot(opts...))
	})
	o.handle("setContent", func(ctx context.Context, args engine.Args) (any, error) {
		html, err := args.String(0)
		if err != nil {
			return nil, err
		}
		opts, err := options[playwright.PageSetContentOptions](args, 1)
		if err != nil {
			return nil, err
		}
		return done(p.SetContent(html, opts...))
	})
	o.handle("setViewportSize", func(ctx context.Context, args engine.Args) (any, error) {
		var size struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		}
		if ok, err := args.Decode(0, &size); err != nil || !ok {
			if err == nil {
				err = errMissing(0, "viewport size")
			}
			return nil, err
		}
		return done(p.SetViewportSize(size.Width, size.Height))
	})
	o.handle("textContent", selectorQueryOp(p.TextContent))
	o.handle("title", func(ctx context.Context, args engine.Args) (any, error) {
		return value(p.Title())
	})
	o.handle("type", selectorTextOp(p.Type))
	o.handle("uncheck", selectorOp(p.Uncheck))
	o.handle("url", func(ctx context.Context, args engine.Args) (any, error) {
		return p.URL(), nil
	})
	o.handle("video", func(ctx context.Context, args engine.Args) (any, error) {
		return wrapOrNil(o.l, p.Video(), nil)
	})
	o.handle("viewportSize", func(ctx context.Context, args engine.Args) (any, error) {
		return p.ViewportSize(), nil
	})
	o.handle("waitForEvent", o.waitForEvent)
	o.wait = func(event string, timeout *float64) (any, error) {
		return p.WaitForEvent(event, playwright.PageWaitForEventOptions{Timeout: timeout})
	}
	o.handle("waitForFunction", func(ctx context.Context, args engine.Args) (any, error) {
		src, err := scriptSource(args, 0)
		if err != nil {
			return nil, err
		}
		var arg any
		if _, err := args.Decode(1, &arg); err != nil {
			return nil, err
		}
		opts, err := options[playwright.PageWaitForFunctionOptions](args, 2)
		if err != nil {
			return nil, err
		}
		h, err := p.WaitForFunction(src, arg, opts...)
		if err != nil {
			return nil, err
		}
		defer h.Dispose()
		return value(h.JSONValue())
	})
	o.handle("waitForLoadState", func(ctx context.Context, args engine.Args) (any, error) {
		var opts []playwright.PageWaitForLoadStateOptions
		if args.Has(0) {
			var state string
			if _, err := args.Decode(0, &state); err == nil {
				ls := playwright.LoadState(state)
				opts = append(opts, playwright.PageWaitForLoadStateOptions{State: &ls})
			} else if opts, err = options[playwright.PageWaitForLoadStateOptions](args, 0); err != nil {
				return nil, err
			}
		}
		return done(p.WaitForLoadState(opts...))
	})
	o.handle("waitForSelector", func(ctx context.Context, args engine.Args) (any, error) {
		sel, err := args.String(0)
		if err != nil {
			return nil, err
		}
		opts, err := options[playwright.PageWaitForSelectorOptions](args, 1)
		if err != nil {
			return nil, err
		}
		el, err := p.WaitForSelector(sel, opts...)
		return wrapOrNil(o.l, el, err)
	})
	o.handle("waitForTimeout", func(ctx context.Context, args engine.Args) (any, error) {
		ms, err := args.Float(0)
		if err != nil {
			return nil, err
		}
		p.WaitForTimeout(ms)
		return nil, nil
	})
	o.handle("waitForURL", func(ctx context.Context, args engine.Args) (any, error) {
		url, err := args.String(0)
		if err != nil {
			return nil, err
		}
		opts, err := options[playwright.PageWaitForURLOptions](args, 1)
		if err != nil {
			return nil, err
		}
		return done(p.WaitForURL(url, opts...))
	})

	o.facets["Mouse"] = func() *object { return bindMouse(o.l, p.Mouse()) }
	o.facets["Keyboard"] = func() *object { return bindKeyboard(o.l, p.Keyboard()) }

	o.events["close"] = func(h func(any)) { p.OnClose(func(pg playwright.Page) { h(pg) }) }
	o.events["console"] = func(h func(any)) { p.OnConsole(func(m playwright.ConsoleMessage) { h(m) }) }
	o.events["crash"] = func(h func(any)) { p.OnCrash(func(pg playwright.Page) { h(pg) }) }
	o.events["domcontentloaded"] = func(h func(any)) { p.OnDOMContentLoaded(func(pg playwright.Page) { h(pg) }) }
	o.events["download"] = func(h func(any)) { p.OnDownload(func(d playwright.Download) { h(d) }) }
	o.events["filechooser"] = func(h func(any)) { p.OnFileChooser(func(fc playwright.FileChooser) { h(fc) }) }
	o.events["load"] = func(h func(any)) { p.OnLoad(func(pg playwright.Page) { h(pg) }) }
	o.events["pageerror"] = func(h func(any)) { p.OnPageError(func(err error) { h(err) }) }
	o.events["popup"] = func(h func(any)) { p.OnPopup(func(pg playwright.Page) { h(pg) }) }
	o.events["request"] = func(h func(any)) { p.OnRequest(func(r playwright.Request) { h(r) }) }
	o.events["requestfailed"] = func(h func(any)) { p.OnRequestFailed(func(r playwright.Request) { h(r) }) }
	o.events["requestfinished"] = func(h func(any)) { p.OnRequestFinished(func(r playwright.Request) { h(r) }) }
	o.events["response"] = func(h func(any)) { p.OnResponse(func(r playwright.Response) { h(r) }) }
}

// facetRef is what the mouse and keyboard accessors return: the facet is addressed through
// its page, not by an id of its own.
func facetRef(o *object, facetType string) map[string]string {
	return map[string]string{"type": facetType, "object": o.id}
}

func bindMouse(l *Launcher, m playwright.Mouse) *object {
	o := newObject(l, "Mouse")
	o.handle("click", func(ctx context.Context, args engine.Args) (any, error) {
		x, y, err := point(args)
		if err != nil {
			return nil, err
		}
		opts, err := options[playwright.MouseClickOptions](args, 2)
		if err != nil {
			return nil, err
		}
		return done(m.Click(x, y, opts...))
	})
	o.handle("dblclick", func(ctx context.Context, args engine.Args) (any, error) {
		x, y, err := point(args)
		if err != nil {
			return nil, err
		}
		opts, err := options[playwright.MouseDblclickOptions](args, 2)
		if err != nil {
			return nil, err
		}
		return done(m.Dblclick(x, y, opts...))
	})
	o.handle("down", func(ctx context.Context, args engine.Args) (any, error) {
		opts, err := options[playwright.MouseDownOptions](args, 0)
		if err != nil {
			return nil, err
		}
		return done(m.Down(opts...))
	})
	o.handle("move", func(ctx context.Context, args engine.Args) (any, error) {
		x, y, err := point(args)
		if err != nil {
			return nil, err
		}
		opts, err := options[playwright.MouseMoveOptions](args, 2)
		if err != nil {
			return nil, err
		}
		return done(m.Move(x, y, opts...))
	})
	o.handle("up", func(ctx context.Context, args engine.Args) (any, error) {
		opts, err := options[playwright.MouseUpOptions](args, 0)
		if err != nil {
			return nil, err
		}
		return done(m.Up(opts...))
	})
	o.handle("wheel", func(ctx context.Context, args engine.Args) (any, error) {
		dx, dy, err := point(args)
		if err != nil {
			return nil, err
		}
		return done(m.Wheel(dx, dy))
	})
	return o
}

func bindKeyboard(l *Launcher, k playwright.Keyboard) *object {
	o := newObject(l, "Keyboard")
	o.handle("down", func(ctx context.Context, args engine.Args) (any, error) {
		key, err := args.String(0)
		if err != nil {
			return nil, err
		}
		return done(k.Down(key))
	})
	o.handle("insertText", func(ctx context.Context, args engine.Args) (any, error) {
		text, err := args.String(0)
		if err != nil {
			return nil, err
		}
		return done(k.InsertText(text))
	})
	o.handle("press", func(ctx context.Context, args engine.Args) (any, error) {
		key, err := args.String(0)
		if err != nil {
			return nil, err
		}
		opts, err := options[playwright.KeyboardPressOptions](args, 1)
		if err != nil {
			return nil, err
		}
		return done(k.Press(key, opts...))
	})
	o.handle("type", func(ctx context.Context, args engine.Args) (any, error) {
		text, err := args.String(0)
		if err != nil {
			return nil, err
		}
		opts, err := options[playwright.KeyboardTypeOptions](args, 1)
		if err != nil {
			return nil, err
		}
		return done(k.Type(text, opts...))
	})
	o.handle("up", func(ctx context.Context, args engine.Args) (any, error) {
		key, err := args.String(0)
		if err != nil {
			return nil, err
		}
		return done(k.Up(key))
	})
	return o
}

func point(args engine.Args) (float64, float64, error) {
	x, err := args.Float(0)
	if err != nil {
		return 0, 0, err
	}
	y, err := args.Float(1)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
