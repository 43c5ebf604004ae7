package pwengine

import (
	"context"

	"github.com/playwright-community/playwright-go"

	"github.com/morezero/browser-bridge/pkg/engine"
)

// elementOp binds an element method taking only options.
func elementOp[T any](fn func(opts ...T) error) op {
	return func(ctx context.Context, args engine.Args) (any, error) {
		opts, err := options[T](args, 0)
		if err != nil {
			return nil, err
		}
		return done(fn(opts...))
	}
}

// elementTextOp binds an element method taking a string and options.
func elementTextOp[T any](fn func(text string, opts ...T) error) op {
	return func(ctx context.Context, args engine.Args) (any, error) {
		text, err := args.String(0)
		if err != nil {
			return nil, err
		}
		opts, err := options[T](args, 1)
		if err != nil {
			return nil, err
		}
		return done(fn(text, opts...))
	}
}

func bindElement(o *object, el playwright.ElementHandle) {
	o.handle("check", elementOp(el.Check))
	o.handle("click", elementOp(el.Click))
	o.handle("dblclick", elementOp(el.Dblclick))
	o.handle("fill", elementTextOp(el.Fill))
	o.handle("focus", func(ctx context.Context, args engine.Args) (any, error) {
		return done(el.Focus())
	})
	o.handle("getAttribute", func(ctx context.Context, args engine.Args) (any, error) {
		name, err := args.String(0)
		if err != nil {
			return nil, err
		}
		return value(el.GetAttribute(name))
	})
	o.handle("hover", elementOp(el.Hover))
	o.handle("innerHTML", func(ctx context.Context, args engine.Args) (any, error) {
		return value(el.InnerHTML())
	})
	o.handle("innerText", func(ctx context.Context, args engine.Args) (any, error) {
		return value(el.InnerText())
	})
	o.handle("isChecked", func(ctx context.Context, args engine.Args) (any, error) {
		return value(el.IsChecked())
	})
	o.handle("isEnabled", func(ctx context.Context, args engine.Args) (any, error) {
		return value(el.IsEnabled())
	})
	o.handle("isVisible", func(ctx context.Context, args engine.Args) (any, error) {
		return value(el.IsVisible())
	})
	o.handle("press", elementTextOp(el.Press))
	o.handle("querySelector", func(ctx context.Context, args engine.Args) (any, error) {
		sel, err := args.String(0)
		if err != nil {
			return nil, err
		}
		found, err := el.QuerySelector(sel)
		return wrapOrNil(o.l, found, err)
	})
	o.handle("querySelectorAll", func(ctx context.Context, args engine.Args) (any, error) {
		sel, err := args.String(0)
		if err != nil {
			return nil, err
		}
		found, err := el.QuerySelectorAll(sel)
		if err != nil {
			return nil, err
		}
		return wrapAll(o.l, found), nil
	})
	o.handle("screenshot", func(ctx context.Context, args engine.Args) (any, error) {
		opts, err := options[playwright.ElementHandleScreenshotOptions](args, 0)
		if err != nil {
			return nil, err
		}
		return value(el.Screenshot(opts...))
	})
	o.handle("scrollIntoViewIfNeeded", elementOp(el.ScrollIntoViewIfNeeded))
	o.handle("setInputFiles", func(ctx context.Context, args engine.Args) (any, error) {
		files, err := stringList(args, 0)
		if err != nil {
			return nil, err
		}
		return done(el.SetInputFiles(files))
	})
	o.handle("textContent", func(ctx context.Context, args engine.Args) (any, error) {
		return value(el.TextContent())
	})
	o.handle("type", elementTextOp(el.Type))
}
