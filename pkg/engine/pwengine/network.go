package pwengine

import (
	"context"

	"github.com/playwright-community/playwright-go"

	"github.com/morezero/browser-bridge/pkg/engine"
)

func bindResponse(o *object, r playwright.Response) {
	o.handle("body", func(ctx context.Context, args engine.Args) (any, error) {
		return value(r.Body())
	})
	o.handle("finished", func(ctx context.Context, args engine.Args) (any, error) {
		return done(r.Finished())
	})
	o.handle("headers", func(ctx context.Context, args engine.Args) (any, error) {
		return r.Headers(), nil
	})
	o.handle("json", func(ctx context.Context, args engine.Args) (any, error) {
		var v any
		if err := r.JSON(&v); err != nil {
			return nil, err
		}
		return v, nil
	})
	o.handle("ok", func(ctx context.Context, args engine.Args) (any, error) {
		return r.Ok(), nil
	})
	o.handle("request", func(ctx context.Context, args engine.Args) (any, error) {
		return wrapOrNil(o.l, r.Request(), nil)
	})
	o.handle("status", func(ctx context.Context, args engine.Args) (any, error) {
		return r.Status(), nil
	})
	o.handle("statusText", func(ctx context.Context, args engine.Args) (any, error) {
		return r.StatusText(), nil
	})
	o.handle("text", func(ctx context.Context, args engine.Args) (any, error) {
		return value(r.Text())
	})
	o.handle("url", func(ctx context.Context, args engine.Args) (any, error) {
		return r.URL(), nil
	})
}

func bindRequest(o *object, r playwright.Request) {
	o.handle("failure", func(ctx context.Context, args engine.Args) (any, error) {
		if err := r.Failure(); err != nil {
			return err.Error(), nil
		}
		return nil, nil
	})
	o.handle("headers", func(ctx context.Context, args engine.Args) (any, error) {
		return r.Headers(), nil
	})
	o.handle("isNavigationRequest", func(ctx context.Context, args engine.Args) (any, error) {
		return r.IsNavigationRequest(), nil
	})
	o.handle("method", func(ctx context.Context, args engine.Args) (any, error) {
		return r.Method(), nil
	})
	o.handle("postData", func(ctx context.Context, args engine.Args) (any, error) {
		return value(r.PostData())
	})
	o.handle("resourceType", func(ctx context.Context, args engine.Args) (any, error) {
		return r.ResourceType(), nil
	})
	o.handle("response", func(ctx context.Context, args engine.Args) (any, error) {
		resp, err := r.Response()
		return wrapOrNil(o.l, resp, err)
	})
	o.handle("url", func(ctx context.Context, args engine.Args) (any, error) {
		return r.URL(), nil
	})
}
