package pwengine

import (
	"context"

	"github.com/playwright-community/playwright-go"

	"github.com/morezero/browser-bridge/pkg/engine"
)

func bindBrowser(o *object, b playwright.Browser) {
	o.handle("close", func(ctx context.Context, args engine.Args) (any, error) {
		return done(b.Close())
	})
	o.handle("contexts", func(ctx context.Context, args engine.Args) (any, error) {
		return wrapAll(o.l, b.Contexts()), nil
	})
	o.handle("isConnected", func(ctx context.Context, args engine.Args) (any, error) {
		return b.IsConnected(), nil
	})
	o.handle("newContext", func(ctx context.Context, args engine.Args) (any, error) {
		opts, err := options[playwright.BrowserNewContextOptions](args, 0)
		if err != nil {
			return nil, err
		}
		c, err := b.NewContext(opts...)
		return wrapOrNil(o.l, c, err)
	})
	o.handle("newPage", func(ctx context.Context, args engine.Args) (any, error) {
		opts, err := options[playwright.BrowserNewPageOptions](args, 0)
		if err != nil {
			return nil, err
		}
		p, err := b.NewPage(opts...)
		return wrapOrNil(o.l, p, err)
	})
	o.handle("version", func(ctx context.Context, args engine.Args) (any, error) {
		return b.Version(), nil
	})
}

func bindContext(o *object, c playwright.BrowserContext) {
	o.handle("addCookies", func(ctx context.Context, args engine.Args) (any, error) {
		var cookies []playwright.OptionalCookie
		if _, err := args.Decode(0, &cookies); err != nil {
			return nil, err
		}
		return done(c.AddCookies(cookies))
	})
	o.handle("addInitScript", func(ctx context.Context, args engine.Args) (any, error) {
		src, err := scriptSource(args, 0)
		if err != nil {
			return nil, err
		}
		return done(c.AddInitScript(playwright.Script{Content: playwright.String(src)}))
	})
	o.handle("browser", func(ctx context.Context, args engine.Args) (any, error) {
		return wrapOrNil(o.l, c.Browser(), nil)
	})
	o.handle("clearCookies", func(ctx context.Context, args engine.Args) (any, error) {
		return done(c.ClearCookies())
	})
	o.handle("clearPermissions", func(ctx context.Context, args engine.Args) (any, error) {
		return done(c.ClearPermissions())
	})
	o.handle("close", func(ctx context.Context, args engine.Args) (any, error) {
		return done(c.Close())
	})
	o.handle("cookies", func(ctx context.Context, args engine.Args) (any, error) {
		urls, err := stringList(args, 0)
		if err != nil {
			return nil, err
		}
		return value(c.Cookies(urls...))
	})
	o.handle("grantPermissions", func(ctx context.Context, args engine.Args) (any, error) {
		perms, err := stringList(args, 0)
		if err != nil {
			return nil, err
		}
		opts, err := options[playwright.BrowserContextGrantPermissionsOptions](args, 1)
		if err != nil {
			return nil, err
		}
		return done(c.GrantPermissions(perms, opts...))
	})
	o.handle("newPage", func(ctx context.Context, args engine.Args) (any, error) {
		p, err := c.NewPage()
		return wrapOrNil(o.l, p, err)
	})
	o.handle("pages", func(ctx context.Context, args engine.Args) (any, error) {
		return wrapAll(o.l, c.Pages()), nil
	})
	o.handle("setDefaultNavigationTimeout", func(ctx context.Context, args engine.Args) (any, error) {
		ms, err := args.Float(0)
		if err != nil {
			return nil, err
		}
		c.SetDefaultNavigationTimeout(ms)
		return nil, nil
	})
	o.handle("setDefaultTimeout", func(ctx context.Context, args engine.Args) (any, error) {
		ms, err := args.Float(0)
		if err != nil {
			return nil, err
		}
		c.SetDefaultTimeout(ms)
		return nil, nil
	})
	o.handle("setExtraHTTPHeaders", func(ctx context.Context, args engine.Args) (any, error) {
		var headers map[string]string
		if _, err := args.Decode(0, &headers); err != nil {
			return nil, err
		}
		return done(c.SetExtraHTTPHeaders(headers))
	})
	o.handle("setOffline", func(ctx context.Context, args engine.Args) (any, error) {
		offline, err := args.Bool(0)
		if err != nil {
			return nil, err
		}
		return done(c.SetOffline(offline))
	})
	o.handle("waitForEvent", o.waitForEvent)
	o.wait = func(event string, timeout *float64) (any, error) {
		return c.WaitForEvent(event, playwright.BrowserContextWaitForEventOptions{Timeout: timeout})
	}

	o.events["page"] = func(h func(any)) { c.OnPage(func(p playwright.Page) { h(p) }) }
	o.events["request"] = func(h func(any)) { c.OnRequest(func(r playwright.Request) { h(r) }) }
	o.events["response"] = func(h func(any)) { c.OnResponse(func(r playwright.Response) { h(r) }) }
	o.events["close"] = func(h func(any)) { c.OnClose(func(bc playwright.BrowserContext) { h(bc) }) }
}

// stringList accepts either a string or a list of strings.
func stringList(args engine.Args, i int) ([]string, error) {
	if !args.Has(i) {
		return nil, nil
	}
	var list []string
	if _, err := args.Decode(i, &list); err == nil {
		return list, nil
	}
	s, err := args.String(i)
	if err != nil {
		return nil, err
	}
	return []string{s}, nil
}
