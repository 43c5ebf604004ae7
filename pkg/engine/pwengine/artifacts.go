package pwengine

import (
	"context"

	"github.com/playwright-community/playwright-go"

	"github.com/morezero/browser-bridge/pkg/engine"
)

// Videos, file choosers and downloads carry no natural identity; the dispatcher tags them.

func bindVideo(o *object, v playwright.Video) {
	o.handle("delete", func(ctx context.Context, args engine.Args) (any, error) {
		return done(v.Delete())
	})
	o.handle("path", func(ctx context.Context, args engine.Args) (any, error) {
		return value(v.Path())
	})
	o.handle("saveAs", func(ctx context.Context, args engine.Args) (any, error) {
		path, err := args.String(0)
		if err != nil {
			return nil, err
		}
		return done(v.SaveAs(path))
	})
}

func bindFileChooser(o *object, fc playwright.FileChooser) {
	o.handle("element", func(ctx context.Context, args engine.Args) (any, error) {
		return wrapOrNil(o.l, fc.Element(), nil)
	})
	o.handle("isMultiple", func(ctx context.Context, args engine.Args) (any, error) {
		return fc.IsMultiple(), nil
	})
	o.handle("page", func(ctx context.Context, args engine.Args) (any, error) {
		return wrapOrNil(o.l, fc.Page(), nil)
	})
	o.handle("setFiles", func(ctx context.Context, args engine.Args) (any, error) {
		files, err := stringList(args, 0)
		if err != nil {
			return nil, err
		}
		return done(fc.SetFiles(files))
	})
}

func bindDownload(o *object, d playwright.Download) {
	o.handle("cancel", func(ctx context.Context, args engine.Args) (any, error) {
		return done(d.Cancel())
	})
	o.handle("delete", func(ctx context.Context, args engine.Args) (any, error) {
		return done(d.Delete())
	})
	o.handle("failure", func(ctx context.Context, args engine.Args) (any, error) {
		if err := d.Failure(); err != nil {
			return err.Error(), nil
		}
		return nil, nil
	})
	o.handle("page", func(ctx context.Context, args engine.Args) (any, error) {
		return wrapOrNil(o.l, d.Page(), nil)
	})
	o.handle("path", func(ctx context.Context, args engine.Args) (any, error) {
		return value(d.Path())
	})
	o.handle("saveAs", func(ctx context.Context, args engine.Args) (any, error) {
		path, err := args.String(0)
		if err != nil {
			return nil, err
		}
		return done(d.SaveAs(path))
	})
	o.handle("suggestedFilename", func(ctx context.Context, args engine.Args) (any, error) {
		return d.SuggestedFilename(), nil
	})
	o.handle("url", func(ctx context.Context, args engine.Args) (any, error) {
		return d.URL(), nil
	})
}
