package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/morezero/browser-bridge/pkg/dispatcher"
	"github.com/morezero/browser-bridge/pkg/metrics"
	"github.com/morezero/browser-bridge/pkg/registry"
)

const httpLogPrefix = "server:http"

// maxBodyBytes bounds a request body; script sources are the largest legitimate payloads.
const maxBodyBytes = 8 << 20

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHome())
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Post("/session", s.handleSession)
	r.Get("/session", s.handleSession)
	r.Post("/command", s.handleCommand)
	r.Get("/command", s.handleCommand)
	r.Post("/shutdown", s.handleShutdown)
	r.Get("/shutdown", s.handleShutdown)
	return r
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var req dispatcher.SessionRequest
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req.Type = q.Get("type")
		if args := q.Get("args"); args != "" {
			req.Args = json.RawMessage(args)
		}
	} else if err := decodeBody(r, &req); err != nil {
		writeResult(w, dispatcher.BadRequest(err))
		return
	}
	writeResult(w, s.disp.Launch(r.Context(), &req))
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req dispatcher.CommandRequest
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req.Type, req.Object, req.Command = q.Get("type"), q.Get("object"), q.Get("command")
		if args := q.Get("args"); args != "" {
			req.Args = json.RawMessage(args)
		}
	} else if err := decodeBody(r, &req); err != nil {
		writeResult(w, dispatcher.BadRequest(err))
		return
	}
	writeResult(w, s.disp.Dispatch(r.Context(), &req))
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	writeResult(w, s.disp.Shutdown(ctx))
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	s.requestStop()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.reg.Health()); err != nil {
		slog.Error(fmt.Sprintf("%s - health encode: %v", httpLogPrefix, err))
	}
}

// decodeBody reads a JSON request body. An empty body decodes to the zero request.
func decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return fmt.Errorf("malformed JSON at offset %d", syntaxErr.Offset)
		}
		return err
	}
	return nil
}

// writeResult always answers 200; clients inspect the error field.
func writeResult(w http.ResponseWriter, res *dispatcher.Result) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error(fmt.Sprintf("%s - response encode: %v", httpLogPrefix, err))
	}
}

// homePageTemplate is the HTML for the bridge home page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Browser Bridge</title>
  <style>
    * { box-sizing: border-box; }
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2 { color: #0066cc; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; vertical-align: top; }
    th { background: #f0f4f8; color: #0066cc; }
    .stat { font-weight: bold; color: #0066cc; }
    .meta { color: #333; font-size: 0.9rem; margin-top: 1rem; }
    .ops { font-family: ui-monospace, monospace; font-size: 0.85rem; }
    section { margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>Browser Bridge</h1>
  <p class="meta">Session objects and the capability spec commands are checked against.</p>

  <section>
    <h2>Session</h2>
    <p>Status: <span class="stat">{{.Health.Status}}</span></p>
    <p>Live objects: <span class="stat">{{.Health.Objects}}</span></p>
    <p>Scripts: {{if .AllowScripts}}<span class="stat">enabled</span>{{else}}disabled{{end}}</p>
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  <section>
    <h2>Objects</h2>
    {{if not .Objects}}
    <p>No objects registered. Start a session with POST /session.</p>
    {{else}}
    <table>
      <thead><tr><th>Id</th><th>Type</th></tr></thead>
      <tbody>
        {{range .Objects}}<tr><td>{{.ID}}</td><td>{{.Type}}</td></tr>{{end}}
      </tbody>
    </table>
    {{end}}
  </section>

  <section>
    <h2>Capability spec</h2>
    <table>
      <thead><tr><th>Type</th><th>Commands</th></tr></thead>
      <tbody>
        {{range .Types}}<tr><td>{{.Name}}</td><td class="ops">{{range .Operations}}{{.}} {{end}}</td></tr>{{end}}
      </tbody>
    </table>
  </section>
</body>
</html>
`

type homeType struct {
	Name       string
	Operations []string
}

// homeData is the data passed to the home page template.
type homeData struct {
	Health       *registry.HealthOutput
	Objects      []registry.ObjectRef
	Types        []homeType
	AllowScripts bool
}

// handleHome returns an HTTP handler for the bridge home page.
func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		data := homeData{Health: s.reg.Health(), AllowScripts: s.cfg.AllowScripts}
		for _, h := range s.reg.Handles() {
			data.Objects = append(data.Objects, h.Ref())
		}
		spec := s.disp.Spec()
		types := spec.Types()
		sort.Strings(types)
		for _, t := range types {
			data.Types = append(data.Types, homeType{Name: t, Operations: spec.Operations(t)})
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", httpLogPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
