// Package server orchestrates all components: engine, capability spec, registry, dispatcher,
// the HTTP and NATS transports and the optional journal.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/browser-bridge/internal/config"
	"github.com/morezero/browser-bridge/pkg/capspec"
	"github.com/morezero/browser-bridge/pkg/commsutil"
	"github.com/morezero/browser-bridge/pkg/db"
	"github.com/morezero/browser-bridge/pkg/dispatcher"
	"github.com/morezero/browser-bridge/pkg/engine"
	"github.com/morezero/browser-bridge/pkg/engine/pwengine"
	"github.com/morezero/browser-bridge/pkg/events"
	"github.com/morezero/browser-bridge/pkg/queue"
	"github.com/morezero/browser-bridge/pkg/registry"
	"github.com/morezero/browser-bridge/pkg/script"
	"github.com/morezero/browser-bridge/pkg/session"
)

const logPrefix = "server:server"

// Server is the browser-bridge orchestrator.
type Server struct {
	cfg        *config.Config
	disp       *dispatcher.Dispatcher
	reg        *registry.Registry
	nc         *comms.Conn
	pool       *pgxpool.Pool
	journal    *db.Journal
	httpServer *http.Server
	listener   net.Listener
	subs       []*comms.Subscription

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Run starts the server, blocks until a shutdown signal or request, then cleans up.
func Run(engineOverride string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if engineOverride != "" {
		cfg.Engine = engineOverride
	}
	SetupLogging(cfg.LogLevel)

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting browser-bridge", logPrefix))
	if cfg.AllowScripts {
		slog.Warn(fmt.Sprintf("%s - ALLOW_SCRIPTS is on: clients can run arbitrary code in the browser and in the bridge", logPrefix))
	}

	launcher := pwengine.NewLauncher(pwengine.Options{Install: cfg.InstallBrowsers, Verbose: cfg.LogLevel == "debug"})
	s, err := New(context.Background(), cfg, launcher)
	if err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		s.Close(context.Background())
		return err
	}

	slog.Info(fmt.Sprintf("%s - browser-bridge is ready", logPrefix))

	// Wait for shutdown signal or a client shutdown request
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))
	case <-s.Done():
		slog.Info(fmt.Sprintf("%s - Shutdown requested by client", logPrefix))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	s.Close(ctx)

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// SetupLogging installs the text slog handler at the named level.
func SetupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

// New wires the components. Only spec load failures and failing optional backends that were
// explicitly configured (COMMS_URL, JOURNAL_DATABASE_URL) are errors.
func New(ctx context.Context, cfg *config.Config, launcher engine.Launcher) (*Server, error) {
	s := &Server{cfg: cfg, stopCh: make(chan struct{})}

	// Step 1: Load the capability spec
	var specPaths []string
	if cfg.CapabilitySpecFile != "" {
		specPaths = append(specPaths, cfg.CapabilitySpecFile)
	}
	spec, err := capspec.LoadOrDefault(specPaths...)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to load capability spec: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Capability spec covers %d types", logPrefix, len(spec.Types())))

	// Step 2: Connect to NATS (optional)
	nc, err := commsutil.ConnectOptional(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}
	s.nc = nc

	// Step 3: Journal database (optional)
	if cfg.JournalDatabaseURL != "" {
		if err := s.openJournal(ctx); err != nil {
			s.closeComms()
			return nil, err
		}
	}

	// Step 4: Registry, queue, session and dispatcher
	var publisher events.EventPublisher = &events.NoOpPublisher{}
	if nc != nil {
		publisher = events.NewCommsPublisher(nc, &events.CommsPublisherOpts{Prefix: cfg.SubjectPrefix})
	}
	s.reg = registry.NewRegistry()
	q := queue.New(cfg.CommandTimeout)
	mgr := session.NewManager(launcher, s.reg, q, session.Options{
		Headless:      cfg.Headless,
		LaunchTimeout: cfg.LaunchTimeout,
		MinVersion:    cfg.MinBrowserVersion,
	})
	opts := dispatcher.Options{
		Spec:            spec,
		Registry:        s.reg,
		Session:         mgr,
		Queue:           q,
		Runner:          script.NewRunner(),
		Publisher:       publisher,
		AllowScripts:    cfg.AllowScripts,
		DefaultEngine:   cfg.Engine,
		CallbackTimeout: cfg.CommandTimeout,
	}
	if s.journal != nil {
		opts.Journal = s.journal
	}
	s.disp = dispatcher.NewDispatcher(opts)
	return s, nil
}

func (s *Server) openJournal(ctx context.Context) error {
	pool, err := db.NewPool(ctx, s.cfg.JournalDatabaseURL)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to journal database: %w", logPrefix, err)
	}
	if s.cfg.RunMigrations {
		migrationSQL, err := db.LoadMigrationFiles(s.cfg.MigrationPath)
		if err != nil {
			pool.Close()
			return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
		}
		if err := db.RunMigrations(ctx, pool, migrationSQL); err != nil {
			pool.Close()
			return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
		}
	}
	s.pool = pool
	s.journal = db.NewJournal(pool, 0)
	slog.Info(fmt.Sprintf("%s - Command journal enabled", logPrefix))
	return nil
}

// Start subscribes the NATS subjects and starts the HTTP listener.
func (s *Server) Start() error {
	if s.nc != nil {
		if err := s.subscribe(); err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("%s - failed to listen on %s: %w", logPrefix, s.cfg.ListenAddr(), err)
	}
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.Handler()}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, ln.Addr()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()
	return nil
}

// Addr returns the HTTP listen address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Done is closed once a client has requested shutdown.
func (s *Server) Done() <-chan struct{} { return s.stopCh }

func (s *Server) requestStop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Close stops the transports, tears the session down and releases the backends.
func (s *Server) Close(ctx context.Context) {
	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn(fmt.Sprintf("%s - unsubscribe %s: %v", logPrefix, sub.Subject, err))
		}
	}
	s.subs = nil
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
		}
	}
	if s.disp != nil {
		s.disp.Shutdown(ctx)
	}
	if s.journal != nil {
		if err := s.journal.Close(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - %v", logPrefix, err))
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
	s.closeComms()
}

func (s *Server) closeComms() {
	if s.nc == nil {
		return
	}
	if err := s.nc.Drain(); err != nil {
		slog.Warn(fmt.Sprintf("%s - NATS drain: %v", logPrefix, err))
	}
	s.nc = nil
}
