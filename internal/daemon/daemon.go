// Package daemon hosts the coordinator behind the loopback HTTP API and
// manages the background server's PID and log files.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/joescharf/shamescroll/internal/api"
	"github.com/joescharf/shamescroll/internal/blocking"
	"github.com/joescharf/shamescroll/internal/broadcast"
	"github.com/joescharf/shamescroll/internal/coordinator"
	"github.com/joescharf/shamescroll/internal/models"
	"github.com/joescharf/shamescroll/internal/store"
	"github.com/joescharf/shamescroll/internal/ui"
)

// DefaultAddr is the loopback address the API listens on.
const DefaultAddr = "127.0.0.1:8721"

const shutdownTimeout = 5 * time.Second

// Options configure a Daemon.
type Options struct {
	Addr        string
	DBPath      string
	Version     string
	Coordinator coordinator.Config
	Logger      *slog.Logger
}

// Daemon owns the store, the coordinator and the HTTP server.
type Daemon struct {
	opts   Options
	logger *slog.Logger
	reason coordinator.InitReason

	store *store.SQLiteStore
	hub   *broadcast.Hub
	coord *coordinator.Coordinator
	srv   *http.Server

	cancelBase context.CancelFunc
	serveErr   chan error
}

// New opens the database and wires the coordinator. Nothing is served
// until Listen.
func New(opts Options) (*Daemon, error) {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	_, statErr := os.Stat(opts.DBPath)
	fresh := errors.Is(statErr, os.ErrNotExist)

	s, err := store.NewSQLiteStore(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	hub := broadcast.NewHub()
	engine := blocking.NewStoreEngine(s)
	engine.OnChange = func(rules []models.BlockRule) {
		hub.Publish(broadcast.Message{
			Type:    broadcast.TypeRulesUpdate,
			Payload: map[string]any{"rules": rules},
		})
	}

	coord, err := coordinator.New(opts.Coordinator, coordinator.Deps{
		Store:     s,
		Rules:     engine,
		Publisher: hub,
		Logger:    opts.Logger,
	})
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &Daemon{
		opts:   opts,
		logger: opts.Logger,
		store:  s,
		hub:    hub,
		coord:  coord,
		reason: coordinator.InitStartup,
	}
	if fresh {
		d.reason = coordinator.InitInstall
	} else if v, _ := s.GetSetting(context.Background(), store.SettingVersion); v != opts.Version {
		d.reason = coordinator.InitUpdate
	}

	pages, err := ui.Handler()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("load pages: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/api/", api.NewServer(coord, s, engine, hub, nil).Router())
	mux.Handle("/", pages)

	d.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return d, nil
}

// Coordinator returns the hosted coordinator.
func (d *Daemon) Coordinator() *coordinator.Coordinator { return d.coord }

// InitReason reports why the coordinator is (re)initialized on Listen.
func (d *Daemon) InitReason() coordinator.InitReason { return d.reason }

// Listen initializes the coordinator and starts serving in the background.
// It returns the bound address.
func (d *Daemon) Listen(ctx context.Context) (net.Addr, error) {
	if err := d.coord.Init(ctx, d.reason); err != nil {
		return nil, fmt.Errorf("initialize coordinator: %w", err)
	}
	if err := d.store.SetSetting(ctx, store.SettingVersion, d.opts.Version); err != nil {
		d.logger.Warn("record version", "error", err)
	}

	ln, err := net.Listen("tcp", d.opts.Addr)
	if err != nil {
		d.coord.Close(ctx)
		return nil, fmt.Errorf("listen on %s: %w", d.opts.Addr, err)
	}

	// Streaming handlers watch their request context; cancelling the base
	// context lets Shutdown finish without waiting them out.
	base, cancel := context.WithCancel(context.Background())
	d.cancelBase = cancel
	d.srv.BaseContext = func(net.Listener) context.Context { return base }

	d.serveErr = make(chan error, 1)
	go func() {
		err := d.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		d.serveErr <- err
	}()

	d.logger.Info("serving", "addr", ln.Addr().String(), "reason", d.reason)
	return ln.Addr(), nil
}

// Run serves until ctx is cancelled or the server fails, then shuts down.
func (d *Daemon) Run(ctx context.Context) error {
	if _, err := d.Listen(context.WithoutCancel(ctx)); err != nil {
		_ = d.store.Close()
		return err
	}
	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-d.serveErr:
		d.serveErr = nil
	}
	if err := d.Shutdown(context.Background()); err != nil {
		return err
	}
	return serveErr
}

// Shutdown stops the server, cancels timers and closes the store. Focus
// state stays persisted for the next start.
func (d *Daemon) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if d.cancelBase != nil {
		d.cancelBase()
	}
	err := d.srv.Shutdown(ctx)
	if d.serveErr != nil {
		if serr := <-d.serveErr; serr != nil && err == nil {
			err = serr
		}
	}
	d.coord.Close(ctx)
	if cerr := d.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	d.logger.Info("stopped")
	return err
}
