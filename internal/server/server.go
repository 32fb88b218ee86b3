package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/loykin/selfheal/internal/config"
	"github.com/loykin/selfheal/internal/fault"
	"github.com/loykin/selfheal/internal/instance"
	"github.com/loykin/selfheal/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// ErrStartupTimeout is returned by Run when the listener could not be bound
// within the configured startup interval.
var ErrStartupTimeout = errors.New("startup interval exceeded")

// Server binds the fixed service address and serves the Router on it.
// It is built explicitly from a Config; there is no package-level app.
type Server struct {
	cfg  config.Config
	inst *instance.Instance
	log  *slog.Logger
	http *http.Server

	mu   sync.Mutex
	addr net.Addr
}

type Option func(*RouterOptions)

// WithInjector replaces the default failure injector, mostly for tests that
// must survive a crash request.
func WithInjector(inj *fault.Injector) Option {
	return func(o *RouterOptions) { o.Injector = inj }
}

func New(cfg config.Config, inst *instance.Instance, log *slog.Logger, opts ...Option) *Server {
	if log == nil {
		log = slog.Default()
	}
	ro := RouterOptions{Instance: inst, Logger: log, Metrics: cfg.Metrics.Enabled}
	for _, o := range opts {
		o(&ro)
	}
	return &Server{
		cfg:  cfg,
		inst: inst,
		log:  log,
		http: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           NewRouter(ro).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Addr returns the bound listener address, or nil before the server is ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run binds the configured address and serves until ctx is cancelled, then
// shuts down gracefully and returns nil. Failing to bind within
// StartupTimeout returns an error wrapping ErrStartupTimeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.Listen(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.inst.MarkTerminated()
		return err
	}
	return s.Serve(ctx, ln)
}

// Listen binds the configured address, retrying every BindRetryInterval until
// StartupTimeout elapses. A previous instance may still hold the port for a
// moment while it is being torn down.
func (s *Server) Listen(ctx context.Context) (net.Listener, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()
	var lc net.ListenConfig
	addr := s.cfg.Addr()
	for attempt := 1; ; attempt++ {
		ln, err := lc.Listen(ctx, "tcp", addr)
		if err == nil {
			return ln, nil
		}
		s.log.Warn("bind failed", "addr", addr, "attempt", attempt, "error", err)
		t := time.NewTimer(s.cfg.BindRetryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("%w: %s not bound within %s: %v", ErrStartupTimeout, addr, s.cfg.StartupTimeout, err)
		case <-t.C:
		}
	}
}

// Serve marks the instance ready and serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.inst.MarkReady(); err != nil {
		_ = ln.Close()
		return err
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	metrics.SetInstance(s.inst.ID, s.inst.StartedAt)
	metrics.SetReady(true, s.inst.StartupDuration())
	if err := s.inst.WritePIDFile(s.cfg.PIDFile); err != nil {
		s.log.Warn("write pid file failed", "path", s.cfg.PIDFile, "error", err)
	}
	s.log.Info("ready", "addr", ln.Addr().String(), "startup", s.inst.StartupDuration())
	s.sdNotify(daemon.SdNotifyReady)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})
	return g.Wait()
}

// shutdown is the normal, graceful exit path. The fault injector never
// reaches it.
func (s *Server) shutdown() error {
	s.log.Info("shutting down", "timeout", s.cfg.ShutdownTimeout)
	s.sdNotify(daemon.SdNotifyStopping)
	metrics.SetReady(false, 0)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	err := s.http.Shutdown(ctx)
	s.inst.MarkTerminated()
	if rerr := instance.RemovePIDFile(s.cfg.PIDFile); rerr != nil {
		s.log.Warn("remove pid file failed", "path", s.cfg.PIDFile, "error", rerr)
	}
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
