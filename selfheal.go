package selfheal

import (
	"log/slog"

	"github.com/loykin/selfheal/internal/config"
	"github.com/loykin/selfheal/internal/instance"
	"github.com/loykin/selfheal/internal/metrics"
	"github.com/loykin/selfheal/internal/server"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = config.Config

type Instance = instance.Instance

type Status = instance.Status

type Server = server.Server

type Router = server.Router

func DefaultConfig() Config { return config.Default() }

// LoadConfig reads SELFHEAL_* environment variables on top of the defaults.
func LoadConfig() (Config, error) { return config.Load(config.NewViper()) }

func NewInstance() *Instance { return instance.New() }

// NewServer builds a server for cfg. Run binds the address and marks inst ready.
func NewServer(cfg Config, inst *Instance, log *slog.Logger) *Server {
	return server.New(cfg, inst, log)
}

// NewRouter returns the liveness and crash routes for mounting into another
// server. The caller marks inst ready once its listener is bound; until then
// the routes answer 503. GET /crash terminates the hosting process.
func NewRouter(inst *Instance, log *slog.Logger, withMetrics bool) *Router {
	return server.NewRouter(server.RouterOptions{Instance: inst, Logger: log, Metrics: withMetrics})
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
