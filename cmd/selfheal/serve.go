package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/loykin/selfheal/internal/config"
	"github.com/loykin/selfheal/internal/instance"
	"github.com/loykin/selfheal/internal/logger"
	"github.com/loykin/selfheal/internal/metrics"
	"github.com/loykin/selfheal/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func createServeCommand(flags *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the liveness and crash endpoints",
		Long: `Bind host:port and serve:
  GET /       200 "Self-Healing App is Running"
  GET /crash  drop the connection and exit with status 1

SIGINT/SIGTERM shut down gracefully with exit status 0.

Environment:
  SELFHEAL_HOST, SELFHEAL_PORT            bind address (default 0.0.0.0:5000)
  SELFHEAL_STARTUP_TIMEOUT                bound for reaching ready (default 10s)
  SELFHEAL_SHUTDOWN_TIMEOUT               graceful shutdown budget (default 5s)
  SELFHEAL_PID_FILE                       optional pid file
  SELFHEAL_LOG_LEVEL, SELFHEAL_LOG_FORMAT text|json|color
  SELFHEAL_LOG_FILE                       rotated log file instead of stderr
  SELFHEAL_LOG_JOURNAL                    log to the systemd journal
  SELFHEAL_METRICS_ENABLED                expose GET /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := config.NewViper()
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&flags.Host, "host", config.DefaultHost, "address to bind")
	cmd.Flags().IntVar(&flags.Port, "port", config.DefaultPort, "port to bind")
	return cmd
}

// runServe returns only on graceful shutdown or startup failure. An induced
// crash exits the process from inside the handler.
func runServe(ctx context.Context, cfg config.Config) error {
	log, closer, err := logger.New(cfg.Log.Logger())
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	inst := instance.New()
	log = log.With("instance_id", inst.ID, "pid", inst.PID)

	if cfg.Metrics.Enabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			log.Warn("failed to register metrics", "error", err)
		}
	}
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting", "addr", cfg.Addr(), "version", version)
	if err := server.New(cfg, inst, log).Run(ctx); err != nil {
		log.Error("server stopped", "error", err)
		return err
	}
	log.Info("stopped")
	return nil
}
