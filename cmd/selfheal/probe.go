package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/loykin/selfheal/internal/config"
	"github.com/loykin/selfheal/internal/detector"
	"github.com/loykin/selfheal/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func createProbeCommand(flags *ProbeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check the liveness endpoint once",
		Long: `Send one GET / and exit 0 on 200, 1 otherwise. Suitable for a container
HEALTHCHECK or an exec liveness probe.

With --pid-file the PID file written by serve is checked instead of the HTTP
endpoint. A file left behind by a crashed instance reports not alive.

Without --url the address comes from SELFHEAL_HOST and SELFHEAL_PORT, the same
variables serve binds with; a wildcard host is probed on loopback.

Examples:
  selfheal probe
  selfheal probe --url http://10.0.0.5:5000 --timeout 1s
  selfheal probe --pid-file /run/selfheal.pid`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd.Context(), cmd, *flags)
		},
	}
	cmd.Flags().StringVar(&flags.URL, "url", "", "base URL of the instance (default from SELFHEAL_HOST/SELFHEAL_PORT)")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", 2*time.Second, "request timeout")
	cmd.Flags().StringVar(&flags.PIDFile, "pid-file", "", "check this PID file instead of the HTTP endpoint")
	return cmd
}

func runProbe(ctx context.Context, cmd *cobra.Command, flags ProbeFlags) error {
	if flags.PIDFile != "" {
		return runDetect(cmd, detector.PIDFileDetector{PIDFile: flags.PIDFile})
	}
	if flags.URL == "" {
		flags.URL = defaultProbeURL(config.NewViper())
	}
	c := client.New(client.Config{BaseURL: flags.URL, Timeout: flags.Timeout})
	st, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("not alive: %w", err)
	}
	if !st.OK() {
		return fmt.Errorf("not alive: status %d", st.Code)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "alive instance=%s pid=%d\n", st.InstanceID, st.PID)
	return nil
}

func runDetect(cmd *cobra.Command, d detector.Detector) error {
	alive, err := d.Alive()
	if err != nil {
		return fmt.Errorf("%s: %w", d.Describe(), err)
	}
	if !alive {
		return fmt.Errorf("not alive: %s", d.Describe())
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "alive %s\n", d.Describe())
	return nil
}

// defaultProbeURL targets the address serve would bind with the same
// environment.
func defaultProbeURL(v *viper.Viper) string {
	host := v.GetString("host")
	switch host {
	case "", "0.0.0.0":
		host = "127.0.0.1"
	case "::", "[::]":
		host = "::1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(v.GetInt("port")))
}
