package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command with all subcommands attached
func buildRoot() *cobra.Command {
	root := createRootCommand()
	root.AddCommand(
		createServeCommand(&ServeFlags{}),
		createProbeCommand(&ProbeFlags{}),
		createVersionCommand(),
	)
	return root
}

func createRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "selfheal",
		Short: "Liveness and crash endpoints for exercising supervisor restarts",
		Long: `selfheal serves a liveness endpoint and a deliberate-failure endpoint.
It never restarts itself: run it under a supervisor with an "always restart"
policy and point the supervisor's health probe at GET /.

Examples:
  selfheal serve                         # listen on 0.0.0.0:5000
  selfheal serve --port 8080
  SELFHEAL_PORT=8080 selfheal serve
  selfheal probe --url http://127.0.0.1:5000   # exit 0 when alive`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
