package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, failureStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "biosim-runner",
		Short: "Drive a BioSim backend through one simulation run",
		Long: `biosim-runner starts the BioSim backend with docker compose, submits the
input document three times, downloads every simulation the backend reports
and shuts the backend down again.

Settings come from biosim-runner.yml, .env / BIOSIM_* environment variables
and the flags below, in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runPipeline,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default ./biosim-runner.yml when present)")
	flags.String("base-url", "", "BioSim API base URL")
	flags.String("input", "", "Simulation input document")
	flags.String("output-dir", "", "Directory for fetched simulations")
	flags.String("layout", "", "Output layout: flat, logdir or none")
	flags.Duration("startup-delay", 0, "Fixed wait after starting the backend")
	flags.String("compose-file", "", "Compose file for the backend")
	flags.String("ledger", "", "Run ledger database (\"none\" disables it)")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file after a run")
	flags.String("log-level", "", "Log level: error, warn, info, debug or trace")
	flags.Bool("no-backend", false, "Use an already running backend; skip compose up/down")
	rootCmd.Flags().Bool("tui", false, "Show an interactive progress view")

	rootCmd.AddCommand(
		newListCmd(),
		newFetchCmd(),
		newRunsCmd(),
		newInitCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "biosim-runner %s\n", versionString())
			fmt.Fprintf(out, "  commit: %s\n", gitCommit)
			fmt.Fprintf(out, "  built:  %s\n", buildTime)
		},
	}
}

// errInterrupted is reported when a signal cancelled the run
var errInterrupted = errors.New("interrupted")

func interruptErr(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return errors.Join(errInterrupted, err)
	}
	return err
}
