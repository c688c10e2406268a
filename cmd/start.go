package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"researchctl/internal/bootstrap"
	"researchctl/internal/lifecycle"
	"researchctl/internal/status"
	"researchctl/internal/tui/design"
)

var (
	startBuild       bool
	startSkipHealth  bool
	startInterval    time.Duration
	startMaxAttempts int
)

var startCmd = &cobra.Command{
	Use:   "start [mode]",
	Short: "Start the stack and wait until it is healthy",
	Long: `Starts the deep-researcher stack in the given mode and waits for the API
and frontend to pass their health checks.

Modes:
  prod, production, standard   the base compose file only (default)
  dev, development             the base file plus the development overlay

Before anything is started, .env is created from .env.example if missing
and the persistent result directories are created. A placeholder API key
produces a warning, not a failure.

Exits non-zero if any step fails; the log line names the failing phase.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"dev", "development", "prod", "production", "standard"},
	RunE:      runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	d, err := newDriver()
	if err != nil {
		return err
	}
	res, err := d.Start(cmd.Context(), startOptions(args))
	if err != nil {
		return err
	}
	printStartResult(cmd.OutOrStdout(), res)
	return nil
}

func startOptions(args []string) lifecycle.StartOptions {
	opts := lifecycle.StartOptions{
		Build:       startBuild,
		SkipHealth:  startSkipHealth,
		Interval:    startInterval,
		MaxAttempts: startMaxAttempts,
	}
	if len(args) > 0 {
		opts.Mode = args[0]
	}
	return opts
}

func printStartResult(w io.Writer, res *lifecycle.StartResult) {
	if res.ConfigState == bootstrap.StateCreated {
		fmt.Fprintln(w, design.TextWarningStyle.Render("! A new .env was created from the template. Edit it before relying on the API."))
	}
	for _, warning := range res.Warnings {
		fmt.Fprintln(w, design.TextWarningStyle.Render(fmt.Sprintf("! %s: %s", warning, warning.Remedy())))
	}
	fmt.Fprintln(w, design.TextSuccessStyle.Render(fmt.Sprintf("%s Started in %s mode", design.IconRunning, res.Mode)))
	if res.Snapshot != nil {
		fmt.Fprintln(w)
		fmt.Fprint(w, status.Render(res.Snapshot))
	}
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().BoolVar(&startBuild, "build", false, "Rebuild images before starting")
	startCmd.Flags().BoolVar(&startSkipHealth, "skip-health", false, "Do not wait for health checks")
	startCmd.Flags().DurationVar(&startInterval, "interval", 0, "Delay between health probes (default from config, 2s)")
	startCmd.Flags().IntVar(&startMaxAttempts, "max-attempts", 0, "Health probes per target before giving up (default from config, 30)")
}
