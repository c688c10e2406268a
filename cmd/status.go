package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"researchctl/internal/status"
	"researchctl/internal/tui"
	"researchctl/pkg/logging"
)

var (
	statusWatch    bool
	statusInterval time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status [mode]",
	Short: "Show container state and access endpoints",
	Long: `Shows whether each service of the stack is running, plus the URLs of the
API, its docs and the frontend. Without a mode, the mode of the last start
is used. Nothing is started or stopped.

With --watch, a live view refreshes until q is pressed; c copies the API
URL to the clipboard.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"dev", "development", "prod", "production", "standard"},
	RunE:      runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	mode := ""
	if len(args) > 0 {
		mode = args[0]
	}
	d, err := newDriver()
	if err != nil {
		return err
	}

	snap, err := d.Status(cmd.Context(), mode)
	if err != nil {
		return err
	}
	if !statusWatch {
		fmt.Fprint(cmd.OutOrStdout(), status.Render(snap))
		return nil
	}

	// The watch view owns the terminal; keep log lines out of it.
	logging.InitForCLI(logging.LevelError, rootLogFormat, cmd.ErrOrStderr())
	return tui.Run(func(ctx context.Context) *status.Snapshot {
		s, err := d.Status(ctx, mode)
		if err != nil {
			return &status.Snapshot{QueryErr: err}
		}
		return s
	}, statusInterval)
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Keep refreshing in a live view")
	statusCmd.Flags().DurationVar(&statusInterval, "interval", 2*time.Second, "Refresh interval for --watch")
}
