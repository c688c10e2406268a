package cmd

import (
	"github.com/spf13/cobra"
)

var restartCmd = &cobra.Command{
	Use:   "restart [mode]",
	Short: "Stop and start the stack in the given mode",
	Long: `Stops the group of the given mode (default prod) and runs the full start
sequence again, including health checks. Accepts the same flags as start.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"dev", "development", "prod", "production", "standard"},
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDriver()
		if err != nil {
			return err
		}
		res, err := d.Restart(cmd.Context(), startOptions(args))
		if err != nil {
			return err
		}
		printStartResult(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restartCmd)

	restartCmd.Flags().BoolVar(&startBuild, "build", false, "Rebuild images before starting")
	restartCmd.Flags().BoolVar(&startSkipHealth, "skip-health", false, "Do not wait for health checks")
	restartCmd.Flags().DurationVar(&startInterval, "interval", 0, "Delay between health probes (default from config, 2s)")
	restartCmd.Flags().IntVar(&startMaxAttempts, "max-attempts", 0, "Health probes per target before giving up (default from config, 30)")
}
