package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"researchctl/internal/lifecycle"
	"researchctl/internal/teardown"
	"researchctl/internal/tui/design"
)

var (
	stopClean   bool
	stopArchive bool
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop every deep-researcher container",
	Long: `Stops the stack whichever mode started it. Every known overlay combination
is tried, then any container still named with the project prefix is
force-removed.

Succeeds when nothing is running. Fails only when the container runtime
itself cannot be invoked.

With --clean, dangling images and the build cache are pruned afterwards.
With --archive, the results directory is packed into a tarball first.`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	d, err := newDriver()
	if err != nil {
		return err
	}
	report, err := d.Stop(cmd.Context(), lifecycle.StopOptions{Clean: stopClean, Archive: stopArchive})
	if err != nil {
		return err
	}
	printStopReport(cmd.OutOrStdout(), report)
	return nil
}

func printStopReport(w io.Writer, r *teardown.Report) {
	if r.StoppedCount() == 0 && len(r.StopErrors) == 0 {
		fmt.Fprintln(w, design.TextSecondaryStyle.Render(design.IconStopped+" Nothing was running"))
	}
	for _, g := range r.Stopped {
		fmt.Fprintf(w, "%s Stopped [%s] (%d container(s))\n", design.IconStopped, g.Overlays.Key(), len(g.Containers))
	}
	for _, c := range r.Orphans {
		fmt.Fprintf(w, "%s Removed orphan %s (%s)\n", design.IconStopped, c.Name, c.ShortID())
	}
	if r.Reclaimed {
		fmt.Fprintln(w, "Pruned dangling images and build cache")
	}
	if err := r.Errors(); err != nil {
		fmt.Fprintln(w, design.TextWarningStyle.Render("! Teardown finished with problems: "+err.Error()))
	}
}

func init() {
	rootCmd.AddCommand(stopCmd)

	stopCmd.Flags().BoolVar(&stopClean, "clean", false, "Prune dangling images and build cache after stopping")
	stopCmd.Flags().BoolVar(&stopArchive, "archive", false, "Archive the results directory before stopping")
}
