package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"researchctl/internal/compose"
	"researchctl/internal/config"
	"researchctl/internal/lifecycle"
	"researchctl/internal/metrics"
	"researchctl/pkg/logging"
)

var (
	rootDebug       bool
	rootLogLevel    string
	rootLogFormat   string
	rootDir         string
	rootMetricsFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "researchctl",
	Short: "Start and stop the deep-researcher stack",
	Long: `researchctl brings the deep-researcher API and frontend up in development
or production mode, waits until both answer their health checks, and tears
everything down again, including containers left behind by earlier runs.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. failed health checks)
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logging.ParseLevel(rootLogLevel)
		if rootDebug {
			level = logging.LevelDebug
		}
		switch rootLogFormat {
		case logging.FormatText, logging.FormatJSON:
		default:
			return fmt.Errorf("unsupported log format %q (use text or json)", rootLogFormat)
		}
		logging.InitForCLI(level, rootLogFormat, cmd.ErrOrStderr())
		return nil
	},
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "researchctl version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

// newRuntime is replaced in tests to avoid shelling out.
var newRuntime = func(rt *config.Runtime) compose.Runtime {
	cfg := rt.Config
	return compose.NewDockerCompose(rt.Root, cfg.Project, cfg.ComposeCommand, cfg.DockerCommand)
}

// loadRuntime resolves the invocation root and loads the layered config.
func loadRuntime() (*config.Runtime, error) {
	root := rootDir
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", rootDir, err)
	}

	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, err
	}
	return config.NewRuntime(root, cfg), nil
}

// newDriver wires a lifecycle driver for the current invocation.
func newDriver() (*lifecycle.Driver, error) {
	rt, err := loadRuntime()
	if err != nil {
		return nil, err
	}
	d := lifecycle.NewDriver(rt, newRuntime(rt), metrics.New())
	d.MetricsFile = rootMetricsFile
	return d, nil
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())

	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Enable debug logging (same as --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&rootLogFormat, "log-format", logging.FormatText, "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Project root holding the compose files (default is the current directory)")
	rootCmd.PersistentFlags().StringVar(&rootMetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after each command")
}
