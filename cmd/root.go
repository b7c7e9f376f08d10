package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"fleetd/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
)

// rootDir is the supervisor root directory shared by every subcommand that
// needs to locate the IPC socket or the kernel's on-disk state; serve also
// uses it as the daemon's working root.
var rootDir string

// clientSocketPath overrides the IPC socket location a client command
// dials, for a supervisor started with a non-default --socket.
var clientSocketPath string

// logLevelFlag is the --log-level value shared by every subcommand.
var logLevelFlag string

func parseLogLevel(s string) logging.LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// socketPath returns the local IPC socket path a client command should
// dial: the --socket override if set, else <root>/fleetd.sock.
func socketPath() string {
	if clientSocketPath != "" {
		return clientSocketPath
	}
	return filepath.Join(rootDir, "fleetd.sock")
}

// rootCmd represents the base command for the fleetd application.
var rootCmd = &cobra.Command{
	Use:   "fleetd",
	Short: "Resolve, fetch, and run versioned components on this device",
	Long: `fleetd is an on-device component orchestrator: it resolves a group's
root component versions against declared dependency constraints, fetches
and verifies their artifacts, and merges the running topology to match —
starting, stopping, and restarting components as a deployment requires.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.InitForCLI(parseLogLevel(logLevelFlag), os.Stderr)
		return nil
	},
}

// SetVersion sets the version for the root command, injected at build time
// from main.main().
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "fleetd version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", defaultRootDir(), "supervisor root directory (packages/, deployments/, state/, and the IPC socket live under it)")
	rootCmd.PersistentFlags().StringVar(&clientSocketPath, "socket", "", "local IPC socket path to dial (default <root>/fleetd.sock)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(componentsCmd)
	rootCmd.AddCommand(statusCmd)
}

func defaultRootDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".fleetd")
	}
	return "/var/lib/fleetd"
}
