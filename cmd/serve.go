package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fleetd/internal/kernel"
	"fleetd/pkg/logging"
)

var (
	serveDebug               bool
	servePreloadRecipeDir    string
	servePreloadArtifactDir  string
	serveCollaboratorBaseURL string
	serveDeploymentTimeout   time.Duration
)

// serveCmd starts the supervisor loop: the orchestrator's deployment lane
// and the local IPC listener, blocking until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the fleetd supervisor",
	Long: `Starts the fleetd supervisor: the deployment orchestrator's single-writer
lane and the local IPC listener components and the CLI talk to. Runs until
interrupted.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	level := parseLogLevel(logLevelFlag)
	if serveDebug {
		level = logging.LevelDebug
	}
	logging.InitForDaemon(level, os.Stderr)

	cfg := kernel.DefaultConfig(rootDir)
	cfg.Debug = serveDebug
	cfg.SocketPath = clientSocketPath
	cfg.PreloadRecipeDir = servePreloadRecipeDir
	cfg.PreloadArtifactDir = servePreloadArtifactDir
	cfg.CollaboratorBaseURL = serveCollaboratorBaseURL
	if serveDeploymentTimeout > 0 {
		cfg.DefaultDeploymentTimeout = serveDeploymentTimeout
	}

	k, err := kernel.New(cfg)
	if err != nil {
		return fmt.Errorf("initializing supervisor: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := k.Run(ctx); err != nil {
		if errors.Is(err, kernel.ErrRestartRequested) {
			logging.Info("cmd", "exiting for a supervisor restart to resume a suspended deployment")
			return nil
		}
		return err
	}
	return nil
}

func init() {
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "enable debug logging")
	serveCmd.Flags().StringVar(&servePreloadRecipeDir, "preload-recipes", "", "offline recipe directory backing the collaborator")
	serveCmd.Flags().StringVar(&servePreloadArtifactDir, "preload-artifacts", "", "offline artifact directory backing the collaborator")
	serveCmd.Flags().StringVar(&serveCollaboratorBaseURL, "collaborator-url", "", "HTTP base URL of the remote artifact collaborator")
	serveCmd.Flags().DurationVar(&serveDeploymentTimeout, "deployment-timeout", 0, "default per-deployment timeout (default 10m)")
}
