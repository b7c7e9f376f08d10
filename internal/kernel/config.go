package kernel

import (
	"path/filepath"
	"time"
)

// Config is fleetd serve's bootstrap configuration, the cobra-flag-driven
// analogue of the teacher's app.Config.
type Config struct {
	// RootDir is the supervisor root: packages/, deployments/, and
	// state/ all live under it.
	RootDir string

	// SocketPath is the local IPC Unix domain socket path. Defaults to
	// <RootDir>/fleetd.sock if empty.
	SocketPath string

	// PreloadRecipeDir and PreloadArtifactDir, if set, back a
	// fetch.LocalCollaborator used as the artifact collaborator instead
	// of an HTTP endpoint; the store fetches from them on a cache miss.
	// The IPC UpdateRecipesAndArtifacts call takes no directories and
	// copies nothing into the store; it only prunes.
	PreloadRecipeDir    string
	PreloadArtifactDir  string
	CollaboratorBaseURL string

	// OS and Arch override runtime.GOOS/runtime.GOARCH, for cross-
	// platform recipe testing; empty means use the host's.
	OS, Arch string

	// DefaultDeploymentTimeout bounds a deployment lacking its own
	// componentUpdatePolicy.timeoutSeconds-derived deadline.
	DefaultDeploymentTimeout time.Duration

	Debug bool
}

// DefaultConfig returns a Config with the supervisor rooted at root and
// every other field defaulted.
func DefaultConfig(root string) Config {
	return Config{
		RootDir:                  root,
		DefaultDeploymentTimeout: 10 * time.Minute,
	}
}

func (c Config) socketPath() string {
	if c.SocketPath != "" {
		return c.SocketPath
	}
	return filepath.Join(c.RootDir, "fleetd.sock")
}

func (c Config) stateDir() string {
	return filepath.Join(c.RootDir, "state")
}

func (c Config) deploymentsDir() string {
	return filepath.Join(c.RootDir, "deployments")
}

func (c Config) packagesRoot() string {
	return filepath.Join(c.RootDir, "packages")
}
