package deploydir

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"fleetd/pkg/logging"
)

const (
	SnapshotSubdir         = "snapshot"
	BootstrapSubdir        = "bootstrap"
	ArtifactsStagingSubdir = "artifacts-staging"
)

var unsafeChars = regexp.MustCompile(`[/\\:*?"<>|]`)

// Manager allocates and retires the scratch directory tree for each
// deployment under <root>/deployments/<id>/.
type Manager struct {
	mu   sync.Mutex
	root string
}

// New constructs a Manager rooted at root (typically <kernel
// root>/deployments).
func New(root string) *Manager {
	return &Manager{root: root}
}

func (m *Manager) sanitize(id string) string {
	return unsafeChars.ReplaceAllString(id, "_")
}

// Path returns the deployment directory for id without creating it.
func (m *Manager) Path(id string) string {
	return filepath.Join(m.root, m.sanitize(id))
}

// CreateIfNotExists returns the deployment directory for id, creating it
// and its snapshot/bootstrap/artifacts-staging subfolders if they do not
// already exist. Calling it twice for the same id is a no-op the second
// time: an existing directory is returned untouched.
func (m *Manager) CreateIfNotExists(id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := m.Path(id)
	for _, sub := range []string{SnapshotSubdir, BootstrapSubdir, ArtifactsStagingSubdir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return "", fmt.Errorf("failed to create directory %s: %w", filepath.Join(dir, sub), err)
		}
	}

	logging.Info("deploydir", "deployment directory ready for %s at %s", id, dir)
	return dir, nil
}

// Snapshot returns the snapshot subdirectory for id, which must already
// have been created via CreateIfNotExists.
func (m *Manager) Snapshot(id string) string {
	return filepath.Join(m.Path(id), SnapshotSubdir)
}

// Bootstrap returns the bootstrap subdirectory for id.
func (m *Manager) Bootstrap(id string) string {
	return filepath.Join(m.Path(id), BootstrapSubdir)
}

// ArtifactsStaging returns the artifacts-staging subdirectory for id.
func (m *Manager) ArtifactsStaging(id string) string {
	return filepath.Join(m.Path(id), ArtifactsStagingSubdir)
}

// Remove deletes the deployment directory for id. Per §4.6, callers
// should only do this for completed, non-bootstrap deployments.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := m.Path(id)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove deployment directory %s: %w", dir, err)
	}
	logging.Info("deploydir", "removed deployment directory for %s", id)
	return nil
}

// Exists reports whether a deployment directory has already been
// allocated for id.
func (m *Manager) Exists(id string) bool {
	_, err := os.Stat(m.Path(id))
	return err == nil
}

// List returns the sanitized directory name of every deployment currently
// allocated under root, for callers that need to scan for in-progress
// deployments (the kernel's §4.4.1 KERNEL_ACTIVATION resume at startup).
// A name here is the sanitized form Path would produce, not necessarily
// the original deployment ID.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list deployment directory %s: %w", m.root, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}
