package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"fleetd/internal/component"
)

// wireComponentState is Snapshot's on-disk shape: component.Identifier's
// *semver.Version doesn't round-trip through yaml.v3 directly, so the
// version is flattened to its string form, mirroring recipe_loader.go's
// wireRecipe dual wire/domain split.
type wireComponentState struct {
	Name          string      `yaml:"name"`
	Version       string      `yaml:"version"`
	Configuration interface{} `yaml:"configuration"`
}

// Snapshot is the rollback manifest persisted at §4.4 phase 2: the
// running configuration, the group-to-roots map, and a manifest of
// running versions, enough to restore exactly on ROLLBACK.
type Snapshot struct {
	Configuration   map[string]ComponentState
	GroupRoots      map[string][]string
	RunningVersions map[string]string
}

type wireSnapshot struct {
	Configuration   []wireComponentState `yaml:"configuration"`
	GroupRoots      map[string][]string  `yaml:"groupRoots"`
	RunningVersions map[string]string    `yaml:"runningVersions"`
}

const snapshotFilename = "manifest.yaml"

// SaveSnapshot persists snap under dir (the deployment's snapshot
// subdirectory from internal/deploydir), mirroring
// internal/config.Storage.Save's write-under-directory shape.
func SaveSnapshot(dir string, snap Snapshot) error {
	wire := wireSnapshot{
		GroupRoots:      snap.GroupRoots,
		RunningVersions: snap.RunningVersions,
	}
	for name, st := range snap.Configuration {
		wire.Configuration = append(wire.Configuration, wireComponentState{
			Name:          name,
			Version:       st.Identifier.Version.String(),
			Configuration: st.Configuration,
		})
	}

	data, err := yaml.Marshal(wire)
	if err != nil {
		return fmt.Errorf("failed to marshal deployment snapshot: %w", err)
	}

	path := filepath.Join(dir, snapshotFilename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write deployment snapshot %s: %w", path, err)
	}
	return nil
}

// LoadSnapshot reads back a snapshot saved by SaveSnapshot. recipeOf
// supplies the recipe for each component name, the way a caller would
// reload it from internal/store when reconstructing full ComponentState.
func LoadSnapshot(dir string, recipeOf func(name, version string) (component.Recipe, error)) (Snapshot, error) {
	path := filepath.Join(dir, snapshotFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read deployment snapshot %s: %w", path, err)
	}

	var wire wireSnapshot
	if err := yaml.Unmarshal(data, &wire); err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse deployment snapshot %s: %w", path, err)
	}

	snap := Snapshot{
		Configuration:   make(map[string]ComponentState, len(wire.Configuration)),
		GroupRoots:      wire.GroupRoots,
		RunningVersions: wire.RunningVersions,
	}
	for _, w := range wire.Configuration {
		recipe, err := recipeOf(w.Name, w.Version)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Configuration[w.Name] = ComponentState{
			Identifier:    recipe.Identifier,
			Recipe:        recipe,
			Configuration: w.Configuration,
		}
	}
	return snap, nil
}
