package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"fleetd/internal/component"
)

// BootstrapStage names where a bootstrap-requiring deployment sits in the
// restart chain of §4.4.1: DEFAULT -> BOOTSTRAP -> KERNEL_ACTIVATION ->
// KERNEL_ROLLBACK (terminal). Most deployments never leave DEFAULT and
// never persist a BootstrapState at all.
type BootstrapStage string

const (
	StageBootstrapPending BootstrapStage = "BOOTSTRAP"
	StageKernelActivation BootstrapStage = "KERNEL_ACTIVATION"
)

// BootstrapState is everything a suspended-for-restart deployment needs to
// resume in KERNEL_ACTIVATION after the supervisor process comes back up:
// the full before/after topology it was merging, plus enough of Apply's
// original call to finish the stop/start/commit work exactly as Apply
// would have. Persisted under the deployment's bootstrap/ subdirectory
// (internal/deploydir.Manager.Bootstrap) and read back by the kernel
// before the deployment lane accepts new tasks.
type BootstrapState struct {
	DeploymentID string
	GroupName    string
	Stage        BootstrapStage
	Current      map[string]ComponentState
	Target       map[string]ComponentState
	GroupRoots   map[string][]string
	Policy       FailureHandlingPolicy
	UpdatePolicy ComponentUpdatePolicy
	Deadline     time.Time
}

type wireBootstrapState struct {
	DeploymentID         string                `yaml:"deploymentId"`
	GroupName            string                `yaml:"groupName"`
	Stage                BootstrapStage        `yaml:"stage"`
	Current              []wireComponentState  `yaml:"current"`
	Target               []wireComponentState  `yaml:"target"`
	GroupRoots           map[string][]string   `yaml:"groupRoots"`
	Policy               FailureHandlingPolicy `yaml:"policy"`
	TimeoutSeconds       int                   `yaml:"timeoutSeconds"`
	SkipNotifyComponents []string              `yaml:"skipNotifyComponents"`
	SkipSafetyChecks     bool                  `yaml:"skipSafetyChecks"`
	Deadline             string                `yaml:"deadline,omitempty"`
}

const bootstrapStateFilename = "state.yaml"

func wireComponentStates(states map[string]ComponentState) []wireComponentState {
	out := make([]wireComponentState, 0, len(states))
	for name, st := range states {
		out = append(out, wireComponentState{
			Name:          name,
			Version:       st.Identifier.Version.String(),
			Configuration: st.Configuration,
		})
	}
	return out
}

func domainComponentStates(wire []wireComponentState, recipeOf func(name, version string) (component.Recipe, error)) (map[string]ComponentState, error) {
	out := make(map[string]ComponentState, len(wire))
	for _, w := range wire {
		recipe, err := recipeOf(w.Name, w.Version)
		if err != nil {
			return nil, err
		}
		out[w.Name] = ComponentState{
			Identifier:    recipe.Identifier,
			Recipe:        recipe,
			Configuration: w.Configuration,
		}
	}
	return out, nil
}

// SaveBootstrapState persists state under dir (a deployment's bootstrap
// subdirectory), mirroring SaveSnapshot's wire/domain split.
func SaveBootstrapState(dir string, state BootstrapState) error {
	wire := wireBootstrapState{
		DeploymentID:         state.DeploymentID,
		GroupName:            state.GroupName,
		Stage:                state.Stage,
		Current:              wireComponentStates(state.Current),
		Target:               wireComponentStates(state.Target),
		GroupRoots:           state.GroupRoots,
		Policy:               state.Policy,
		TimeoutSeconds:       state.UpdatePolicy.TimeoutSeconds,
		SkipNotifyComponents: state.UpdatePolicy.SkipNotifyComponents,
		SkipSafetyChecks:     state.UpdatePolicy.SkipSafetyChecks,
	}
	if !state.Deadline.IsZero() {
		wire.Deadline = state.Deadline.Format(time.RFC3339)
	}

	data, err := yaml.Marshal(wire)
	if err != nil {
		return fmt.Errorf("failed to marshal bootstrap state: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create bootstrap directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, bootstrapStateFilename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write bootstrap state %s: %w", path, err)
	}
	return nil
}

// HasBootstrapState reports whether dir holds a persisted bootstrap
// marker, without the caller needing a recipeOf callback just to check.
func HasBootstrapState(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, bootstrapStateFilename))
	return err == nil
}

// LoadBootstrapState reads back a state saved by SaveBootstrapState. ok is
// false, with a nil error, when dir holds no bootstrap marker at all — the
// common case on every boot that isn't resuming a suspended deployment.
func LoadBootstrapState(dir string, recipeOf func(name, version string) (component.Recipe, error)) (state BootstrapState, ok bool, err error) {
	path := filepath.Join(dir, bootstrapStateFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return BootstrapState{}, false, nil
		}
		return BootstrapState{}, false, fmt.Errorf("failed to read bootstrap state %s: %w", path, err)
	}

	var wire wireBootstrapState
	if err := yaml.Unmarshal(data, &wire); err != nil {
		return BootstrapState{}, false, fmt.Errorf("failed to parse bootstrap state %s: %w", path, err)
	}

	current, err := domainComponentStates(wire.Current, recipeOf)
	if err != nil {
		return BootstrapState{}, false, err
	}
	target, err := domainComponentStates(wire.Target, recipeOf)
	if err != nil {
		return BootstrapState{}, false, err
	}

	var deadline time.Time
	if wire.Deadline != "" {
		deadline, err = time.Parse(time.RFC3339, wire.Deadline)
		if err != nil {
			return BootstrapState{}, false, fmt.Errorf("failed to parse bootstrap state deadline %q: %w", wire.Deadline, err)
		}
	}

	return BootstrapState{
		DeploymentID: wire.DeploymentID,
		GroupName:    wire.GroupName,
		Stage:        wire.Stage,
		Current:      current,
		Target:       target,
		GroupRoots:   wire.GroupRoots,
		Policy:       wire.Policy,
		UpdatePolicy: ComponentUpdatePolicy{
			TimeoutSeconds:       wire.TimeoutSeconds,
			SkipNotifyComponents: wire.SkipNotifyComponents,
			SkipSafetyChecks:     wire.SkipSafetyChecks,
		},
		Deadline: deadline,
	}, true, nil
}

// ClearBootstrapState removes dir's persisted marker once a deployment has
// left BOOTSTRAP, either by finishing KERNEL_ACTIVATION or by never having
// requested a restart in the first place. Removing a marker that isn't
// there is not an error.
func ClearBootstrapState(dir string) error {
	err := os.Remove(filepath.Join(dir, bootstrapStateFilename))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear bootstrap state in %s: %w", dir, err)
	}
	return nil
}
