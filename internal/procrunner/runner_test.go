package procrunner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/component"
	"fleetd/internal/lifecycle"
	"fleetd/internal/registry"
)

func mustID(t *testing.T, name, version string) component.Identifier {
	t.Helper()
	id, err := component.NewIdentifier(name, version)
	require.NoError(t, err)
	return id
}

func TestRunner_StartWithoutRunStageFinishesImmediately(t *testing.T) {
	r := New(nil)
	inst := registry.NewInstance(registry.Identifier{Name: "svc", Version: "1.0.0"})
	state := lifecycle.ComponentState{
		Identifier: mustID(t, "svc", "1.0.0"),
		Recipe: component.Recipe{
			Lifecycle: map[component.LifecycleStageName]component.LifecycleStage{
				component.StageInstall: {Name: component.StageInstall, Script: "true"},
			},
		},
	}

	err := r.Start(context.Background(), state, inst)
	require.NoError(t, err)
	assert.Equal(t, registry.StateFinished, inst.State())
}

func TestRunner_StartWithRunStageTransitionsToRunning(t *testing.T) {
	r := New(nil)
	inst := registry.NewInstance(registry.Identifier{Name: "svc", Version: "1.0.0"})
	state := lifecycle.ComponentState{
		Identifier: mustID(t, "svc", "1.0.0"),
		Recipe: component.Recipe{
			Lifecycle: map[component.LifecycleStageName]component.LifecycleStage{
				component.StageRun: {Name: component.StageRun, Script: "sleep 5"},
			},
		},
	}

	err := r.Start(context.Background(), state, inst)
	require.NoError(t, err)
	assert.Equal(t, registry.StateRunning, inst.State())

	err = r.Stop(context.Background(), state, inst)
	require.NoError(t, err)
	assert.Equal(t, registry.StateFinished, inst.State())
}

func TestRunner_SkipIfOnPathGatesStage(t *testing.T) {
	r := New(nil)
	inst := registry.NewInstance(registry.Identifier{Name: "svc", Version: "1.0.0"})
	state := lifecycle.ComponentState{
		Identifier: mustID(t, "svc", "1.0.0"),
		Recipe: component.Recipe{
			Lifecycle: map[component.LifecycleStageName]component.LifecycleStage{
				component.StageInstall: {Name: component.StageInstall, Script: "exit 1", SkipIf: "onpath sh"},
			},
		},
	}

	err := r.Start(context.Background(), state, inst)
	require.NoError(t, err)
	assert.Equal(t, registry.StateFinished, inst.State())
}

func TestRunner_InstallStageFailureReturnsError(t *testing.T) {
	r := New(nil)
	inst := registry.NewInstance(registry.Identifier{Name: "svc", Version: "1.0.0"})
	state := lifecycle.ComponentState{
		Identifier: mustID(t, "svc", "1.0.0"),
		Recipe: component.Recipe{
			Lifecycle: map[component.LifecycleStageName]component.LifecycleStage{
				component.StageInstall: {Name: component.StageInstall, Script: "exit 1"},
			},
		},
	}

	err := r.Start(context.Background(), state, inst)
	require.Error(t, err)
}

func TestRunner_RunBootstrapWithoutBootstrapStageNeverRequestsRestart(t *testing.T) {
	r := New(nil)
	state := lifecycle.ComponentState{
		Identifier: mustID(t, "svc", "1.0.0"),
		Recipe:     component.Recipe{},
	}

	restart, err := r.RunBootstrap(context.Background(), state)
	require.NoError(t, err)
	assert.False(t, restart)
}

func TestRunner_RunBootstrapDetectsRestartSentinelExitCode(t *testing.T) {
	r := New(nil)
	state := lifecycle.ComponentState{
		Identifier: mustID(t, "svc", "1.0.0"),
		Recipe: component.Recipe{
			Lifecycle: map[component.LifecycleStageName]component.LifecycleStage{
				component.StageBootstrap: {Name: component.StageBootstrap, Script: "exit 75"},
			},
		},
	}

	restart, err := r.RunBootstrap(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, restart)
}

func TestRunner_RunBootstrapNonSentinelFailureIsAnError(t *testing.T) {
	r := New(nil)
	state := lifecycle.ComponentState{
		Identifier: mustID(t, "svc", "1.0.0"),
		Recipe: component.Recipe{
			Lifecycle: map[component.LifecycleStageName]component.LifecycleStage{
				component.StageBootstrap: {Name: component.StageBootstrap, Script: "exit 1"},
			},
		},
	}

	restart, err := r.RunBootstrap(context.Background(), state)
	require.Error(t, err)
	assert.False(t, restart)
}

func TestRunner_AwaitExitClearsBookkeeping(t *testing.T) {
	r := New(nil)
	inst := registry.NewInstance(registry.Identifier{Name: "svc", Version: "1.0.0"})
	state := lifecycle.ComponentState{
		Identifier: mustID(t, "svc", "1.0.0"),
		Recipe: component.Recipe{
			Lifecycle: map[component.LifecycleStageName]component.LifecycleStage{
				component.StageRun: {Name: component.StageRun, Script: "true"},
			},
		},
	}
	require.NoError(t, r.Start(context.Background(), state, inst))

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		_, ok := r.processes["svc"]
		return !ok
	}, time.Second, 5*time.Millisecond)
}
