package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/component"
)

func TestHasBootstrapState_FalseWhenNoMarkerPersisted(t *testing.T) {
	assert.False(t, HasBootstrapState(t.TempDir()))
}

func TestSaveLoadBootstrapState_RoundTrips(t *testing.T) {
	dir := t.TempDir()

	current := map[string]ComponentState{"SimpleApp": mustState(t, "SimpleApp", "1.0.0", nil)}
	target := map[string]ComponentState{"SimpleApp": mustState(t, "SimpleApp", "2.0.0", nil)}
	deadline := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	want := BootstrapState{
		DeploymentID: "d1",
		GroupName:    "thinglight",
		Stage:        StageBootstrapPending,
		Current:      current,
		Target:       target,
		GroupRoots:   map[string][]string{"thinglight": {"SimpleApp"}},
		Policy:       PolicyRollback,
		UpdatePolicy: ComponentUpdatePolicy{TimeoutSeconds: 30, SkipSafetyChecks: true},
		Deadline:     deadline,
	}
	require.NoError(t, SaveBootstrapState(dir, want))

	require.True(t, HasBootstrapState(dir))

	recipeOf := func(name, version string) (component.Recipe, error) {
		id, err := component.NewIdentifier(name, version)
		if err != nil {
			return component.Recipe{}, err
		}
		return component.Recipe{Identifier: id}, nil
	}

	got, ok, err := LoadBootstrapState(dir, recipeOf)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, want.DeploymentID, got.DeploymentID)
	assert.Equal(t, want.GroupName, got.GroupName)
	assert.Equal(t, want.Stage, got.Stage)
	assert.Equal(t, want.GroupRoots, got.GroupRoots)
	assert.Equal(t, want.Policy, got.Policy)
	assert.Equal(t, want.UpdatePolicy, got.UpdatePolicy)
	assert.True(t, want.Deadline.Equal(got.Deadline))
	require.Contains(t, got.Current, "SimpleApp")
	assert.Equal(t, "1.0.0", got.Current["SimpleApp"].Identifier.Version.String())
	require.Contains(t, got.Target, "SimpleApp")
	assert.Equal(t, "2.0.0", got.Target["SimpleApp"].Identifier.Version.String())
}

func TestLoadBootstrapState_MissingMarkerReturnsNotOkWithoutError(t *testing.T) {
	_, ok, err := LoadBootstrapState(t.TempDir(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClearBootstrapState_RemovesMarker(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveBootstrapState(dir, BootstrapState{DeploymentID: "d1"}))
	require.True(t, HasBootstrapState(dir))

	require.NoError(t, ClearBootstrapState(dir))
	assert.False(t, HasBootstrapState(dir))
}

func TestClearBootstrapState_MissingMarkerIsNotAnError(t *testing.T) {
	require.NoError(t, ClearBootstrapState(t.TempDir()))
}
