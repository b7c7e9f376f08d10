package component

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRecipe = `
ComponentName: com.example.SimpleApp
ComponentVersion: 1.0.0
ComponentType: GENERIC
ComponentConfiguration:
  DefaultConfiguration:
    singleLevelKey: "default value of singleLevelKey"
    listKey: ["item1", "item2"]
    path:
      leafKey: "default value of /path/leafKey"
ComponentDependencies:
  Mosquitto:
    VersionRequirement: "^2.0.0"
    DependencyType: HARD
Manifests:
  - Platform:
      os: linux
    Artifacts:
      - URI: "greengrass:/SimpleApp/1.0.0/app.tar.xz"
        Digest: "blake2b-256:deadbeef"
        Unarchive: TAR_XZ
Lifecycle:
  run:
    Script: "./app --config {configuration:/singleLevelKey}"
`

func TestParseRecipeYAML(t *testing.T) {
	r, err := ParseRecipeYAML([]byte(sampleRecipe))
	require.NoError(t, err)

	assert.Equal(t, "com.example.SimpleApp", r.Identifier.Name)
	assert.Equal(t, "1.0.0", r.Identifier.Version.String())
	assert.Equal(t, TypeGeneric, r.Type)

	cfg, ok := r.DefaultConfiguration.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "default value of singleLevelKey", cfg["singleLevelKey"])

	dep, ok := r.Dependencies["Mosquitto"]
	require.True(t, ok)
	assert.Equal(t, DependencyHard, dep.Kind)
	c, err := dep.Constraints()
	require.NoError(t, err)
	assert.True(t, c.Check(semver.MustParse("2.1.0")))
	assert.False(t, c.Check(semver.MustParse("3.0.0")))

	arts := r.ArtifactsForPlatform("linux", "amd64")
	require.Len(t, arts, 1)
	assert.Equal(t, UnarchiveTarXZ, arts[0].Unarchive)

	stage, ok := r.Lifecycle[StageRun]
	require.True(t, ok)
	assert.Contains(t, stage.Script, "{configuration:/singleLevelKey}")
}

func TestParseRecipeYAML_InvalidVersion(t *testing.T) {
	_, err := ParseRecipeYAML([]byte("ComponentName: x\nComponentVersion: not-a-version\n"))
	assert.Error(t, err)
}

func TestDeepCopyGenericIsolatesRecipeDefaults(t *testing.T) {
	r, err := ParseRecipeYAML([]byte(sampleRecipe))
	require.NoError(t, err)

	cfg := r.DefaultConfiguration.(map[string]interface{})
	cfg["singleLevelKey"] = "mutated"

	r2, err := ParseRecipeYAML([]byte(sampleRecipe))
	require.NoError(t, err)
	cfg2 := r2.DefaultConfiguration.(map[string]interface{})
	assert.Equal(t, "default value of singleLevelKey", cfg2["singleLevelKey"])
}
