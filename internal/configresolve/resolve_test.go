package configresolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/component"
)

func TestResolve_AssemblesMainEntryAndInterpolatesLifecycle(t *testing.T) {
	mosquittoID := mustIdentifier(t, "Mosquitto", "2.0.0")
	redSignalID := mustIdentifier(t, "RedSignal", "1.0.0")

	inputs := map[string]ComponentInput{
		"Mosquitto": {
			Identifier: mosquittoID,
			Recipe: component.Recipe{
				Identifier:           mosquittoID,
				DefaultConfiguration: map[string]interface{}{"port": "1883"},
			},
		},
		"RedSignal": {
			Identifier: redSignalID,
			Recipe: component.Recipe{
				Identifier:           redSignalID,
				DefaultConfiguration: map[string]interface{}{"name": "red"},
				Dependencies: map[string]component.DependencySpec{
					"Mosquitto": {VersionRequirement: "^2.0.0", Kind: component.DependencyHard},
				},
				Lifecycle: map[component.LifecycleStageName]component.LifecycleStage{
					component.StageRun: {
						Name:   component.StageRun,
						Script: "connect to {Mosquitto:configuration:/port} as {configuration:/name}",
					},
				},
			},
			DependencyNames: map[string]component.Identifier{"Mosquitto": mosquittoID},
		},
	}

	result := Resolve(inputs, []string{"RedSignal"}, []string{"fleetd-main"}, nil, "/opt/fleetd", nil)

	require.Contains(t, result, "main")
	assert.Equal(t, []string{"RedSignal", "fleetd-main"}, cloneStrings(result["main"].Dependencies))

	redSignal := result["RedSignal"]
	assert.Equal(t, "1.0.0", redSignal.Version)
	assert.Equal(t, []string{"Mosquitto"}, redSignal.Dependencies)
	assert.Equal(t, "connect to 1883 as red", redSignal.Lifecycle[component.StageRun].Script)
}

func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
