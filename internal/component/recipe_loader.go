package component

import (
	"fmt"

	"gopkg.in/yaml.v3"
	sigsyaml "sigs.k8s.io/yaml"
)

// wireRecipe mirrors the on-disk recipe shape of spec.md §6. It is decoded
// with gopkg.in/yaml.v3 for YAML recipes (matching the teacher's own
// gopkg.in/yaml.v3 use for on-disk entities) and with sigs.k8s.io/yaml when
// the source bytes are JSON, so both encodings land in the same struct the
// way sigs.k8s.io/yaml is used elsewhere in the teacher pack to normalize
// Kubernetes JSON and YAML manifests through one path.
type wireRecipe struct {
	ComponentName    string `yaml:"ComponentName" json:"ComponentName"`
	ComponentVersion string `yaml:"ComponentVersion" json:"ComponentVersion"`
	ComponentType    string `yaml:"ComponentType" json:"ComponentType"`
	Platform         struct {
		OS           string `yaml:"os,omitempty" json:"os,omitempty"`
		Architecture string `yaml:"architecture,omitempty" json:"architecture,omitempty"`
	} `yaml:"ComponentPlatform,omitempty" json:"ComponentPlatform,omitempty"`

	ComponentConfiguration struct {
		DefaultConfiguration map[string]interface{} `yaml:"DefaultConfiguration,omitempty" json:"DefaultConfiguration,omitempty"`
	} `yaml:"ComponentConfiguration,omitempty" json:"ComponentConfiguration,omitempty"`

	ComponentDependencies map[string]struct {
		VersionRequirement string `yaml:"VersionRequirement" json:"VersionRequirement"`
		DependencyType     string `yaml:"DependencyType,omitempty" json:"DependencyType,omitempty"`
	} `yaml:"ComponentDependencies,omitempty" json:"ComponentDependencies,omitempty"`

	Manifests []struct {
		Platform struct {
			OS           string `yaml:"os,omitempty" json:"os,omitempty"`
			Architecture string `yaml:"architecture,omitempty" json:"architecture,omitempty"`
		} `yaml:"Platform,omitempty" json:"Platform,omitempty"`
		Artifacts []struct {
			URI            string `yaml:"URI" json:"URI"`
			Digest         string `yaml:"Digest,omitempty" json:"Digest,omitempty"`
			Unarchive      string `yaml:"Unarchive,omitempty" json:"Unarchive,omitempty"`
			DecompressPath string `yaml:"DecompressPath,omitempty" json:"DecompressPath,omitempty"`
		} `yaml:"Artifacts,omitempty" json:"Artifacts,omitempty"`
	} `yaml:"Manifests,omitempty" json:"Manifests,omitempty"`

	Lifecycle map[string]struct {
		Script      string `yaml:"Script" json:"Script"`
		UpdateCheck string `yaml:"UpdateCheck,omitempty" json:"UpdateCheck,omitempty"`
		SkipIf      string `yaml:"SkipIf,omitempty" json:"SkipIf,omitempty"`
	} `yaml:"Lifecycle,omitempty" json:"Lifecycle,omitempty"`
}

// ParseRecipeYAML decodes a recipe document (YAML or JSON — JSON is valid
// YAML) into a validated Recipe.
func ParseRecipeYAML(data []byte) (Recipe, error) {
	var wire wireRecipe
	if err := yaml.Unmarshal(data, &wire); err != nil {
		return Recipe{}, fmt.Errorf("component: parse recipe: %w", err)
	}
	return wireToRecipe(wire)
}

// ParseRecipeJSON decodes a JSON recipe document, routing through
// sigs.k8s.io/yaml so JSON numbers and nested maps land in the same
// map[string]interface{} shape a YAML decode would produce.
func ParseRecipeJSON(data []byte) (Recipe, error) {
	var wire wireRecipe
	if err := sigsyaml.Unmarshal(data, &wire); err != nil {
		return Recipe{}, fmt.Errorf("component: parse recipe: %w", err)
	}
	return wireToRecipe(wire)
}

func wireToRecipe(wire wireRecipe) (Recipe, error) {
	id, err := NewIdentifier(wire.ComponentName, wire.ComponentVersion)
	if err != nil {
		return Recipe{}, err
	}

	ctype := ComponentType(wire.ComponentType)
	switch ctype {
	case TypeGeneric, TypeNucleus, TypePlugin:
	case "":
		ctype = TypeGeneric
	default:
		return Recipe{}, fmt.Errorf("component: recipe %s: unknown ComponentType %q", id, wire.ComponentType)
	}

	deps := make(map[string]DependencySpec, len(wire.ComponentDependencies))
	for name, d := range wire.ComponentDependencies {
		kind := DependencyHard
		if DependencyKind(d.DependencyType) == DependencySoft {
			kind = DependencySoft
		}
		deps[name] = DependencySpec{VersionRequirement: d.VersionRequirement, Kind: kind}
		if _, err := deps[name].Constraints(); err != nil {
			return Recipe{}, fmt.Errorf("component: recipe %s: dependency %s: %w", id, name, err)
		}
	}

	lifecycle := make(map[LifecycleStageName]LifecycleStage, len(wire.Lifecycle))
	for stage, s := range wire.Lifecycle {
		name := LifecycleStageName(stage)
		lifecycle[name] = LifecycleStage{
			Name:        name,
			Script:      s.Script,
			UpdateCheck: s.UpdateCheck,
			SkipIf:      s.SkipIf,
		}
	}

	manifests := make([]Manifest, 0, len(wire.Manifests))
	for _, m := range wire.Manifests {
		artifacts := make([]ArtifactDescriptor, 0, len(m.Artifacts))
		for _, a := range m.Artifacts {
			policy := UnarchivePolicy(a.Unarchive)
			if policy == "" {
				policy = UnarchiveNone
			}
			artifacts = append(artifacts, ArtifactDescriptor{
				URI:            a.URI,
				Digest:         a.Digest,
				Unarchive:      policy,
				DecompressPath: a.DecompressPath,
			})
		}
		manifests = append(manifests, Manifest{
			Platform: PlatformFilter{OS: m.Platform.OS, Architecture: m.Platform.Architecture},
			Artifacts: artifacts,
		})
	}

	var defaultConfig interface{}
	if wire.ComponentConfiguration.DefaultConfiguration != nil {
		defaultConfig = deepCopyGeneric(wire.ComponentConfiguration.DefaultConfiguration)
	}

	return Recipe{
		Identifier:           id,
		Platform:             PlatformFilter{OS: wire.Platform.OS, Architecture: wire.Platform.Architecture},
		Type:                 ctype,
		DefaultConfiguration: defaultConfig,
		Dependencies:         deps,
		Lifecycle:            lifecycle,
		Manifests:            manifests,
	}, nil
}

// deepCopyGeneric deep-copies a map[string]interface{}/[]interface{}/scalar
// tree so a Recipe's DefaultConfiguration can never be mutated through an
// alias held by a caller (recipes are immutable once installed, per §3).
func deepCopyGeneric(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = deepCopyGeneric(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = deepCopyGeneric(val)
		}
		return out
	default:
		return t
	}
}
