package component

// ComponentType classifies what a recipe describes.
type ComponentType string

const (
	TypeGeneric ComponentType = "GENERIC" // an external service launched via lifecycle scripts
	TypeNucleus ComponentType = "NUCLEUS" // the supervisor itself
	TypePlugin  ComponentType = "PLUGIN"  // an in-process extension
)

// LifecycleStageName is one of the recognized stages a recipe may declare.
type LifecycleStageName string

const (
	StageInstall  LifecycleStageName = "install"
	StageStartup  LifecycleStageName = "startup"
	StageRun      LifecycleStageName = "run"
	StageShutdown LifecycleStageName = "shutdown"
	StageBootstrap LifecycleStageName = "bootstrap"
	StageRecover  LifecycleStageName = "recover"
)

// orderedStages is the canonical evaluation order of the lifecycle namespace.
var orderedStages = []LifecycleStageName{
	StageInstall, StageStartup, StageRun, StageShutdown, StageBootstrap, StageRecover,
}

// OrderedStageNames returns the canonical stage evaluation order.
func OrderedStageNames() []LifecycleStageName {
	out := make([]LifecycleStageName, len(orderedStages))
	copy(out, orderedStages)
	return out
}

// LifecycleStage is one entry of a recipe's lifecycle namespace: the script
// text to run, plus optional gates.
type LifecycleStage struct {
	Name LifecycleStageName

	// Script is the command text, subject to placeholder interpolation by
	// internal/configresolve before execution.
	Script string

	// UpdateCheck, if non-empty, is a script whose exit code determines
	// whether this component votes to defer a pending lifecycle update:
	// a non-zero exit is a deferral request.
	UpdateCheck string

	// SkipIf, if non-empty, is a predicate expression; a true result skips
	// the stage entirely (used for platform/condition gating).
	SkipIf string
}

// UnarchivePolicy controls what the component store does with a downloaded
// artifact file.
type UnarchivePolicy string

const (
	UnarchiveNone UnarchivePolicy = "NONE"
	UnarchiveZip  UnarchivePolicy = "ZIP"
	UnarchiveTarXZ UnarchivePolicy = "TAR_XZ"
)

// ArtifactDescriptor is one artifact a recipe declares it needs fetched.
type ArtifactDescriptor struct {
	URI            string
	Digest         string // expected content digest, algorithm-prefixed e.g. "blake2b-256:<hex>"
	Unarchive      UnarchivePolicy
	DecompressPath string // relative path under artifacts-decompressed/ once unarchived
}

// PlatformFilter restricts a recipe (or one of its manifests) to a subset of
// device platforms, e.g. {OS: "linux", Architecture: "aarch64"}. An empty
// field matches any value.
type PlatformFilter struct {
	OS           string
	Architecture string
}

// Matches reports whether a concrete platform satisfies the filter.
func (p PlatformFilter) Matches(os, arch string) bool {
	if p.OS != "" && p.OS != os {
		return false
	}
	if p.Architecture != "" && p.Architecture != arch {
		return false
	}
	return true
}

// Manifest groups the artifacts that apply to one platform filter; a recipe may carry several, one per supported platform.
type Manifest struct {
	Platform  PlatformFilter
	Artifacts []ArtifactDescriptor
}

// Recipe is the declarative description of a component: the parsed,
// validated form of a recipe YAML/JSON document (§6).
type Recipe struct {
	Identifier Identifier
	Platform   PlatformFilter
	Type       ComponentType

	// DefaultConfiguration is the recipe's default configuration tree,
	// decoded to the generic interface{} shape described in doc.go. May be
	// nil, meaning "no default configuration".
	DefaultConfiguration interface{}

	// Dependencies maps a dependency component name to its declared
	// requirement.
	Dependencies map[string]DependencySpec

	// Lifecycle is the ordered stage set this recipe declares. Stages not
	// present here are simply absent, not no-ops with empty scripts.
	Lifecycle map[LifecycleStageName]LifecycleStage

	Manifests []Manifest
}

// ArtifactsForPlatform returns the artifact descriptors applicable to the
// given platform, drawn from the first manifest whose filter matches.
func (r Recipe) ArtifactsForPlatform(os, arch string) []ArtifactDescriptor {
	for _, m := range r.Manifests {
		if m.Platform.Matches(os, arch) {
			return m.Artifacts
		}
	}
	return nil
}

// HasBootstrapStage reports whether the recipe declares a bootstrap stage,
// the precondition for a bootstrap-requiring transition (spec §4.4.1).
func (r Recipe) HasBootstrapStage() bool {
	_, ok := r.Lifecycle[StageBootstrap]
	return ok
}
