package component

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Identifier is the immutable (name, version) tuple that names exactly one
// installable component. Equality is by value: two Identifiers with the
// same Name and a semver-equal Version refer to the same component.
type Identifier struct {
	Name    string
	Version *semver.Version
}

// NewIdentifier parses a semver version string and returns the resulting
// Identifier, or an error if name is empty or version does not parse.
func NewIdentifier(name, version string) (Identifier, error) {
	if name == "" {
		return Identifier{}, fmt.Errorf("component: identifier name must not be empty")
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return Identifier{}, fmt.Errorf("component: invalid version %q for %q: %w", version, name, err)
	}
	return Identifier{Name: name, Version: v}, nil
}

// String renders the identifier as "name@version", the form used in log
// lines and deployment-directory names.
func (id Identifier) String() string {
	if id.Version == nil {
		return id.Name + "@unknown"
	}
	return fmt.Sprintf("%s@%s", id.Name, id.Version.String())
}

// Equal reports whether two identifiers name the same component at the
// same version.
func (id Identifier) Equal(other Identifier) bool {
	if id.Name != other.Name {
		return false
	}
	if id.Version == nil || other.Version == nil {
		return id.Version == other.Version
	}
	return id.Version.Equal(other.Version)
}

// DependencyKind classifies a declared dependency edge.
type DependencyKind string

const (
	// DependencyHard means the dependency must resolve or the whole
	// deployment fails.
	DependencyHard DependencyKind = "HARD"
	// DependencySoft means the dependency is resolved best-effort and its
	// absence does not block the depending component.
	DependencySoft DependencyKind = "SOFT"
)

// DependencySpec is one entry of a recipe's ComponentDependencies map: a
// version requirement plus whether the edge is hard or soft.
type DependencySpec struct {
	VersionRequirement string
	Kind               DependencyKind
}

// Constraints parses VersionRequirement into a semver.Constraints.
func (d DependencySpec) Constraints() (*semver.Constraints, error) {
	c, err := semver.NewConstraint(d.VersionRequirement)
	if err != nil {
		return nil, fmt.Errorf("component: invalid version requirement %q: %w", d.VersionRequirement, err)
	}
	return c, nil
}
