package resolver

import (
	"context"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/component"
)

// fakeSource is an in-memory CandidateSource for resolver tests: a map of
// component name to a list of recipes, one per available version.
type fakeSource struct {
	recipes map[string][]component.Recipe
}

func newFakeSource() *fakeSource {
	return &fakeSource{recipes: map[string][]component.Recipe{}}
}

func (f *fakeSource) add(r component.Recipe) {
	f.recipes[r.Identifier.Name] = append(f.recipes[r.Identifier.Name], r)
}

func (f *fakeSource) LocalVersions(_ context.Context, name string) ([]*semver.Version, error) {
	var out []*semver.Version
	for _, r := range f.recipes[name] {
		out = append(out, r.Identifier.Version)
	}
	return out, nil
}

func (f *fakeSource) RemoteVersions(_ context.Context, name string) ([]*semver.Version, error) {
	return nil, nil
}

func (f *fakeSource) Recipe(_ context.Context, id component.Identifier) (component.Recipe, error) {
	for _, r := range f.recipes[id.Name] {
		if r.Identifier.Equal(id) {
			return r, nil
		}
	}
	return component.Recipe{}, assertNotFoundErr{id}
}

type assertNotFoundErr struct{ id component.Identifier }

func (e assertNotFoundErr) Error() string { return "recipe not found: " + e.id.String() }

func recipeWithDeps(t *testing.T, name, version string, deps map[string]component.DependencySpec) component.Recipe {
	t.Helper()
	id, err := component.NewIdentifier(name, version)
	require.NoError(t, err)
	return component.Recipe{Identifier: id, Type: component.TypeGeneric, Dependencies: deps}
}

func TestResolve_SimpleRoot(t *testing.T) {
	src := newFakeSource()
	src.add(recipeWithDeps(t, "SimpleApp", "1.0.0", nil))
	src.add(recipeWithDeps(t, "SimpleApp", "2.0.0", nil))

	r := New(src, nil)
	assignment, err := r.Resolve(context.Background(), []RootRequirement{
		{Name: "SimpleApp", Constraint: "^1.0.0"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", assignment["SimpleApp"].Version.String())
}

func TestResolve_PicksHighestSatisfying(t *testing.T) {
	src := newFakeSource()
	src.add(recipeWithDeps(t, "SimpleApp", "1.0.0", nil))
	src.add(recipeWithDeps(t, "SimpleApp", "1.5.0", nil))
	src.add(recipeWithDeps(t, "SimpleApp", "2.0.0", nil))

	r := New(src, nil)
	assignment, err := r.Resolve(context.Background(), []RootRequirement{
		{Name: "SimpleApp", Constraint: "^1.0.0"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1.5.0", assignment["SimpleApp"].Version.String())
}

func TestResolve_StabilityTieBreak(t *testing.T) {
	src := newFakeSource()
	src.add(recipeWithDeps(t, "SimpleApp", "1.0.0", nil))
	src.add(recipeWithDeps(t, "SimpleApp", "1.5.0", nil))

	running := map[string]*semver.Version{"SimpleApp": semver.MustParse("1.0.0")}
	r := New(src, running)
	assignment, err := r.Resolve(context.Background(), []RootRequirement{
		{Name: "SimpleApp", Constraint: ">=1.0.0"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", assignment["SimpleApp"].Version.String())
}

func TestResolve_TransitiveHardDependency(t *testing.T) {
	src := newFakeSource()
	src.add(recipeWithDeps(t, "Mosquitto", "2.0.0", nil))
	src.add(recipeWithDeps(t, "Mosquitto", "2.1.0", nil))
	src.add(recipeWithDeps(t, "RedSignal", "1.0.0", map[string]component.DependencySpec{
		"Mosquitto": {VersionRequirement: "^2.0.0", Kind: component.DependencyHard},
	}))

	r := New(src, nil)
	assignment, err := r.Resolve(context.Background(), []RootRequirement{
		{Name: "RedSignal", Constraint: "^1.0.0"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", assignment["RedSignal"].Version.String())
	assert.Equal(t, "2.1.0", assignment["Mosquitto"].Version.String())
}

func TestResolve_DiamondCompatibleConstraints(t *testing.T) {
	src := newFakeSource()
	src.add(recipeWithDeps(t, "GreenSignal", "1.0.0", nil))
	src.add(recipeWithDeps(t, "GreenSignal", "1.2.0", nil))
	src.add(recipeWithDeps(t, "A", "1.0.0", map[string]component.DependencySpec{
		"GreenSignal": {VersionRequirement: ">=1.0.0,<2.0.0", Kind: component.DependencyHard},
	}))
	src.add(recipeWithDeps(t, "B", "1.0.0", map[string]component.DependencySpec{
		"GreenSignal": {VersionRequirement: "^1.0.0", Kind: component.DependencyHard},
	}))

	r := New(src, nil)
	assignment, err := r.Resolve(context.Background(), []RootRequirement{
		{Name: "A", Constraint: "^1.0.0"},
		{Name: "B", Constraint: "^1.0.0"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", assignment["GreenSignal"].Version.String())
}

func TestResolve_DiamondIncompatibleConstraintsFails(t *testing.T) {
	src := newFakeSource()
	src.add(recipeWithDeps(t, "GreenSignal", "1.0.0", nil))
	src.add(recipeWithDeps(t, "GreenSignal", "2.0.0", nil))
	src.add(recipeWithDeps(t, "A", "1.0.0", map[string]component.DependencySpec{
		"GreenSignal": {VersionRequirement: "^1.0.0", Kind: component.DependencyHard},
	}))
	src.add(recipeWithDeps(t, "B", "1.0.0", map[string]component.DependencySpec{
		"GreenSignal": {VersionRequirement: "^2.0.0", Kind: component.DependencyHard},
	}))

	r := New(src, nil)
	_, err := r.Resolve(context.Background(), []RootRequirement{
		{Name: "A", Constraint: "^1.0.0"},
		{Name: "B", Constraint: "^1.0.0"},
	})
	assert.Error(t, err)
}

func TestResolve_SoftDependencyBestEffort(t *testing.T) {
	src := newFakeSource()
	src.add(recipeWithDeps(t, "RedSignal", "1.0.0", map[string]component.DependencySpec{
		"OptionalExtra": {VersionRequirement: "^1.0.0", Kind: component.DependencySoft},
	}))
	// No "OptionalExtra" recipe exists anywhere.

	r := New(src, nil)
	assignment, err := r.Resolve(context.Background(), []RootRequirement{
		{Name: "RedSignal", Constraint: "^1.0.0"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", assignment["RedSignal"].Version.String())
	_, hasOptional := assignment["OptionalExtra"]
	assert.False(t, hasOptional)
}

func TestResolve_UnresolvedWhenNoCandidate(t *testing.T) {
	src := newFakeSource()
	src.add(recipeWithDeps(t, "SimpleApp", "1.0.0", nil))

	r := New(src, nil)
	_, err := r.Resolve(context.Background(), []RootRequirement{
		{Name: "SimpleApp", Constraint: "^2.0.0"},
	})
	assert.Error(t, err)
}

func TestResolve_DependencyCycleDetected(t *testing.T) {
	src := newFakeSource()
	src.add(recipeWithDeps(t, "A", "1.0.0", map[string]component.DependencySpec{
		"B": {VersionRequirement: "^1.0.0", Kind: component.DependencyHard},
	}))
	src.add(recipeWithDeps(t, "B", "1.0.0", map[string]component.DependencySpec{
		"A": {VersionRequirement: "^1.0.0", Kind: component.DependencyHard},
	}))

	r := New(src, nil)
	_, err := r.Resolve(context.Background(), []RootRequirement{
		{Name: "A", Constraint: "^1.0.0"},
	})
	assert.Error(t, err)
}
