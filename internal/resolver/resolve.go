package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"

	"fleetd/internal/component"
	"fleetd/internal/ferrors"
)

// RootRequirement is one (name, version requirement) pair drawn from the
// union of every group's root components plus the new deployment's roots
// (§3 GroupToRootComponents, §4.1).
type RootRequirement struct {
	Name       string
	Constraint string // semver constraint syntax, e.g. "^2.0.0"
}

// Assignment is the resolver's output: a concrete identifier per resolved
// name.
type Assignment map[string]component.Identifier

// CandidateSource is the resolver's view of the component store and the
// artifact collaborator (§4.2): enumerate versions known locally, and on a
// local miss, ask the (out-of-scope) remote collaborator. Mirrors how
// internal/orchestrator asks api.GetServiceClassManager() for data it does
// not own before acting rather than owning the data itself.
type CandidateSource interface {
	LocalVersions(ctx context.Context, name string) ([]*semver.Version, error)
	RemoteVersions(ctx context.Context, name string) ([]*semver.Version, error)
	Recipe(ctx context.Context, id component.Identifier) (component.Recipe, error)
}

// Resolver resolves root requirements into a concrete Assignment.
type Resolver struct {
	source  CandidateSource
	running map[string]*semver.Version // currently-running version per name, for the stability tie-break
}

// New constructs a Resolver. running may be nil.
func New(source CandidateSource, running map[string]*semver.Version) *Resolver {
	if running == nil {
		running = map[string]*semver.Version{}
	}
	return &Resolver{source: source, running: running}
}

// Resolve performs the backtracking search of §4.1: intersect active
// requirements, try the running version first if it satisfies them and
// otherwise the highest satisfying candidate, recurse into its declared dependencies, and on
// conflict retry the next candidate until exhausted.
func (r *Resolver) Resolve(ctx context.Context, roots []RootRequirement) (Assignment, error) {
	st := &search{
		ctx:          ctx,
		source:       r.source,
		running:      r.running,
		requirements: make(map[string][]*semver.Constraints),
		assigned:     make(map[string]component.Identifier),
		recipes:      make(map[string]component.Recipe),
		visiting:     make(map[string]bool),
	}

	names := make([]string, 0, len(roots))
	for _, root := range roots {
		c, err := semver.NewConstraint(root.Constraint)
		if err != nil {
			return nil, fmt.Errorf("resolver: root %s: invalid constraint %q: %w", root.Name, root.Constraint, err)
		}
		if _, seen := st.requirements[root.Name]; !seen {
			names = append(names, root.Name)
		}
		st.requirements[root.Name] = append(st.requirements[root.Name], c)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, done := st.assigned[name]; done {
			continue
		}
		if err := st.resolveName(name); err != nil {
			return nil, err
		}
	}
	return st.assigned, nil
}

type search struct {
	ctx          context.Context
	source       CandidateSource
	running      map[string]*semver.Version
	requirements map[string][]*semver.Constraints
	assigned     map[string]component.Identifier
	recipes      map[string]component.Recipe
	visiting     map[string]bool
}

func (s *search) resolveName(name string) error {
	if err := s.ctx.Err(); err != nil {
		return ferrors.Wrap(ferrors.KindCancelled, name, err, "resolution cancelled")
	}
	if s.visiting[name] {
		return ferrors.New(ferrors.KindDependencyConflict, name, "dependency cycle detected during resolution")
	}

	candidates, err := s.candidatesFor(name)
	if err != nil {
		return err
	}
	satisfying := filterSatisfying(candidates, s.requirements[name])
	if len(satisfying) == 0 {
		return unresolvedErr(name, s.requirements[name])
	}
	ordered := orderCandidates(satisfying, s.running[name])

	s.visiting[name] = true
	defer delete(s.visiting, name)

	for _, v := range ordered {
		if err := s.tryCandidate(name, v); err == nil {
			return nil
		}
	}
	return unresolvedErr(name, s.requirements[name])
}

// tryCandidate assigns name@v, recurses into its dependencies, and leaves
// all shared state exactly as found if it fails partway.
func (s *search) tryCandidate(name string, v *semver.Version) error {
	id := component.Identifier{Name: name, Version: v}
	recipe, err := s.source.Recipe(s.ctx, id)
	if err != nil {
		return ferrors.Wrap(ferrors.KindRecipeNotFound, id.String(), err, "recipe unavailable for candidate")
	}

	prevAssigned, hadAssigned := s.assigned[name]
	prevRecipe, hadRecipe := s.recipes[name]
	s.assigned[name] = id
	s.recipes[name] = recipe

	added := make([]addedConstraint, 0, len(recipe.Dependencies))

	rollback := func() {
		for i := len(added) - 1; i >= 0; i-- {
			s.removeConstraint(added[i].name, added[i].constraint)
		}
		if hadAssigned {
			s.assigned[name] = prevAssigned
		} else {
			delete(s.assigned, name)
		}
		if hadRecipe {
			s.recipes[name] = prevRecipe
		} else {
			delete(s.recipes, name)
		}
	}

	depNames := make([]string, 0, len(recipe.Dependencies))
	for depName := range recipe.Dependencies {
		depNames = append(depNames, depName)
	}
	sort.Strings(depNames)

	for _, depName := range depNames {
		dep := recipe.Dependencies[depName]
		dc, cerr := dep.Constraints()
		if cerr != nil {
			rollback()
			return fmt.Errorf("resolver: %s: dependency %s: %w", id, depName, cerr)
		}
		s.requirements[depName] = append(s.requirements[depName], dc)
		added = append(added, addedConstraint{name: depName, constraint: dc})

		if s.visiting[depName] {
			if dep.Kind == component.DependencySoft {
				s.removeConstraint(depName, dc)
				added = added[:len(added)-1]
				continue
			}
			rollback()
			return ferrors.New(ferrors.KindDependencyConflict, depName, "dependency cycle detected during resolution")
		}

		if existing, ok := s.assigned[depName]; ok {
			if dc.Check(existing.Version) {
				continue
			}
			if dep.Kind == component.DependencySoft {
				s.removeConstraint(depName, dc)
				added = added[:len(added)-1]
				continue
			}
			rollback()
			return unresolvedErr(depName, s.requirements[depName])
		}

		if err := s.resolveName(depName); err != nil {
			if dep.Kind == component.DependencySoft {
				s.removeConstraint(depName, dc)
				added = added[:len(added)-1]
				continue
			}
			rollback()
			return err
		}
	}

	return nil
}

type addedConstraint struct {
	name       string
	constraint *semver.Constraints
}

func (s *search) removeConstraint(name string, c *semver.Constraints) {
	cs := s.requirements[name]
	for i, existing := range cs {
		if existing == c {
			s.requirements[name] = append(cs[:i], cs[i+1:]...)
			return
		}
	}
}

func (s *search) candidatesFor(name string) ([]*semver.Version, error) {
	local, err := s.source.LocalVersions(s.ctx, name)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindIoError, name, err, "listing local versions")
	}
	if len(filterSatisfying(local, s.requirements[name])) > 0 {
		return local, nil
	}
	remote, err := s.source.RemoteVersions(s.ctx, name)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindArtifactDownloadFailed, name, err, "listing remote versions")
	}
	return append(local, remote...), nil
}

func filterSatisfying(versions []*semver.Version, constraints []*semver.Constraints) []*semver.Version {
	var out []*semver.Version
	for _, v := range versions {
		ok := true
		for _, c := range constraints {
			if !c.Check(v) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, v)
		}
	}
	return out
}

// orderCandidates sorts satisfying versions for backtracking trial order:
// the currently running version first (stability), then strictly
// descending semver (§4.1 tie-break).
func orderCandidates(versions []*semver.Version, running *semver.Version) []*semver.Version {
	out := make([]*semver.Version, len(versions))
	copy(out, versions)
	sort.Slice(out, func(i, j int) bool {
		iRunning := running != nil && out[i].Equal(running)
		jRunning := running != nil && out[j].Equal(running)
		if iRunning != jRunning {
			return iRunning
		}
		return out[i].GreaterThan(out[j])
	})
	return out
}

func unresolvedErr(name string, constraints []*semver.Constraints) error {
	reqs := make([]string, len(constraints))
	for i, c := range constraints {
		reqs[i] = c.String()
	}
	return ferrors.New(ferrors.KindDependencyConflict, name,
		fmt.Sprintf("no candidate version satisfies all active requirements: %v", reqs))
}
