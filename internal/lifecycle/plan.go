package lifecycle

import (
	"sort"

	"fleetd/internal/component"
	"fleetd/internal/resolver"
)

// ComponentState is one component's position in a configuration tree: the
// concrete version running (or about to run), its recipe, and its
// resolved configuration — enough to diff two trees and to drive Start.
type ComponentState struct {
	Identifier    component.Identifier
	Recipe        component.Recipe
	Configuration interface{}
}

// Plan is the output of diffing a current configuration tree against a
// target one (§4.4 phase 1).
type Plan struct {
	Added              []string
	Removed            []string
	Updated            []string
	Unchanged          []string
	BootstrapRequiring map[string]bool
}

// ComputePlan diffs current against target. A name present in both but
// with a different version, or the same version with a changed bootstrap
// stage script, is Updated; BootstrapRequiring[name] reports whether that
// update requires a supervisor restart per §4.4.1.
func ComputePlan(current, target map[string]ComponentState) Plan {
	p := Plan{BootstrapRequiring: make(map[string]bool)}

	for name := range current {
		if _, ok := target[name]; !ok {
			p.Removed = append(p.Removed, name)
		}
	}
	for name, t := range target {
		c, existed := current[name]
		if !existed {
			p.Added = append(p.Added, name)
			continue
		}
		if c.Identifier.Equal(t.Identifier) && bootstrapScript(c.Recipe) == bootstrapScript(t.Recipe) {
			p.Unchanged = append(p.Unchanged, name)
			continue
		}
		p.Updated = append(p.Updated, name)
		if isBootstrapRequiring(c, t) {
			p.BootstrapRequiring[name] = true
		}
	}

	sort.Strings(p.Added)
	sort.Strings(p.Removed)
	sort.Strings(p.Updated)
	sort.Strings(p.Unchanged)
	return p
}

// isBootstrapRequiring reports whether updating from old to new is
// bootstrap-requiring per §4.4.1: the new recipe declares a bootstrap
// stage AND either the version changed or the bootstrap stage text
// changed.
func isBootstrapRequiring(old, new_ ComponentState) bool {
	if !new_.Recipe.HasBootstrapStage() {
		return false
	}
	versionChanged := !old.Identifier.Equal(new_.Identifier)
	scriptChanged := bootstrapScript(old.Recipe) != bootstrapScript(new_.Recipe)
	return versionChanged || scriptChanged
}

func bootstrapScript(r component.Recipe) string {
	stage, ok := r.Lifecycle[component.StageBootstrap]
	if !ok {
		return ""
	}
	return stage.Script
}

// buildGraph turns a configuration tree into a dependency graph over
// exactly the names present in states, so TopologicalOrder never walks
// into a component outside the tree being ordered.
func buildGraph(states map[string]ComponentState) *resolver.Graph {
	g := resolver.NewGraph()
	for name, st := range states {
		var deps []string
		for depName := range st.Recipe.Dependencies {
			if _, ok := states[depName]; ok {
				deps = append(deps, depName)
			}
		}
		sort.Strings(deps)
		g.AddNode(resolver.Node{ID: name, DependsOn: deps})
	}
	return g
}

// stopOrder returns names, drawn from stopSet, in the order they must be
// stopped: reverse topological over the current tree (dependents before
// dependencies) per §5.
func stopOrder(current map[string]ComponentState, stopSet map[string]bool) ([]string, error) {
	order, err := buildGraph(current).ReverseTopologicalOrder()
	if err != nil {
		return nil, err
	}
	return filterSet(order, stopSet), nil
}

// startOrder returns names, drawn from startSet, in the order they must
// be started: forward topological over the target tree per §5.
func startOrder(target map[string]ComponentState, startSet map[string]bool) ([]string, error) {
	order, err := buildGraph(target).TopologicalOrder()
	if err != nil {
		return nil, err
	}
	return filterSet(order, startSet), nil
}

func filterSet(order []string, set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for _, id := range order {
		if set[id] {
			out = append(out, id)
		}
	}
	return out
}

func toSet(names ...[]string) map[string]bool {
	out := make(map[string]bool)
	for _, group := range names {
		for _, n := range group {
			out[n] = true
		}
	}
	return out
}
