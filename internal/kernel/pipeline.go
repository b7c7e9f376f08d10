package kernel

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"

	"fleetd/internal/component"
	"fleetd/internal/configresolve"
	"fleetd/internal/deployment"
	"fleetd/internal/ferrors"
	"fleetd/internal/lifecycle"
	"fleetd/internal/resolver"
	"fleetd/pkg/logging"
)

// runPipeline is the deployment.PipelineFunc: it runs §4.1 (resolve),
// §4.3 (configuration resolution), and §4.4 (lifecycle merge) in order for
// one task, against the kernel's current committed topology.
func (k *Kernel) runPipeline(ctx context.Context, task deployment.Task) lifecycle.Result {
	current, groupRoots := k.snapshotTopology()

	newGroupRoots := make(map[string][]string, len(groupRoots)+1)
	for name, roots := range groupRoots {
		newGroupRoots[name] = roots
	}
	rootNames := make([]string, 0, len(task.Document.RootComponents))
	for name := range task.Document.RootComponents {
		rootNames = append(rootNames, name)
	}
	sort.Strings(rootNames)
	newGroupRoots[task.Document.GroupName] = rootNames

	roots := unionRootRequirements(newGroupRoots, task.Document.RootComponents, runningVersions(current))

	res := resolver.New(k.store, runningVersions(current))
	assignment, err := res.Resolve(ctx, roots)
	if err != nil {
		return resolveFailure(task.ID, err)
	}

	target, err := k.buildTarget(ctx, assignment, current, task.Document, rootNamesUnion(newGroupRoots))
	if err != nil {
		return resolveFailure(task.ID, err)
	}

	deadline := task.Deadline
	if deadline.IsZero() {
		deadline = time.Now().Add(k.cfg.DefaultDeploymentTimeout)
	}

	return k.merger.Apply(ctx, task.ID, task.Document.GroupName, current, target, newGroupRoots,
		task.Document.FailureHandlingPolicy, task.Document.ComponentUpdatePolicy, deadline)
}

func resolveFailure(deploymentID string, err error) lifecycle.Result {
	status := lifecycle.StatusFailedNoStateChange
	if _, ok := ferrors.As(err, ferrors.KindCancelled); ok {
		status = lifecycle.StatusFailedRollbackNotRequested
	}
	logging.Warn("kernel", "deployment %s failed during resolution: %v", deploymentID, err)
	return lifecycle.Result{Status: status, Err: err}
}

// unionRootRequirements flattens every group's pinned root versions into
// one constraint list: a root belonging to a group other than the one being
// deployed is pinned to its currently running version so an unrelated
// deployment never causes it to resolve away, while doc's own roots always
// take their requested version.
func unionRootRequirements(groupRoots map[string][]string, docRoots map[string]deployment.RootComponentVersion, running map[string]*semver.Version) []resolver.RootRequirement {
	pinned := make(map[string]string) // name -> exact version, last writer wins across groups
	for _, names := range groupRoots {
		for _, name := range names {
			if v, ok := docRoots[name]; ok {
				pinned[name] = v.Version
			} else if v, ok := running[name]; ok {
				pinned[name] = v.String()
			}
		}
	}
	for name, v := range docRoots {
		pinned[name] = v.Version
	}

	names := make([]string, 0, len(pinned))
	for name := range pinned {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]resolver.RootRequirement, 0, len(names))
	for _, name := range names {
		out = append(out, resolver.RootRequirement{Name: name, Constraint: "=" + pinned[name]})
	}
	return out
}

func rootNamesUnion(groupRoots map[string][]string) []string {
	set := make(map[string]bool)
	for _, names := range groupRoots {
		for _, n := range names {
			set[n] = true
		}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func runningVersions(current map[string]lifecycle.ComponentState) map[string]*semver.Version {
	out := make(map[string]*semver.Version, len(current))
	for name, st := range current {
		out[name] = st.Identifier.Version
	}
	return out
}

// buildTarget resolves every assigned component's configuration and
// interpolated lifecycle via internal/configresolve, then assembles the
// lifecycle.ComponentState map the merger diffs against current.
func (k *Kernel) buildTarget(
	ctx context.Context,
	assignment resolver.Assignment,
	current map[string]lifecycle.ComponentState,
	doc deployment.Document,
	rootNames []string,
) (map[string]lifecycle.ComponentState, error) {
	inputs := make(map[string]configresolve.ComponentInput, len(assignment))
	recipes := make(map[string]component.Recipe, len(assignment))

	for name, id := range assignment {
		recipe, err := k.store.LoadRecipe(id)
		if err != nil {
			return nil, fmt.Errorf("kernel: loading recipe for %s: %w", id, err)
		}
		recipes[name] = recipe

		depNames := make(map[string]component.Identifier, len(recipe.Dependencies))
		for depName := range recipe.Dependencies {
			if depID, ok := assignment[depName]; ok {
				depNames[depName] = depID
			}
		}

		var currentPersisted interface{}
		if st, ok := current[name]; ok {
			currentPersisted = st.Configuration
		}

		var update *configresolve.ConfigurationUpdate
		if u, ok := doc.ComponentConfigurationUpdates[name]; ok {
			update = &u
		}

		inputs[name] = configresolve.ComponentInput{
			Identifier:       id,
			Recipe:           recipe,
			CurrentPersisted: currentPersisted,
			Update:           update,
			DependencyNames:  depNames,
		}
	}

	resolved := configresolve.Resolve(inputs, rootNames, nil, k.store, k.cfg.RootDir, logging.Debug)

	target := make(map[string]lifecycle.ComponentState, len(assignment))
	for name, id := range assignment {
		target[name] = lifecycle.ComponentState{
			Identifier:    id,
			Recipe:        recipes[name],
			Configuration: resolved[name].Configuration,
		}
	}
	return target, nil
}
