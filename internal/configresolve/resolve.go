package configresolve

import (
	"sort"

	"fleetd/internal/component"
)

// ConfigurationUpdate is one component's entry from a deployment document's
// componentConfigurationUpdates (§6): a list of RESET pointers applied in
// order, followed by a single MERGE tree.
type ConfigurationUpdate struct {
	Reset []string
	Merge interface{}
}

// ResolvedComponent is the final per-component tree the supervisor
// consumes: {lifecycle, dependencies, version, configuration, parameters}
// (§4.3 Output). Parameters mirrors Configuration rather than building the
// source's parallel @Deprecated parameter-interpolation path, a deliberate
// choice recorded in DESIGN.md per §9's open question.
type ResolvedComponent struct {
	Version       string
	Dependencies  []string
	Configuration interface{}
	Parameters    interface{}
	Lifecycle     map[component.LifecycleStageName]component.LifecycleStage
}

// ComponentInput bundles what Resolve needs for one resolved component: its
// identifier and recipe from internal/resolver's assignment, its
// previously-persisted configuration (nil if none), the deployment
// document's update for it (nil if it is not targeted), and the resolved
// identifiers of its own declared dependencies.
type ComponentInput struct {
	Identifier       component.Identifier
	Recipe           component.Recipe
	CurrentPersisted interface{}
	Update           *ConfigurationUpdate
	DependencyNames  map[string]component.Identifier
}

// ResolveComponentConfiguration computes one component's configuration tree
// per §4.3's merge rules: start from the persisted tree if any, else
// defaults; apply RESET pointers in order; then MERGE the incoming tree.
func ResolveComponentConfiguration(currentPersisted, defaults interface{}, update *ConfigurationUpdate, log Logf) interface{} {
	start := currentPersisted
	if start == nil {
		start = defaults
	}
	if update == nil {
		return deepCopy(start)
	}

	afterReset := ApplyResets(start, defaults, update.Reset, log)
	if update.Merge == nil {
		return deepCopy(afterReset)
	}

	merged, err := Merge(afterReset, update.Merge)
	if err != nil {
		if log != nil {
			log("merge failed, keeping pre-merge configuration: %v", err)
		}
		return deepCopy(afterReset)
	}
	return merged
}

// Resolve computes every component's final configuration and interpolated
// lifecycle, and assembles the synthetic "main" entry whose dependency list
// is rootNames unioned with the supervisor's auto-start builtins (§4.3
// Output).
func Resolve(inputs map[string]ComponentInput, rootNames, builtins []string, artifacts ArtifactLocator, kernelRootPath string, log Logf) map[string]ResolvedComponent {
	configs := make(map[string]interface{}, len(inputs))
	for name, in := range inputs {
		configs[name] = ResolveComponentConfiguration(in.CurrentPersisted, in.Recipe.DefaultConfiguration, in.Update, log)
	}

	result := make(map[string]ResolvedComponent, len(inputs)+1)
	for name, in := range inputs {
		depConfigs := make(map[string]interface{}, len(in.DependencyNames))
		for depName := range in.DependencyNames {
			depConfigs[depName] = configs[depName]
		}

		ctx := Context{
			Self:              in.Identifier,
			SelfConfiguration: configs[name],
			Dependencies:      in.DependencyNames,
			DependencyConfigs: depConfigs,
			Artifacts:         artifacts,
			KernelRootPath:    kernelRootPath,
			Log:               log,
		}

		lifecycle := make(map[component.LifecycleStageName]component.LifecycleStage, len(in.Recipe.Lifecycle))
		for stageName, stage := range in.Recipe.Lifecycle {
			lifecycle[stageName] = component.LifecycleStage{
				Name:        stage.Name,
				Script:      ctx.interpolateString(stage.Script),
				UpdateCheck: ctx.interpolateString(stage.UpdateCheck),
				SkipIf:      ctx.interpolateString(stage.SkipIf),
			}
		}

		depNames := make([]string, 0, len(in.DependencyNames))
		for depName := range in.DependencyNames {
			depNames = append(depNames, depName)
		}
		sort.Strings(depNames)

		result[name] = ResolvedComponent{
			Version:       in.Identifier.Version.String(),
			Dependencies:  depNames,
			Configuration: configs[name],
			Parameters:    configs[name],
			Lifecycle:     lifecycle,
		}
	}

	result["main"] = ResolvedComponent{Dependencies: unionSorted(rootNames, builtins)}
	return result
}

func unionSorted(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	for _, n := range a {
		set[n] = true
	}
	for _, n := range b {
		set[n] = true
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
