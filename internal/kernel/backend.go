package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fleetd/internal/deployment"
	"fleetd/internal/ipcserver"
	"fleetd/internal/registry"
	"fleetd/internal/store"
)

// Kernel satisfies ipcserver.Backend, the same role app.Application plays
// against internal/server's RPC surface: the composition root answers every
// local IPC method directly against its own wired state.
var _ ipcserver.Backend = (*Kernel)(nil)

func (k *Kernel) ListComponents(ctx context.Context) ([]ipcserver.ComponentSummary, error) {
	instances := k.registry.GetAll()
	out := make([]ipcserver.ComponentSummary, 0, len(instances))
	for _, inst := range instances {
		out = append(out, summarize(inst))
	}
	return out, nil
}

func (k *Kernel) GetComponentDetails(ctx context.Context, name string) (ipcserver.ComponentDetails, error) {
	inst := k.registry.Get(name)
	if inst == nil {
		return ipcserver.ComponentDetails{}, fmt.Errorf("kernel: no such component %q", name)
	}

	k.mu.RLock()
	state, known := k.current[name]
	k.mu.RUnlock()

	details := ipcserver.ComponentDetails{ComponentSummary: summarize(inst)}
	if lastErr := inst.LastError(); lastErr != nil {
		details.LastError = lastErr.Error()
	}
	if known {
		details.Configuration = state.Configuration
		for depName := range state.Recipe.Dependencies {
			details.Dependencies = append(details.Dependencies, depName)
		}
	}
	return details, nil
}

func summarize(inst *registry.Instance) ipcserver.ComponentSummary {
	id := inst.Identifier()
	return ipcserver.ComponentSummary{
		Name:    id.Name,
		Version: id.Version,
		State:   inst.State().String(),
	}
}

// RestartComponent stops and restarts name's run stage in place, without
// going through a full deployment: the local operator escape hatch §1's CLI
// surface names alongside the deployment-driven restarts §4.4 performs on
// its own.
func (k *Kernel) RestartComponent(ctx context.Context, name string) error {
	inst := k.registry.Get(name)
	if inst == nil {
		return fmt.Errorf("kernel: no such component %q", name)
	}
	k.mu.RLock()
	state, known := k.current[name]
	k.mu.RUnlock()
	if !known {
		return fmt.Errorf("kernel: component %q has no persisted lifecycle state", name)
	}

	if err := k.runner.Stop(ctx, state, inst); err != nil {
		return fmt.Errorf("kernel: stopping %s for restart: %w", name, err)
	}
	if err := k.runner.Start(ctx, state, inst); err != nil {
		inst.Transition(registry.StateBroken, err)
		return fmt.Errorf("kernel: restarting %s: %w", name, err)
	}
	return nil
}

func (k *Kernel) StopComponent(ctx context.Context, name string) error {
	inst := k.registry.Get(name)
	if inst == nil {
		return fmt.Errorf("kernel: no such component %q", name)
	}
	k.mu.RLock()
	state, known := k.current[name]
	k.mu.RUnlock()
	if !known {
		return fmt.Errorf("kernel: component %q has no persisted lifecycle state", name)
	}
	return k.runner.Stop(ctx, state, inst)
}

// UpdateRecipesAndArtifacts refreshes the local store's view of what's
// reachable from the currently committed topology, pruning anything the
// committed groups no longer reference — §6's offline/online catalog
// refresh hook.
func (k *Kernel) UpdateRecipesAndArtifacts(ctx context.Context) error {
	current, _ := k.snapshotTopology()
	keep := make(store.Reachable, len(current))
	for name, state := range current {
		keep.Keep(name, state.Identifier.Version)
	}
	return k.store.Prune(keep)
}

// CreateLocalDeployment submits doc as a new deployment task and returns
// immediately with its ID; the caller polls GetLocalDeploymentStatus for
// the terminal outcome, mirroring a cloud job's asynchronous acceptance.
func (k *Kernel) CreateLocalDeployment(ctx context.Context, doc deployment.Document) (string, error) {
	id := uuid.New().String()
	deadline := time.Now().Add(k.cfg.DefaultDeploymentTimeout)
	if secs := doc.ComponentUpdatePolicy.TimeoutSeconds; secs > 0 {
		deadline = time.Now().Add(time.Duration(secs) * time.Second)
	}
	k.orch.Submit(deployment.Task{ID: id, Document: doc, Deadline: deadline})
	return id, nil
}

func (k *Kernel) GetLocalDeploymentStatus(ctx context.Context, id string) (*deployment.DeploymentResult, error) {
	k.resultsMu.Lock()
	defer k.resultsMu.Unlock()
	res, ok := k.results[id]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (k *Kernel) ListLocalDeployments(ctx context.Context) []deployment.DeploymentResult {
	k.resultsMu.Lock()
	defer k.resultsMu.Unlock()
	out := make([]deployment.DeploymentResult, 0, len(k.results))
	for _, r := range k.results {
		out = append(out, r)
	}
	return out
}
