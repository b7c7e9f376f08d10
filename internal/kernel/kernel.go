package kernel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"fleetd/internal/component"
	"fleetd/internal/deploydir"
	"fleetd/internal/deployment"
	"fleetd/internal/events"
	"fleetd/internal/fetch"
	"fleetd/internal/ipcserver"
	"fleetd/internal/lifecycle"
	"fleetd/internal/metrics"
	"fleetd/internal/procrunner"
	"fleetd/internal/registry"
	"fleetd/internal/store"
	"fleetd/pkg/logging"
)

// Kernel wires every deployment-pipeline package into the running
// supervisor, the way app.Application wires config.MusterConfig and
// orchestrator.Manager.
type Kernel struct {
	cfg Config

	store     *store.Store
	registry  *registry.Registry
	bus       *events.Bus
	deployDir *deploydir.Manager
	runner    *procrunner.Runner
	merger    *lifecycle.Merger
	orch      *deployment.Orchestrator
	ipc       *ipcserver.Server

	mu         sync.RWMutex
	current    map[string]lifecycle.ComponentState
	groupRoots map[string][]string

	resultsMu sync.Mutex
	results   map[string]deployment.DeploymentResult

	// restartRequested carries the deployment ID of a bootstrap stage that
	// asked for a supervisor restart (§4.4.1); Run observes it and exits
	// with ErrRestartRequested so an external supervisor brings the
	// process back up to resume in KERNEL_ACTIVATION.
	restartRequested chan string
}

// ErrRestartRequested is returned by Run when a bootstrap-requiring
// deployment suspended itself pending a supervisor restart. It is not a
// failure: the caller should exit cleanly and let the process supervisor
// (systemd Restart=, for example) start fleetd again.
var ErrRestartRequested = errors.New("kernel: restart requested to resume a suspended bootstrap deployment")

// New constructs a Kernel from cfg without starting it: the load phase of
// NewApplication's two-phase bootstrap.
func New(cfg Config) (*Kernel, error) {
	for _, dir := range []string{cfg.RootDir, cfg.stateDir(), cfg.deploymentsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("kernel: create %s: %w", dir, err)
		}
	}

	collaborator := buildCollaborator(cfg)
	st := store.New(cfg.packagesRoot(), collaborator)
	reg := registry.New()
	bus := events.NewBus()
	deployDir := deploydir.New(cfg.deploymentsDir())
	runner := procrunner.New(st.DecompressedDir)

	k := &Kernel{
		cfg:              cfg,
		store:            st,
		registry:         reg,
		bus:              bus,
		deployDir:        deployDir,
		runner:           runner,
		current:          make(map[string]lifecycle.ComponentState),
		groupRoots:       make(map[string][]string),
		results:          make(map[string]deployment.DeploymentResult),
		restartRequested: make(chan string, 1),
	}

	k.merger = &lifecycle.Merger{
		Registry:       reg,
		Runner:         runner,
		Bus:            bus,
		DeployDir:      deployDir,
		Ensurer:        st,
		Persist:        k.persist,
		Pruner:         st,
		Bootstrap:      runner,
		RequestRestart: k.onBootstrapRestartRequested,
		OS:             osOrDefault(cfg.OS),
		Arch:           archOrDefault(cfg.Arch),
		UpdateChecks:   runner,
	}

	k.loadPersistedState()
	k.resumePendingBootstrap()

	k.orch = deployment.New(k.runPipeline, k.recordResult)
	k.ipc = ipcserver.New(k, bus)

	return k, nil
}

func buildCollaborator(cfg Config) fetch.Collaborator {
	if cfg.PreloadRecipeDir != "" || cfg.PreloadArtifactDir != "" {
		return fetch.NewLocalCollaborator(cfg.PreloadRecipeDir, cfg.PreloadArtifactDir)
	}
	if cfg.CollaboratorBaseURL != "" {
		return fetch.NewHTTPCollaborator(cfg.CollaboratorBaseURL, nil)
	}
	return nil
}

func osOrDefault(v string) string {
	if v != "" {
		return v
	}
	return runtime.GOOS
}

func archOrDefault(v string) string {
	if v != "" {
		return v
	}
	return runtime.GOARCH
}

// loadPersistedState restores the last-committed configuration tree from
// <RootDir>/state, if present. A missing or corrupt state directory simply
// starts the supervisor with an empty topology, matching a first boot.
func (k *Kernel) loadPersistedState() {
	snap, err := lifecycle.LoadSnapshot(k.cfg.stateDir(), k.recipeOf)
	if err != nil {
		logging.Info("kernel", "no persisted state loaded (%v); starting with an empty topology", err)
		return
	}
	k.current = snap.Configuration
	k.groupRoots = snap.GroupRoots
	logging.Info("kernel", "restored %d persisted component(s) across %d group(s)", len(k.current), len(k.groupRoots))
}

// resumePendingBootstrap scans the deployments directory for a deployment
// left suspended in BOOTSTRAP across a restart (§4.4.1) and finishes it in
// KERNEL_ACTIVATION before the deployment lane accepts new tasks,
// mirroring internal/config.Manager loading persisted entities from disk
// at process start before serving requests.
func (k *Kernel) resumePendingBootstrap() {
	dirs, err := k.deployDir.List()
	if err != nil {
		logging.Warn("kernel", "scanning for a suspended bootstrap deployment: %v", err)
		return
	}
	for _, id := range dirs {
		bootstrapDir := k.deployDir.Bootstrap(id)
		if !lifecycle.HasBootstrapState(bootstrapDir) {
			continue
		}
		state, ok, err := lifecycle.LoadBootstrapState(bootstrapDir, k.recipeOf)
		if err != nil || !ok {
			logging.Warn("kernel", "loading bootstrap state from %s: %v", bootstrapDir, err)
			continue
		}
		logging.Info("kernel", "resuming deployment %s in KERNEL_ACTIVATION after a supervisor restart", state.DeploymentID)
		deadline := time.Now().Add(k.cfg.DefaultDeploymentTimeout)
		res := k.merger.ResumeAfterBootstrap(context.Background(), state, deadline)
		k.recordResult(deployment.DeploymentResult{
			DeploymentID: state.DeploymentID,
			GroupName:    state.GroupName,
			Status:       res.Status,
			Err:          res.Err,
		})
	}
}

// onBootstrapRestartRequested is the lifecycle.Merger's RequestRestart
// callback: it signals Run to shut down cleanly so a process supervisor
// restarts fleetd, which then resumes the deployment in
// resumePendingBootstrap on the next New.
func (k *Kernel) onBootstrapRestartRequested(deploymentID string) {
	select {
	case k.restartRequested <- deploymentID:
	default:
	}
}

func (k *Kernel) recipeOf(name, version string) (component.Recipe, error) {
	id, err := component.NewIdentifier(name, version)
	if err != nil {
		return component.Recipe{}, err
	}
	return k.store.LoadRecipe(id)
}

// persist is the lifecycle.Merger's PersistFunc: it commits target as the
// new in-memory current tree and durably snapshots it under state/.
func (k *Kernel) persist(target map[string]lifecycle.ComponentState, groupRoots map[string][]string) error {
	k.mu.Lock()
	k.current = target
	k.groupRoots = groupRoots
	k.mu.Unlock()

	k.observeRegistry()

	return lifecycle.SaveSnapshot(k.cfg.stateDir(), lifecycle.Snapshot{
		Configuration:   target,
		GroupRoots:      groupRoots,
		RunningVersions: k.registry.RunningVersions(),
	})
}

// Run starts the deployment orchestrator and the local IPC listener and
// blocks until ctx is cancelled, notifying an enclosing systemd supervisor
// of readiness once the IPC socket is accepting connections — the
// execution phase of Application.Run, generalized from a single
// orchestrator goroutine to the deployment lane plus the IPC accept loop.
func (k *Kernel) Run(ctx context.Context) error {
	ln, err := ipcserver.Listen(k.cfg.socketPath())
	if err != nil {
		return fmt.Errorf("kernel: listen on IPC socket: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	var ipcErr error
	go func() {
		defer wg.Done()
		ipcErr = k.ipc.Serve(runCtx, ln)
	}()
	go func() {
		defer wg.Done()
		k.orch.Run(runCtx, deployment.NoOpJobSource{})
	}()

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logging.Debug("kernel", "sdnotify unavailable: %v", err)
	} else if sent {
		logging.Info("kernel", "notified supervisor of readiness")
	}

	var restartedFor string
	select {
	case restartedFor = <-k.restartRequested:
		logging.Info("kernel", "deployment %s requested a supervisor restart; shutting down so the supervisor can restart fleetd", restartedFor)
		cancel()
	case <-ctx.Done():
	}

	wg.Wait()
	if restartedFor != "" {
		return ErrRestartRequested
	}
	return ipcErr
}

// observeRegistry recomputes the running/broken component gauges from the
// registry's current instance states, called after every lifecycle merge
// commits a new topology.
func (k *Kernel) observeRegistry() {
	var running, broken int
	for _, inst := range k.registry.GetAll() {
		switch {
		case inst.State().IsSuccess():
			running++
		case inst.State().IsTerminalNonSuccess():
			broken++
		}
	}
	metrics.ObserveRegistry(running, broken)
}

func (k *Kernel) recordResult(r deployment.DeploymentResult) {
	k.resultsMu.Lock()
	defer k.resultsMu.Unlock()
	k.results[r.DeploymentID] = r
}

func (k *Kernel) snapshotTopology() (current map[string]lifecycle.ComponentState, groupRoots map[string][]string) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	current = make(map[string]lifecycle.ComponentState, len(k.current))
	for name, st := range k.current {
		current[name] = st
	}
	groupRoots = make(map[string][]string, len(k.groupRoots))
	for name, roots := range k.groupRoots {
		groupRoots[name] = append([]string{}, roots...)
	}
	return current, groupRoots
}
