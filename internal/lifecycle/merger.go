package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fleetd/internal/component"
	"fleetd/internal/deploydir"
	"fleetd/internal/events"
	"fleetd/internal/ferrors"
	"fleetd/internal/registry"
	"fleetd/internal/store"
	"fleetd/pkg/logging"
)

// FailureHandlingPolicy names what the merger does when a target service
// fails to reach a success state (§4.4 phase 5).
type FailureHandlingPolicy string

const (
	PolicyDoNothing FailureHandlingPolicy = "DO_NOTHING"
	PolicyRollback  FailureHandlingPolicy = "ROLLBACK"
)

// ComponentUpdatePolicy governs the update-check vote of §4.4 phase 3.
type ComponentUpdatePolicy struct {
	TimeoutSeconds       int
	SkipNotifyComponents []string
	// SkipSafetyChecks, when true, still collects deferral votes but
	// never reschedules on their account (scenario 7 of §8).
	SkipSafetyChecks bool
}

// Status is one of the deployment result statuses of §4.5.
type Status string

const (
	StatusSuccessful                 Status = "SUCCESSFUL"
	StatusFailedNoStateChange        Status = "FAILED_NO_STATE_CHANGE"
	StatusFailedRollbackNotRequested Status = "FAILED_ROLLBACK_NOT_REQUESTED"
	StatusFailedRollbackComplete     Status = "FAILED_ROLLBACK_COMPLETE"
	StatusFailedUnableToRollback     Status = "FAILED_UNABLE_TO_ROLLBACK"
	// StatusRescheduled is not a terminal §4.5 status; it tells the
	// deployment task orchestrator to requeue the task after
	// RescheduleAfter elapses (§4.4 phase 3).
	StatusRescheduled Status = "RESCHEDULED"
	// StatusSuspendedForRestart is not a terminal §4.5 status either: it
	// reports that a bootstrap-requiring component asked for a supervisor
	// restart (§4.4.1) and the deployment is now parked in BOOTSTRAP,
	// waiting for ResumeAfterBootstrap to finish it in KERNEL_ACTIVATION
	// once the process comes back up.
	StatusSuspendedForRestart Status = "SUSPENDED_FOR_RESTART"
)

// Result is what Apply returns: a terminal status (or a reschedule
// request) and, on non-success, the error that caused it.
type Result struct {
	Status          Status
	Err             error
	RescheduleAfter time.Duration
}

// ArtifactEnsurer is the subset of internal/store.Store the merger needs:
// guarantee a component's recipe and artifacts are present locally before
// starting it.
type ArtifactEnsurer interface {
	Ensure(ctx context.Context, id component.Identifier, osName, arch string) error
}

// Pruner is the subset of internal/store.Store the merger needs to bound
// on-device disk use: delete every store entry not reachable from keep
// (§4.2's "called preemptively before install"). A version currently
// referenced by a running service belongs in keep even if it is about to
// be replaced, so it survives until the deployment that replaces it
// actually commits.
type Pruner interface {
	Prune(keep store.Reachable) error
}

// BootstrapRunner executes a component's bootstrap lifecycle stage (§4.4.1)
// and reports whether it asked for a supervisor restart.
type BootstrapRunner interface {
	RunBootstrap(ctx context.Context, state ComponentState) (restartRequested bool, err error)
}

// PersistFunc commits a successful deployment's configuration tree and
// group-to-roots map to durable storage; the merger calls it once, inside
// the commit phase, never on rollback.
type PersistFunc func(target map[string]ComponentState, groupRoots map[string][]string) error

// Merger implements the five-phase lifecycle merge of §4.4.
type Merger struct {
	Registry  *registry.Registry
	Runner    ServiceRunner
	Bus       *events.Bus
	DeployDir *deploydir.Manager
	Ensurer   ArtifactEnsurer
	Persist   PersistFunc
	Pruner    Pruner
	OS, Arch  string

	// Bootstrap, if set, runs a bootstrap-requiring component's bootstrap
	// stage (§4.4.1). A nil Bootstrap treats every update as if no recipe
	// ever declared a bootstrap stage.
	Bootstrap BootstrapRunner
	// RequestRestart, if set, is called with a deploymentID when a
	// bootstrap stage asks for a supervisor restart; the kernel wires
	// this to its own shutdown signal so an external supervisor (systemd
	// Restart=) brings the process back up to resume in
	// KERNEL_ACTIVATION.
	RequestRestart func(deploymentID string)

	// UpdateChecks, if set, is notified of every component the merger
	// starts or stops so its update-check stage (if declared) can vote
	// in later PreComponentUpdate rounds.
	UpdateChecks UpdateCheckSubscriber

	subsMu sync.Mutex
	subs   map[string]func()
}

func (m *Merger) trackUpdateCheck(ctx context.Context, name string, state ComponentState) {
	if m.UpdateChecks == nil {
		return
	}
	unsub := m.UpdateChecks.SubscribeUpdateCheck(ctx, m.Bus, name, state)
	if unsub == nil {
		return
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	if m.subs == nil {
		m.subs = make(map[string]func())
	}
	m.subs[name] = unsub
}

func (m *Merger) untrackUpdateCheck(name string) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	if unsub, ok := m.subs[name]; ok {
		unsub()
		delete(m.subs, name)
	}
}

// Apply transitions the running topology from current to target under
// policy, persisting a rollback snapshot first and observing ctx at the
// checkpoints of §4.4.2.
func (m *Merger) Apply(
	ctx context.Context,
	deploymentID string,
	groupName string,
	current, target map[string]ComponentState,
	groupRoots map[string][]string,
	policy FailureHandlingPolicy,
	updatePolicy ComponentUpdatePolicy,
	deadline time.Time,
) Result {
	plan := ComputePlan(current, target)

	if _, err := m.DeployDir.CreateIfNotExists(deploymentID); err != nil {
		return Result{Status: StatusFailedNoStateChange, Err: ferrors.Wrap(ferrors.KindIoError, deploymentID, err, "allocate deployment directory")}
	}
	snap := Snapshot{
		Configuration:   current,
		GroupRoots:      groupRoots,
		RunningVersions: m.Registry.RunningVersions(),
	}
	if err := SaveSnapshot(m.DeployDir.Snapshot(deploymentID), snap); err != nil {
		return Result{Status: StatusFailedNoStateChange, Err: ferrors.Wrap(ferrors.KindIoError, deploymentID, err, "persist rollback snapshot")}
	}

	if ctx.Err() != nil {
		return m.recover(ctx, deploymentID, current, target, nil, nil, policy, ferrors.New(ferrors.KindCancelled, deploymentID, "cancelled before update-check vote"))
	}

	notify := diffMinus(append(append([]string{}, plan.Updated...), plan.Removed...), updatePolicy.SkipNotifyComponents)
	if len(notify) > 0 {
		timeout := time.Duration(updatePolicy.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		votes := m.Bus.PublishAndCollect(ctx, events.PreComponentUpdate{DeploymentID: deploymentID, Components: notify}, timeout)
		if len(votes) > 0 && !updatePolicy.SkipSafetyChecks {
			var longest time.Duration
			for _, v := range votes {
				if v.RecheckAfter > longest {
					longest = v.RecheckAfter
				}
			}
			if !deadline.IsZero() {
				if remaining := time.Until(deadline); longest > remaining {
					longest = remaining
				}
			}
			logging.Info("lifecycle", "deployment %s rescheduled after %s deferral vote from %d component(s)", deploymentID, longest, len(votes))
			return Result{Status: StatusRescheduled, RescheduleAfter: longest}
		}
	}

	stopNames, err := stopOrder(current, toSet(plan.Removed, plan.Updated))
	if err != nil {
		return Result{Status: StatusFailedNoStateChange, Err: ferrors.Wrap(ferrors.KindDependencyConflict, deploymentID, err, "compute stop order")}
	}
	startNames, err := startOrder(target, toSet(plan.Added, plan.Updated))
	if err != nil {
		return Result{Status: StatusFailedNoStateChange, Err: ferrors.Wrap(ferrors.KindDependencyConflict, deploymentID, err, "compute start order")}
	}

	m.pruneBeforeInstall(deploymentID, current, target)

	if plan.anyBootstrapRequiring() {
		suspended, err := m.runBootstrapStages(ctx, deploymentID, groupName, current, target, groupRoots, plan, policy, updatePolicy, deadline)
		if err != nil {
			return m.recover(ctx, deploymentID, current, target, nil, nil, policy, err)
		}
		if suspended {
			return Result{Status: StatusSuspendedForRestart}
		}
	}

	stopped, started, applyErr := m.apply(ctx, current, target, plan, stopNames, startNames, deadline)
	if applyErr == nil {
		if m.Persist != nil {
			if err := m.Persist(target, groupRoots); err != nil {
				applyErr = ferrors.Wrap(ferrors.KindConfigStoreError, deploymentID, err, "persist committed configuration")
			}
		}
	}
	if applyErr == nil {
		_ = ClearBootstrapState(m.DeployDir.Bootstrap(deploymentID))
		_ = m.DeployDir.Remove(deploymentID)
		return Result{Status: StatusSuccessful}
	}

	return m.recover(ctx, deploymentID, current, target, stopped, started, policy, applyErr)
}

// runBootstrapStages implements §4.4.1's BOOTSTRAP handling: persist the
// in-progress deployment, run every bootstrap-requiring component's
// bootstrap stage in plan.Updated order, and stop at the first one that
// asks for a supervisor restart. The caller's normal stop/start/commit
// work still runs afterward in the same process when nothing asked to
// restart; ResumeAfterBootstrap performs the equivalent work across a
// restart when something did.
func (m *Merger) runBootstrapStages(
	ctx context.Context,
	deploymentID, groupName string,
	current, target map[string]ComponentState,
	groupRoots map[string][]string,
	plan Plan,
	policy FailureHandlingPolicy,
	updatePolicy ComponentUpdatePolicy,
	deadline time.Time,
) (suspended bool, err error) {
	if m.Bootstrap == nil {
		logging.Warn("lifecycle", "deployment %s: bootstrap-requiring components present but no BootstrapRunner configured; skipping bootstrap stage", deploymentID)
		return false, nil
	}

	state := BootstrapState{
		DeploymentID: deploymentID,
		GroupName:    groupName,
		Stage:        StageBootstrapPending,
		Current:      current,
		Target:       target,
		GroupRoots:   groupRoots,
		Policy:       policy,
		UpdatePolicy: updatePolicy,
		Deadline:     deadline,
	}
	if err := SaveBootstrapState(m.DeployDir.Bootstrap(deploymentID), state); err != nil {
		return false, ferrors.Wrap(ferrors.KindIoError, deploymentID, err, "persist BOOTSTRAP state")
	}

	for _, name := range plan.Updated {
		if !plan.BootstrapRequiring[name] {
			continue
		}
		restartRequested, err := m.Bootstrap.RunBootstrap(ctx, target[name])
		if err != nil {
			return false, ferrors.Wrap(ferrors.KindServiceUpdateError, name, err, "bootstrap stage")
		}
		if restartRequested {
			logging.Info("lifecycle", "deployment %s: %s requested a supervisor restart during its bootstrap stage; suspending in BOOTSTRAP", deploymentID, name)
			if m.RequestRestart != nil {
				m.RequestRestart(deploymentID)
			}
			return true, nil
		}
	}

	if err := ClearBootstrapState(m.DeployDir.Bootstrap(deploymentID)); err != nil {
		logging.Warn("lifecycle", "deployment %s: clearing BOOTSTRAP state after an in-process bootstrap pass: %v", deploymentID, err)
	}
	return false, nil
}

// ResumeAfterBootstrap finishes a deployment left suspended in BOOTSTRAP by
// a prior process (§4.4.1's KERNEL_ACTIVATION stage): it performs the same
// stop/start/commit work Apply's tail would have and, on failure, hands
// the partial work to recover under state.Policy as Apply does. Called once at startup for any deployment directory still
// holding a bootstrap marker.
func (m *Merger) ResumeAfterBootstrap(ctx context.Context, state BootstrapState, deadline time.Time) Result {
	plan := ComputePlan(state.Current, state.Target)

	stopNames, err := stopOrder(state.Current, toSet(plan.Removed, plan.Updated))
	if err != nil {
		return Result{Status: StatusFailedNoStateChange, Err: ferrors.Wrap(ferrors.KindDependencyConflict, state.DeploymentID, err, "compute stop order")}
	}
	startNames, err := startOrder(state.Target, toSet(plan.Added, plan.Updated))
	if err != nil {
		return Result{Status: StatusFailedNoStateChange, Err: ferrors.Wrap(ferrors.KindDependencyConflict, state.DeploymentID, err, "compute start order")}
	}

	stopped, started, applyErr := m.apply(ctx, state.Current, state.Target, plan, stopNames, startNames, deadline)
	if applyErr == nil && m.Persist != nil {
		if err := m.Persist(state.Target, state.GroupRoots); err != nil {
			applyErr = ferrors.Wrap(ferrors.KindConfigStoreError, state.DeploymentID, err, "persist committed configuration")
		}
	}

	if applyErr == nil {
		_ = ClearBootstrapState(m.DeployDir.Bootstrap(state.DeploymentID))
		_ = m.DeployDir.Remove(state.DeploymentID)
		logging.Info("lifecycle", "deployment %s completed KERNEL_ACTIVATION successfully", state.DeploymentID)
		return Result{Status: StatusSuccessful}
	}

	logging.Warn("lifecycle", "deployment %s failed KERNEL_ACTIVATION, rolling back: %v", state.DeploymentID, applyErr)
	result := m.recover(ctx, state.DeploymentID, state.Current, state.Target, stopped, started, state.Policy, applyErr)
	_ = ClearBootstrapState(m.DeployDir.Bootstrap(state.DeploymentID))
	return result
}

// apply runs phase 4: stop removed/updated services in reverse
// dependency order, then start added/updated ones in forward order,
// observing the cancellation checkpoint between every step. It returns
// the names successfully stopped and successfully started so recover can
// undo exactly that much work.
func (m *Merger) apply(ctx context.Context, current, target map[string]ComponentState, plan Plan, stopNames, startNames []string, deadline time.Time) (stopped, started []string, err error) {
	for _, name := range stopNames {
		if ctx.Err() != nil {
			return stopped, started, ferrors.New(ferrors.KindCancelled, name, "cancelled during stop phase")
		}
		inst := m.Registry.Get(name)
		if inst == nil {
			continue
		}
		inst.Transition(registry.StateStopping, nil)
		if err := m.Runner.Stop(ctx, current[name], inst); err != nil {
			inst.Transition(registry.StateErrored, err)
			return stopped, started, ferrors.Wrap(ferrors.KindServiceUpdateError, name, err, "stop component")
		}
		inst.Transition(registry.StateFinished, nil)
		m.untrackUpdateCheck(name)
		if !plan.isUpdated(name) {
			m.Registry.Unregister(name)
		}
		stopped = append(stopped, name)
	}

	for _, name := range startNames {
		if ctx.Err() != nil {
			return stopped, started, ferrors.New(ferrors.KindCancelled, name, "cancelled during start phase")
		}
		state := target[name]
		if m.Ensurer != nil {
			if err := m.Ensurer.Ensure(ctx, state.Identifier, m.OS, m.Arch); err != nil {
				return stopped, started, err
			}
		}
		inst := registry.NewInstance(registry.Identifier{Name: name, Version: state.Identifier.Version.String()})
		m.Registry.Register(inst)
		inst.Transition(registry.StateInstalled, nil)
		inst.Transition(registry.StateStarting, nil)
		if err := m.Runner.Start(ctx, state, inst); err != nil {
			inst.Transition(registry.StateErrored, err)
			return stopped, started, ferrors.Wrap(ferrors.KindServiceUpdateError, name, err, "start component")
		}
		finalState, err := awaitTerminal(ctx, inst, deadline)
		started = append(started, name)
		if err != nil {
			return stopped, started, ferrors.Wrap(ferrors.KindCancelled, name, err, "await component start")
		}
		if finalState.IsTerminalNonSuccess() {
			return stopped, started, ferrors.New(ferrors.KindServiceUpdateError, name, "component entered BROKEN")
		}
		m.trackUpdateCheck(ctx, name, state)
	}

	return stopped, started, nil
}

// pruneBeforeInstall bounds on-device disk use ahead of the install work
// apply is about to do (§4.2): it keeps every component still named in
// current (which has not been stopped yet) union target (what's about to
// run), so nothing live is ever deleted out from under a running
// component, and prunes everything else. Best-effort: a failure here
// never fails the deployment.
func (m *Merger) pruneBeforeInstall(deploymentID string, current, target map[string]ComponentState) {
	if m.Pruner == nil {
		return
	}
	keep := make(store.Reachable, len(current)+len(target))
	for _, st := range current {
		keep.Keep(st.Identifier.Name, st.Identifier.Version)
	}
	for _, st := range target {
		keep.Keep(st.Identifier.Name, st.Identifier.Version)
	}
	if err := m.Pruner.Prune(keep); err != nil {
		logging.Warn("lifecycle", "deployment %s: preemptive store prune failed: %v", deploymentID, err)
	}
}

// recover implements §4.4 phase 5's failure branch: DO_NOTHING leaves the
// partially-applied state; ROLLBACK restores exactly the pre-deployment
// topology from the snapshot. A cancellation observed before commit is
// forced through ROLLBACK semantics regardless of the caller's policy,
// per §4.4.2.
func (m *Merger) recover(ctx context.Context, deploymentID string, current, target map[string]ComponentState, stopped, started []string, policy FailureHandlingPolicy, cause error) Result {
	effective := policy
	if _, ok := ferrors.As(cause, ferrors.KindCancelled); ok {
		effective = PolicyRollback
	}

	if effective == PolicyDoNothing {
		logging.Warn("lifecycle", "deployment %s left partially applied under DO_NOTHING: %v", deploymentID, cause)
		return Result{Status: StatusFailedRollbackNotRequested, Err: cause}
	}

	// Undo anything Apply started, in reverse start order.
	rollbackCtx := context.Background()
	for i := len(started) - 1; i >= 0; i-- {
		name := started[i]
		inst := m.Registry.Get(name)
		if inst == nil {
			continue
		}
		inst.Transition(registry.StateStopping, nil)
		if err := m.Runner.Stop(rollbackCtx, target[name], inst); err != nil {
			return Result{Status: StatusFailedUnableToRollback, Err: fmt.Errorf("rollback: stop %s: %w", name, err)}
		}
		m.untrackUpdateCheck(name)
		m.Registry.Unregister(name)
	}

	// Restore anything Apply stopped, in forward dependency order over
	// the original current tree.
	restoreSet := toSet(stopped)
	restoreOrder, err := startOrder(current, restoreSet)
	if err != nil {
		return Result{Status: StatusFailedUnableToRollback, Err: fmt.Errorf("rollback: compute restore order: %w", err)}
	}
	for _, name := range restoreOrder {
		state := current[name]
		inst := registry.NewInstance(registry.Identifier{Name: name, Version: state.Identifier.Version.String()})
		m.Registry.Register(inst)
		inst.Transition(registry.StateInstalled, nil)
		inst.Transition(registry.StateStarting, nil)
		if err := m.Runner.Start(rollbackCtx, state, inst); err != nil {
			return Result{Status: StatusFailedUnableToRollback, Err: fmt.Errorf("rollback: restart %s: %w", name, err)}
		}
		finalState, err := awaitTerminal(rollbackCtx, inst, time.Time{})
		if err != nil || finalState.IsTerminalNonSuccess() {
			return Result{Status: StatusFailedUnableToRollback, Err: fmt.Errorf("rollback: %s did not recover: %w", name, err)}
		}
		m.trackUpdateCheck(rollbackCtx, name, state)
	}

	logging.Info("lifecycle", "deployment %s rolled back to pre-deployment topology after: %v", deploymentID, cause)
	return Result{Status: StatusFailedRollbackComplete, Err: cause}
}

func (p Plan) isUpdated(name string) bool {
	for _, n := range p.Updated {
		if n == name {
			return true
		}
	}
	return false
}

func (p Plan) anyBootstrapRequiring() bool {
	return len(p.BootstrapRequiring) > 0
}

func diffMinus(names, exclude []string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, n := range exclude {
		skip[n] = true
	}
	out := make([]string, 0, len(names))
	seen := make(map[string]bool)
	for _, n := range names {
		if skip[n] || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
