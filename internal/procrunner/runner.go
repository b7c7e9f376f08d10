package procrunner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"fleetd/internal/component"
	"fleetd/internal/ferrors"
	"fleetd/internal/lifecycle"
	"fleetd/internal/registry"
	"fleetd/pkg/logging"
)

const subsystem = "procrunner"

// ExitCodeRestartRequested is the sentinel exit code a bootstrap stage
// script uses to ask the supervisor to restart itself (§4.4.1). No
// upstream source defines this convention; any other non-zero exit from a
// bootstrap stage is treated as a genuine failure of that stage.
const ExitCodeRestartRequested = 75

// execCommandContext is a variable so tests can swap in a fake, mirroring
// internal/containerizer.execCommandContext.
var execCommandContext = exec.CommandContext

// Runner implements lifecycle.ServiceRunner against the host OS.
type Runner struct {
	// WorkDir returns the working directory a component's stage scripts
	// run from, typically its artifact-decompressed directory.
	WorkDir func(id component.Identifier) string

	mu        sync.Mutex
	processes map[string]*backgroundProcess
}

type backgroundProcess struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
}

// New constructs a Runner. workDir may be nil, in which case stage scripts
// inherit the supervisor's own working directory.
func New(workDir func(component.Identifier) string) *Runner {
	return &Runner{WorkDir: workDir, processes: make(map[string]*backgroundProcess)}
}

var _ lifecycle.ServiceRunner = (*Runner)(nil)
var _ lifecycle.BootstrapRunner = (*Runner)(nil)

// RunBootstrap executes state's bootstrap stage, if it declares one, and
// reports whether the stage asked for a supervisor restart by exiting with
// ExitCodeRestartRequested. A recipe with no bootstrap stage, or one whose
// SkipIf gate fires, never requests a restart.
func (r *Runner) RunBootstrap(ctx context.Context, state lifecycle.ComponentState) (bool, error) {
	stage, ok := state.Recipe.Lifecycle[component.StageBootstrap]
	if !ok || r.skip(ctx, state, stage) {
		return false, nil
	}

	cmd := r.command(ctx, state, stage.Script)
	output, err := cmd.CombinedOutput()
	if err == nil {
		logging.Debug(subsystem, "bootstrap stage completed for %s", state.Identifier)
		return false, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == ExitCodeRestartRequested {
		logging.Info(subsystem, "%s: bootstrap stage requested a supervisor restart", state.Identifier)
		return true, nil
	}
	return false, fmt.Errorf("bootstrap: %w\noutput: %s", err, string(output))
}

// Start runs install and startup synchronously, then either launches run
// in the background (transitioning to RUNNING) or, if the recipe declares
// no run stage, transitions straight to FINISHED.
func (r *Runner) Start(ctx context.Context, state lifecycle.ComponentState, inst *registry.Instance) error {
	name := inst.Name()

	for _, stageName := range []component.LifecycleStageName{component.StageInstall, component.StageStartup} {
		stage, ok := state.Recipe.Lifecycle[stageName]
		if !ok || r.skip(ctx, state, stage) {
			continue
		}
		if err := r.runSync(ctx, state, stage); err != nil {
			return ferrors.Wrap(ferrors.KindServiceUpdateError, name, err, fmt.Sprintf("%s stage", stageName))
		}
	}

	runStage, ok := state.Recipe.Lifecycle[component.StageRun]
	if !ok || r.skip(ctx, state, runStage) {
		inst.Transition(registry.StateFinished, nil)
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	cmd := r.command(runCtx, state, runStage.Script)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return ferrors.Wrap(ferrors.KindServiceUpdateError, name, err, "start run stage")
	}

	r.mu.Lock()
	r.processes[name] = &backgroundProcess{cmd: cmd, cancel: cancel}
	r.mu.Unlock()

	inst.Transition(registry.StateRunning, nil)
	logging.Info(subsystem, "%s: run stage started (pid %d)", name, cmd.Process.Pid)

	go r.awaitExit(name, cmd)
	return nil
}

// awaitExit waits for a backgrounded run-stage process to exit, logs the
// outcome and clears its bookkeeping. The Instance is not retained here,
// so awaitExit does not change the instance's state.
func (r *Runner) awaitExit(name string, cmd *exec.Cmd) {
	err := cmd.Wait()
	r.mu.Lock()
	delete(r.processes, name)
	r.mu.Unlock()
	if err != nil {
		logging.Warn(subsystem, "%s: run stage exited: %v", name, err)
		return
	}
	logging.Info(subsystem, "%s: run stage exited cleanly", name)
}

// Stop runs the shutdown stage (if declared) then terminates any tracked
// background run-stage process.
func (r *Runner) Stop(ctx context.Context, state lifecycle.ComponentState, inst *registry.Instance) error {
	name := inst.Name()

	if stage, ok := state.Recipe.Lifecycle[component.StageShutdown]; ok && !r.skip(ctx, state, stage) {
		if err := r.runSync(ctx, state, stage); err != nil {
			logging.Warn(subsystem, "%s: shutdown stage failed, killing run process anyway: %v", name, err)
		}
	}

	r.mu.Lock()
	proc, ok := r.processes[name]
	delete(r.processes, name)
	r.mu.Unlock()
	if ok {
		proc.cancel()
		_ = proc.cmd.Wait()
	}

	inst.Transition(registry.StateFinished, nil)
	return nil
}

func (r *Runner) runSync(ctx context.Context, state lifecycle.ComponentState, stage component.LifecycleStage) error {
	cmd := r.command(ctx, state, stage.Script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w\noutput: %s", stage.Name, err, string(output))
	}
	logging.Debug(subsystem, "%s stage completed for %s", stage.Name, state.Identifier)
	return nil
}

func (r *Runner) command(ctx context.Context, state lifecycle.ComponentState, script string) *exec.Cmd {
	cmd := execCommandContext(ctx, "/bin/sh", "-c", script)
	if r.WorkDir != nil {
		cmd.Dir = r.WorkDir(state.Identifier)
	}
	return cmd
}

// skip evaluates a stage's SkipIf predicate. Two built-in predicates are
// recognized, mirroring the source platform's own skipif vocabulary:
// "onpath <name>" (true if name resolves on $PATH) and "exists <path>"
// (true if path exists). Anything else is run as a shell script; a zero
// exit means skip, matching updateCheck's "non-zero defers" convention
// turned around for a gate.
func (r *Runner) skip(ctx context.Context, state lifecycle.ComponentState, stage component.LifecycleStage) bool {
	if stage.SkipIf == "" {
		return false
	}
	fields := strings.Fields(stage.SkipIf)
	if len(fields) == 2 {
		switch fields[0] {
		case "onpath":
			_, err := exec.LookPath(fields[1])
			return err == nil
		case "exists":
			_, err := os.Stat(fields[1])
			return err == nil
		}
	}
	cmd := r.command(ctx, state, stage.SkipIf)
	return cmd.Run() == nil
}
