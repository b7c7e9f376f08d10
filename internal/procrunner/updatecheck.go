package procrunner

import (
	"context"
	"time"

	"fleetd/internal/component"
	"fleetd/internal/events"
	"fleetd/internal/lifecycle"
	"fleetd/pkg/logging"
)

// defaultRecheckAfter is the deferral interval requested when a component's
// update-check script exits non-zero without more specific guidance; the
// source platform's own default safety-check recheck window.
const defaultRecheckAfter = 15 * time.Second

// SubscribeUpdateCheck wires name's declared update-check stage (if any) as
// an events.Bus subscriber: every PreComponentUpdate naming it runs the
// script and replies with a deferral vote on non-zero exit. It returns an
// unsubscribe func, or nil if the recipe declares no update-check stage.
func (r *Runner) SubscribeUpdateCheck(ctx context.Context, bus *events.Bus, name string, state lifecycle.ComponentState) func() {
	check, ok := updateCheckScript(state.Recipe)
	if !ok {
		return nil
	}

	ch, unsubscribe := bus.Subscribe(name)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case req, open := <-ch:
				if !open {
					return
				}
				cmd := r.command(ctx, state, check)
				var reply *events.DeferComponentUpdate
				if err := cmd.Run(); err != nil {
					logging.Info(subsystem, "%s: update-check deferred (%v)", name, err)
					reply = &events.DeferComponentUpdate{Component: name, RecheckAfter: defaultRecheckAfter}
				}
				select {
				case req.Reply <- reply:
				default:
				}
			}
		}
	}()
	return unsubscribe
}

func updateCheckScript(recipe component.Recipe) (string, bool) {
	for _, stage := range recipe.Lifecycle {
		if stage.UpdateCheck != "" {
			return stage.UpdateCheck, true
		}
	}
	return "", false
}
