// Package lifecycle implements the lifecycle merge engine of spec §4.4:
// it transitions the running topology from its current configuration to a
// newly resolved target configuration atomically, under a chosen
// failure-handling policy, through five phases — Plan, Snapshot,
// update-check vote, Apply, Commit/Recover.
//
// The running topology is a generalization of
// internal/services.ServiceRegistry/BaseService (internal/registry in
// this tree). Plan is grounded on internal/reconciler.Manager's
// compare-desired-vs-observed step. The update-check vote is grounded on
// internal/reconciler.state_change_bridge.go's channel fan-out pattern,
// implemented here as internal/events.Bus. Apply's stop-then-start
// ordering walks internal/resolver.Graph the way internal/orchestrator
// starts services in dependency order. Snapshot/commit/rollback
// persistence is grounded on internal/config.Storage's Save/Load/Delete
// contract, generalized to a deployment-scoped directory tree
// (internal/deploydir). Cancellation follows
// internal/reconciler.queue.Get's context.Done()-vs-sync.Cond race
// pattern.
package lifecycle
