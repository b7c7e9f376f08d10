// Package deployment implements the deployment task orchestrator of spec
// §4.5: a single-writer serializer that accepts deployment tasks from two
// producers (the cloud job queue and the local CLI), runs them one at a
// time, and emits a DeploymentResult per task.
//
// The serializer is internal/reconciler.workQueue generalized from
// reconciliation requests to deployment tasks: FIFO ordering, in-flight
// dedup keyed by deployment ID, and a sync.Cond-guarded blocking Get
// racing context cancellation via a helper goroutine. Task rescheduling
// after a deferral vote reuses internal/reconciler.delayedQueue's AddAfter
// (time.AfterFunc, cancel-and-replace on a repeated key) in spirit, for
// the "reschedule after the largest deferral interval" behavior of §4.4
// phase 3. JobSource models the cloud-vs-local task producer split named
// in §4.5, since the IoT Jobs/Shadow transport itself is out of scope
// per §1.
package deployment
