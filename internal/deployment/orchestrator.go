package deployment

import (
	"context"
	"sync"

	"fleetd/internal/lifecycle"
	"fleetd/internal/metrics"
	"fleetd/pkg/logging"
)

// JobSource is a deployment task producer. The cloud job-queue producer
// (IoT Jobs/Shadow analogue) and the local CLI producer (`fleetd deploy`)
// both implement it; the transport each uses to learn about new tasks is
// out of scope per spec §1.
type JobSource interface {
	// Next blocks until a task is available or ctx is done, in which
	// case it returns ok=false.
	Next(ctx context.Context) (Task, bool)
}

// NoOpJobSource stands in for the cloud job-queue producer when no cloud
// transport is wired: it never yields a task and exits when ctx is done.
type NoOpJobSource struct{}

func (NoOpJobSource) Next(ctx context.Context) (Task, bool) {
	<-ctx.Done()
	return Task{}, false
}

// PipelineFunc runs §4.1-§4.4 in order for one task and returns the
// lifecycle merger's result. The composition of resolver, store,
// configresolve, and lifecycle.Merger into this single call is the
// caller's wiring, not the orchestrator's concern.
type PipelineFunc func(ctx context.Context, task Task) lifecycle.Result

// Orchestrator is the single-writer serializer of §4.5: it accepts tasks
// from any number of JobSources, runs at most one at a time through
// PipelineFunc, and reports a DeploymentResult per task that reaches a
// terminal status.
type Orchestrator struct {
	queue    *delayedTaskQueue
	pipeline PipelineFunc
	onResult func(DeploymentResult)

	wg sync.WaitGroup
}

// New constructs an Orchestrator. onResult, if non-nil, is invoked once
// per task that reaches a terminal §4.5 status (a RESCHEDULED result is
// requeued internally and never reaches onResult).
func New(pipeline PipelineFunc, onResult func(DeploymentResult)) *Orchestrator {
	return &Orchestrator{
		queue:    newDelayedTaskQueue(),
		pipeline: pipeline,
		onResult: onResult,
	}
}

// Submit enqueues t for execution. Safe to call from the local CLI
// handler directly, bypassing JobSource.
func (o *Orchestrator) Submit(t Task) {
	o.queue.Add(t)
	metrics.DeploymentQueueDepth.Set(float64(o.Len()))
}

// Len reports the number of tasks currently queued, the value the
// DeploymentQueueDepth gauge is set from.
func (o *Orchestrator) Len() int {
	return o.queue.Len()
}

// Run pumps every source into the queue and consumes it on a single
// goroutine (the caller's) until ctx is done. Run blocks until shutdown
// completes.
func (o *Orchestrator) Run(ctx context.Context, sources ...JobSource) {
	for _, s := range sources {
		o.wg.Add(1)
		go o.pump(ctx, s)
	}

	o.consume(ctx)

	o.queue.Shutdown()
	o.wg.Wait()
}

func (o *Orchestrator) pump(ctx context.Context, source JobSource) {
	defer o.wg.Done()
	for {
		t, ok := source.Next(ctx)
		if !ok {
			return
		}
		o.Submit(t)
	}
}

// consume is the deployment lane: the one goroutine ever allowed to run a
// task's pipeline, enforcing §5's strict cross-deployment serialization.
func (o *Orchestrator) consume(ctx context.Context) {
	for {
		t, ok := o.queue.Get(ctx)
		if !ok {
			return
		}

		result := o.runOne(ctx, t)
		o.queue.Done(t)
		metrics.DeploymentQueueDepth.Set(float64(o.Len()))

		if result != nil && o.onResult != nil {
			o.onResult(*result)
		}
	}
}

// runOne runs the pipeline for t and translates its outcome into either a
// terminal DeploymentResult or, for a deferral reschedule, a requeue.
func (o *Orchestrator) runOne(ctx context.Context, t Task) *DeploymentResult {
	logging.Info("deployment", "running deployment %s (group %s)", t.ID, t.Document.GroupName)

	res := o.pipeline(ctx, t)

	if res.Status == lifecycle.StatusRescheduled {
		logging.Info("deployment", "deployment %s rescheduled after %s", t.ID, res.RescheduleAfter)
		o.queue.AddAfter(t, res.RescheduleAfter)
		return nil
	}

	logging.Info("deployment", "deployment %s finished with status %s", t.ID, res.Status)
	metrics.DeploymentResults.WithLabelValues(string(res.Status)).Inc()
	return &DeploymentResult{
		DeploymentID: t.ID,
		GroupName:    t.Document.GroupName,
		Status:       res.Status,
		Err:          res.Err,
	}
}
