package deployment

import (
	"context"
	"sync"
	"time"
)

// taskQueue is a FIFO queue of deployment Tasks with in-flight dedup keyed
// by Task.ID, generalizing internal/reconciler.workQueue from
// reconciliation requests to deployment tasks. A task submitted while its
// predecessor with the same ID is still processing is held as "dirty" and
// replaces it once Done is called, rather than running twice concurrently
// — the mechanism that enforces §5's "no two deployments ever apply
// concurrently" guarantee even when a fast-moving caller resubmits.
type taskQueue struct {
	mu sync.Mutex

	queue      []Task
	processing map[string]bool
	dirty      map[string]Task

	cond         *sync.Cond
	shuttingDown bool
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{
		queue:      make([]Task, 0),
		processing: make(map[string]bool),
		dirty:      make(map[string]Task),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add enqueues t, replacing any not-yet-processed copy with the same ID,
// or marking a copy currently processing as dirty so it is requeued once
// that run completes.
func (q *taskQueue) Add(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuttingDown {
		return
	}

	key := t.key()
	if q.processing[key] {
		q.dirty[key] = t
		return
	}

	for i, existing := range q.queue {
		if existing.key() == key {
			q.queue[i] = t
			return
		}
	}

	q.queue = append(q.queue, t)
	q.cond.Signal()
}

// Get blocks until a task is available, the queue shuts down, or ctx is
// done. The context-cancellation race is handled by a helper goroutine
// that broadcasts on the condition variable when ctx fires, exactly
// internal/reconciler.workQueue.Get's pattern.
func (q *taskQueue) Get(ctx context.Context) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.queue) == 0 && !q.shuttingDown {
		select {
		case <-ctx.Done():
			return Task{}, false
		default:
		}

		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			case <-done:
			}
		}()

		q.cond.Wait()
		close(done)

		select {
		case <-ctx.Done():
			return Task{}, false
		default:
		}
	}

	if q.shuttingDown && len(q.queue) == 0 {
		return Task{}, false
	}

	t := q.queue[0]
	q.queue = q.queue[1:]
	q.processing[t.key()] = true
	return t, true
}

// Done marks t's run as complete, requeuing a dirty resubmission if one
// arrived while it was processing.
func (q *taskQueue) Done(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := t.key()
	delete(q.processing, key)

	if dirty, ok := q.dirty[key]; ok {
		delete(q.dirty, key)
		q.queue = append(q.queue, dirty)
		q.cond.Signal()
	}
}

// Len reports the number of tasks currently queued (not counting the one
// in flight).
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Shutdown stops the queue; a blocked Get returns (Task{}, false) once
// the queue drains.
func (q *taskQueue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shuttingDown = true
	q.cond.Broadcast()
}

// delayedTaskQueue adds AddAfter to taskQueue, generalizing
// internal/reconciler.delayedQueue: a task rescheduled by the lifecycle
// merger's update-check vote (§4.4 phase 3) reappears on the queue after
// its deferral interval elapses, cancelling any earlier pending timer for
// the same deployment ID.
type delayedTaskQueue struct {
	*taskQueue

	mu         sync.Mutex
	delayedMap map[string]*time.Timer
	stopCh     chan struct{}
}

func newDelayedTaskQueue() *delayedTaskQueue {
	return &delayedTaskQueue{
		taskQueue:  newTaskQueue(),
		delayedMap: make(map[string]*time.Timer),
		stopCh:     make(chan struct{}),
	}
}

// AddAfter schedules t to be added after delay, replacing any pending
// timer already scheduled for t.ID.
func (d *delayedTaskQueue) AddAfter(t Task, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := t.key()
	if timer, ok := d.delayedMap[key]; ok {
		timer.Stop()
	}

	d.delayedMap[key] = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.delayedMap, key)
		d.mu.Unlock()

		select {
		case <-d.stopCh:
			return
		default:
			d.taskQueue.Add(t)
		}
	})
}

// Shutdown stops the queue and cancels every pending deferred timer.
func (d *delayedTaskQueue) Shutdown() {
	close(d.stopCh)

	d.mu.Lock()
	for _, timer := range d.delayedMap {
		timer.Stop()
	}
	d.delayedMap = make(map[string]*time.Timer)
	d.mu.Unlock()

	d.taskQueue.Shutdown()
}
