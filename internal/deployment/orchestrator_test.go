package deployment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/lifecycle"
)

func TestOrchestrator_RunsSubmittedTasksToCompletion(t *testing.T) {
	var mu sync.Mutex
	var ran []string

	pipeline := func(_ context.Context, task Task) lifecycle.Result {
		mu.Lock()
		ran = append(ran, task.ID)
		mu.Unlock()
		return lifecycle.Result{Status: lifecycle.StatusSuccessful}
	}

	var results []DeploymentResult
	var resultsMu sync.Mutex
	o := New(pipeline, func(r DeploymentResult) {
		resultsMu.Lock()
		results = append(results, r)
		resultsMu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	o.Submit(Task{ID: "d1", Document: Document{GroupName: "fleet"}})
	o.Submit(Task{ID: "d2", Document: Document{GroupName: "fleet"}})

	done := make(chan struct{})
	go func() {
		o.Run(ctx, NoOpJobSource{})
		close(done)
	}()

	require.Eventually(t, func() bool {
		resultsMu.Lock()
		defer resultsMu.Unlock()
		return len(results) == 2
	}, time.Second, time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"d1", "d2"}, ran)
	assert.Equal(t, lifecycle.StatusSuccessful, results[0].Status)
}

func TestOrchestrator_RescheduleRequeuesInsteadOfReportingResult(t *testing.T) {
	var calls int
	var mu sync.Mutex

	pipeline := func(_ context.Context, task Task) lifecycle.Result {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			return lifecycle.Result{Status: lifecycle.StatusRescheduled, RescheduleAfter: 20 * time.Millisecond}
		}
		return lifecycle.Result{Status: lifecycle.StatusSuccessful}
	}

	var result *DeploymentResult
	var resultMu sync.Mutex
	o := New(pipeline, func(r DeploymentResult) {
		resultMu.Lock()
		result = &r
		resultMu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Submit(Task{ID: "d1"})

	done := make(chan struct{})
	go func() {
		o.Run(ctx, NoOpJobSource{})
		close(done)
	}()

	require.Eventually(t, func() bool {
		resultMu.Lock()
		defer resultMu.Unlock()
		return result != nil
	}, time.Second, time.Millisecond)

	resultMu.Lock()
	assert.Equal(t, lifecycle.StatusSuccessful, result.Status)
	resultMu.Unlock()

	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()

	cancel()
	<-done
}

func TestTaskQueue_DedupsResubmissionWhileProcessing(t *testing.T) {
	q := newTaskQueue()
	q.Add(Task{ID: "d1", Document: Document{GroupName: "v1"}})

	got, ok := q.Get(context.Background())
	require.True(t, ok)
	assert.Equal(t, "v1", got.Document.GroupName)

	// A resubmission while "d1" is processing must not run concurrently;
	// it should be held until Done.
	q.Add(Task{ID: "d1", Document: Document{GroupName: "v2"}})
	assert.Equal(t, 0, q.Len())

	q.Done(got)
	assert.Equal(t, 1, q.Len())

	next, ok := q.Get(context.Background())
	require.True(t, ok)
	assert.Equal(t, "v2", next.Document.GroupName)
}
