package review

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRunner tracks concurrent consults and records call order.
type countingRunner struct {
	mu        sync.Mutex
	active    int
	maxActive int
	order     []string
	hold      time.Duration
	failFor   map[string]error
	gate      chan struct{} // when set, consults block until the channel closes
}

func (r *countingRunner) Consult(_ context.Context, agentID, trigger string, _ map[string]any) (string, error) {
	r.mu.Lock()
	r.active++
	if r.active > r.maxActive {
		r.maxActive = r.active
	}
	r.order = append(r.order, trigger+"/"+agentID)
	gate := r.gate
	hold := r.hold
	err := r.failFor[agentID]
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if hold > 0 {
		time.Sleep(hold)
	}

	r.mu.Lock()
	r.active--
	r.mu.Unlock()

	if err != nil {
		return "", err
	}
	return "analysis from " + agentID, nil
}

func newTestQueue(t *testing.T, runner ExpertRunner, maxConcurrent int) *Queue {
	t.Helper()
	q := NewQueue(runner, func(o *Options) {
		o.MaxConcurrentReviews = maxConcurrent
		o.InterExpertDelay = 0
		o.PollInterval = 5 * time.Millisecond
	})
	t.Cleanup(q.Close)
	return q
}

func waitCompleted(t *testing.T, q *Queue, id string) Task {
	t.Helper()
	var task Task
	require.Eventually(t, func() bool {
		got, ok := q.Task(id)
		task = got
		return ok && got.Status == StatusCompleted
	}, 3*time.Second, 5*time.Millisecond)
	return task
}

func TestQueue_CompletesTaskAndRecordsReviews(t *testing.T) {
	runner := &countingRunner{}
	q := newTestQueue(t, runner, 2)

	id := q.Enqueue(Task{
		Trigger: "deep-review",
		Experts: []string{"security", "performance"},
		Context: map[string]any{"commit": "abc"},
	})

	task := waitCompleted(t, q, id)
	assert.Equal(t, 100, task.Progress)
	assert.Equal(t, PriorityMedium, task.Priority)

	reviews := q.Reviews(id)
	require.Len(t, reviews, 2)
	assert.Equal(t, "security", reviews[0].ExpertID)
	assert.Equal(t, "analysis from security", reviews[0].Output)
	assert.Empty(t, reviews[0].Error)
	assert.Equal(t, "performance", reviews[1].ExpertID)
}

func TestQueue_BoundedConcurrency(t *testing.T) {
	runner := &countingRunner{hold: 20 * time.Millisecond}
	q := newTestQueue(t, runner, 2)

	ids := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		ids = append(ids, q.Enqueue(Task{Trigger: "review", Experts: []string{"expert"}}))
	}
	for _, id := range ids {
		waitCompleted(t, q, id)
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.LessOrEqual(t, runner.maxActive, 2)
	assert.Len(t, runner.order, 8)
}

func TestQueue_PriorityOrderWithFIFOTies(t *testing.T) {
	gate := make(chan struct{})
	runner := &countingRunner{gate: gate}
	q := newTestQueue(t, runner, 1)

	// The blocker occupies the single slot so the later tasks queue up.
	blocker := q.Enqueue(Task{Trigger: "blocker", Experts: []string{"e"}})
	require.Eventually(t, func() bool { return q.ProcessingCount() == 1 }, time.Second, 2*time.Millisecond)

	q.Enqueue(Task{Trigger: "low", Priority: PriorityLow, Experts: []string{"e"}})
	q.Enqueue(Task{Trigger: "medium-1", Priority: PriorityMedium, Experts: []string{"e"}})
	urgent := q.Enqueue(Task{Trigger: "urgent", Priority: PriorityUrgent, Experts: []string{"e"}})
	q.Enqueue(Task{Trigger: "medium-2", Priority: PriorityMedium, Experts: []string{"e"}})
	require.Equal(t, 4, q.QueuedCount())

	close(gate)
	waitCompleted(t, q, blocker)
	waitCompleted(t, q, urgent)
	require.Eventually(t, func() bool { return q.QueuedCount() == 0 && q.ProcessingCount() == 0 }, 3*time.Second, 5*time.Millisecond)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.order, 5)
	assert.Equal(t, "blocker/e", runner.order[0])
	assert.Equal(t, "urgent/e", runner.order[1])
	assert.Equal(t, "medium-1/e", runner.order[2])
	assert.Equal(t, "medium-2/e", runner.order[3])
	assert.Equal(t, "low/e", runner.order[4])
}

func TestQueue_ExpertFailureDoesNotAbortTask(t *testing.T) {
	runner := &countingRunner{failFor: map[string]error{"flaky": errors.New("model unavailable")}}
	q := newTestQueue(t, runner, 1)

	id := q.Enqueue(Task{Trigger: "review", Experts: []string{"solid", "flaky", "steady"}})
	task := waitCompleted(t, q, id)
	assert.Equal(t, 100, task.Progress)

	reviews := q.Reviews(id)
	require.Len(t, reviews, 3)
	assert.Empty(t, reviews[0].Error)
	assert.Equal(t, "model unavailable", reviews[1].Error)
	assert.Empty(t, reviews[1].Output)
	assert.Empty(t, reviews[2].Error)
}

func TestQueue_NoExpertsFailsImmediately(t *testing.T) {
	q := newTestQueue(t, &countingRunner{}, 1)

	id := q.Enqueue(Task{Trigger: "review"})
	task, ok := q.Task(id)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, 0, q.QueuedCount())
}

func TestQueue_TaskLookup(t *testing.T) {
	q := newTestQueue(t, &countingRunner{}, 1)

	_, ok := q.Task("missing")
	assert.False(t, ok)

	id := q.Enqueue(Task{Trigger: "review", Experts: []string{"e"}})
	waitCompleted(t, q, id)
	assert.Len(t, q.Tasks(), 1)
	assert.Empty(t, q.Reviews("missing"))
}
