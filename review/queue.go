// Package review implements the background analysis queue: longer-running
// multi-expert review tasks too slow for synchronous triggering. Tasks are
// ordered by priority (urgent > high > medium > low, FIFO within a tier) and
// dispatched to a worker pool bounded by a weighted semaphore. Within one
// task the experts run sequentially with a small inter-expert delay to bound
// request rate; per-expert failures are recorded and never abort the task.
package review

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentmatrix/core"
	"github.com/hupe1980/agentmatrix/logging"
	"golang.org/x/sync/semaphore"
)

// TaskPriority orders tasks in the queue.
type TaskPriority string

const (
	// PriorityUrgent tasks dispatch before all others.
	PriorityUrgent TaskPriority = "urgent"
	// PriorityHigh tasks dispatch after urgent ones.
	PriorityHigh TaskPriority = "high"
	// PriorityMedium is the default.
	PriorityMedium TaskPriority = "medium"
	// PriorityLow tasks dispatch last.
	PriorityLow TaskPriority = "low"
)

func (p TaskPriority) rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

// TaskStatus is the lifecycle state of a review task.
type TaskStatus string

const (
	// StatusQueued means the task awaits a concurrency slot.
	StatusQueued TaskStatus = "queued"
	// StatusProcessing means experts are being consulted.
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted means every assigned expert was attempted.
	StatusCompleted TaskStatus = "completed"
	// StatusFailed means the task could not run at all (no experts).
	StatusFailed TaskStatus = "failed"
)

// Task is one queued review job.
type Task struct {
	ID       string         `json:"id"`
	Trigger  string         `json:"trigger"`
	Context  map[string]any `json:"context,omitempty"`
	Experts  []string       `json:"experts"`
	Priority TaskPriority   `json:"priority"`
	Status   TaskStatus     `json:"status"`
	// Progress is 0-100, advanced after each attempted expert.
	Progress    int       `json:"progress"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`

	seq uint64
}

// CompletedReview is the immutable output of one expert on one task.
type CompletedReview struct {
	TaskID   string        `json:"task_id"`
	ExpertID string        `json:"expert_id"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Latency  time.Duration `json:"latency"`
	At       time.Time     `json:"at"`
}

// ExpertRunner consults a single expert agent. The matrix satisfies this via
// its Consult method.
type ExpertRunner interface {
	Consult(ctx context.Context, agentID, trigger string, tctx map[string]any) (string, error)
}

// Options configures a Queue.
type Options struct {
	// MaxConcurrentReviews caps how many tasks process simultaneously.
	MaxConcurrentReviews int
	// InterExpertDelay spaces consecutive expert calls within one task.
	InterExpertDelay time.Duration
	// PollInterval is how long the dispatch loop sleeps between passes
	// when nothing is runnable.
	PollInterval time.Duration
	Logger       logging.Logger
}

// Queue is the priority review queue plus its dispatch loop. Create with
// NewQueue and release with Close.
type Queue struct {
	runner ExpertRunner
	sem    *semaphore.Weighted
	cap    int

	mu         sync.Mutex
	pending    []*Task
	tasks      map[string]*Task
	reviews    map[string][]CompletedReview
	processing int
	nextSeq    uint64

	delay time.Duration
	poll  time.Duration

	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}
	logger logging.Logger
}

// NewQueue creates the queue and starts its dispatch loop.
func NewQueue(runner ExpertRunner, optFns ...func(o *Options)) *Queue {
	opts := Options{
		MaxConcurrentReviews: 2,
		InterExpertDelay:     100 * time.Millisecond,
		PollInterval:         250 * time.Millisecond,
		Logger:               logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConcurrentReviews < 1 {
		opts.MaxConcurrentReviews = 1
	}

	q := &Queue{
		runner:  runner,
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrentReviews)),
		cap:     opts.MaxConcurrentReviews,
		tasks:   make(map[string]*Task),
		reviews: make(map[string][]CompletedReview),
		delay:   opts.InterExpertDelay,
		poll:    opts.PollInterval,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  opts.Logger,
	}
	go q.loop()
	return q
}

// Close stops the dispatch loop. Tasks already processing run to
// completion; queued tasks stay queued.
func (q *Queue) Close() {
	close(q.stop)
	<-q.done
}

// Enqueue adds a task and wakes the dispatch loop. The assigned task id is
// returned. Tasks without experts fail immediately.
func (q *Queue) Enqueue(task Task) string {
	task.ID = core.NewID()
	task.Status = StatusQueued
	task.Progress = 0
	task.EnqueuedAt = time.Now().UTC()
	if task.Priority == "" {
		task.Priority = PriorityMedium
	}

	q.mu.Lock()
	q.nextSeq++
	task.seq = q.nextSeq
	t := task
	q.tasks[t.ID] = &t
	if len(t.Experts) == 0 {
		t.Status = StatusFailed
		t.CompletedAt = time.Now().UTC()
		q.mu.Unlock()
		q.logger.Warn("review task has no experts", "task_id", t.ID)
		return t.ID
	}
	q.pending = append(q.pending, &t)
	q.mu.Unlock()

	q.logger.Info("review task enqueued", "task_id", t.ID, "priority", string(t.Priority), "experts", len(t.Experts))

	// Idempotent wake: a full buffer means the loop is already poked.
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return t.ID
}

// Task returns a copy of the task by id.
func (q *Queue) Task(id string) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Tasks returns copies of all known tasks.
func (q *Queue) Tasks() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Task, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, *t)
	}
	return out
}

// Reviews returns the completed expert outputs for a task in attempt order.
func (q *Queue) Reviews(taskID string) []CompletedReview {
	q.mu.Lock()
	defer q.mu.Unlock()
	src := q.reviews[taskID]
	out := make([]CompletedReview, len(src))
	copy(out, src)
	return out
}

// ProcessingCount returns how many tasks are currently processing; never
// exceeds the configured cap.
func (q *Queue) ProcessingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processing
}

// QueuedCount returns how many tasks await dispatch.
func (q *Queue) QueuedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// loop dispatches runnable tasks while respecting the semaphore cap,
// sleeping between passes rather than busy-polling.
func (q *Queue) loop() {
	defer close(q.done)
	for {
		q.dispatch()
		select {
		case <-q.stop:
			return
		case <-q.wake:
		case <-time.After(q.poll):
		}
	}
}

// dispatch starts workers for as many queued tasks as there are free
// concurrency slots.
func (q *Queue) dispatch() {
	for {
		if !q.sem.TryAcquire(1) {
			return
		}
		task := q.popLocked()
		if task == nil {
			q.sem.Release(1)
			return
		}
		go q.run(task)
	}
}

// popLocked removes and returns the best queued task: lowest priority rank,
// then FIFO by sequence.
func (q *Queue) popLocked() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(q.pending); i++ {
		a, b := q.pending[i], q.pending[best]
		if a.Priority.rank() < b.Priority.rank() ||
			(a.Priority.rank() == b.Priority.rank() && a.seq < b.seq) {
			best = i
		}
	}
	task := q.pending[best]
	q.pending = append(q.pending[:best], q.pending[best+1:]...)

	task.Status = StatusProcessing
	task.StartedAt = time.Now().UTC()
	q.processing++
	return task
}

// run consults the task's experts sequentially and completes the task once
// every expert has been attempted.
func (q *Queue) run(task *Task) {
	defer q.sem.Release(1)

	experts := task.Experts
	for i, expertID := range experts {
		select {
		case <-q.stop:
			// Shutdown mid-task: record what ran, complete with partial
			// progress.
			q.complete(task)
			return
		default:
		}

		started := time.Now()
		output, err := q.runner.Consult(context.Background(), expertID, task.Trigger, task.Context)
		review := CompletedReview{
			TaskID:   task.ID,
			ExpertID: expertID,
			Latency:  time.Since(started),
			At:       time.Now().UTC(),
		}
		if err != nil {
			review.Error = err.Error()
			q.logger.Warn("expert review failed", "task_id", task.ID, "expert_id", expertID, "error", err.Error())
		} else {
			review.Output = output
		}

		q.mu.Lock()
		q.reviews[task.ID] = append(q.reviews[task.ID], review)
		task.Progress = (i + 1) * 100 / len(experts)
		q.mu.Unlock()

		if q.delay > 0 && i < len(experts)-1 {
			time.Sleep(q.delay)
		}
	}
	q.complete(task)
}

func (q *Queue) complete(task *Task) {
	q.mu.Lock()
	task.Status = StatusCompleted
	task.CompletedAt = time.Now().UTC()
	q.processing--
	attempted := len(q.reviews[task.ID])
	q.mu.Unlock()
	q.logger.Info("review task completed", "task_id", task.ID, "experts_attempted", attempted)
}

// String implements fmt.Stringer for debugging.
func (q *Queue) String() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return fmt.Sprintf("review.Queue{queued: %d, processing: %d/%d}", len(q.pending), q.processing, q.cap)
}
