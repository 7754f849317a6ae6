// Package queue is an in-process stand-in for a distributed task
// broker: priority lanes matching celery_app.py's three named queues
// (beats_high, generation_medium, maintenance_low), each backed by a
// bounded worker pool instead of a network broker, since storyforge
// runs as a single Go process rather than a fleet of Celery workers.
package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/pool"
)

// Priority identifies which lane a Task runs on. Grounded on
// celery_app.py's task_queues/task_routes (beats_high for beat
// generation, generation_medium for chapter/plan generation,
// maintenance_low for background jobs).
type Priority int

const (
	PriorityMaintenance Priority = iota
	PriorityGeneration
	PriorityBeats
)

func (p Priority) String() string {
	switch p {
	case PriorityBeats:
		return "beats_high"
	case PriorityGeneration:
		return "generation_medium"
	default:
		return "maintenance_low"
	}
}

// Task is one unit of queued work. Run receives the lane's pool
// context, not the submitting call's context, since a task queue's
// whole point is to outlive the request that enqueued it.
type Task struct {
	ID       string
	Priority Priority
	Run      func(ctx context.Context) error
}

// TaskQueue is the narrow task-queue interface: multiple named queues
// with priorities, consumed here in-process.
type TaskQueue interface {
	Submit(ctx context.Context, t Task) error
	Close()
}

// LaneConcurrency sets each priority lane's worker count, mirroring
// celery_app.py's per-queue worker command examples in its trailing
// comment block (4 concurrent for beats, 2 for generation, 1 for
// maintenance).
type LaneConcurrency struct {
	Beats       int
	Generation  int
	Maintenance int
}

func DefaultLaneConcurrency() LaneConcurrency {
	return LaneConcurrency{Beats: 4, Generation: 2, Maintenance: 1}
}

// PriorityQueue is the concrete TaskQueue: one sourcegraph/conc
// ContextPool per lane, each bounded to its own concurrency. Submit
// never blocks past the lane's own backpressure (conc.Pool.Go blocks
// the caller once the lane is at capacity, same as a Celery worker
// pool saturating).
type PriorityQueue struct {
	pools  map[Priority]*pool.ContextPool
	logger *slog.Logger
}

func NewPriorityQueue(ctx context.Context, concurrency LaneConcurrency, logger *slog.Logger) *PriorityQueue {
	if logger == nil {
		logger = slog.Default()
	}
	mk := func(n int) *pool.ContextPool {
		if n < 1 {
			n = 1
		}
		return pool.New().WithMaxGoroutines(n).WithErrors().WithContext(ctx)
	}
	return &PriorityQueue{
		pools: map[Priority]*pool.ContextPool{
			PriorityBeats:       mk(concurrency.Beats),
			PriorityGeneration:  mk(concurrency.Generation),
			PriorityMaintenance: mk(concurrency.Maintenance),
		},
		logger: logger.With("component", "priority_queue"),
	}
}

func (q *PriorityQueue) Submit(ctx context.Context, t Task) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	p, ok := q.pools[t.Priority]
	if !ok {
		return fmt.Errorf("queue: unknown priority lane %v", t.Priority)
	}
	p.Go(func(poolCtx context.Context) error {
		if err := t.Run(poolCtx); err != nil {
			q.logger.Warn("task failed", "task_id", t.ID, "lane", t.Priority.String(), "error", err)
			return err
		}
		return nil
	})
	return nil
}

// Close drains every lane, waiting for in-flight tasks to finish.
func (q *PriorityQueue) Close() {
	for _, p := range q.pools {
		_ = p.Wait()
	}
}
