package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	v1 "github.com/harshkumar1663/PulseBoard/internal/api/v1"
	"github.com/harshkumar1663/PulseBoard/internal/processing"
)

const (
	defaultWorkerCount = 4
	defaultQueueSize   = 1024

	// drainTimeout bounds tasks still in flight after shutdown begins.
	drainTimeout = 30 * time.Second
)

// TaskKind discriminates queued work.
type TaskKind string

const (
	TaskSingle TaskKind = "single"
	TaskBatch  TaskKind = "batch"
)

// Task is one unit of queued work: a single event id or an ordered batch.
type Task struct {
	Kind     TaskKind
	EventID  string
	EventIDs []string
}

// Dispatcher owns the task queue and the worker pool that executes
// processing invocations. It is constructed once at process start and
// passed explicitly; there is no ambient global state.
//
// Delivery is at-least-once from the caller's point of view: the processor
// is idempotent for already-processed events, so redelivery is harmless.
type Dispatcher struct {
	processor *processing.Processor
	retry     *processing.RetryController
	workers   int

	tasks chan Task

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a dispatcher with its own buffered task queue.
func NewDispatcher(processor *processing.Processor, retry *processing.RetryController, workerCount, queueSize int) *Dispatcher {
	if processor == nil {
		panic("dispatch: processor must not be nil")
	}
	if retry == nil {
		panic("dispatch: retry controller must not be nil")
	}
	if workerCount <= 0 {
		workerCount = defaultWorkerCount
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Dispatcher{
		processor: processor,
		retry:     retry,
		workers:   workerCount,
		tasks:     make(chan Task, queueSize),
	}
}

// EnqueueSingle queues one single-event invocation. Returns false when the
// queue is full or the dispatcher is shutting down; the caller decides how
// to degrade (the submission layer reports "stored" instead of "enqueued").
func (d *Dispatcher) EnqueueSingle(eventID string) bool {
	return d.enqueue(Task{Kind: TaskSingle, EventID: eventID})
}

// EnqueueBatch queues one batch invocation over an ordered id list.
func (d *Dispatcher) EnqueueBatch(eventIDs []string) bool {
	if len(eventIDs) == 0 {
		return false
	}
	ids := make([]string, len(eventIDs))
	copy(ids, eventIDs)
	return d.enqueue(Task{Kind: TaskBatch, EventIDs: ids})
}

func (d *Dispatcher) enqueue(task Task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}

	select {
	case d.tasks <- task:
		return true
	default:
		slog.Warn("[Dispatch] Task queue full, rejecting task", "kind", task.Kind)
		return false
	}
}

// Start runs the worker pool until the context is cancelled, then drains
// the queued backlog and returns. Each worker executes one invocation to
// completion; invocations for distinct event ids run in parallel with no
// shared mutable state besides the store.
func (d *Dispatcher) Start(ctx context.Context) error {
	slog.Info("[Dispatch] Starting workers",
		"worker_count", d.workers,
		"queue_size", cap(d.tasks),
	)

	go func() {
		<-ctx.Done()
		slog.Info("[Dispatch] Stopping (context cancelled), draining queue...")
		d.closeQueue()
	}()

	var g errgroup.Group
	for i := 0; i < d.workers; i++ {
		workerID := i
		g.Go(func() error {
			d.runWorker(ctx, workerID)
			return nil
		})
	}

	err := g.Wait()
	slog.Info("[Dispatch] All workers stopped")
	return err
}

func (d *Dispatcher) closeQueue() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.tasks)
	}
}

// runWorker consumes tasks until the queue is closed and drained. Tasks
// picked up after shutdown began run under a bounded drain context so a
// backlog cannot stall termination indefinitely.
func (d *Dispatcher) runWorker(ctx context.Context, workerID int) {
	for task := range d.tasks {
		taskCtx := ctx
		var cancel context.CancelFunc
		if ctx.Err() != nil {
			taskCtx, cancel = context.WithTimeout(context.Background(), drainTimeout)
		}

		d.execute(taskCtx, workerID, task)

		if cancel != nil {
			cancel()
		}
	}

	slog.Debug("[Dispatch] Worker exiting", "worker_id", workerID)
}

func (d *Dispatcher) execute(ctx context.Context, workerID int, task Task) {
	switch task.Kind {
	case TaskSingle:
		result := d.retry.Run(ctx, task.EventID, func(attemptCtx context.Context) v1.SingleResult {
			return d.processor.ProcessSingle(attemptCtx, task.EventID)
		})
		logSingleResult(workerID, result)

	case TaskBatch:
		result := d.processor.ProcessBatch(ctx, task.EventIDs)
		// All-or-nothing: a failed batch commit is terminal for the
		// pass, individual events are not re-queued.
		slog.Info("[Dispatch] Batch task finished",
			"worker_id", workerID,
			"status", result.Status,
			"total", result.Total,
			"processed", result.Processed,
			"failed", result.Failed,
		)

	default:
		slog.Error("[Dispatch] Unknown task kind", "worker_id", workerID, "kind", task.Kind)
	}
}

func logSingleResult(workerID int, result v1.SingleResult) {
	switch result.Status {
	case v1.StatusSuccess:
		slog.Info("[Dispatch] Single task finished",
			"worker_id", workerID,
			"event_id", result.EventID,
			"status", result.Status,
		)
	case v1.StatusSkipped:
		slog.Warn("[Dispatch] Single task skipped",
			"worker_id", workerID,
			"event_id", result.EventID,
		)
	default:
		slog.Error("[Dispatch] Single task failed",
			"worker_id", workerID,
			"event_id", result.EventID,
			"status", result.Status,
			"error", result.Error,
			"retries_exhausted", result.RetriesExhausted,
		)
	}
}
