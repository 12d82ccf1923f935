package localex

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type taskState uint8

const (
	stateRunnable taskState = iota
	stateRunning
	stateBlocked
	stateDone
)

// cancelSentinel unwinds a canceled task through its trampoline.
type cancelSentinel struct{}

// task is the executor-internal task record. Everything except the canceled
// flag and the done channel is only touched under the scheduler baton.
type task struct {
	id uuid.UUID
	w  *Worker
	fn func(*Worker) (any, error)

	resume    chan struct{}
	done      chan struct{}
	state     taskState
	queued    bool
	detached  bool
	canceled  atomic.Bool
	resumedAt time.Time

	out     any
	err     error
	waiters []*task
}

// Task is a handle to a spawned task. Handles are not goroutine-safe:
// use them from tasks of the same executor, or after Run returned.
// Dropping a handle never cancels the task.
type Task[T any] struct {
	t *task
}

// Spawn schedules fn as a new task on the current worker and returns its
// handle. It fails with ErrNotWorker when called outside a worker context
// (nil Worker, executor not running, or no task holding the thread).
func Spawn[T any](w *Worker, fn func(*Worker) (T, error)) (*Task[T], error) {
	if w == nil || !w.running || w.current == nil {
		return nil, ErrNotWorker
	}
	t := w.newTask(func(wk *Worker) (any, error) {
		return fn(wk)
	})
	return &Task[T]{t: t}, nil
}

// ID returns the task id.
func (h *Task[T]) ID() uuid.UUID { return h.t.id }

// Done returns true once the task finished, failed or was canceled.
func (h *Task[T]) Done() bool { return h.t.state == stateDone }

// Await blocks until the task completes and returns its output. From
// within a task it suspends cooperatively; from outside the executor
// (pass a nil Worker) it blocks the calling thread on the completion
// signal. A canceled task yields ErrCanceled.
func (h *Task[T]) Await(w *Worker) (T, error) {
	var zero T
	t := h.t
	if w != nil && w.current != nil {
		cur := w.current
		for t.state != stateDone {
			t.waiters = append(t.waiters, cur)
			cur.state = stateBlocked
			w.suspend(cur)
		}
	} else {
		<-t.done
	}
	if t.err != nil {
		return zero, t.err
	}
	if t.out == nil {
		return zero, nil
	}
	return t.out.(T), nil
}

// Detach marks the task as not-awaited: its output is released on
// completion. The task keeps running; only Cancel stops it early.
func (h *Task[T]) Detach() { h.t.detached = true }

// Cancel requests cooperative cancellation. The task observes the request
// at its next suspension point and unwinds without running to completion;
// tasks that never suspend again run to completion instead.
func (h *Task[T]) Cancel() {
	t := h.t
	if t.state == stateDone {
		return
	}
	t.canceled.Store(true)
	t.w.wake(t)
}
