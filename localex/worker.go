// Package localex provides a single-threaded cooperative local executor.
//
// One executor drives many tasks on one OS thread. Tasks are cooperative:
// they run until they suspend through Yield, Sleep, MaybeYield or
// Task.Await, at which point the next runnable task gets the thread.
// Exactly one task runs at any moment, so tasks share pipelines and other
// single-threaded state without locks. Multiple executors may run on
// different threads, but tasks and their state never migrate between them.
package localex

import (
	"container/heap"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Worker is the per-thread runtime state of one local executor. Every task
// callback receives it; it is required for spawning and for the suspension
// primitives. A Worker must only be used from within the executor it
// belongs to.
type Worker struct {
	log     *zerolog.Logger
	quantum time.Duration

	running bool
	current *task
	main    *task
	runq    []*task
	timers  timerHeap
	all     []*task

	// the baton: the scheduler sends on a task's resume channel and waits
	// on yielded; the running task sends on yielded when it suspends or
	// finishes. All executor state is only touched by whoever holds the
	// baton, which is what makes the executor lock-free.
	yielded chan struct{}
}

func newWorker(log *zerolog.Logger, quantum time.Duration) *Worker {
	return &Worker{
		log:     log,
		quantum: quantum,
		yielded: make(chan struct{}),
	}
}

// run drives fn and every task it spawns until fn completes, then cancels
// and unwinds whatever is left.
func (w *Worker) run(fn func(*Worker) error) error {
	w.running = true
	w.main = w.newTask(func(wk *Worker) (any, error) { return nil, fn(wk) })

	stalled := false
	for w.main.state != stateDone {
		w.fireTimers()
		t := w.dequeue()
		if t == nil {
			if len(w.timers) == 0 {
				// nothing runnable and nothing to wake it: bail out
				w.log.Error().Msg("executor stalled: all tasks blocked")
				stalled = true
				break
			}
			time.Sleep(time.Until(w.timers[0].at))
			continue
		}
		w.resume(t)
	}

	w.teardown()
	w.running = false

	if stalled {
		return ErrStalled
	}
	return w.main.err
}

// resume hands the baton to t and waits for it back.
func (w *Worker) resume(t *task) {
	t.state = stateRunning
	t.resumedAt = time.Now()
	w.current = t
	t.resume <- struct{}{}
	<-w.yielded
	w.current = nil
}

// teardown cancels every unfinished task and resumes it until it unwinds.
func (w *Worker) teardown() {
	for {
		pending := false
		for i := 0; i < len(w.all); i++ {
			t := w.all[i]
			if t.state == stateDone {
				continue
			}
			pending = true
			t.canceled.Store(true)
			w.resume(t)
		}
		if !pending {
			return
		}
	}
}

func (w *Worker) enqueue(t *task) {
	if t.queued || t.state == stateDone {
		return
	}
	t.queued = true
	w.runq = append(w.runq, t)
}

func (w *Worker) dequeue() *task {
	for len(w.runq) > 0 {
		t := w.runq[0]
		w.runq = w.runq[1:]
		t.queued = false
		if t.state != stateDone {
			return t
		}
	}
	return nil
}

// wake marks t runnable and queues it, unless it already finished.
func (w *Worker) wake(t *task) {
	if t.state == stateDone || t == w.current {
		return
	}
	t.state = stateRunnable
	w.enqueue(t)
}

func (w *Worker) fireTimers() {
	now := time.Now()
	for len(w.timers) > 0 {
		head := w.timers[0]
		if head.t.state == stateDone {
			// the task finished some other way; don't sleep on its timer
			heap.Pop(&w.timers)
			continue
		}
		if head.at.After(now) {
			break
		}
		heap.Pop(&w.timers)
		if head.t.state == stateBlocked {
			w.wake(head.t)
		}
	}
}

// newTask registers a task and parks its goroutine until first resumed.
func (w *Worker) newTask(fn func(*Worker) (any, error)) *task {
	t := &task{
		id:     uuid.New(),
		w:      w,
		fn:     fn,
		resume: make(chan struct{}),
		done:   make(chan struct{}),
	}
	w.all = append(w.all, t)
	t.state = stateRunnable
	w.enqueue(t)
	go w.trampoline(t)
	return t
}

// trampoline is the task goroutine body: park, run the function, publish
// the result, return the baton. A panic in user code marks the task failed;
// the cancel sentinel marks it canceled.
func (w *Worker) trampoline(t *task) {
	<-t.resume
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(cancelSentinel); ok {
				t.err = ErrCanceled
			} else {
				t.err = fmt.Errorf("task panicked: %v", r)
				w.log.Error().Str("task", t.id.String()).Msgf("task panicked: %v", r)
			}
		}
		if t.detached {
			t.out = nil
		}
		t.state = stateDone
		close(t.done)
		for _, wt := range t.waiters {
			w.wake(wt)
		}
		t.waiters = nil
		w.yielded <- struct{}{}
	}()
	if t.canceled.Load() {
		panic(cancelSentinel{})
	}
	t.out, t.err = t.fn(w)
}

// suspend gives the baton back and parks the current task goroutine until
// rescheduled. Every suspension point observes cancellation.
func (w *Worker) suspend(t *task) {
	w.yielded <- struct{}{}
	<-t.resume
	if t.canceled.Load() {
		panic(cancelSentinel{})
	}
}

// Yield reschedules the current task at the tail of the run queue and lets
// other runnable tasks go first.
func (w *Worker) Yield() {
	t := w.current
	if t == nil {
		return
	}
	t.state = stateRunnable
	w.enqueue(t)
	w.suspend(t)
}

// MaybeYield yields only if the task has held the thread for at least the
// executor's preemption quantum. Long-running tasks call this in their hot
// loops; with no quantum configured it is a no-op.
func (w *Worker) MaybeYield() {
	if w.quantum <= 0 || w.current == nil {
		return
	}
	if time.Since(w.current.resumedAt) >= w.quantum {
		w.Yield()
	}
}

// Sleep suspends the current task for at least d.
func (w *Worker) Sleep(d time.Duration) {
	t := w.current
	if t == nil {
		time.Sleep(d)
		return
	}
	heap.Push(&w.timers, timerEntry{at: time.Now().Add(d), t: t})
	t.state = stateBlocked
	w.suspend(t)
}

// timerEntry is one pending wake-up.
type timerEntry struct {
	at time.Time
	t  *task
}

type timerHeap []timerEntry

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)        { *h = append(*h, x.(timerEntry)) }

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
