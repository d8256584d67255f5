package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/distkit/conveyor/pkg/clock"
)

// State defines the state of a Worker
type State int32

const (
	// StateIdle represents an idle worker
	StateIdle State = iota
	// StateWorking represents a worker processing a task
	StateWorking
	// StateStopped represents a stopped worker
	StateStopped
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWorking:
		return "working"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Worker is a single pool goroutine draining the shared task channel.
type Worker struct {
	id       int
	state    int32 // atomic state
	taskChan chan Task
	quit     chan struct{}
	done     chan struct{}

	// statistics
	totalProcessed int64
	totalFailed    int64

	onError func(Task, error)
	clock   clock.Clock
}

// NewWorker creates a worker reading from taskChan.
func NewWorker(id int, taskChan chan Task, c clock.Clock, onError func(Task, error)) *Worker {
	if c == nil {
		c = clock.NewReal()
	}
	return &Worker{
		id:       id,
		state:    int32(StateIdle),
		taskChan: taskChan,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		onError:  onError,
		clock:    c,
	}
}

// ID returns the worker ID
func (w *Worker) ID() int {
	return w.id
}

// State returns the current worker state
func (w *Worker) State() State {
	return State(atomic.LoadInt32(&w.state))
}

// Start runs the worker loop until the context is canceled, the worker is
// stopped, or the task channel closes.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			atomic.StoreInt32(&w.state, int32(StateStopped))
			return
		case <-w.quit:
			atomic.StoreInt32(&w.state, int32(StateStopped))
			return
		case task, ok := <-w.taskChan:
			if !ok {
				atomic.StoreInt32(&w.state, int32(StateStopped))
				return
			}
			w.process(ctx, task)
		}
	}
}

func (w *Worker) process(ctx context.Context, task Task) {
	atomic.StoreInt32(&w.state, int32(StateWorking))
	defer atomic.StoreInt32(&w.state, int32(StateIdle))

	err := w.execute(ctx, task)
	if err != nil {
		atomic.AddInt64(&w.totalFailed, 1)
		if w.onError != nil {
			w.onError(task, err)
		}
		return
	}
	atomic.AddInt64(&w.totalProcessed, 1)
}

// execute runs a task with panic recovery; a panicking dispatched remainder
// must not take the whole pool down.
func (w *Worker) execute(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)
			err = fmt.Errorf("task %s panicked: %v\n%s", task.ID(), r, buf[:n])
		}
	}()

	return task.Execute(ctx)
}

// Stop signals the worker to exit and waits for the current task to finish.
func (w *Worker) Stop() error {
	select {
	case <-w.quit:
		// already stopped
		return nil
	default:
		close(w.quit)
	}

	select {
	case <-w.done:
		return nil
	case <-w.clock.After(5 * time.Second):
		return fmt.Errorf("worker %d stop timeout", w.id)
	}
}

// Stats returns the worker's processed and failed counts.
func (w *Worker) Stats() (processed, failed int64) {
	return atomic.LoadInt64(&w.totalProcessed), atomic.LoadInt64(&w.totalFailed)
}
