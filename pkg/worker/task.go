// Package worker provides the in-process goroutine pool that serves as an
// asynchronous substrate for dispatched pipeline remainders.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
)

// taskIDCounter is the global task ID counter
var taskIDCounter int64

// Task is a unit of background work.
type Task interface {
	// Execute executes the task
	Execute(ctx context.Context) error

	// ID returns the task ID, for tracking
	ID() string
}

// FuncTask adapts a function to the Task interface.
type FuncTask struct {
	id string
	fn func(ctx context.Context) error
}

// NewTask creates a task with a generated ID.
func NewTask(fn func(ctx context.Context) error) *FuncTask {
	id := atomic.AddInt64(&taskIDCounter, 1)
	return &FuncTask{
		id: fmt.Sprintf("task-%d", id),
		fn: fn,
	}
}

// NewTaskWithID creates a task with a caller-supplied ID.
func NewTaskWithID(id string, fn func(ctx context.Context) error) *FuncTask {
	return &FuncTask{id: id, fn: fn}
}

// Execute executes the task
func (t *FuncTask) Execute(ctx context.Context) error {
	if t.fn == nil {
		return fmt.Errorf("task %s has no execution function", t.id)
	}
	return t.fn(ctx)
}

// ID returns the task ID
func (t *FuncTask) ID() string {
	return t.id
}
