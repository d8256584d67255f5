package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/distkit/conveyor/pkg/clock"
)

// Predefined errors
var (
	// ErrPoolFull indicates the task queue is at capacity
	ErrPoolFull = errors.New("worker pool is full")

	// ErrPoolNotStarted indicates Submit was called before Start
	ErrPoolNotStarted = errors.New("worker pool is not started")

	// ErrPoolClosed indicates the pool is closed
	ErrPoolClosed = errors.New("worker pool is closed")

	// ErrSubmitTimeout indicates a submission timed out waiting for queue space
	ErrSubmitTimeout = errors.New("task submission timeout")
)

// Config defines configuration for a fixed pool.
type Config struct {
	// PoolSize is the number of worker goroutines
	PoolSize int

	// QueueSize is the task queue capacity
	QueueSize int

	// SubmitTimeout bounds how long Submit waits for queue space
	SubmitTimeout time.Duration

	// Clock for time operations (optional, defaults to real clock)
	Clock clock.Clock

	// OnError receives task failures; nil drops them
	OnError func(Task, error)
}

// DefaultConfig returns default pool configuration.
func DefaultConfig() *Config {
	return &Config{
		PoolSize:      4,
		QueueSize:     64,
		SubmitTimeout: 5 * time.Second,
		Clock:         clock.NewReal(),
	}
}

// FixedPool is a fixed-size worker pool over a shared task channel.
type FixedPool struct {
	config   *Config
	workers  []*Worker
	taskChan chan Task

	// state management: 0 stopped, 1 running, 2 closed
	state     int32
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu sync.RWMutex
}

// NewFixedPool creates a fixed pool.
func NewFixedPool(config *Config) (*FixedPool, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if config.PoolSize <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", config.PoolSize)
	}
	if config.QueueSize <= 0 {
		return nil, fmt.Errorf("queue size must be positive, got %d", config.QueueSize)
	}
	if config.Clock == nil {
		config.Clock = clock.NewReal()
	}

	taskChan := make(chan Task, config.QueueSize)
	workers := make([]*Worker, config.PoolSize)
	for i := 0; i < config.PoolSize; i++ {
		workers[i] = NewWorker(i, taskChan, config.Clock, config.OnError)
	}

	return &FixedPool{
		config:   config,
		workers:  workers,
		taskChan: taskChan,
	}, nil
}

// Start starts the pool's workers.
func (p *FixedPool) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&p.state, 0, 1) {
		if atomic.LoadInt32(&p.state) == 1 {
			return fmt.Errorf("worker pool is already running")
		}
		return ErrPoolClosed
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		go w.Start(p.ctx)
	}
	return nil
}

// Submit queues a task, waiting up to the configured submit timeout.
func (p *FixedPool) Submit(task Task) error {
	return p.SubmitWithTimeout(task, p.config.SubmitTimeout)
}

// SubmitWithTimeout queues a task with an explicit timeout; zero means
// fail-fast when the queue is full. The read lock is held across the send so
// Close cannot close the channel under a submission in flight.
func (p *FixedPool) SubmitWithTimeout(task Task, timeout time.Duration) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	state := atomic.LoadInt32(&p.state)
	if state != 1 {
		if state == 0 {
			return ErrPoolNotStarted
		}
		return ErrPoolClosed
	}
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	if timeout <= 0 {
		select {
		case p.taskChan <- task:
			return nil
		default:
			return ErrPoolFull
		}
	}

	timer := p.config.Clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case p.taskChan <- task:
		return nil
	case <-timer.C():
		return ErrSubmitTimeout
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Stop stops all workers, waiting for in-flight tasks.
func (p *FixedPool) Stop() error {
	if !atomic.CompareAndSwapInt32(&p.state, 1, 0) {
		if atomic.LoadInt32(&p.state) == 0 {
			return fmt.Errorf("worker pool is not running")
		}
		return ErrPoolClosed
	}

	if p.cancel != nil {
		p.cancel()
	}

	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			_ = w.Stop()
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-p.config.Clock.After(10 * time.Second):
		return fmt.Errorf("timeout waiting for workers to stop")
	}
}

// Close stops the pool and releases its resources.
func (p *FixedPool) Close() error {
	var closeErr error

	p.closeOnce.Do(func() {
		if atomic.LoadInt32(&p.state) == 1 {
			if err := p.Stop(); err != nil {
				closeErr = err
				return
			}
		}
		atomic.StoreInt32(&p.state, 2)

		// pending submissions hold the read lock; they drain or fail on the
		// canceled context before the channel closes
		p.mu.Lock()
		close(p.taskChan)
		p.workers = nil
		p.mu.Unlock()
	})

	return closeErr
}

// Size returns the pool size.
func (p *FixedPool) Size() int {
	return p.config.PoolSize
}

// Stats defines basic pool statistics.
type Stats struct {
	PoolSize      int
	ActiveWorkers int
	QueueSize     int
	QueueCapacity int
}

// Stats returns a snapshot of pool activity.
func (p *FixedPool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var active int
	for _, w := range p.workers {
		if w.State() == StateWorking {
			active++
		}
	}

	return Stats{
		PoolSize:      p.config.PoolSize,
		ActiveWorkers: active,
		QueueSize:     len(p.taskChan),
		QueueCapacity: p.config.QueueSize,
	}
}
