// Package parallel provides a bounded worker pool whose workers each own a
// private state value, so per-worker scratch tables need no locking.
package parallel

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/dd0wney/cluso-flowgraph/pkg/logging"
)

// ErrTooManyWorkers is returned when the worker count exceeds the maximum allowed.
var ErrTooManyWorkers = errors.New("worker count exceeds maximum")

// ErrTaskPanic is wrapped by Wait when a task panicked.
var ErrTaskPanic = errors.New("task panicked")

// MaxWorkers is the maximum number of workers allowed in a pool.
const MaxWorkers = math.MaxInt / 2

// WorkerPool runs tasks on a fixed set of goroutines. Worker n receives the
// state built by newState(n) with every task it executes.
type WorkerPool[S any] struct {
	workers   int
	taskQueue chan func(S)
	states    []S
	logger    logging.Logger

	wg     sync.WaitGroup
	once   sync.Once
	mu     sync.RWMutex // protects taskQueue from concurrent close during send
	closed bool

	errMu  sync.Mutex
	panics []error
}

// NewWorkerPool starts workers goroutines. workers <= 0 means one.
func NewWorkerPool[S any](workers int, newState func(worker int) S, logger logging.Logger) (*WorkerPool[S], error) {
	if workers <= 0 {
		workers = 1
	}
	// workers*2 must not overflow
	if workers > MaxWorkers {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrTooManyWorkers, workers, MaxWorkers)
	}

	pool := &WorkerPool[S]{
		workers:   workers,
		taskQueue: make(chan func(S), workers*2),
		states:    make([]S, workers),
		logger:    logging.OrNop(logger).With(logging.Component("worker_pool")),
	}
	for n := range pool.states {
		pool.states[n] = newState(n)
	}
	pool.start()
	return pool, nil
}

// Workers returns the number of worker goroutines.
func (wp *WorkerPool[S]) Workers() int { return wp.workers }

func (wp *WorkerPool[S]) start() {
	for n := 0; n < wp.workers; n++ {
		wp.wg.Add(1)
		go wp.worker(n)
	}
}

func (wp *WorkerPool[S]) worker(n int) {
	defer wp.wg.Done()

	state := wp.states[n]
	for task := range wp.taskQueue {
		wp.run(n, state, task)
	}
}

func (wp *WorkerPool[S]) run(n int, state S, task func(S)) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: worker %d: %v", ErrTaskPanic, n, r)
			wp.logger.Error("worker panic recovered", logging.Int("worker", n), logging.Error(err))
			wp.errMu.Lock()
			wp.panics = append(wp.panics, err)
			wp.errMu.Unlock()
		}
	}()
	task(state)
}

// Submit queues a task. It returns false if the pool is closed.
func (wp *WorkerPool[S]) Submit(task func(S)) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return false
	}
	wp.taskQueue <- task
	return true
}

// Close stops accepting tasks and waits for queued ones to finish.
func (wp *WorkerPool[S]) Close() {
	wp.once.Do(func() {
		wp.mu.Lock()
		wp.closed = true
		close(wp.taskQueue)
		wp.mu.Unlock()
	})
	wp.wg.Wait()
}

// Wait closes the pool and reports every recovered task panic.
func (wp *WorkerPool[S]) Wait() error {
	wp.Close()
	wp.errMu.Lock()
	defer wp.errMu.Unlock()
	return errors.Join(wp.panics...)
}

// States returns the per-worker states. Only safe after Close.
func (wp *WorkerPool[S]) States() []S {
	return wp.states
}
