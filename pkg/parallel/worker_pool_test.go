package parallel

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type scratch struct {
	id    int
	tasks int
}

func newScratchPool(t *testing.T, workers int) *WorkerPool[*scratch] {
	t.Helper()
	pool, err := NewWorkerPool(workers, func(n int) *scratch { return &scratch{id: n} }, nil)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	return pool
}

// TestWorkerPoolBasicOperations tests basic worker pool functionality
func TestWorkerPoolBasicOperations(t *testing.T) {
	pool := newScratchPool(t, 4)

	executed := false
	if !pool.Submit(func(*scratch) { executed = true }) {
		t.Error("Task submission failed")
	}
	if err := pool.Wait(); err != nil {
		t.Fatal(err)
	}
	if !executed {
		t.Error("Task was not executed")
	}
}

// TestWorkerPoolPerWorkerState checks that every task sees exactly one worker's state
func TestWorkerPoolPerWorkerState(t *testing.T) {
	pool := newScratchPool(t, 3)

	const numTasks = 90
	for i := 0; i < numTasks; i++ {
		pool.Submit(func(s *scratch) {
			// no lock: state is owned by one goroutine
			s.tasks++
		})
	}
	if err := pool.Wait(); err != nil {
		t.Fatal(err)
	}

	total := 0
	for n, s := range pool.States() {
		if s.id != n {
			t.Errorf("state %d built for worker %d", n, s.id)
		}
		total += s.tasks
	}
	if total != numTasks {
		t.Errorf("Expected %d tasks across workers, got %d", numTasks, total)
	}
}

// TestWorkerPoolConcurrentSubmissions tests concurrent task submissions
func TestWorkerPoolConcurrentSubmissions(t *testing.T) {
	pool := newScratchPool(t, 10)

	numTasks := 100
	var counter int64

	var wg sync.WaitGroup
	for i := 0; i < numTasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Submit(func(*scratch) {
				atomic.AddInt64(&counter, 1)
			})
		}()
	}

	wg.Wait()
	pool.Close()

	if counter != int64(numTasks) {
		t.Errorf("Expected counter %d, got %d", numTasks, counter)
	}
}

// TestWorkerPoolCloseRace validates that closing while submitting does not panic
func TestWorkerPoolCloseRace(t *testing.T) {
	for iteration := 0; iteration < 50; iteration++ {
		pool := newScratchPool(t, 4)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					pool.Submit(func(*scratch) {
						time.Sleep(time.Millisecond)
					})
				}
			}()
		}

		time.Sleep(5 * time.Millisecond)
		pool.Close()
		wg.Wait()
	}
}

// TestWorkerPoolSubmitAfterClose tests that submissions after close return false
func TestWorkerPoolSubmitAfterClose(t *testing.T) {
	pool := newScratchPool(t, 4)
	pool.Close()

	if pool.Submit(func(*scratch) { t.Error("This task should never execute") }) {
		t.Error("Task submission after close should return false")
	}
}

// TestWorkerPoolMultipleClose tests that closing multiple times is safe
func TestWorkerPoolMultipleClose(t *testing.T) {
	pool := newScratchPool(t, 4)
	for i := 0; i < 10; i++ {
		pool.Submit(func(*scratch) { time.Sleep(time.Millisecond) })
	}
	pool.Close()
	pool.Close()
	if err := pool.Wait(); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

// TestWorkerPoolWithPanic tests that panics are recovered and reported
func TestWorkerPoolWithPanic(t *testing.T) {
	pool := newScratchPool(t, 4)

	var counter int64
	for i := 0; i < 5; i++ {
		pool.Submit(func(*scratch) { panic("intentional panic") })
	}
	for i := 0; i < 10; i++ {
		pool.Submit(func(*scratch) { atomic.AddInt64(&counter, 1) })
	}

	err := pool.Wait()
	if !errors.Is(err, ErrTaskPanic) {
		t.Errorf("Expected ErrTaskPanic, got %v", err)
	}
	if counter != 10 {
		t.Errorf("Expected counter 10, got %d", counter)
	}
}

func TestNewWorkerPool_Defaults(t *testing.T) {
	pool := newScratchPool(t, 0)
	defer pool.Close()
	if pool.Workers() != 1 {
		t.Errorf("Expected 1 worker, got %d", pool.Workers())
	}
}

// BenchmarkWorkerPoolThroughput benchmarks worker pool throughput
func BenchmarkWorkerPoolThroughput(b *testing.B) {
	pool, err := NewWorkerPool(10, func(int) struct{} { return struct{}{} }, nil)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pool.Submit(func(struct{}) {})
	}
	pool.Close()
}
