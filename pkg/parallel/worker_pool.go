package parallel

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/dd0wney/stormcheck/pkg/logging"
)

// MaxWorkers caps pool size; parsing is I/O bound well before this.
const MaxWorkers = 256

// WorkerPool runs submitted tasks on a fixed set of goroutines.
type WorkerPool struct {
	workers   int
	taskQueue chan func()
	wg        sync.WaitGroup
	once      sync.Once
	mu        sync.RWMutex // Protects taskQueue from concurrent close during send
	closed    bool         // Protected by mu
	logger    logging.Logger
	panics    atomic.Int64
}

// Option configures a WorkerPool.
type Option func(*WorkerPool)

// WithLogger reports recovered task panics through the given logger.
func WithLogger(logger logging.Logger) Option {
	return func(wp *WorkerPool) {
		wp.logger = logger
	}
}

// NewWorkerPool creates a pool. workers <= 0 selects runtime.NumCPU();
// values above MaxWorkers are clamped.
func NewWorkerPool(workers int, opts ...Option) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}

	pool := &WorkerPool{
		workers:   workers,
		taskQueue: make(chan func(), workers*2),
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(pool)
	}

	pool.start()
	return pool
}

// Workers returns the number of goroutines serving the pool.
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

func (wp *WorkerPool) start() {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for task := range wp.taskQueue {
		wp.run(id, task)
	}
}

// run executes one task; a panicking task never takes the worker down.
func (wp *WorkerPool) run(id int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			wp.panics.Add(1)
			wp.logger.Error("worker task panicked",
				logging.Component("worker_pool"),
				logging.Int("worker", id),
				logging.String("panic", fmt.Sprint(r)))
		}
	}()
	task()
}

// Submit adds a task to the pool.
// Returns false if the pool is closed, true if the task was queued.
func (wp *WorkerPool) Submit(task func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return false
	}

	wp.taskQueue <- task
	return true
}

// Close stops accepting tasks and waits for queued ones to finish. Safe to call repeatedly.
func (wp *WorkerPool) Close() {
	wp.once.Do(func() {
		wp.mu.Lock()
		wp.closed = true
		close(wp.taskQueue)
		wp.mu.Unlock()
	})
	wp.wg.Wait()
}

// Wait is an alias for Close.
func (wp *WorkerPool) Wait() {
	wp.Close()
}

// Panics returns how many tasks panicked so far.
func (wp *WorkerPool) Panics() int64 {
	return wp.panics.Load()
}
