package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Task is a function that represents a background job
type Task func(ctx context.Context) error

type job struct {
	name string
	task Task
}

type WorkerPool struct {
	taskQueue   chan job
	wg          sync.WaitGroup
	mu          sync.RWMutex
	isClosing   atomic.Bool // thread-safe value
	taskTimeout time.Duration
	log         zerolog.Logger
}

// NewWorkerPool starts size workers sharing a queue of queueSize pending tasks.
// Each task runs with its own timeout.
func NewWorkerPool(size, queueSize int, taskTimeout time.Duration, log zerolog.Logger) *WorkerPool {
	wp := &WorkerPool{
		taskQueue:   make(chan job, queueSize),
		taskTimeout: taskTimeout,
		log:         log,
	}

	for i := 0; i < size; i++ {
		wp.wg.Add(1)
		go wp.startWorker()
	}

	return wp
}

func (wp *WorkerPool) startWorker() {
	defer wp.wg.Done() // signal when worker finished
	for j := range wp.taskQueue {
		wp.run(j)
	}
}

func (wp *WorkerPool) run(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), wp.taskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			wp.log.Error().Str("task", j.name).Interface("panic", r).Msg("worker task panicked")
		}
	}()

	if err := j.task(ctx); err != nil {
		wp.log.Error().Err(err).Str("task", j.name).Msg("worker task failed")
	}
}

// Submit queues t and reports whether it was accepted. Tasks are dropped when
// the queue is full or the pool is shutting down.
func (wp *WorkerPool) Submit(name string, t Task) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.isClosing.Load() {
		wp.log.Warn().Str("task", name).Msg("task submitted during shutdown, dropping")
		return false
	}
	select {
	case wp.taskQueue <- job{name: name, task: t}:
		return true
	default:
		wp.log.Warn().Str("task", name).Msg("task queue full, dropping task")
		return false
	}
}

// Shutdown closes the queue and waits for workers to finish
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.isClosing.Swap(true) {
		wp.mu.Unlock()
		return
	}
	close(wp.taskQueue) // Stop accepting new tasks
	wp.mu.Unlock()

	wp.wg.Wait() // Wait for all active workers to finish tasks
}
