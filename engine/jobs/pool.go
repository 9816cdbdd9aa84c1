package jobs

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/spaghettifunk/talos/engine/core"
)

var (
	ErrNoWorkers = errors.New("attempting to create worker pool with less than 1 worker")
	ErrUndrained = errors.New("worker pool stopped with jobs still queued")
)

// ContextFactory builds the ExecContext of worker i.
type ContextFactory func(worker int) (ExecContext, error)

// WorkerPool drains a JobQueue with a fixed number of goroutines.
type WorkerPool struct {
	numWorkers int
	queue      *JobQueue
	newContext ContextFactory
	wg         sync.WaitGroup

	mutex     sync.Mutex
	failed    []Job
	setupErrs []error
}

// DefaultWorkers leaves one core for the render loop.
func DefaultWorkers() int {
	return max(1, runtime.NumCPU()-1)
}

func NewWorkerPool(queue *JobQueue, numWorkers int, newContext ContextFactory) (*WorkerPool, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	return &WorkerPool{
		numWorkers: numWorkers,
		queue:      queue,
		newContext: newContext,
	}, nil
}

// Start spawns the workers. Each one runs until the queue is empty.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.work(i)
	}
}

func (wp *WorkerPool) work(index int) {
	defer wp.wg.Done()

	ctx, err := wp.newContext(index)
	if err != nil {
		core.LogError("worker %d: %s", index, err.Error())
		wp.mutex.Lock()
		wp.setupErrs = append(wp.setupErrs, fmt.Errorf("worker %d: %w", index, err))
		wp.mutex.Unlock()
		return
	}
	defer ctx.Release()

	for job := wp.queue.Next(); job != nil; job = wp.queue.Next() {
		if err := job.Execute(ctx); err != nil {
			core.LogWith("job_id", job.ID(), "kind", job.Kind(), "worker", index).Error(err.Error())
			wp.mutex.Lock()
			wp.failed = append(wp.failed, job)
			wp.mutex.Unlock()
		}
	}
}

// Join blocks until every worker has returned. A worker that could not build
// its context never pops a job, so when none of them could the queue is left
// full and Join reports ErrUndrained together with the context errors.
func (wp *WorkerPool) Join() error {
	wp.wg.Wait()

	wp.mutex.Lock()
	defer wp.mutex.Unlock()
	if n := wp.queue.Len(); n > 0 {
		return fmt.Errorf("%d jobs left: %w", n, errors.Join(append([]error{ErrUndrained}, wp.setupErrs...)...))
	}
	return nil
}

// Failed lists the jobs whose Execute returned an error. Valid after Join.
func (wp *WorkerPool) Failed() []Job {
	wp.mutex.Lock()
	defer wp.mutex.Unlock()
	return append([]Job(nil), wp.failed...)
}

// Run starts the workers and waits for the queue to drain.
func (wp *WorkerPool) Run() error {
	wp.Start()
	return wp.Join()
}
