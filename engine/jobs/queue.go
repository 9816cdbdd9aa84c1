package jobs

import (
	"sync"

	"github.com/spaghettifunk/talos/engine/containers"
)

// JobQueue is a FIFO shared by the workers. Jobs are handed out exactly once.
type JobQueue struct {
	mutex    sync.Mutex
	jobs     *containers.RingQueue[Job]
	finished bool
}

func NewJobQueue() *JobQueue {
	return &JobQueue{
		jobs: containers.NewRingQueue[Job](16),
	}
}

// Add enqueues a job and clears the finished flag.
func (q *JobQueue) Add(job Job) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.jobs.Enqueue(job)
	q.finished = false
}

// Next pops the oldest job. It returns nil and marks the queue finished when
// nothing is left.
func (q *JobQueue) Next() Job {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	job, err := q.jobs.Dequeue()
	if err != nil {
		q.finished = true
		return nil
	}
	return job
}

// Clear drops every pending job without running it.
func (q *JobQueue) Clear() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.jobs.Clear()
	q.finished = true
}

func (q *JobQueue) Finished() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.finished
}

func (q *JobQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.jobs.Len()
}
