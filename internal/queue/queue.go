package queue

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/telegrab/internal/types"
)

var ErrClosed = errors.New("queue is closed")

// Queue is a strict FIFO of jobs with unbounded capacity. Enqueue never
// blocks a producer; Dequeue blocks the single consumer until a job or
// shutdown arrives.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []*types.Job
	closed bool
}

func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends the job and reports its 1-based position at the moment of
// insertion, for queue-position notices.
func (q *Queue) Enqueue(job *types.Job) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, ErrClosed
	}
	q.jobs = append(q.jobs, job)
	position := len(q.jobs)
	log.Debug().Str("op", "queue/enqueue").Msgf("queued job %s (%d waiting)", job.ID, position)
	q.cond.Signal()
	return position, nil
}

func (q *Queue) Dequeue() (*types.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.jobs) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.jobs) == 0 {
		return nil, ErrClosed
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

// Len reports how many jobs are waiting, used for queue-position notices.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close wakes the consumer; jobs already queued are still drained before
// Dequeue reports ErrClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
