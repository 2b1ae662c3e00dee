package experiment

import (
	"sync"
)

// Queue is a thread-safe FIFO of trial numbers shared by the workers
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []int
	stopped bool
}

// NewQueue creates an empty trial queue
func NewQueue() *Queue {
	q := &Queue{
		items: make([]int, 0),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push adds a trial unless the queue is stopped. Returns true if added.
func (q *Queue) Push(trial int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return false
	}

	q.items = append(q.items, trial)

	// Signal waiting workers
	q.cond.Signal()

	return true
}

// Pop removes and returns the first trial.
// Blocks if the queue is empty and not stopped.
// Returns (0, false) once stopped and drained.
func (q *Queue) Pop() (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if len(q.items) > 0 {
			trial := q.items[0]
			q.items = q.items[1:]
			return trial, true
		}

		if q.stopped {
			return 0, false
		}

		q.cond.Wait()
	}
}

// Size returns the number of trials waiting
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stop closes the queue to new trials. Workers drain what is left,
// then Pop returns false.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopped = true
	q.cond.Broadcast()
}
