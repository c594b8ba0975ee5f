package core

import (
	"sync"

	"twido/pkg/domain"
)

// writeJob is one queued backend write, or a barrier when flushed is set.
type writeJob struct {
	op      string
	base    domain.Document
	patch   domain.Patch
	pending *pendingWrite
	flushed chan struct{}
}

// writeQueue serializes backend writes in commit order. Pushing never blocks
// the caller; a single goroutine drains the queue.
type writeQueue struct {
	mu      sync.Mutex
	pending []writeJob
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newWriteQueue() *writeQueue {
	return &writeQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// push enqueues job and reports false once the queue is closed.
func (q *writeQueue) push(job writeJob) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, job)
	q.mu.Unlock()
	q.signal()
	return true
}

func (q *writeQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// close stops accepting jobs. Already queued jobs are still handled.
func (q *writeQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// run handles jobs until the queue is closed and drained.
func (q *writeQueue) run(handle func(writeJob)) {
	defer close(q.done)
	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		closed := q.closed
		q.mu.Unlock()

		for _, job := range batch {
			if job.flushed != nil {
				close(job.flushed)
				continue
			}
			handle(job)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.wake
	}
}
