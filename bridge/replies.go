package bridge

import (
	"io"
	"sync"
)

// replyQueue writes host-call replies to the guest's stdin in the order the
// calls were framed. push never blocks: the guest may be stuck writing its
// stderr while the writer waits for it to read stdin.
type replyQueue struct {
	w io.Writer

	mu      sync.Mutex
	cond    *sync.Cond
	items   [][]byte
	started bool
	closed  bool
	done    chan struct{}
}

func newReplyQueue(w io.Writer) *replyQueue {
	q := &replyQueue{w: w, done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *replyQueue) push(data []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if !q.started {
		q.started = true
		go q.run()
	}
	q.items = append(q.items, data)
	q.cond.Signal()
}

func (q *replyQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return
		}
		data := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		q.w.Write(data)
	}
}

// close stops accepting replies and waits until the queued ones are written.
// Closing the underlying pipe first turns pending writes into errors.
func (q *replyQueue) close() {
	q.mu.Lock()
	q.closed = true
	started := q.started
	q.cond.Broadcast()
	q.mu.Unlock()
	if started {
		<-q.done
	}
}
