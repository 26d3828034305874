package transport

import "sync"

// recvQueue is a FIFO of received chunks shared between the reader goroutine
// (sole producer) and however many goroutines poll the endpoint. All access
// is serialized by the mutex; arrival is pulsed on every push so that timed
// receives can wait without polling on an interval.
//
// The queue is unbounded by default. A producer that outpaces its consumers
// will grow it without limit, so callers that can't guarantee draining
// should set a capacity; once full, new arrivals are dropped.
type recvQueue struct {
	mu       sync.Mutex
	messages [][]byte
	capacity int

	arrival chan struct{}
}

func newRecvQueue(capacity int) *recvQueue {
	return &recvQueue{
		capacity: capacity,
		arrival:  make(chan struct{}, 1),
	}
}

// push appends msg in arrival order. It reports false if the queue is
// bounded and full, in which case msg is discarded.
func (q *recvQueue) push(msg []byte) bool {
	q.mu.Lock()
	if q.capacity > 0 && len(q.messages) >= q.capacity {
		q.mu.Unlock()
		return false
	}
	q.messages = append(q.messages, msg)
	q.mu.Unlock()

	q.pulse()
	return true
}

// pop removes and returns the oldest message, if any.
func (q *recvQueue) pop() ([]byte, bool) {
	q.mu.Lock()
	if len(q.messages) == 0 {
		q.mu.Unlock()
		return nil, false
	}

	msg := q.messages[0]
	q.messages = q.messages[1:]
	remaining := len(q.messages)
	q.mu.Unlock()

	// Wake any other waiter if there is still something for it to take.
	if remaining > 0 {
		q.pulse()
	}
	return msg, true
}

func (q *recvQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// clear discards all queued messages. Arrivals after the call are unaffected.
func (q *recvQueue) clear() {
	q.mu.Lock()
	q.messages = nil
	q.mu.Unlock()
}

// wait returns the channel pulsed on each arrival. A receive on it is a hint
// that pop may succeed, not a guarantee: another consumer may win the race.
func (q *recvQueue) wait() <-chan struct{} {
	return q.arrival
}

func (q *recvQueue) pulse() {
	select {
	case q.arrival <- struct{}{}:
	default:
	}
}
