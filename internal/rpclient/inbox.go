package rpclient

import "sync"

// inbox — неограниченная очередь уведомлений между readLoop и deliverLoop.
// readLoop никогда не ждёт обработчиков.
type inbox struct {
	mu     sync.Mutex
	items  []Notification
	closed bool
	cause  error
	wake   chan struct{}
}

func newInbox() *inbox {
	return &inbox{wake: make(chan struct{}, 1)}
}

func (q *inbox) push(n Notification) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, n)
	q.mu.Unlock()
	q.signal()
}

// close — после него push игнорируется, take отдаёт остаток и closed=true.
func (q *inbox) close(cause error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.cause = cause
	q.mu.Unlock()
	q.signal()
}

// take забирает всё накопленное разом.
func (q *inbox) take() ([]Notification, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items, q.closed, q.cause
}

func (q *inbox) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
