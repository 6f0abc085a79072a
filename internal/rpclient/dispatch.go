package rpclient

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// Dispatcher — реестр подписчиков на уведомления одного канала.
// Dispatch вызывает обработчики синхронно, по одному, в порядке регистрации.
type Dispatcher struct {
	mu     sync.Mutex
	subs   []*Subscription
	closed bool
	err    error
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

func closedDispatcher(err error) *Dispatcher {
	d := NewDispatcher()
	d.Close(err)
	return d
}

// Subscribe регистрирует обработчик. Пустой method — все уведомления.
// Если реестр уже закрыт, подписка возвращается сразу завершённой.
func (d *Dispatcher) Subscribe(method string, fn func(Notification)) *Subscription {
	s := &Subscription{
		id:     uuid.NewString(),
		method: method,
		fn:     fn,
		d:      d,
		done:   make(chan struct{}),
	}

	d.mu.Lock()
	if d.closed {
		err := d.err
		d.mu.Unlock()
		s.end(err)
		return s
	}
	s.active.Store(true)
	d.subs = append(d.subs, s)
	d.mu.Unlock()
	return s
}

// Dispatch отдаёт уведомление всем подходящим подписчикам и возвращает
// количество вызванных обработчиков.
func (d *Dispatcher) Dispatch(n Notification) int {
	d.mu.Lock()
	snapshot := make([]*Subscription, len(d.subs))
	copy(snapshot, d.subs)
	d.mu.Unlock()

	delivered := 0
	for _, s := range snapshot {
		// подписчик мог отписаться в обработчике предыдущего
		if !s.active.Load() {
			continue
		}
		if s.method != "" && s.method != n.Method {
			continue
		}
		s.fn(n)
		delivered++
	}
	return delivered
}

// Close завершает все подписки с ошибкой err. Повторный вызов ничего не делает.
func (d *Dispatcher) Close(err error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.err = err
	subs := d.subs
	d.subs = nil
	d.mu.Unlock()

	for _, s := range subs {
		s.end(err)
	}
}

func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

func (d *Dispatcher) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Dispatcher) remove(s *Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, cur := range d.subs {
		if cur == s {
			d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
			return
		}
	}
}

// Subscription — хэндл подписки.
type Subscription struct {
	id     string
	method string
	fn     func(Notification)
	d      *Dispatcher

	active atomic.Bool
	once   sync.Once
	done   chan struct{}
	err    error
}

func (s *Subscription) ID() string {
	return s.id
}

func (s *Subscription) Method() string {
	return s.method
}

// Unsubscribe снимает подписку. Можно вызывать многократно и из обработчика.
func (s *Subscription) Unsubscribe() {
	s.d.remove(s)
	s.end(nil)
}

// Done закрывается после Unsubscribe или закрытия канала.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err — причина завершения: nil после Unsubscribe, иначе ошибка канала.
// До закрытия Done всегда nil.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Subscription) end(err error) {
	s.once.Do(func() {
		s.active.Store(false)
		s.err = err
		close(s.done)
	})
}
