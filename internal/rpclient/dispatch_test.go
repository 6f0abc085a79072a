package rpclient_test

import (
	"errors"
	"testing"

	m "github.com/launchdarkly/go-test-helpers/v2/matchers"

	"github.com/EgorLis/encoderpc/internal/rpclient"
)

func TestDispatcher_Dispatch(t *testing.T) {
	tests := []struct {
		name   string
		subs   []string
		method string
		expect int
	}{
		{"no subscribers", nil, "encode", 0},
		{"exact method", []string{"encode"}, "encode", 1},
		{"other method", []string{"encode"}, "status", 0},
		{"wildcard", []string{""}, "status", 1},
		{"mixed", []string{"encode", "", "encode", "status"}, "encode", 3},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d := rpclient.NewDispatcher()
			calls := 0
			for _, method := range test.subs {
				d.Subscribe(method, func(rpclient.Notification) { calls++ })
			}

			delivered := d.Dispatch(rpclient.Notification{Method: test.method})

			m.For(t, "delivered").Assert(delivered, m.Equal(test.expect))
			m.For(t, "calls").Assert(calls, m.Equal(test.expect))
		})
	}
}

func TestDispatcher_UnsubscribeInsideHandler(t *testing.T) {
	d := rpclient.NewDispatcher()

	var order []string
	var second *rpclient.Subscription
	first := d.Subscribe("encode", func(rpclient.Notification) {
		order = append(order, "first")
		// снимаем следующего до того, как до него дойдёт очередь
		second.Unsubscribe()
	})
	second = d.Subscribe("encode", func(rpclient.Notification) {
		order = append(order, "second")
	})

	d.Dispatch(rpclient.Notification{Method: "encode"})
	first.Unsubscribe()
	d.Dispatch(rpclient.Notification{Method: "encode"})

	m.For(t, "order").Assert(order, m.Equal([]string{"first"}))
	m.For(t, "len").Assert(d.Len(), m.Equal(0))
	m.For(t, "err").Assert(second.Err(), m.Equal(error(nil)))
}

func TestDispatcher_UnsubscribeIdempotent(t *testing.T) {
	d := rpclient.NewDispatcher()
	s := d.Subscribe("encode", func(rpclient.Notification) {})
	s.Unsubscribe()
	s.Unsubscribe()

	select {
	case <-s.Done():
	default:
		t.Fatal("done not closed")
	}
	m.For(t, "len").Assert(d.Len(), m.Equal(0))
}

func TestDispatcher_Close(t *testing.T) {
	d := rpclient.NewDispatcher()
	cause := errors.New("connection lost")
	s := d.Subscribe("encode", func(rpclient.Notification) {
		t.Fatal("handler called after close")
	})

	m.For(t, "err before close").Assert(s.Err(), m.Equal(error(nil)))
	d.Close(cause)
	d.Close(errors.New("ignored"))

	m.For(t, "err").Assert(s.Err(), m.Equal(cause))
	m.For(t, "delivered").Assert(d.Dispatch(rpclient.Notification{Method: "encode"}), m.Equal(0))

	late := d.Subscribe("encode", func(rpclient.Notification) {})
	m.For(t, "late err").Assert(late.Err(), m.Equal(cause))
}

func TestDispatcher_SubscriptionIDsUnique(t *testing.T) {
	d := rpclient.NewDispatcher()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := d.Subscribe("encode", func(rpclient.Notification) {}).ID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
