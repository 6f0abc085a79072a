package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	m "github.com/launchdarkly/go-test-helpers/v2/matchers"
	"go.uber.org/zap/zaptest"

	"github.com/EgorLis/encoderpc/internal/middleware"
	"github.com/EgorLis/encoderpc/internal/rpclient"
	"github.com/EgorLis/encoderpc/internal/rpctest"
)

const waitTimeout = 2 * time.Second

// encodeServer — минимальный сервер кодирования: один пользователь,
// последовательные id заданий.
type encodeServer struct {
	*rpctest.Server

	mu     sync.Mutex
	nextID int
	jobs   map[int]bool
}

func newEncodeServer(t *testing.T) *encodeServer {
	s := &encodeServer{Server: rpctest.NewServer(t), jobs: map[int]bool{}}
	s.Handle(middleware.MethodLogin, func(call *rpctest.Call) (any, error) {
		var p struct {
			User string `json:"user"`
			Pass string `json:"pass"`
		}
		if err := json.Unmarshal(call.Params, &p); err != nil {
			return nil, err
		}
		if p.User != "alice" || p.Pass != "secret" {
			return nil, &rpclient.Error{Code: 401, Message: "invalid credentials"}
		}
		return "token-alice", nil
	})
	s.Handle(middleware.MethodEncodeStart, func(call *rpctest.Call) (any, error) {
		var p struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(call.Params, &p); err != nil {
			return nil, err
		}
		if p.Token != "token-alice" {
			return nil, &rpclient.Error{Code: 403, Message: "invalid token"}
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.nextID++
		s.jobs[s.nextID] = true
		return s.nextID, nil
	})
	s.Handle(middleware.MethodEncodeAbort, func(call *rpctest.Call) (any, error) {
		var ids []int
		if err := json.Unmarshal(call.Params, &ids); err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		removed := s.jobs[ids[0]]
		delete(s.jobs, ids[0])
		return removed, nil
	})
	return s
}

func newMiddleware(t *testing.T, srv *encodeServer) *middleware.Middleware {
	mw := middleware.New(srv.URL(), middleware.WithLogger(zaptest.NewLogger(t)))
	t.Cleanup(func() { _ = mw.Close() })
	return mw
}

func ctxWithTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	t.Cleanup(cancel)
	return ctx
}

// collector копит обновления из горутины доставки.
type collector struct {
	mu  sync.Mutex
	got []string
	ch  chan struct{}
}

func newCollector() *collector {
	return &collector{ch: make(chan struct{}, 64)}
}

func (c *collector) add(u middleware.Update) {
	c.mu.Lock()
	c.got = append(c.got, string(u.Raw()))
	c.mu.Unlock()
	c.ch <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) []string {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.ch:
		case <-time.After(waitTimeout):
			t.Fatalf("got %d of %d updates", i, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.got...)
}

func TestIntegration_LoginAndEncode(t *testing.T) {
	srv := newEncodeServer(t)
	mw := newMiddleware(t, srv)
	ctx := ctxWithTimeout(t)

	session, err := mw.Login(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	updates := newCollector()
	job, err := session.Encode(ctx, updates.add, "/media/in.mkv", "-preset", "slow")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	starts := srv.Requests(middleware.MethodEncodeStart)
	m.For(t, "starts").Assert(len(starts), m.Equal(1))
	m.For(t, "params").Assert(string(starts[0].Params),
		m.Equal(`{"token":"token-alice","file":"/media/in.mkv","opt":["-preset","slow"]}`))

	srv.Notify("encode", map[string]any{"id": 1, "progress": 50})
	srv.Notify("encode", map[string]any{"id": 2, "progress": 10})
	srv.Notify("log", map[string]any{"id": 1, "line": "x"})
	srv.Notify("encode", map[string]any{"id": 1, "status": "done"})

	got := updates.wait(t, 2)
	m.For(t, "updates").Assert(got, m.Equal([]string{
		`{"id":1,"progress":50}`,
		`{"id":1,"status":"done"}`,
	}))
	if err := job.Wait(ctx); err != nil {
		t.Fatalf("job: %v", err)
	}
}

func TestIntegration_LoginRejected(t *testing.T) {
	srv := newEncodeServer(t)
	mw := newMiddleware(t, srv)
	ctx := ctxWithTimeout(t)

	_, err := mw.Login(ctx, "alice", "wrong")
	var rpcErr *rpclient.Error
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *rpclient.Error, got %v", err)
	}
	m.For(t, "code").Assert(rpcErr.Code, m.Equal(401))
	m.For(t, "session").Assert(mw.Session() == nil, m.Equal(true))

	// канал остаётся открытым, повторный Login работает
	if _, err := mw.Login(ctx, "alice", "secret"); err != nil {
		t.Fatalf("second login: %v", err)
	}
	m.For(t, "logins").Assert(len(srv.Requests(middleware.MethodLogin)), m.Equal(2))
}

func TestIntegration_LoginUnreachable(t *testing.T) {
	mw := middleware.New("ws://127.0.0.1:1", middleware.WithLogger(zaptest.NewLogger(t)))
	if _, err := mw.Login(ctxWithTimeout(t), "alice", "secret"); err == nil {
		t.Fatal("expected dial error")
	}
	m.For(t, "session").Assert(mw.Session() == nil, m.Equal(true))
}

func TestIntegration_EncodeBeforeLoginSendsNothing(t *testing.T) {
	srv := newEncodeServer(t)
	mw := newMiddleware(t, srv)

	_, err := mw.Encode(ctxWithTimeout(t), func(middleware.Update) {}, "in.mkv")
	if !errors.Is(err, middleware.ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
	m.For(t, "requests").Assert(len(srv.Requests("")), m.Equal(0))
}

func TestIntegration_NotificationRightAfterStart(t *testing.T) {
	srv := newEncodeServer(t)
	srv.Handle(middleware.MethodEncodeStart, func(call *rpctest.Call) (any, error) {
		call.After(func() {
			_ = call.Session.Notify("encode", map[string]any{"id": "J", "progress": 1})
		})
		return "J", nil
	})
	mw := newMiddleware(t, srv)
	ctx := ctxWithTimeout(t)

	if _, err := mw.Login(ctx, "alice", "secret"); err != nil {
		t.Fatal(err)
	}
	updates := newCollector()
	if _, err := mw.Encode(ctx, updates.add, "in.mkv"); err != nil {
		t.Fatal(err)
	}

	m.For(t, "updates").Assert(updates.wait(t, 1), m.Equal([]string{`{"id":"J","progress":1}`}))
}

func TestIntegration_ConcurrentJobs(t *testing.T) {
	srv := newEncodeServer(t)
	mw := newMiddleware(t, srv)
	ctx := ctxWithTimeout(t)

	session, err := mw.Login(ctx, "alice", "secret")
	if err != nil {
		t.Fatal(err)
	}

	first, second := newCollector(), newCollector()
	var (
		wg         sync.WaitGroup
		jobA, jobB *middleware.Job
		errA, errB error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		jobA, errA = session.Encode(ctx, first.add, "a.mkv")
	}()
	go func() {
		defer wg.Done()
		jobB, errB = session.Encode(ctx, second.add, "b.mkv")
	}()
	wg.Wait()
	if errA != nil || errB != nil {
		t.Fatalf("encode: %v / %v", errA, errB)
	}
	m.For(t, "distinct").Assert(jobA.ID().Equal(jobB.ID()), m.Equal(false))

	srv.Notify("encode", json.RawMessage(`{"id":`+jobA.ID().String()+`,"progress":10}`))
	srv.Notify("encode", json.RawMessage(`{"id":`+jobB.ID().String()+`,"progress":20}`))

	m.For(t, "first").Assert(first.wait(t, 1), m.Equal([]string{`{"id":` + jobA.ID().String() + `,"progress":10}`}))
	m.For(t, "second").Assert(second.wait(t, 1), m.Equal([]string{`{"id":` + jobB.ID().String() + `,"progress":20}`}))
}

func TestIntegration_EncodeFromCallback(t *testing.T) {
	srv := newEncodeServer(t)
	mw := newMiddleware(t, srv)
	ctx := ctxWithTimeout(t)

	session, err := mw.Login(ctx, "alice", "secret")
	if err != nil {
		t.Fatal(err)
	}

	var next *middleware.Job
	chained := make(chan error, 1)
	first, err := session.Encode(ctx, func(u middleware.Update) {
		if u.Status() != "done" {
			return
		}
		job, err := session.Encode(ctx, nil, "next.mkv")
		next = job
		chained <- err
	}, "first.mkv")
	if err != nil {
		t.Fatal(err)
	}

	srv.Notify("encode", map[string]any{"id": 1, "status": "done"})

	select {
	case err := <-chained:
		if err != nil {
			t.Fatalf("encode from callback: %v", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("encode from callback did not return")
	}
	m.For(t, "next id").Assert(next.ID().String(), m.Equal("2"))
	if err := first.Wait(ctx); err != nil {
		t.Fatalf("first job: %v", err)
	}

	removed, err := next.Abort(ctx)
	if err != nil {
		t.Fatal(err)
	}
	m.For(t, "removed").Assert(removed, m.Equal(true))
}

func TestIntegration_Abort(t *testing.T) {
	srv := newEncodeServer(t)
	mw := newMiddleware(t, srv)
	ctx := ctxWithTimeout(t)

	session, err := mw.Login(ctx, "alice", "secret")
	if err != nil {
		t.Fatal(err)
	}
	job, err := session.Encode(ctx, func(middleware.Update) {}, "in.mkv")
	if err != nil {
		t.Fatal(err)
	}

	removed, err := job.Abort(ctx)
	if err != nil {
		t.Fatalf("abort: %v", err)
	}
	m.For(t, "removed").Assert(removed, m.Equal(true))
	if !errors.Is(job.Wait(ctx), middleware.ErrJobAborted) {
		t.Fatalf("expected ErrJobAborted, got %v", job.Err())
	}

	removed, err = mw.Abort(ctx, job.ID())
	if err != nil {
		t.Fatal(err)
	}
	m.For(t, "removed twice").Assert(removed, m.Equal(false))
}

func TestIntegration_ConnectionLossEndsJobs(t *testing.T) {
	srv := newEncodeServer(t)
	mw := newMiddleware(t, srv)
	ctx := ctxWithTimeout(t)

	session, err := mw.Login(ctx, "alice", "secret")
	if err != nil {
		t.Fatal(err)
	}
	job, err := session.Encode(ctx, func(middleware.Update) {}, "in.mkv")
	if err != nil {
		t.Fatal(err)
	}

	srv.DropAll()

	if err := job.Wait(ctx); err == nil {
		t.Fatal("expected connection error")
	}
}
