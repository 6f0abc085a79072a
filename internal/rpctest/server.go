// Package rpctest — JSON-RPC 2.0 WebSocket-сервер в процессе для тестов.
// Обработчики регистрируются по методу, каждый входящий запрос
// записывается, чтобы тест мог проверить, что отправил клиент.
package rpctest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/EgorLis/encoderpc/internal/rpclient"
)

// Handler отвечает на один вызов. *rpclient.Error уходит как есть,
// любая другая ошибка — с кодом -32000.
type Handler func(call *Call) (any, error)

// Call — входящий запрос глазами Handler.
type Call struct {
	Method  string
	Params  json.RawMessage
	Session *Session

	after []func()
}

// After — выполнить fn после записи ответа.
func (c *Call) After(fn func()) {
	c.after = append(c.after, fn)
}

// Request — записанный входящий запрос.
type Request struct {
	ID     json.RawMessage
	Method string
	Params json.RawMessage
}

// Decode раскладывает params в v.
func (r Request) Decode(v any) error {
	return json.Unmarshal(r.Params, v)
}

type Server struct {
	t   testing.TB
	srv *httptest.Server

	upgrader websocket.Upgrader

	mu       sync.Mutex
	handlers map[string]Handler
	requests []Request
	sessions []*Session
	joined   chan struct{}

	ignorePings bool
}

// NewServer запускает сервер; остановка регистрируется в t.Cleanup.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		t:        t,
		handlers: make(map[string]Handler),
		joined:   make(chan struct{}, 64),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.Close)
	return s
}

// URL — адрес сервера в виде ws://.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// IgnorePings — новые соединения не отвечают pong на ping клиента.
func (s *Server) IgnorePings() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignorePings = true
}

func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Requests — записанные запросы method, при пустом method — все.
func (s *Server) Requests(method string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if method == "" || r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

// Notify рассылает уведомление всем подключённым сессиям.
func (s *Server) Notify(method string, params any) {
	s.t.Helper()
	s.mu.Lock()
	sessions := append([]*Session(nil), s.sessions...)
	s.mu.Unlock()
	for _, ss := range sessions {
		if err := ss.Notify(method, params); err != nil {
			s.t.Logf("notify %s: %v", method, err)
		}
	}
}

// WaitSession ждёт подключения клиента и возвращает его сессию.
func (s *Server) WaitSession(timeout time.Duration) *Session {
	s.t.Helper()
	select {
	case <-s.joined:
	case <-time.After(timeout):
		s.t.Fatalf("no client connected within %v", timeout)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[len(s.sessions)-1]
}

// DropAll рвёт все соединения без close-рукопожатия.
func (s *Server) DropAll() {
	s.mu.Lock()
	sessions := append([]*Session(nil), s.sessions...)
	s.mu.Unlock()
	for _, ss := range sessions {
		_ = ss.conn.Close()
	}
}

func (s *Server) Close() {
	s.DropAll()
	s.srv.Close()
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ss := &Session{conn: conn}

	s.mu.Lock()
	s.sessions = append(s.sessions, ss)
	ignorePings := s.ignorePings
	s.mu.Unlock()
	if ignorePings {
		conn.SetPingHandler(func(string) error { return nil })
	}
	select {
	case s.joined <- struct{}{}:
	default:
	}

	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			_ = ss.write(map[string]any{
				"jsonrpc": "2.0",
				"id":      nil,
				"error":   &rpclient.Error{Code: rpclient.CodeParseError, Message: err.Error()},
			})
			continue
		}
		s.serveCall(ss, req.ID, req.Method, req.Params)
	}
}

func (s *Server) serveCall(ss *Session, id json.RawMessage, method string, params json.RawMessage) {
	s.mu.Lock()
	s.requests = append(s.requests, Request{ID: id, Method: method, Params: params})
	h, ok := s.handlers[method]
	s.mu.Unlock()

	reply := map[string]any{"jsonrpc": "2.0", "id": id}
	call := &Call{Method: method, Params: params, Session: ss}
	if !ok {
		reply["error"] = &rpclient.Error{Code: rpclient.CodeMethodNotFound, Message: "method not found"}
	} else if result, err := h(call); err != nil {
		rpcErr, isRPC := err.(*rpclient.Error)
		if !isRPC {
			rpcErr = &rpclient.Error{Code: -32000, Message: err.Error()}
		}
		reply["error"] = rpcErr
	} else {
		reply["result"] = result
	}

	// клиент мог уже уйти, цикл чтения это заметит
	if err := ss.write(reply); err != nil {
		return
	}
	for _, fn := range call.after {
		fn()
	}
}

// Session — один подключённый клиент.
type Session struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (ss *Session) Notify(method string, params any) error {
	return ss.write(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
}

// WriteRaw отправляет data текстовым кадром без изменений.
func (ss *Session) WriteRaw(data []byte) error {
	ss.wmu.Lock()
	defer ss.wmu.Unlock()
	return ss.conn.WriteMessage(websocket.TextMessage, data)
}

func (ss *Session) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ss.WriteRaw(data)
}
