package rpclient

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// ========================= high-level API =========================

type response struct {
	result json.RawMessage
	err    error
}

// FutureResult — обещание результата вызова (как промис в JS).
type FutureResult struct {
	c  *Client
	id uint64
	ch chan *response
}

func newFutureError(err error) *FutureResult {
	ch := make(chan *response, 1)
	ch <- &response{err: err}
	return &FutureResult{ch: ch}
}

// Receive ждёт ответ и раскладывает result в out (если out != nil).
// Ошибки сервера (*Error) и транспорта возвращаются как есть.
func (f *FutureResult) Receive(ctx context.Context, out any) error {
	select {
	case r := <-f.ch:
		if r.err != nil {
			return r.err
		}
		if out == nil || len(r.result) == 0 {
			return nil
		}
		return json.Unmarshal(r.result, out)
	case <-ctx.Done():
		if f.c != nil {
			f.c.forget(f.id)
		}
		return ctx.Err()
	}
}

// CallAsync — отправляет запрос и сразу возвращает FutureResult.
func (c *Client) CallAsync(method string, params any) *FutureResult {
	if method == "" {
		return newFutureError(ErrNoMethod)
	}
	raw, err := marshalParams(params)
	if err != nil {
		return newFutureError(err)
	}

	id := c.nextID()
	ch := make(chan *response, 1)

	// регистрация ожидания и проверка соединения под одним мьютексом,
	// чтобы не разминуться с failPending
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return newFutureError(ErrNotConnected)
	}
	c.pending[id] = ch
	c.mu.Unlock()

	req := &Request{JSONRPC: jsonrpcVersion, ID: id, Method: method, Params: raw}
	if c.OnRequest != nil {
		c.OnRequest(req)
	}
	c.logger.Debug("rpc call", zap.Uint64("id", id), zap.String("method", method))

	if err := c.write(conn, req); err != nil {
		// сеть упала между подготовкой и записью — подчищаем ожидание
		c.forget(id)
		return newFutureError(err)
	}
	return &FutureResult{c: c, id: id, ch: ch}
}

// Call — синхронная обёртка над CallAsync.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	return c.CallAsync(method, params).Receive(ctx, out)
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Pending — число вызовов, ожидающих ответа.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
