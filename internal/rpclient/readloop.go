package rpclient

import (
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func (c *Client) readLoop(conn *websocket.Conn, in *inbox, disp *Dispatcher) {
	var cause error
	defer func() {
		if c.closing.Load() {
			cause = ErrClosed
		}
		// подписки до следующего Connect сразу завершаются с cause;
		// старые завершит deliverLoop, когда доставит хвост очереди
		c.mu.Lock()
		if c.disp == disp {
			c.disp = closedDispatcher(cause)
			c.dispBound = false
		}
		c.mu.Unlock()

		c.closeConn(conn)
		c.failPending(cause)
		in.close(cause)
		c.logger.Info("disconnected", zap.Error(cause))
		if c.OnDisconnected != nil {
			c.OnDisconnected(cause)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.OnError != nil && !c.closing.Load() {
				c.OnError(err)
			}
			cause = err
			return
		}
		c.touchActivity()
		if c.opts.PingInterval > 0 {
			_ = c.extendReadDeadline(conn)
		}

		msgs, err := decodeFrame(data)
		if err != nil {
			c.logger.Warn("malformed frame", zap.Error(err), zap.Int("size", len(data)))
			if c.OnError != nil {
				c.OnError(err)
			}
			continue
		}
		for i := range msgs {
			c.handle(conn, in, &msgs[i])
		}
	}
}

func (c *Client) handle(conn *websocket.Conn, in *inbox, msg *message) {
	switch {
	case msg.isNotification():
		// обработчики работают в deliverLoop, чтобы из них можно было
		// делать вызовы: ответы читает эта горутина
		in.push(Notification{Method: msg.Method, Params: msg.Params})

	case msg.isRequest():
		// клиент методов не обслуживает
		c.logger.Debug("server request rejected", zap.String("method", msg.Method))
		_ = c.write(conn, &replyMessage{
			JSONRPC: jsonrpcVersion,
			ID:      msg.ID,
			Error:   &Error{Code: CodeMethodNotFound, Message: "method not found"},
		})

	default:
		id, err := strconv.ParseUint(string(msg.ID), 10, 64)
		if err != nil {
			c.logger.Warn("response with foreign id", zap.ByteString("id", msg.ID))
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[id]
		if ok {
			delete(c.pending, id)
		}
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("response without pending call", zap.Uint64("id", id))
			return
		}
		if msg.Error != nil {
			ch <- &response{err: msg.Error}
			return
		}
		ch <- &response{result: msg.Result}
	}
}

// deliverLoop — единственная горутина, вызывающая обработчики подписок
// соединения: по одному, в порядке прихода. После закрытия очереди
// доставляет остаток и завершает подписки.
func (c *Client) deliverLoop(in *inbox, disp *Dispatcher) {
	for {
		batch, closed, cause := in.take()
		for _, n := range batch {
			delivered := disp.Dispatch(n)
			c.logger.Debug("notification",
				zap.String("method", n.Method),
				zap.Int("delivered", delivered))
			if c.OnNotification != nil {
				c.OnNotification(n)
			}
		}
		if closed {
			disp.Close(cause)
			return
		}
		<-in.wake
	}
}

// пометить все ожидающие вызовы ошибкой при обрыве/закрытии
func (c *Client) failPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[uint64]chan *response)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- &response{err: err}
	}
}
