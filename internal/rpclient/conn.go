package rpclient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ========================= low-level =========================

func (c *Client) nextID() uint64 {
	return c.seq.Inc()
}

// dial с установкой pong-handler'а, дедлайнов и запуском пингов
func (c *Client) dialAndSetup(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.opts.Dialer.DialContext(ctx, c.endpoint, c.opts.Header)
	if err != nil {
		return nil, err
	}
	if c.opts.ReadLimit > 0 {
		conn.SetReadLimit(c.opts.ReadLimit)
	}

	c.touchActivity()

	if c.opts.PingInterval > 0 {
		_ = c.extendReadDeadline(conn)
		conn.SetPongHandler(func(string) error {
			c.touchActivity()
			return c.extendReadDeadline(conn)
		})
	}
	return conn, nil
}

// extendReadDeadline сдвигает дедлайн чтения на 3 интервала ping. Зовётся и
// на pong, и на каждый принятый кадр: сервер может не отвечать на ping,
// пока шлёт уведомления.
func (c *Client) extendReadDeadline(conn *websocket.Conn) error {
	return conn.SetReadDeadline(time.Now().Add(3 * c.opts.PingInterval))
}

// write — единственная точка записи в сокет.
func (c *Client) write(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.opts.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// безопасно закрыть соединение
func (c *Client) closeConn(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	c.stopPing()

	c.wmu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
		time.Now().Add(500*time.Millisecond))
	c.wmu.Unlock()
	_ = conn.Close()
}

func (c *Client) touchActivity() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// SinceLastActivity — сколько прошло с последнего принятого кадра или pong.
func (c *Client) SinceLastActivity() time.Duration {
	n := c.lastActivity.Load()
	if n == 0 {
		return time.Hour
	}
	return time.Since(time.Unix(0, n))
}

func (c *Client) startPing(conn *websocket.Conn) {
	c.stopPing()
	stop := make(chan struct{})
	c.mu.Lock()
	c.pingStop = stop
	c.mu.Unlock()

	pingTimeout := c.opts.WriteTimeout
	if pingTimeout <= 0 {
		pingTimeout = DefaultWriteTimeout
	}

	go func() {
		t := time.NewTicker(c.opts.PingInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				c.wmu.Lock()
				err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(pingTimeout))
				c.wmu.Unlock()
				if err != nil {
					c.logger.Debug("ping failed", zap.Error(err))
				}
			case <-stop:
				return
			}
		}
	}()
}

func (c *Client) stopPing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
}
