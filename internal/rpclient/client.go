package rpclient

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	ErrClosed           = errors.New("rpc client closed")
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrNoMethod         = errors.New("no method")
)

type Client struct {
	endpoint string
	opts     Options
	logger   *zap.Logger

	cmu       sync.Mutex // сериализует Connect
	conn      *websocket.Conn
	disp      *Dispatcher
	dispBound bool // disp уже отдан соединению
	seq       atomic.Uint64
	mu        sync.Mutex // conn, disp, pending
	pending   map[uint64]chan *response
	closing   atomic.Bool

	wmu          sync.Mutex    // сериализует запись в websocket
	pingStop     chan struct{} // стоп-канал для ping-горутины
	lastActivity atomic.Int64  // unix nanos последнего принятого кадра

	// "События"
	OnConnected    func()
	OnDisconnected func(err error)
	OnError        func(error)
	OnRequest      func(*Request)
	OnNotification func(Notification)
}

func New(endpoint string, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		endpoint: endpoint,
		opts:     o,
		logger:   o.Logger.With(zap.String("endpoint", endpoint)),
		disp:     NewDispatcher(),
		pending:  make(map[uint64]chan *response),
	}
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Connect — устанавливает WebSocket и запускает readLoop.
// Ошибка дозвона возвращается без обёртки.
func (c *Client) Connect(ctx context.Context) error {
	c.cmu.Lock()
	defer c.cmu.Unlock()

	if c.IsConnected() {
		return ErrAlreadyConnected
	}

	conn, err := c.dialAndSetup(ctx)
	if err != nil {
		c.logger.Debug("dial failed", zap.Error(err))
		return err
	}

	c.mu.Lock()
	c.conn = conn
	// реестр принадлежит одному соединению; подписки, сделанные до
	// первого Connect, переходят в него
	if c.disp.isClosed() || c.dispBound {
		c.disp = NewDispatcher()
	}
	c.dispBound = true
	disp := c.disp
	c.mu.Unlock()
	c.closing.Store(false)
	if c.opts.PingInterval > 0 {
		c.startPing(conn)
	}

	c.logger.Info("connected")
	if c.OnConnected != nil {
		c.OnConnected()
	}

	in := newInbox()
	go c.deliverLoop(in, disp)
	go c.readLoop(conn, in, disp)
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close — закрывает соединение. Ожидающие вызовы получают ErrClosed,
// подписки завершаются. Повторный вызов безопасен.
func (c *Client) Close() error {
	c.closing.Store(true)
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.closeConn(conn)
	return nil
}

// Subscribe — подписка на уведомления method (пусто — на все).
func (c *Client) Subscribe(method string, fn func(Notification)) *Subscription {
	c.mu.Lock()
	disp := c.disp
	c.mu.Unlock()
	return disp.Subscribe(method, fn)
}
