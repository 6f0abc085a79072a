package middleware

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/EgorLis/encoderpc/internal/rpclient"
)

const (
	MethodLogin       = "auth.login"
	MethodEncodeStart = "encode.start"
	MethodEncodeAbort = "encode.abort"

	// NotificationEncode — метод уведомлений о прогрессе заданий.
	NotificationEncode = "encode"
)

var (
	ErrNotLoggedIn = errors.New("not logged in")
	ErrJobFailed   = errors.New("encode job failed")
	ErrJobAborted  = errors.New("encode job aborted")
)

// Middleware — одна RPC-сессия с одним сервером кодирования.
type Middleware struct {
	endpoint string
	conn     Conn
	logger   *zap.Logger

	mu      sync.Mutex
	session *Session
}

type options struct {
	logger     *zap.Logger
	conn       Conn
	clientOpts []rpclient.Option
}

type Option func(*options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConn подменяет канал (в тестах — мок).
func WithConn(conn Conn) Option {
	return func(o *options) {
		o.conn = conn
	}
}

func WithClientOptions(opts ...rpclient.Option) Option {
	return func(o *options) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

func New(endpoint string, opts ...Option) *Middleware {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.conn == nil {
		clientOpts := append([]rpclient.Option{rpclient.WithLogger(o.logger)}, o.clientOpts...)
		o.conn = rpclient.New(endpoint, clientOpts...)
	}
	return &Middleware{
		endpoint: endpoint,
		conn:     o.conn,
		logger:   o.logger.With(zap.String("endpoint", endpoint)),
	}
}

func (m *Middleware) Endpoint() string {
	return m.endpoint
}

type loginParams struct {
	User string `json:"user"`
	Pass string `json:"pass"`
}

// Login — открывает канал (если ещё не открыт) и меняет логин/пароль на
// токен. Порядок строгий: подключение, auth.login, сохранение токена.
// Ошибки транспорта и сервера возвращаются без обёртки; токен при этом
// не сохраняется.
func (m *Middleware) Login(ctx context.Context, user, pass string) (*Session, error) {
	if !m.conn.IsConnected() {
		if err := m.conn.Connect(ctx); err != nil && !errors.Is(err, rpclient.ErrAlreadyConnected) {
			m.logger.Debug("connect failed", zap.Error(err))
			return nil, err
		}
	}

	var token Token
	if err := m.conn.Call(ctx, MethodLogin, loginParams{User: user, Pass: pass}, &token); err != nil {
		m.logger.Debug("login rejected", zap.String("user", user), zap.Error(err))
		return nil, err
	}

	s := &Session{m: m, user: user, token: token}
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	m.logger.Info("logged in", zap.String("user", user))
	return s, nil
}

// Session — текущая сессия или nil, если Login ещё не было.
func (m *Middleware) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Encode — запуск задания в текущей сессии. До успешного Login возвращает
// ErrNotLoggedIn и ничего не отправляет.
func (m *Middleware) Encode(ctx context.Context, callback UpdateFunc, file string, opts ...any) (*Job, error) {
	s := m.Session()
	if s == nil {
		return nil, ErrNotLoggedIn
	}
	return s.Encode(ctx, callback, file, opts...)
}

// Abort — encode.abort для задания по id в текущей сессии.
func (m *Middleware) Abort(ctx context.Context, id JobID) (bool, error) {
	s := m.Session()
	if s == nil {
		return false, ErrNotLoggedIn
	}
	return s.Abort(ctx, id)
}

// Close закрывает канал; все подписки заданий завершаются.
func (m *Middleware) Close() error {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	return m.conn.Close()
}
