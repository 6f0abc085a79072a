package rpclient

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DefaultPingInterval = 10 * time.Second
	DefaultWriteTimeout = 5 * time.Second
	DefaultReadLimit    = 64 << 20
)

type Options struct {
	Logger       *zap.Logger
	Dialer       *websocket.Dialer
	Header       http.Header
	PingInterval time.Duration // 0 — без ping/pong и read-deadline
	WriteTimeout time.Duration
	ReadLimit    int64
}

type Option func(options *Options)

func defaultOptions() Options {
	return Options{
		Logger:       zap.NewNop(),
		Dialer:       websocket.DefaultDialer,
		PingInterval: DefaultPingInterval,
		WriteTimeout: DefaultWriteTimeout,
		ReadLimit:    DefaultReadLimit,
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *Options) {
		if logger != nil {
			opts.Logger = logger
		}
	}
}

func WithDialer(dialer *websocket.Dialer) Option {
	return func(opts *Options) {
		if dialer != nil {
			opts.Dialer = dialer
		}
	}
}

func WithHeader(header http.Header) Option {
	return func(opts *Options) {
		opts.Header = header
	}
}

func WithPingInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.PingInterval = interval
	}
}

func WithWriteTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.WriteTimeout = timeout
	}
}

func WithReadLimit(limit int64) Option {
	return func(opts *Options) {
		opts.ReadLimit = limit
	}
}
