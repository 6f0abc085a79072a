package middleware

import (
	"context"

	"github.com/EgorLis/encoderpc/internal/rpclient"
)

//go:generate mockgen -source=conn.go -destination=mock_conn_test.go -package=middleware

// Conn — то, что Middleware нужно от RPC-канала. Реализуется *rpclient.Client.
type Conn interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	Call(ctx context.Context, method string, params, out any) error
	Subscribe(method string, fn func(rpclient.Notification)) *rpclient.Subscription
	Close() error
}

var _ Conn = (*rpclient.Client)(nil)
