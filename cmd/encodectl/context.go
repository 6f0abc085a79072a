package main

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/EgorLis/encoderpc/internal/config"
	"github.com/EgorLis/encoderpc/internal/middleware"
	"github.com/EgorLis/encoderpc/internal/rpclient"
)

type globalFlags struct {
	config   string
	endpoint string
	user     string
	verbose  bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error

	loggerOnce sync.Once
	logger     *zap.Logger
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig — файл и окружение, поверх них флаги.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, exists, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = errors.Wrap(err, "load config")
			return
		}
		if v := strings.TrimSpace(c.flags.endpoint); v != "" {
			cfg.Server.Endpoint = v
		}
		if v := strings.TrimSpace(c.flags.user); v != "" {
			cfg.Auth.User = v
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config, c.configPath, c.configSeen = cfg, path, exists
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() *zap.Logger {
	c.loggerOnce.Do(func() {
		var zc zap.Config
		if c.flags.verbose {
			zc = zap.NewDevelopmentConfig()
		} else {
			zc = zap.NewProductionConfig()
			zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			zc.Encoding = "console"
			zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}
		logger, err := zc.Build()
		if err != nil {
			logger = zap.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

// requestContext ограничивает один вызов client.request_timeout.
func (c *commandContext) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if c.config != nil && c.config.RequestTimeout() > 0 {
		return context.WithTimeout(parent, c.config.RequestTimeout())
	}
	return context.WithCancel(parent)
}

func (c *commandContext) newMiddleware(cfg *config.Config) *middleware.Middleware {
	return middleware.New(cfg.Server.Endpoint,
		middleware.WithLogger(c.ensureLogger()),
		middleware.WithClientOptions(
			rpclient.WithPingInterval(cfg.PingInterval()),
			rpclient.WithWriteTimeout(cfg.WriteTimeout()),
			rpclient.WithReadLimit(cfg.ReadLimit()),
		),
	)
}

// withSession открывает канал, выполняет Login и передаёт сессию в fn.
// Канал закрывается после возврата fn.
func (c *commandContext) withSession(cmd *cobra.Command, fn func(*middleware.Middleware, *middleware.Session) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.User == "" {
		return errors.Errorf("user is not set: use auth.user, %s or --user", config.EnvUser)
	}
	defer func() { _ = c.ensureLogger().Sync() }()

	mw := c.newMiddleware(cfg)
	defer mw.Close()

	loginCtx, cancel := c.requestContext(cmd.Context())
	session, err := mw.Login(loginCtx, cfg.Auth.User, cfg.Auth.Pass)
	cancel()
	if err != nil {
		return errors.Wrapf(err, "login to %s", cfg.Server.Endpoint)
	}
	return fn(mw, session)
}
