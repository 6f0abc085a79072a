package config

import (
	"net/url"

	"github.com/pkg/errors"
)

// Validate проверяет, что конфигурацией можно пользоваться.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateClient()
}

func (c *Config) validateServer() error {
	u, err := url.Parse(c.Server.Endpoint)
	if err != nil {
		return errors.Wrap(err, "server.endpoint")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.Errorf("server.endpoint must use ws:// or wss://, got %q", c.Server.Endpoint)
	}
	if u.Host == "" {
		return errors.Errorf("server.endpoint has no host: %q", c.Server.Endpoint)
	}
	return nil
}

func (c *Config) validateClient() error {
	if c.Client.RequestTimeout < 0 {
		return errors.New("client.request_timeout must be >= 0")
	}
	if c.Client.PingInterval < 0 {
		return errors.New("client.ping_interval must be >= 0")
	}
	if c.Client.WriteTimeout < 0 {
		return errors.New("client.write_timeout must be >= 0")
	}
	if c.Client.ReadLimitMiB <= 0 {
		return errors.New("client.read_limit_mib must be positive")
	}
	return nil
}
