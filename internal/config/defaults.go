package config

const (
	defaultEndpoint       = "ws://127.0.0.1:8080"
	defaultRequestTimeout = 30
	defaultPingInterval   = 10
	defaultWriteTimeout   = 5
	defaultReadLimitMiB   = 64
)

const (
	EnvEndpoint = "ENCODERPC_ENDPOINT"
	EnvUser     = "ENCODERPC_USER"
	EnvPass     = "ENCODERPC_PASS"
)

// Default возвращает конфигурацию без файла и окружения.
func Default() Config {
	return Config{
		Server: Server{
			Endpoint: defaultEndpoint,
		},
		Client: Client{
			RequestTimeout: defaultRequestTimeout,
			PingInterval:   defaultPingInterval,
			WriteTimeout:   defaultWriteTimeout,
			ReadLimitMiB:   defaultReadLimitMiB,
		},
	}
}
