package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Server — адрес сервера кодирования.
type Server struct {
	Endpoint string `toml:"endpoint"`
}

// Auth — учётные данные для auth.login.
type Auth struct {
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

// Client — таймауты и лимиты канала. Значения в секундах, лимит в МиБ.
type Client struct {
	RequestTimeout int `toml:"request_timeout"`
	PingInterval   int `toml:"ping_interval"` // 0 — без keep-alive
	WriteTimeout   int `toml:"write_timeout"`
	ReadLimitMiB   int `toml:"read_limit_mib"`
}

type Config struct {
	Server Server `toml:"server"`
	Auth   Auth   `toml:"auth"`
	Client Client `toml:"client"`
}

// DefaultConfigPath — путь к файлу по умолчанию.
func DefaultConfigPath() (string, error) {
	if base, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && strings.TrimSpace(base) != "" {
		return expandPath(filepath.Join(base, "encoderpc", "config.toml"))
	}
	return expandPath("~/.config/encoderpc/config.toml")
}

// Load читает файл (если он есть), применяет окружение и проверяет
// результат. Возвращает конфигурацию, итоговый путь и признак того, что
// файл существовал.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, errors.Wrap(err, "open config")
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, errors.Wrap(err, "parse config")
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return "", false, err
		}
	} else {
		var err error
		if path, err = expandPath(path); err != nil {
			return "", false, err
		}
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return path, false, nil
	case err != nil:
		return "", false, errors.Wrap(err, "stat config")
	case info.IsDir():
		return "", false, errors.Errorf("config %q is a directory", path)
	}
	return path, true, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvEndpoint); ok && strings.TrimSpace(v) != "" {
		c.Server.Endpoint = v
	}
	if v, ok := os.LookupEnv(EnvUser); ok && v != "" {
		c.Auth.User = v
	}
	if v, ok := os.LookupEnv(EnvPass); ok && v != "" {
		c.Auth.Pass = v
	}
}

func (c *Config) normalize() {
	c.Server.Endpoint = strings.TrimSpace(c.Server.Endpoint)
	if c.Server.Endpoint == "" {
		c.Server.Endpoint = defaultEndpoint
	}
	c.Auth.User = strings.TrimSpace(c.Auth.User)
}

// RequestTimeout — таймаут одного вызова; 0 — без ограничения.
func (c *Config) RequestTimeout() time.Duration {
	return seconds(c.Client.RequestTimeout)
}

func (c *Config) PingInterval() time.Duration {
	return seconds(c.Client.PingInterval)
}

func (c *Config) WriteTimeout() time.Duration {
	return seconds(c.Client.WriteTimeout)
}

func (c *Config) ReadLimit() int64 {
	return int64(c.Client.ReadLimitMiB) << 20
}

// Redacted — копия для вывода: пароль заменён звёздочками.
func (c Config) Redacted() Config {
	if c.Auth.Pass != "" {
		c.Auth.Pass = "********"
	}
	return c
}

// Marshal сериализует конфигурацию обратно в TOML.
func (c Config) Marshal() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "encode config")
	}
	return data, nil
}

// ExpandPath раскрывает ~ и приводит путь к абсолютному.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func expandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "resolve home directory")
		}
		if path == "~" {
			path = home
		} else if len(path) > 1 && (path[1] == '/' || path[1] == '\\') {
			path = filepath.Join(home, path[2:])
		}
	}
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", errors.Wrapf(err, "resolve absolute path for %q", path)
	}
	return abs, nil
}
