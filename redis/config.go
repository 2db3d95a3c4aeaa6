package redis

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/datatrails/go-wallpaper-mirror/environment"
	"github.com/datatrails/go-wallpaper-mirror/wallpaper"
)

const (
	RedisHostEnv      = "REDIS_HOST"
	RedisPasswordEnv  = "REDIS_PASSWORD" //nolint:gosec
	RedisPortEnv      = "REDIS_PORT"
	RedisDBEnv        = "REDIS_DB"
	RedisNamespaceEnv = "REDIS_KEY_NAMESPACE"
	RedisTLSEnv       = "REDIS_TLS"

	DefaultPort        = 6379
	defaultDialTimeout = 5 * time.Second
	// a function invocation holds one connection at a time
	poolSize = 1
)

var (
	ErrNoHost = errors.New("redis host is required")
)

// Config locates the redis instance that holds the wallpaper index.
//
// Host is required. Port defaults to 6379 and Namespace to "wallpaper", the
// prefix of every set key ("wallpaper:pc").
type Config struct {
	Host        string
	Password    string
	Port        int
	DB          int
	Namespace   string
	TLS         bool
	DialTimeout time.Duration
}

// FromEnv reads the config from REDIS_HOST, REDIS_PASSWORD and the optional
// REDIS_PORT, REDIS_DB, REDIS_KEY_NAMESPACE and REDIS_TLS.
func FromEnv() (Config, error) {
	host, err := environment.GetRequired(RedisHostEnv)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Host:      host,
		Password:  environment.GetWithDefault(RedisPasswordEnv, ""),
		Port:      environment.GetIntWithDefault(RedisPortEnv, DefaultPort),
		DB:        environment.GetIntWithDefault(RedisDBEnv, 0),
		Namespace: environment.GetWithDefault(RedisNamespaceEnv, wallpaper.DefaultNamespace),
		TLS:       environment.GetTruthy(RedisTLSEnv),
	}
	return cfg.withDefaults(), cfg.Validate()
}

func (cfg Config) withDefaults() Config {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Namespace == "" {
		cfg.Namespace = wallpaper.DefaultNamespace
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return cfg
}

// Validate reports a config that cannot be dialled.
func (cfg Config) Validate() error {
	if cfg.Host == "" {
		return ErrNoHost
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("redis port %d out of range", cfg.Port)
	}
	return nil
}

// Addr is host:port, using the default port when none is set.
func (cfg Config) Addr() string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.withDefaults().Port))
}

// String is safe to log, the password is never included.
func (cfg Config) String() string {
	return fmt.Sprintf("redis://%s/%d (namespace %s, tls %v)", cfg.Addr(), cfg.DB, cfg.withDefaults().Namespace, cfg.TLS)
}
