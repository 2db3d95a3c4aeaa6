package redis

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/go-redis/redis/v8"
)

// SetClient is the part of the go-redis client the set index needs.
type SetClient interface {
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	SIsMember(ctx context.Context, key string, member any) *redis.BoolCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// NewRedisClient opens a client for cfg and pings it. On failure the client is
// closed and a ConnectError returned.
func NewRedisClient(ctx context.Context, log Logger, cfg Config) (*redis.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	opts := &redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		PoolSize:    poolSize,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	log.Debugf("connecting to %s", cfg)
	c := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout+time.Second)
	defer cancel()
	status := c.Ping(pingCtx)
	if err := status.Err(); err != nil {
		log.Infof("failed ping: %v (%v, %v)", err, status.FullName(), status.Args())
		_ = c.Close()
		return nil, ConnectError(err, cfg.Addr())
	}
	return c, nil
}

// Ping dials cfg, pings and closes again. It is the readiness check for the
// index.
func Ping(ctx context.Context, log Logger, cfg Config) error {
	c, err := NewRedisClient(ctx, log, cfg)
	if err != nil {
		return err
	}
	if err := c.Close(); err != nil {
		return CloseError(err, cfg.Addr())
	}
	return nil
}
