package redis

import (
	"errors"
	"fmt"
)

var (
	ErrRedisClose   = errors.New("redis close error")
	ErrRedisConnect = errors.New("redis connect error")
	ErrRedisDo      = errors.New("redis do error")
)

func CloseError(err error, name string) error {
	return fmt.Errorf("%w %s: %w", ErrRedisClose, name, err)
}

func ConnectError(err error, name string) error {
	return fmt.Errorf("%w %s: %w", ErrRedisConnect, name, err)
}

func DoError(err error, name string) error {
	return fmt.Errorf("%w %s: %w", ErrRedisDo, name, err)
}
