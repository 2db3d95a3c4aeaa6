package redis

// Defines a mock for SetClient

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/mock"
)

// mockClient is a mock redis Client
type mockClient struct {
	mock.Mock
}

func (mc *mockClient) SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd {
	arguments := mc.Called(append([]any{key}, members...)...)
	return arguments.Get(0).(*redis.IntCmd)
}

func (mc *mockClient) SRem(ctx context.Context, key string, members ...any) *redis.IntCmd {
	arguments := mc.Called(append([]any{key}, members...)...)
	return arguments.Get(0).(*redis.IntCmd)
}

func (mc *mockClient) SIsMember(ctx context.Context, key string, member any) *redis.BoolCmd {
	arguments := mc.Called(key, member)
	return arguments.Get(0).(*redis.BoolCmd)
}

func (mc *mockClient) SMembers(ctx context.Context, key string) *redis.StringSliceCmd {
	arguments := mc.Called(key)
	return arguments.Get(0).(*redis.StringSliceCmd)
}

func (mc *mockClient) TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error) {
	arguments := mc.Called()
	return nil, arguments.Error(0)
}

func (mc *mockClient) Ping(ctx context.Context) *redis.StatusCmd {
	arguments := mc.Called()
	return arguments.Get(0).(*redis.StatusCmd)
}

func (mc *mockClient) Close() error {
	arguments := mc.Called()
	return arguments.Error(0)
}

func intCmd(ctx context.Context, val int64, err error) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(val)
	cmd.SetErr(err)
	return cmd
}
