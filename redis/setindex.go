package redis

import (
	"context"

	"github.com/go-redis/redis/v8"
	otrace "github.com/opentracing/opentracing-go"

	"github.com/datatrails/go-wallpaper-mirror/wallpaper"
)

const (
	opAdd      = "SADD"
	opRemove   = "SREM"
	opContains = "SISMEMBER"
	opMembers  = "SMEMBERS"
	opReplace  = "DEL+SADD"
)

// SetIndex keeps one redis set of filenames per wallpaper category.
//
// Add and Remove are single SADD/SREM commands and so are idempotent: adding
// a present member or removing an absent one leaves the set unchanged.
type SetIndex struct {
	client    SetClient
	namespace string
	log       Logger
}

// NewSetIndex dials cfg and returns an index over the connection. The caller
// owns the index and must Close it.
func NewSetIndex(ctx context.Context, log Logger, cfg Config) (*SetIndex, error) {
	client, err := NewRedisClient(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	return NewSetIndexWithClient(log, cfg.withDefaults().Namespace, client), nil
}

// NewSetIndexWithClient wraps an existing client.
func NewSetIndexWithClient(log Logger, namespace string, client SetClient) *SetIndex {
	if namespace == "" {
		namespace = wallpaper.DefaultNamespace
	}
	return &SetIndex{
		client:    client,
		namespace: namespace,
		log:       log,
	}
}

// Key is the set key for category c.
func (s *SetIndex) Key(c wallpaper.Category) string {
	return wallpaper.IndexKey(s.namespace, c)
}

func opName(op, key string) string {
	return op + " " + key
}

// Add inserts filename into c's set. It returns true if the filename was not
// already present.
func (s *SetIndex) Add(ctx context.Context, c wallpaper.Category, filename string) (bool, error) {
	log := s.log.FromContext(ctx)
	defer log.Close()

	key := s.Key(c)
	span, ctx := otrace.StartSpanFromContext(ctx, "redis.setindex.SAdd")
	defer span.Finish()

	n, err := s.client.SAdd(ctx, key, filename).Result()
	if err != nil {
		return false, DoError(err, opName(opAdd, key))
	}
	log.Debugf("%s %s: %d", opName(opAdd, key), filename, n)
	return n > 0, nil
}

// Remove deletes filename from c's set. It returns true if the filename was
// present.
func (s *SetIndex) Remove(ctx context.Context, c wallpaper.Category, filename string) (bool, error) {
	log := s.log.FromContext(ctx)
	defer log.Close()

	key := s.Key(c)
	span, ctx := otrace.StartSpanFromContext(ctx, "redis.setindex.SRem")
	defer span.Finish()

	n, err := s.client.SRem(ctx, key, filename).Result()
	if err != nil {
		return false, DoError(err, opName(opRemove, key))
	}
	log.Debugf("%s %s: %d", opName(opRemove, key), filename, n)
	return n > 0, nil
}

func (s *SetIndex) Contains(ctx context.Context, c wallpaper.Category, filename string) (bool, error) {
	key := s.Key(c)
	span, ctx := otrace.StartSpanFromContext(ctx, "redis.setindex.SIsMember")
	defer span.Finish()

	ok, err := s.client.SIsMember(ctx, key, filename).Result()
	if err != nil {
		return false, DoError(err, opName(opContains, key))
	}
	return ok, nil
}

// Members returns c's filenames in no particular order.
func (s *SetIndex) Members(ctx context.Context, c wallpaper.Category) ([]string, error) {
	key := s.Key(c)
	span, ctx := otrace.StartSpanFromContext(ctx, "redis.setindex.SMembers")
	defer span.Finish()

	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, DoError(err, opName(opMembers, key))
	}
	return members, nil
}

// Replace swaps the whole of c's set for filenames in one MULTI/EXEC, so
// readers never see a half built set. An empty filenames leaves the set
// deleted.
func (s *SetIndex) Replace(ctx context.Context, c wallpaper.Category, filenames []string) error {
	log := s.log.FromContext(ctx)
	defer log.Close()

	key := s.Key(c)
	span, ctx := otrace.StartSpanFromContext(ctx, "redis.setindex.Replace.TxPipelined")
	defer span.Finish()

	members := make([]any, 0, len(filenames))
	for _, f := range filenames {
		members = append(members, f)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(members) > 0 {
			pipe.SAdd(ctx, key, members...)
		}
		return nil
	})
	if err != nil {
		return DoError(err, opName(opReplace, key))
	}
	log.Debugf("%s: %d members", opName(opReplace, key), len(members))
	return nil
}

// Close releases the underlying connection. It is safe to call more than once.
func (s *SetIndex) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	if err != nil {
		return CloseError(err, s.namespace)
	}
	return nil
}
