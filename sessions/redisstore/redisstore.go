package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wilsonhuang01/CMPE-272-2FA/sessions"
)

// ErrRedisUnavailable wraps every transport failure talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

var _ sessions.Storage = (*RedisStore)(nil)

// RedisStore keeps the two session entries under "<prefix>:token" and
// "<prefix>:user", so several terminals on one machine can share a login.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

func New(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "twofa"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + ":" + name
}

func (s *RedisStore) Load(ctx context.Context) (sessions.Entries, error) {
	vals, err := s.redis.MGet(ctx, s.key(sessions.KeyToken), s.key(sessions.KeyUser)).Result()
	if err != nil {
		return sessions.Entries{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var entries sessions.Entries
	if tok, ok := vals[0].(string); ok {
		entries.Token = tok
	}
	if user, ok := vals[1].(string); ok {
		entries.User = []byte(user)
	}
	return entries, nil
}

// Save writes both keys in one MULTI/EXEC so readers never observe half a session.
func (s *RedisStore) Save(ctx context.Context, entries sessions.Entries) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sessions.KeyToken), entries.Token, 0)
		pipe.Set(ctx, s.key(sessions.KeyUser), entries.User, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key(sessions.KeyToken), s.key(sessions.KeyUser)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
