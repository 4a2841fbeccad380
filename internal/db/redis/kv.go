package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/vecshift/internal/db"
)

// delIfEqualScript deletes KEYS[1] only while it holds ARGV[1].
const delIfEqualScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.b().Get().Key(key).Build()
	data, err := s.do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// SetNX stores value at key only if the key is absent, expiring after ttl.
func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	cmd := s.b().Set().Key(key).Value(value).Nx().ExSeconds(seconds).Build()
	err := s.do(ctx, cmd).Error()
	if rueidis.IsRedisNil(err) {
		return false, nil
	}
	if err != nil {
		return false, &db.Error{Op: db.OpSet, Err: err}
	}
	return true, nil
}

// DelIfEqual atomically deletes key while it still holds value.
func (s *Store) DelIfEqual(ctx context.Context, key, value string) (bool, error) {
	cmd := s.b().Eval().Script(delIfEqualScript).Numkeys(1).Key(key).Arg(value).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpEval, Err: err}
	}
	return n > 0, nil
}
