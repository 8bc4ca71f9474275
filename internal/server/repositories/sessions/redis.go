package sessions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/estately/internal/common"
	"github.com/dmitrijs2005/estately/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix   = "estately:session:"
	redisFieldDigest = "digest"
	redisFieldExpiry = "exp"
)

// rotateScript swaps the digest only when the stored one matches ARGV[1].
var rotateScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'digest')
if cur ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'digest', ARGV[2], 'exp', ARGV[3])
redis.call('PEXPIREAT', KEYS[1], ARGV[3])
return 1
`)

// RedisStore keeps one hash per user, expiring together with the token.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func redisKey(userID string) string { return redisKeyPrefix + userID }

func (s *RedisStore) Get(ctx context.Context, userID string) (*models.Session, error) {
	vals, err := s.rdb.HGetAll(ctx, redisKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	digest, ok := vals[redisFieldDigest]
	if !ok {
		return nil, common.ErrorNotFound
	}
	ms, err := strconv.ParseInt(vals[redisFieldExpiry], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis error: bad expiry: %w", err)
	}
	return &models.Session{UserID: userID, TokenDigest: digest, ExpiresAt: time.UnixMilli(ms)}, nil
}

func (s *RedisStore) Save(ctx context.Context, userID, digest string, expiresAt time.Time) error {
	key := redisKey(userID)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, redisFieldDigest, digest, redisFieldExpiry, expiresAt.UnixMilli())
		p.PExpireAt(ctx, key, expiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (s *RedisStore) Rotate(ctx context.Context, userID, oldDigest, newDigest string, expiresAt time.Time) error {
	n, err := rotateScript.Run(ctx, s.rdb, []string{redisKey(userID)},
		oldDigest, newDigest, expiresAt.UnixMilli()).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis error: %w", err)
	}
	if n == 0 {
		return common.ErrorConflict
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, redisKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

// Ping checks the connection; used by the health check.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
