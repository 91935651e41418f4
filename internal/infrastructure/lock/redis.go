package lock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smilecare/gateway/internal/domain/service"
)

const (
	// Redis key prefix for turn locks
	turnKeyPrefix = "smilecare:turn:"
	// Default TTL, long enough for two model calls and five tool calls
	defaultTTL = 60 * time.Second
	// 释放锁不依赖请求上下文
	releaseTimeout = 2 * time.Second
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by another turn is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes turns per conversation across gateway instances.
// The TTL bounds how long a crashed instance can hold a conversation.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

var _ service.TurnLocker = (*RedisLocker)(nil)

// NewRedisLocker 创建 Redis 轮次锁
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "turn_lock")),
	}
}

// Acquire implements service.TurnLocker with SET NX PX and a random token.
func (l *RedisLocker) Acquire(ctx context.Context, conversationID int64) (func(), error) {
	key := l.key(conversationID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire turn lock: %w", err)
	}
	if !ok {
		return nil, service.ErrTurnInProgress
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()

		released, err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Int()
		if err != nil && err != redis.Nil {
			l.logger.Warn("Failed to release turn lock",
				zap.Int64("conversation_id", conversationID),
				zap.Error(err),
			)
			return
		}
		if released == 0 {
			l.logger.Warn("Turn lock expired before release",
				zap.Int64("conversation_id", conversationID),
				zap.Duration("ttl", l.ttl),
			)
		}
	}, nil
}

func (l *RedisLocker) key(conversationID int64) string {
	return turnKeyPrefix + strconv.FormatInt(conversationID, 10)
}

// NewRedisClient 创建 Redis 客户端并检查连通性
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}
