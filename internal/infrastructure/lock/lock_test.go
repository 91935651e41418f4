package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smilecare/gateway/internal/domain/service"
)

func TestMemoryLocker_RejectsSecondTurn(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, 1)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, 1)
	assert.ErrorIs(t, err, service.ErrTurnInProgress)

	other, err := l.Acquire(ctx, 2)
	require.NoError(t, err, "different conversations are independent")
	other()

	release()
	release() // idempotent

	again, err := l.Acquire(ctx, 1)
	require.NoError(t, err)
	again()
}

func TestMemoryLocker_ExactlyOneWinner(t *testing.T) {
	l := NewMemoryLocker()
	var wins int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := l.Acquire(context.Background(), 9); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.EqualValues(t, 1, wins)
}

func TestRedisLocker_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := NewRedisLocker(client, 0, zap.NewNop())
	assert.Equal(t, defaultTTL, l.ttl)

	_, err := l.Acquire(context.Background(), 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrTurnInProgress)
	assert.Contains(t, err.Error(), "acquire turn lock")
}

func TestRedisLocker_Key(t *testing.T) {
	l := NewRedisLocker(nil, time.Second, zap.NewNop())
	assert.Equal(t, "smilecare:turn:42", l.key(42))
}

func TestNewRedisClient_PingFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := NewRedisClient(ctx, "127.0.0.1:1", "", 0)
	require.Error(t, err)
}
