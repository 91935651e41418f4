package lock

import (
	"context"
	"sync"

	"github.com/smilecare/gateway/internal/domain/service"
)

// MemoryLocker serializes turns per conversation within one process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

var _ service.TurnLocker = (*MemoryLocker)(nil)

// NewMemoryLocker 创建进程内轮次锁
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[int64]struct{})}
}

// Acquire implements service.TurnLocker. It never blocks.
func (l *MemoryLocker) Acquire(_ context.Context, conversationID int64) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[conversationID]; busy {
		return nil, service.ErrTurnInProgress
	}
	l.held[conversationID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, conversationID)
			l.mu.Unlock()
		})
	}, nil
}
