package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilecare/gateway/internal/domain/entity"
	"github.com/smilecare/gateway/internal/domain/repository"
	"github.com/smilecare/gateway/pkg/errors"
)

var (
	_ repository.ConversationRepository = (*MemoryConversationRepository)(nil)
	_ repository.MessageRepository      = (*MemoryMessageRepository)(nil)
	_ repository.AuditRepository        = (*MemoryAuditRepository)(nil)
)

func TestMemoryRepositories_DeleteCascades(t *testing.T) {
	msgs := NewMemoryMessageRepository()
	convs := NewMemoryConversationRepository(msgs)
	ctx := context.Background()

	conv, _ := entity.NewConversation(9)
	require.NoError(t, convs.Create(ctx, conv))
	m, _ := entity.NewMessage(conv.ID(), entity.RoleUser, "hi", "")
	require.NoError(t, msgs.Save(ctx, m))

	require.NoError(t, convs.Delete(ctx, conv.ID()))
	left, err := msgs.FindByConversation(ctx, conv.ID())
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.True(t, errors.IsNotFound(convs.Delete(ctx, conv.ID())))
}

func TestMemoryMessageRepository_RecentAndDelete(t *testing.T) {
	msgs := NewMemoryMessageRepository()
	ctx := context.Background()

	var ids []int64
	for _, text := range []string{"a", "b", "c", "d"} {
		m, _ := entity.NewMessage(1, entity.RoleUser, text, "")
		require.NoError(t, msgs.Save(ctx, m))
		ids = append(ids, m.ID())
	}

	recent, err := msgs.FindRecent(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Content())
	assert.Equal(t, "d", recent[1].Content())

	require.NoError(t, msgs.Delete(ctx, ids[3]))
	remaining, err := msgs.FindRecent(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "c", remaining[0].Content())
	assert.True(t, errors.IsNotFound(msgs.Delete(ctx, ids[3])))

	// 删除不应影响先前取出的切片
	assert.Equal(t, "d", recent[1].Content())
}

func TestMemoryConversationRepository_ListByUser(t *testing.T) {
	convs := NewMemoryConversationRepository(nil)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, userID := range []int64{5, 5, 6, 5} {
		c := entity.ReconstructConversation(0, userID, "", base, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, convs.Create(ctx, c))
	}

	list, err := convs.ListByUser(ctx, 5, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(4), list[0].ID())
	assert.Equal(t, int64(1), list[2].ID())
}

func TestMemoryAuditRepository_ListRecentNewestFirst(t *testing.T) {
	audits := NewMemoryAuditRepository()
	ctx := context.Background()
	for _, name := range []string{"revenue_report", "get_all_patients"} {
		rec, _ := entity.NewAuditRecord(1, "Admin", "admin", name, nil)
		require.NoError(t, audits.Append(ctx, rec))
	}
	list, err := audits.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "get_all_patients", list[0].Tool())
}
