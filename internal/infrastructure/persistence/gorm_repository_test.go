package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/smilecare/gateway/internal/domain/entity"
	"github.com/smilecare/gateway/internal/infrastructure/config"
	"github.com/smilecare/gateway/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDBConnection(&config.DatabaseConfig{
		Type: "sqlite",
		DSN:  fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func TestNewDBConnection_UnsupportedType(t *testing.T) {
	_, err := NewDBConnection(&config.DatabaseConfig{Type: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestGormRepositories_ConversationLifecycle(t *testing.T) {
	db := newTestDB(t)
	convs := NewGormConversationRepository(db)
	msgs := NewGormMessageRepository(db)
	ctx := context.Background()

	conv, err := entity.NewConversation(42)
	require.NoError(t, err)
	require.NoError(t, convs.Create(ctx, conv))
	require.NotZero(t, conv.ID())

	user, err := entity.NewMessage(conv.ID(), entity.RoleUser, "When is my next appointment?", "")
	require.NoError(t, err)
	require.NoError(t, msgs.Save(ctx, user))
	assistant, err := entity.NewMessage(conv.ID(), entity.RoleAssistant, "Tomorrow at 10:00.", "get_my_next_appointment")
	require.NoError(t, err)
	require.NoError(t, msgs.Save(ctx, assistant))

	all, err := msgs.FindByConversation(ctx, conv.ID())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, entity.RoleUser, all[0].Role())
	assert.Equal(t, entity.RoleAssistant, all[1].Role())
	assert.Equal(t, "get_my_next_appointment", all[1].FunctionCalled())

	n, err := msgs.CountByRole(ctx, conv.ID(), entity.RoleUser)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	conv.SetTitle("When is my next appointment?")
	require.NoError(t, convs.Update(ctx, conv))
	found, err := convs.FindByID(ctx, conv.ID())
	require.NoError(t, err)
	assert.Equal(t, "When is my next appointment?", found.Title())
	assert.Equal(t, int64(42), found.UserID())

	require.NoError(t, convs.Delete(ctx, conv.ID()))
	_, err = convs.FindByID(ctx, conv.ID())
	assert.True(t, errors.IsNotFound(err))
	remaining, err := msgs.FindByConversation(ctx, conv.ID())
	require.NoError(t, err)
	assert.Empty(t, remaining)

	assert.True(t, errors.IsNotFound(convs.Delete(ctx, conv.ID())))
}

func TestGormMessageRepository_FindRecentKeepsOrder(t *testing.T) {
	db := newTestDB(t)
	convs := NewGormConversationRepository(db)
	msgs := NewGormMessageRepository(db)
	ctx := context.Background()

	conv, _ := entity.NewConversation(1)
	require.NoError(t, convs.Create(ctx, conv))
	for i := 0; i < 25; i++ {
		role := entity.RoleUser
		if i%2 == 1 {
			role = entity.RoleAssistant
		}
		m, err := entity.NewMessage(conv.ID(), role, fmt.Sprintf("m%d", i), "")
		require.NoError(t, err)
		require.NoError(t, msgs.Save(ctx, m))
	}

	recent, err := msgs.FindRecent(ctx, conv.ID(), 20)
	require.NoError(t, err)
	require.Len(t, recent, 20)
	assert.Equal(t, "m5", recent[0].Content())
	assert.Equal(t, "m24", recent[19].Content())
}

func TestGormMessageRepository_DeleteMissing(t *testing.T) {
	db := newTestDB(t)
	msgs := NewGormMessageRepository(db)
	err := msgs.Delete(context.Background(), 999)
	assert.True(t, errors.IsNotFound(err))
}

func TestGormConversationRepository_ListByUserOrder(t *testing.T) {
	db := newTestDB(t)
	convs := NewGormConversationRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, userID := range []int64{5, 5, 6, 5} {
		c := entity.ReconstructConversation(0, userID, "", base, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, convs.Create(ctx, c))
	}

	list, err := convs.ListByUser(ctx, 5, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(4), list[0].ID())
	assert.Equal(t, int64(2), list[1].ID())
}

func TestGormAuditRepository_AppendAndList(t *testing.T) {
	db := newTestDB(t)
	audits := NewGormAuditRepository(db)
	ctx := context.Background()

	rec, err := entity.NewAuditRecord(3, "Dr. Park", "admin", "revenue_report", map[string]interface{}{"startDate": "2025-01-01"})
	require.NoError(t, err)
	require.NoError(t, audits.Append(ctx, rec))
	assert.NotZero(t, rec.ID())

	list, err := audits.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "revenue_report", list[0].Tool())
	assert.Equal(t, "Dr. Park", list[0].UserName())
	assert.Equal(t, entity.AuditActionToolInvoked, list[0].Action())
	assert.Equal(t, "2025-01-01", list[0].Arguments()["startDate"])
}
