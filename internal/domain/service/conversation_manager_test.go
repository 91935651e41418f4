package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/smilecare/gateway/internal/domain/entity"
	domainErrors "github.com/smilecare/gateway/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreate_GuestIsNoOp(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)
	ctx := context.Background()

	conv, err := m.GetOrCreate(ctx, guest, 5)
	require.NoError(t, err)
	assert.Nil(t, conv)

	msg, err := m.Append(ctx, nil, entity.RoleUser, "hi", "")
	require.NoError(t, err)
	assert.Nil(t, msg)

	history, err := m.RecentMessages(ctx, nil, 20)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Zero(t, store.count())
}

func TestGetOrCreate_ReusesOwnedConversationOnly(t *testing.T) {
	m := newTestManager(newFakeStore())
	ctx := context.Background()

	first, err := m.GetOrCreate(ctx, dentist, 0)
	require.NoError(t, err)

	again, err := m.GetOrCreate(ctx, dentist, first.ID())
	require.NoError(t, err)
	assert.Equal(t, first.ID(), again.ID())

	// Another user asking for the same id gets a fresh conversation.
	other, err := m.GetOrCreate(ctx, admin, first.ID())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), other.ID())
	assert.Equal(t, admin.UserID(), other.UserID())

	missing, err := m.GetOrCreate(ctx, admin, 9999)
	require.NoError(t, err)
	assert.NotEqual(t, int64(9999), missing.ID())
}

func TestAppend_TitlesOnFirstUserMessageOnly(t *testing.T) {
	m := newTestManager(newFakeStore())
	ctx := context.Background()
	conv, _ := m.GetOrCreate(ctx, dentist, 0)

	_, err := m.Append(ctx, conv, entity.RoleUser, "show my patients", "")
	require.NoError(t, err)
	assert.Equal(t, "show my patients", conv.Title())

	_, err = m.Append(ctx, conv, entity.RoleUser, "and tomorrow's schedule", "")
	require.NoError(t, err)
	assert.Equal(t, "show my patients", conv.Title())
}

func TestRecentMessages_RoundTripPreservesOrderAndRoles(t *testing.T) {
	m := newTestManager(newFakeStore())
	ctx := context.Background()
	conv, _ := m.GetOrCreate(ctx, dentist, 0)

	_, _ = m.Append(ctx, conv, entity.RoleUser, "question", "")
	_, _ = m.Append(ctx, conv, entity.RoleAssistant, "answer", "get_my_schedule")

	history, err := m.RecentMessages(ctx, conv, 20)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, entity.RoleUser, history[0].Role())
	assert.Equal(t, "question", history[0].Content())
	assert.Equal(t, entity.RoleAssistant, history[1].Role())
	assert.Equal(t, "get_my_schedule", history[1].FunctionCalled())
}

func TestRecentMessages_WindowNeverExceedsLimit(t *testing.T) {
	m := newTestManager(newFakeStore())
	ctx := context.Background()
	conv, _ := m.GetOrCreate(ctx, dentist, 0)

	for i := 1; i <= 21; i++ {
		_, err := m.Append(ctx, conv, entity.RoleUser, fmt.Sprintf("message %d", i), "")
		require.NoError(t, err)
	}

	history, err := m.RecentMessages(ctx, conv, 100)
	require.NoError(t, err)
	require.Len(t, history, 20)
	assert.Equal(t, "message 2", history[0].Content())
	assert.Equal(t, "message 21", history[19].Content())
}

func TestCancelLastTurn_RemovesOnlyUnansweredUserMessage(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)
	ctx := context.Background()
	conv, _ := m.GetOrCreate(ctx, dentist, 0)

	_, _ = m.Append(ctx, conv, entity.RoleUser, "first", "")
	_, _ = m.Append(ctx, conv, entity.RoleAssistant, "reply", "")
	pending, _ := m.Append(ctx, conv, entity.RoleUser, "second", "")

	removed, err := m.CancelLastTurn(ctx, dentist.UserID(), conv.ID())
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, pending.ID(), removed.ID())

	msgs, _ := m.Messages(ctx, dentist.UserID(), conv.ID())
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content())
	assert.Equal(t, "reply", msgs[1].Content())

	// Nothing pending any more.
	removed, err = m.CancelLastTurn(ctx, dentist.UserID(), conv.ID())
	require.NoError(t, err)
	assert.Nil(t, removed)
	assert.Equal(t, 2, store.count())
}

func TestOwnership_ForeignConversationIsNotFound(t *testing.T) {
	m := newTestManager(newFakeStore())
	ctx := context.Background()
	conv, _ := m.GetOrCreate(ctx, dentist, 0)

	_, err := m.Messages(ctx, admin.UserID(), conv.ID())
	assert.True(t, domainErrors.IsNotFound(err))

	err = m.Delete(ctx, admin.UserID(), conv.ID())
	assert.True(t, domainErrors.IsNotFound(err))

	require.NoError(t, m.Delete(ctx, dentist.UserID(), conv.ID()))
	list, _ := m.List(ctx, dentist.UserID(), 20)
	assert.Empty(t, list)
}
