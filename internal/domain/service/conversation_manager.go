package service

import (
	"context"

	"github.com/smilecare/gateway/internal/domain/entity"
	"github.com/smilecare/gateway/internal/domain/repository"
	"github.com/smilecare/gateway/internal/domain/valueobject"
	domainErrors "github.com/smilecare/gateway/pkg/errors"
	"go.uber.org/zap"
)

// ConversationManagerConfig bounds history and titles.
type ConversationManagerConfig struct {
	HistoryLimit  int // Messages sent to the model, default 20
	TitleMaxRunes int // Auto-generated title length, default 50
}

// ConversationManager loads and stores the bounded context of a conversation.
// Every method is a no-op for guests, whose turns are stateless.
type ConversationManager struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	config        ConversationManagerConfig
	logger        *zap.Logger
}

// NewConversationManager creates a conversation manager.
func NewConversationManager(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	config ConversationManagerConfig,
	logger *zap.Logger,
) *ConversationManager {
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = 20
	}
	if config.TitleMaxRunes <= 0 {
		config.TitleMaxRunes = 50
	}
	return &ConversationManager{
		conversations: conversations,
		messages:      messages,
		config:        config,
		logger:        logger.With(zap.String("component", "conversation_manager")),
	}
}

// GetOrCreate returns the caller's conversation, or a new untitled one when
// conversationID is zero, unknown, or owned by someone else.
func (m *ConversationManager) GetOrCreate(ctx context.Context, caller valueobject.Caller, conversationID int64) (*entity.Conversation, error) {
	if caller.IsGuest() {
		return nil, nil
	}

	if conversationID > 0 {
		conv, err := m.conversations.FindByID(ctx, conversationID)
		switch {
		case err == nil && conv.OwnedBy(caller.UserID()):
			return conv, nil
		case err != nil && !domainErrors.IsNotFound(err):
			return nil, err
		}
		m.logger.Debug("Conversation not usable by caller, starting a new one",
			zap.Int64("requested_id", conversationID),
			zap.Int64("user_id", caller.UserID()),
		)
	}

	conv, err := entity.NewConversation(caller.UserID())
	if err != nil {
		return nil, domainErrors.NewInvalidInputError(err.Error())
	}
	if err := m.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}
	m.logger.Info("Conversation created",
		zap.Int64("conversation_id", conv.ID()),
		zap.Int64("user_id", caller.UserID()),
	)
	return conv, nil
}

// Append stores a message and touches the conversation. The first user
// message of an untitled conversation also sets its title.
func (m *ConversationManager) Append(ctx context.Context, conv *entity.Conversation, role entity.MessageRole, text, functionCalled string) (*entity.Message, error) {
	if conv == nil {
		return nil, nil
	}

	msg, err := entity.NewMessage(conv.ID(), role, text, functionCalled)
	if err != nil {
		return nil, domainErrors.NewInvalidInputError(err.Error())
	}
	if err := m.messages.Save(ctx, msg); err != nil {
		return nil, err
	}

	if role == entity.RoleUser && !conv.HasTitle() {
		count, err := m.messages.CountByRole(ctx, conv.ID(), entity.RoleUser)
		if err != nil {
			return nil, err
		}
		if count == 1 {
			conv.SetTitle(entity.DeriveTitle(text, m.config.TitleMaxRunes))
		}
	}

	conv.Touch()
	if err := m.conversations.Update(ctx, conv); err != nil {
		return nil, err
	}
	return msg, nil
}

// RecentMessages returns at most limit messages in creation order, never
// more than the configured history window.
func (m *ConversationManager) RecentMessages(ctx context.Context, conv *entity.Conversation, limit int) ([]*entity.Message, error) {
	if conv == nil {
		return []*entity.Message{}, nil
	}
	if limit <= 0 || limit > m.config.HistoryLimit {
		limit = m.config.HistoryLimit
	}
	return m.messages.FindRecent(ctx, conv.ID(), limit)
}

// Remove deletes one message. Used to undo the user message of an aborted turn.
func (m *ConversationManager) Remove(ctx context.Context, msg *entity.Message) error {
	if msg == nil {
		return nil
	}
	return m.messages.Delete(ctx, msg.ID())
}

// Owned returns the conversation if userID owns it, NOT_FOUND otherwise.
func (m *ConversationManager) Owned(ctx context.Context, userID, conversationID int64) (*entity.Conversation, error) {
	conv, err := m.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.OwnedBy(userID) {
		return nil, domainErrors.NewNotFoundError("conversation not found")
	}
	return conv, nil
}

// List returns the user's conversations, most recently updated first.
func (m *ConversationManager) List(ctx context.Context, userID int64, limit int) ([]*entity.Conversation, error) {
	return m.conversations.ListByUser(ctx, userID, limit)
}

// Messages returns every message of an owned conversation in order.
func (m *ConversationManager) Messages(ctx context.Context, userID, conversationID int64) ([]*entity.Message, error) {
	if _, err := m.Owned(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return m.messages.FindByConversation(ctx, conversationID)
}

// Delete removes an owned conversation and its messages.
func (m *ConversationManager) Delete(ctx context.Context, userID, conversationID int64) error {
	if _, err := m.Owned(ctx, userID, conversationID); err != nil {
		return err
	}
	return m.conversations.Delete(ctx, conversationID)
}

// CancelLastTurn removes the most recent user message if it is still
// unanswered. It returns the removed message, or nil if there was none.
func (m *ConversationManager) CancelLastTurn(ctx context.Context, userID, conversationID int64) (*entity.Message, error) {
	if _, err := m.Owned(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	last, err := m.messages.FindRecent(ctx, conversationID, 1)
	if err != nil {
		return nil, err
	}
	if len(last) == 0 || last[0].Role() != entity.RoleUser {
		return nil, nil
	}
	if err := m.messages.Delete(ctx, last[0].ID()); err != nil {
		return nil, err
	}

	m.logger.Info("Cancelled last turn",
		zap.Int64("conversation_id", conversationID),
		zap.Int64("message_id", last[0].ID()),
	)
	return last[0], nil
}
