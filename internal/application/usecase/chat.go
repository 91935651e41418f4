package usecase

import (
	"context"
	"time"

	"github.com/smilecare/gateway/internal/domain/entity"
	"github.com/smilecare/gateway/internal/domain/service"
	"github.com/smilecare/gateway/internal/domain/valueobject"
	domainErrors "github.com/smilecare/gateway/pkg/errors"
	"go.uber.org/zap"
)

// TurnHandler runs one chat turn. Implemented by service.Orchestrator.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req service.TurnRequest) *service.TurnResult
	// CancelLastTurn 在会话轮次锁内撤回未回复的用户消息
	CancelLastTurn(ctx context.Context, userID, conversationID int64) (*entity.Message, error)
}

// ConversationDTO 会话列表项
type ConversationDTO struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MessageDTO 会话消息
type MessageDTO struct {
	ID             int64     `json:"id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	FunctionCalled string    `json:"functionCalled,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ChatUseCase is the application entry point shared by the HTTP API and the CLI.
// Chat turns go to the orchestrator; conversation management goes to the
// context manager with ownership enforced per caller.
type ChatUseCase struct {
	turns         TurnHandler
	conversations *service.ConversationManager
	listLimit     int
	logger        *zap.Logger
}

// NewChatUseCase creates the chat use-case. listLimit bounds conversation listings.
func NewChatUseCase(
	turns TurnHandler,
	conversations *service.ConversationManager,
	listLimit int,
	logger *zap.Logger,
) *ChatUseCase {
	if listLimit <= 0 || listLimit > 50 {
		listLimit = 20
	}
	return &ChatUseCase{
		turns:         turns,
		conversations: conversations,
		listLimit:     listLimit,
		logger:        logger.With(zap.String("component", "chat_usecase")),
	}
}

// Chat 处理一轮对话. 访客的会话 ID 被忽略, 结果中也不会返回。
func (uc *ChatUseCase) Chat(ctx context.Context, caller valueobject.Caller, message string, conversationID int64) *service.TurnResult {
	if caller.IsGuest() {
		conversationID = 0
	}
	result := uc.turns.HandleTurn(ctx, service.TurnRequest{
		Caller:         caller,
		Message:        message,
		ConversationID: conversationID,
	})
	if caller.IsGuest() {
		result.ConversationID = 0
	}
	return result
}

// GuestChat 强制以访客身份处理一轮无状态对话
func (uc *ChatUseCase) GuestChat(ctx context.Context, message string) *service.TurnResult {
	return uc.Chat(ctx, valueobject.Guest(), message, 0)
}

// ListConversations returns the caller's conversations, most recently updated first.
// limit <= 0 or above the configured bound falls back to the bound.
func (uc *ChatUseCase) ListConversations(ctx context.Context, caller valueobject.Caller, limit int) ([]ConversationDTO, error) {
	if err := requireUser(caller); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > uc.listLimit {
		limit = uc.listLimit
	}

	convs, err := uc.conversations.List(ctx, caller.UserID(), limit)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationDTO, 0, len(convs))
	for _, c := range convs {
		out = append(out, ConversationDTO{
			ID:        c.ID(),
			Title:     c.Title(),
			CreatedAt: c.CreatedAt(),
			UpdatedAt: c.UpdatedAt(),
		})
	}
	return out, nil
}

// Messages returns the ordered messages of a conversation the caller owns.
func (uc *ChatUseCase) Messages(ctx context.Context, caller valueobject.Caller, conversationID int64) ([]MessageDTO, error) {
	if err := requireUser(caller); err != nil {
		return nil, err
	}
	msgs, err := uc.conversations.Messages(ctx, caller.UserID(), conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageDTO(m))
	}
	return out, nil
}

// DeleteConversation removes a conversation the caller owns, with its messages.
func (uc *ChatUseCase) DeleteConversation(ctx context.Context, caller valueobject.Caller, conversationID int64) error {
	if err := requireUser(caller); err != nil {
		return err
	}
	if err := uc.conversations.Delete(ctx, caller.UserID(), conversationID); err != nil {
		return err
	}
	uc.logger.Info("Conversation deleted",
		zap.Int64("user_id", caller.UserID()),
		zap.Int64("conversation_id", conversationID),
	)
	return nil
}

// CancelLastTurn removes the trailing unanswered user message, if any.
// A nil DTO means there was nothing to cancel.
func (uc *ChatUseCase) CancelLastTurn(ctx context.Context, caller valueobject.Caller, conversationID int64) (*MessageDTO, error) {
	if err := requireUser(caller); err != nil {
		return nil, err
	}
	removed, err := uc.turns.CancelLastTurn(ctx, caller.UserID(), conversationID)
	if err != nil || removed == nil {
		return nil, err
	}
	dto := toMessageDTO(removed)
	return &dto, nil
}

func requireUser(caller valueobject.Caller) error {
	if caller.IsGuest() {
		return domainErrors.NewUnauthorizedError("authentication required")
	}
	return nil
}

func toMessageDTO(m *entity.Message) MessageDTO {
	return MessageDTO{
		ID:             m.ID(),
		Role:           string(m.Role()),
		Content:        m.Content(),
		FunctionCalled: m.FunctionCalled(),
		CreatedAt:      m.CreatedAt(),
	}
}
