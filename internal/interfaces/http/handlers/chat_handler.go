package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smilecare/gateway/internal/application/usecase"
	"github.com/smilecare/gateway/internal/domain/service"
	"github.com/smilecare/gateway/internal/domain/valueobject"
	"go.uber.org/zap"
)

// ChatService 对话与会话管理接口, 由 usecase.ChatUseCase 实现
type ChatService interface {
	Chat(ctx context.Context, caller valueobject.Caller, message string, conversationID int64) *service.TurnResult
	GuestChat(ctx context.Context, message string) *service.TurnResult
	ListConversations(ctx context.Context, caller valueobject.Caller, limit int) ([]usecase.ConversationDTO, error)
	Messages(ctx context.Context, caller valueobject.Caller, conversationID int64) ([]usecase.MessageDTO, error)
	DeleteConversation(ctx context.Context, caller valueobject.Caller, conversationID int64) error
	CancelLastTurn(ctx context.Context, caller valueobject.Caller, conversationID int64) (*usecase.MessageDTO, error)
}

// ChatHandler 对话 API 处理器
type ChatHandler struct {
	chat   ChatService
	logger *zap.Logger
}

// NewChatHandler 创建对话处理器
func NewChatHandler(chat ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: logger,
	}
}

// ChatRequest 发送消息请求
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID int64  `json:"conversationId"`
}

// SendMessage 处理一轮对话
// POST /api/v1/chat
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	result := h.chat.Chat(c.Request.Context(), CallerFrom(c), req.Message, req.ConversationID)
	c.JSON(StatusFor(result.Code), result)
}

// SendGuestMessage 以访客身份处理一轮无状态对话, 忽略 Authorization 与 conversationId
// POST /api/v1/chat/guest
func (h *ChatHandler) SendGuestMessage(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	result := h.chat.GuestChat(c.Request.Context(), req.Message)
	c.JSON(StatusFor(result.Code), result)
}
