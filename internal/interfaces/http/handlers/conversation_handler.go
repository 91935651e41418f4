package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	domainErrors "github.com/smilecare/gateway/pkg/errors"
	"go.uber.org/zap"
)

// ConversationHandler 会话管理 API 处理器, 仅限已认证用户
type ConversationHandler struct {
	chat   ChatService
	logger *zap.Logger
}

// NewConversationHandler 创建会话管理处理器
func NewConversationHandler(chat ChatService, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{
		chat:   chat,
		logger: logger,
	}
}

// List 列出会话, 最近更新在前
// GET /api/v1/conversations?limit=
func (h *ConversationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	convs, err := h.chat.ListConversations(c.Request.Context(), CallerFrom(c), limit)
	if err != nil {
		h.fail(c, "list conversations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversations": convs,
		"count":         len(convs),
	})
}

// Messages 获取会话消息
// GET /api/v1/conversations/:id/messages
func (h *ConversationHandler) Messages(c *gin.Context) {
	id, ok := conversationParam(c)
	if !ok {
		return
	}

	msgs, err := h.chat.Messages(c.Request.Context(), CallerFrom(c), id)
	if err != nil {
		h.fail(c, "get messages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversationId": id,
		"messages":       msgs,
		"count":          len(msgs),
	})
}

// Delete 删除会话及其消息
// DELETE /api/v1/conversations/:id
func (h *ConversationHandler) Delete(c *gin.Context) {
	id, ok := conversationParam(c)
	if !ok {
		return
	}

	if err := h.chat.DeleteConversation(c.Request.Context(), CallerFrom(c), id); err != nil {
		h.fail(c, "delete conversation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CancelLastTurn 撤销最后一条未回复的用户消息
// POST /api/v1/conversations/:id/cancel
func (h *ConversationHandler) CancelLastTurn(c *gin.Context) {
	id, ok := conversationParam(c)
	if !ok {
		return
	}

	removed, err := h.chat.CancelLastTurn(c.Request.Context(), CallerFrom(c), id)
	if err != nil {
		h.fail(c, "cancel last turn", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"cancelled": removed != nil,
		"message":   removed,
	})
}

func (h *ConversationHandler) fail(c *gin.Context, op string, err error) {
	if StatusFor(domainErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.Error("Conversation API failed", zap.String("op", op), zap.Error(err))
	}
	respondError(c, err)
}

func conversationParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid conversation id"})
		return 0, false
	}
	return id, true
}
