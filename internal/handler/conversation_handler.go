package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/marville001/eduaiapp/internal/middleware"
	"github.com/marville001/eduaiapp/internal/service"
)

// ConversationHandler 会话处理器
type ConversationHandler struct {
	svc *service.Services
}

// NewConversationHandler 创建会话处理器
func NewConversationHandler(svc *service.Services) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// SendFollowUpRequest 追问请求
type SendFollowUpRequest struct {
	Message string `json:"message" binding:"required"`
}

// SendFollowUp 发送追问
// POST /api/v1/questions/:id/messages
func (h *ConversationHandler) SendFollowUp(c *gin.Context) {
	var req SendFollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "message is required")
		return
	}

	msg, err := h.svc.Conversation.SendFollowUp(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), req.Message)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, msg)
}
