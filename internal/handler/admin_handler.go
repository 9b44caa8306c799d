package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/marville001/eduaiapp/internal/service"
	"github.com/marville001/eduaiapp/internal/service/question"
)

// AdminHandler 管理端处理器
type AdminHandler struct {
	svc *service.Services
}

// NewAdminHandler 创建管理端处理器
func NewAdminHandler(svc *service.Services) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// ListQuestions 全量提问列表，支持状态过滤与文本搜索
// GET /api/v1/admin/questions?status=failed&search=algebra&page=1&size=20
func (h *AdminHandler) ListQuestions(c *gin.Context) {
	page, size := getPagination(c)
	questions, total, err := h.svc.Question.AdminListQuestions(c.Request.Context(), &question.AdminListRequest{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Page:   page,
		Limit:  size,
	})
	if err != nil {
		Error(c, err)
		return
	}
	SuccessWithPagination(c, questions, total, page, size)
}

// GetQuestion 提问详情，包含软删除记录与全部消息
// GET /api/v1/admin/questions/:id
func (h *AdminHandler) GetQuestion(c *gin.Context) {
	q, messages, err := h.svc.Question.AdminGetQuestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"question": q, "messages": messages})
}
