package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/marville001/eduaiapp/internal/service"
)

// SubjectHandler 学科处理器
type SubjectHandler struct {
	svc *service.Services
}

// NewSubjectHandler 创建学科处理器
func NewSubjectHandler(svc *service.Services) *SubjectHandler {
	return &SubjectHandler{svc: svc}
}

// ListSubjects 启用的学科列表
// GET /api/v1/subjects
func (h *SubjectHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.svc.Subject.List()
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, subjects)
}

// GetSubject 学科详情
// GET /api/v1/subjects/:id
func (h *SubjectHandler) GetSubject(c *gin.Context) {
	subj, err := h.svc.Subject.Get(c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, subj)
}
