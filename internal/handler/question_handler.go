package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/marville001/eduaiapp/internal/middleware"
	"github.com/marville001/eduaiapp/internal/service"
	"github.com/marville001/eduaiapp/internal/service/question"
)

// QuestionHandler 提问处理器
type QuestionHandler struct {
	svc *service.Services
}

// NewQuestionHandler 创建提问处理器
func NewQuestionHandler(svc *service.Services) *QuestionHandler {
	return &QuestionHandler{svc: svc}
}

// getPagination 获取分页参数
func getPagination(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("size", "20"))
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return
}

// AskQuestion 提交提问
// POST /api/v1/questions (multipart/form-data: question, subject_id, files)
func (h *QuestionHandler) AskQuestion(c *gin.Context) {
	req := &question.AskQuestionRequest{
		UserID:    middleware.GetUserID(c),
		SubjectID: c.PostForm("subject_id"),
		Text:      c.PostForm("question"),
	}

	form, err := c.MultipartForm()
	if err == nil && form != nil {
		for _, fh := range form.File["files"] {
			f, err := fh.Open()
			if err != nil {
				BadRequest(c, "unable to read uploaded file: "+fh.Filename)
				return
			}
			defer f.Close()
			req.Files = append(req.Files, &question.FileUpload{
				FileName:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Reader:      f,
			})
		}
	}

	q, err := h.svc.Question.AskQuestion(c.Request.Context(), req)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, q)
}

// GetQuestion 查询单个提问
// GET /api/v1/questions/:id?include=messages
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id := c.Param("id")
	if c.Query("include") == "messages" {
		q, messages, err := h.svc.Question.GetQuestionWithMessages(c.Request.Context(), id)
		if err != nil {
			Error(c, err)
			return
		}
		Success(c, gin.H{"question": q, "messages": messages})
		return
	}

	q, err := h.svc.Question.GetQuestion(c.Request.Context(), id)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, q)
}

// GetMessages 查询提问的会话消息
// GET /api/v1/questions/:id/messages
func (h *QuestionHandler) GetMessages(c *gin.Context) {
	messages, err := h.svc.Conversation.GetThread(c.Request.Context(), c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, messages)
}

// ListMyQuestions 当前用户的提问列表
// GET /api/v1/questions?page=1&size=20
func (h *QuestionHandler) ListMyQuestions(c *gin.Context) {
	page, size := getPagination(c)
	questions, total, err := h.svc.Question.GetUserQuestions(c.Request.Context(), middleware.GetUserID(c), page, size)
	if err != nil {
		Error(c, err)
		return
	}
	SuccessWithPagination(c, questions, total, page, size)
}

// GetStats 当前用户的提问统计
// GET /api/v1/questions/stats
func (h *QuestionHandler) GetStats(c *gin.Context) {
	stats, err := h.svc.Question.GetQuestionStats(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, stats)
}

// DeleteQuestion 删除提问
// DELETE /api/v1/questions/:id
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	if err := h.svc.Question.DeleteQuestion(c.Request.Context(), c.Param("id"), middleware.GetUserID(c)); err != nil {
		Error(c, err)
		return
	}
	NoContent(c)
}

// GetUsage 当前用户的用量与额度
// GET /api/v1/usage
func (h *QuestionHandler) GetUsage(c *gin.Context) {
	record, plan, err := h.svc.Usage.CurrentUsage(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"usage": record, "plan": plan})
}

// GetUsageHistory 历史周期的用量记录
// GET /api/v1/usage/history
func (h *QuestionHandler) GetUsageHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "12"))
	records, err := h.svc.Usage.History(c.Request.Context(), middleware.GetUserID(c), limit)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"records": records})
}
