// Package handler HTTP 处理器
package handler

import (
	"github.com/marville001/eduaiapp/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	Question     *QuestionHandler
	Conversation *ConversationHandler
	Subject      *SubjectHandler
	Admin        *AdminHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Question:     NewQuestionHandler(svc),
		Conversation: NewConversationHandler(svc),
		Subject:      NewSubjectHandler(svc),
		Admin:        NewAdminHandler(svc),
	}
}
