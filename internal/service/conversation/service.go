// Package conversation 已回答提问下的追问对话
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marville001/eduaiapp/internal/config"
	"github.com/marville001/eduaiapp/internal/model"
	"github.com/marville001/eduaiapp/internal/queue"
	"github.com/marville001/eduaiapp/internal/repository"
	"github.com/marville001/eduaiapp/internal/service/usage"
)

// 追问阶段的业务错误
var (
	ErrNotFound             = errors.New("question not found")
	ErrEmptyMessage         = errors.New("message content is required")
	ErrMessageTooLong       = errors.New("message content exceeds maximum length")
	ErrConversationNotReady = errors.New("question is not answered yet")
	ErrConversationBusy     = errors.New("a follow-up is already being processed")
)

// Enqueuer 作业投递接口
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// Service 追问服务
type Service struct {
	repo   *repository.Repositories
	ledger *usage.Ledger
	locker *Locker
	queue  Enqueuer
	limits config.LimitsConfig
}

// NewService 创建追问服务
func NewService(repo *repository.Repositories, ledger *usage.Ledger, locker *Locker, q Enqueuer, limits config.LimitsConfig) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		locker: locker,
		queue:  q,
		limits: limits,
	}
}

// SendFollowUp 提交追问
// 仅接受 status=answered 的提问；同一提问同时只允许一条追问在途，
// 由忙锁保证消息严格交替，用户消息立即落库、回答异步生成
func (s *Service) SendFollowUp(ctx context.Context, questionID, userID, content string) (*model.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if len(content) > s.limits.MaxQuestionLength {
		return nil, ErrMessageTooLong
	}

	q, err := s.repo.Question.GetByQuestionID(questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if q.UserID != "" && q.UserID != userID {
		return nil, ErrNotFound
	}
	if q.Status != model.QuestionStatusAnswered {
		return nil, ErrConversationNotReady
	}

	acquired, err := s.locker.Acquire(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire conversation lock: %w", err)
	}
	if !acquired {
		return nil, ErrConversationBusy
	}

	if err := s.ledger.Reserve(ctx, userID, usage.KindChat); err != nil {
		s.unlock(ctx, questionID)
		return nil, err
	}

	msg := &model.ChatMessage{
		ID:         uuid.New().String(),
		QuestionID: questionID,
		Role:       model.RoleUser,
		Content:    content,
	}
	if err := s.repo.Chat.CreateMessage(msg); err != nil {
		s.ledger.Release(ctx, userID, usage.KindChat)
		s.unlock(ctx, questionID)
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	job := queue.Job{
		JobID:      uuid.New().String(),
		QuestionID: questionID,
		Kind:       queue.KindFollowUp,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		// 回答不会生成：删除已落库的用户消息保持角色交替，归还额度并解锁
		if derr := s.repo.Chat.DeleteMessage(msg.ID); derr != nil {
			log.Printf("conversation: compensate message %s: %v", msg.ID, derr)
		}
		s.ledger.Release(ctx, userID, usage.KindChat)
		s.unlock(ctx, questionID)
		return nil, fmt.Errorf("failed to enqueue follow-up: %w", err)
	}

	return msg, nil
}

// GetThread 获取提问下的追问消息，按时间升序
func (s *Service) GetThread(ctx context.Context, questionID string) ([]*model.ChatMessage, error) {
	return s.repo.Chat.GetMessagesByQuestionID(questionID)
}

func (s *Service) unlock(ctx context.Context, questionID string) {
	if err := s.locker.Release(ctx, questionID); err != nil {
		log.Printf("conversation: release lock for %s: %v", questionID, err)
	}
}
