// Package question 提问准入与读取（Query Gateway）
package question

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marville001/eduaiapp/internal/config"
	"github.com/marville001/eduaiapp/internal/model"
	"github.com/marville001/eduaiapp/internal/queue"
	"github.com/marville001/eduaiapp/internal/repository"
	"github.com/marville001/eduaiapp/internal/service/file"
	"github.com/marville001/eduaiapp/internal/service/usage"
)

// Enqueuer 作业投递接口
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// Service 提问服务
type Service struct {
	repo    *repository.Repositories
	ledger  *usage.Ledger
	storage file.Storage
	queue   Enqueuer
	limits  config.LimitsConfig
}

// NewService 创建提问服务
func NewService(repo *repository.Repositories, ledger *usage.Ledger, storage file.Storage, q Enqueuer, limits config.LimitsConfig) *Service {
	return &Service{
		repo:    repo,
		ledger:  ledger,
		storage: storage,
		queue:   q,
		limits:  limits,
	}
}

// FileUpload 待保存的上传文件
type FileUpload struct {
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// AskQuestionRequest 提问请求
type AskQuestionRequest struct {
	UserID    string
	SubjectID string
	Text      string
	Files     []*FileUpload
}

// AskQuestion 受理提问
// 校验、预留额度、保存附件、落库并投递作业后立即返回，从不等待推理
func (s *Service) AskQuestion(ctx context.Context, req *AskQuestionRequest) (*model.Question, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyQuestion
	}
	if len(text) > s.limits.MaxQuestionLength {
		return nil, ErrQuestionTooLong
	}

	if _, err := s.repo.Subject.GetByID(req.SubjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("failed to load subject: %w", err)
	}

	for _, f := range req.Files {
		if err := s.validateFile(f); err != nil {
			return nil, err
		}
	}

	if err := s.ledger.Reserve(ctx, req.UserID, usage.KindQuestion); err != nil {
		return nil, err
	}

	reservedUploads := 0
	for range req.Files {
		if err := s.ledger.Reserve(ctx, req.UserID, usage.KindFileUpload); err != nil {
			s.releaseAdmission(ctx, req.UserID, reservedUploads)
			return nil, err
		}
		reservedUploads++
	}

	attachments, err := s.saveAttachments(ctx, req)
	if err != nil {
		s.releaseAdmission(ctx, req.UserID, reservedUploads)
		return nil, err
	}

	q := &model.Question{
		QuestionID:   uuid.New().String(),
		SubjectID:    req.SubjectID,
		UserID:       req.UserID,
		QuestionText: text,
		Status:       model.QuestionStatusPending,
		Attachments:  attachments,
	}
	if err := s.repo.Question.Create(q); err != nil {
		s.releaseAdmission(ctx, req.UserID, reservedUploads)
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	job := queue.Job{
		JobID:      uuid.New().String(),
		QuestionID: q.QuestionID,
		Kind:       queue.KindInitialQuestion,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		// 提问已落库但无法进入队列，直接转入 failed 终态
		if _, ferr := s.repo.Question.MarkFailed(q.QuestionID, "question could not be queued for processing", 0); ferr != nil {
			log.Printf("question: mark failed after enqueue error: %v", ferr)
		}
		return nil, fmt.Errorf("failed to enqueue question: %w", err)
	}

	s.fillAttachmentURLs(q)
	return q, nil
}

// GetQuestion 获取提问详情
func (s *Service) GetQuestion(ctx context.Context, questionID string) (*model.Question, error) {
	q, err := s.repo.Question.GetByQuestionID(questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.fillAttachmentURLs(q)
	return q, nil
}

// GetQuestionWithMessages 获取提问及其追问消息，消息按时间升序
func (s *Service) GetQuestionWithMessages(ctx context.Context, questionID string) (*model.Question, []*model.ChatMessage, error) {
	q, err := s.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.repo.Chat.GetMessagesByQuestionID(questionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return q, messages, nil
}

// GetUserQuestions 获取用户自己的提问列表
func (s *Service) GetUserQuestions(ctx context.Context, userID string, page, size int) ([]*model.Question, int64, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	questions, total, err := s.repo.Question.ListByUser(userID, (page-1)*size, size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list questions: %w", err)
	}
	for _, q := range questions {
		s.fillAttachmentURLs(q)
	}
	return questions, total, nil
}

// GetQuestionStats 用户提问统计
func (s *Service) GetQuestionStats(ctx context.Context, userID string) (*model.QuestionStats, error) {
	return s.repo.Question.CountStatsByUser(userID)
}

// DeleteQuestion 软删除用户自己的提问
func (s *Service) DeleteQuestion(ctx context.Context, questionID, userID string) error {
	q, err := s.GetQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if q.UserID != "" && q.UserID != userID {
		return ErrForbidden
	}
	return s.repo.Question.SoftDelete(questionID)
}

// AdminListRequest 管理端列表过滤条件
type AdminListRequest struct {
	Status string
	Search string
	Page   int
	Limit  int
}

// AdminListQuestions 管理端列表，不限所有者
func (s *Service) AdminListQuestions(ctx context.Context, req *AdminListRequest) ([]*model.Question, int64, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	return s.repo.Question.AdminList(req.Status, req.Search, (req.Page-1)*req.Limit, req.Limit)
}

// AdminGetQuestion 管理端详情，软删除的记录也可见
func (s *Service) AdminGetQuestion(ctx context.Context, questionID string) (*model.Question, []*model.ChatMessage, error) {
	q, err := s.repo.Question.GetByQuestionIDUnscoped(questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	s.fillAttachmentURLs(q)
	messages, err := s.repo.Chat.GetMessagesByQuestionID(questionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return q, messages, nil
}

func (s *Service) validateFile(f *FileUpload) error {
	if f.Size > s.limits.MaxFileSize {
		return &FileRejectedError{FileName: f.FileName, Reason: "file too large"}
	}
	allowed := false
	for _, t := range s.limits.AllowedFileTypes {
		if strings.EqualFold(t, f.ContentType) {
			allowed = true
			break
		}
	}
	if !allowed {
		return &FileRejectedError{FileName: f.FileName, Reason: fmt.Sprintf("content type %s not allowed", f.ContentType)}
	}
	return nil
}

func (s *Service) saveAttachments(ctx context.Context, req *AskQuestionRequest) ([]model.QuestionAttachment, error) {
	attachments := make([]model.QuestionAttachment, 0, len(req.Files))
	for i, f := range req.Files {
		accessKey, err := s.storage.Save(ctx, &file.SaveRequest{
			FileName:    f.FileName,
			ContentType: f.ContentType,
			Size:        f.Size,
			Reader:      f.Reader,
			UserID:      req.UserID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to store attachment %s: %w", f.FileName, err)
		}
		attachments = append(attachments, model.QuestionAttachment{
			ID:          uuid.New().String(),
			Position:    i,
			FileName:    f.FileName,
			ContentType: f.ContentType,
			FileSize:    f.Size,
			AccessKey:   accessKey,
		})
	}
	return attachments, nil
}

// releaseAdmission 回退本次准入已预留的额度
func (s *Service) releaseAdmission(ctx context.Context, userID string, uploads int) {
	s.ledger.Release(ctx, userID, usage.KindQuestion)
	for i := 0; i < uploads; i++ {
		s.ledger.Release(ctx, userID, usage.KindFileUpload)
	}
}

func (s *Service) fillAttachmentURLs(q *model.Question) {
	for i := range q.Attachments {
		q.Attachments[i].URL = s.storage.GetURL(q.Attachments[i].AccessKey)
	}
}
