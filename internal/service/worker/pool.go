// Package worker 回答工作池
// 消费作业队列，调用推理供应商并执行提问的终态转移
// 队列是至少一次投递，所有处理路径都必须可安全重放
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marville001/eduaiapp/internal/config"
	"github.com/marville001/eduaiapp/internal/model"
	"github.com/marville001/eduaiapp/internal/queue"
	"github.com/marville001/eduaiapp/internal/repository"
	"github.com/marville001/eduaiapp/internal/service/conversation"
	"github.com/marville001/eduaiapp/internal/service/inference"
	"github.com/marville001/eduaiapp/internal/service/usage"
)

const systemPrompt = "You are a patient tutor on an education platform. " +
	"Answer the student's question clearly and accurately, step by step where it helps understanding."

// 一次成功回答或追问消耗的基础额度，按套餐倍率折算
const baseCreditsPerAnswer = 1.0

// Runner 作业消费入口
type Runner interface {
	Start(ctx context.Context, concurrency int, handler queue.Handler)
}

// Pool 回答工作池
type Pool struct {
	repo     *repository.Repositories
	ledger   *usage.Ledger
	locker   *conversation.Locker
	provider inference.Provider
	runner   Runner
	cfg      config.WorkerConfig
}

// NewPool 创建工作池
func NewPool(repo *repository.Repositories, ledger *usage.Ledger, locker *conversation.Locker, provider inference.Provider, runner Runner, cfg config.WorkerConfig) *Pool {
	return &Pool{
		repo:     repo,
		ledger:   ledger,
		locker:   locker,
		provider: provider,
		runner:   runner,
		cfg:      cfg,
	}
}

// Start 启动消费
func (p *Pool) Start(ctx context.Context) {
	p.runner.Start(ctx, p.cfg.Concurrency, p.handle)
}

// handle 处理单个作业；返回错误表示基础设施故障，作业会被重投
func (p *Pool) handle(ctx context.Context, job queue.Job) error {
	switch job.Kind {
	case queue.KindFollowUp:
		return p.handleFollowUp(ctx, job)
	default:
		return p.handleInitial(ctx, job)
	}
}

// handleInitial 回答首次提问
func (p *Pool) handleInitial(ctx context.Context, job queue.Job) error {
	q, err := p.repo.Question.GetByQuestionID(job.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("worker: question %s not found, dropping job %s", job.QuestionID, job.JobID)
			return nil
		}
		return fmt.Errorf("load question: %w", err)
	}
	if q.IsTerminal() {
		// 重复投递，终态转移已经发生过；回答成功的路径仍要补提交额度，
		// 上一次投递可能在提交前中断，提交按作业 ID 去重不会重复计费
		log.Printf("worker: question %s already %s, skipping job %s", q.QuestionID, q.Status, job.JobID)
		if q.Status == model.QuestionStatusAnswered {
			return p.ledger.Commit(ctx, q.UserID, job.JobID, usage.KindQuestion, baseCreditsPerAnswer)
		}
		return nil
	}

	result, elapsed, err := p.generateWithRetry(ctx, p.buildInitialMessages(q))
	if err != nil {
		if ctx.Err() != nil {
			// 停机取消不算失败，不做终态转移，作业等待重新认领
			return ctx.Err()
		}
		ok, ferr := p.repo.Question.MarkFailed(q.QuestionID, failureMessage(err, p.cfg.MaxAttempts), elapsed.Milliseconds())
		if ferr != nil {
			return fmt.Errorf("mark failed: %w", ferr)
		}
		if !ok {
			log.Printf("worker: question %s no longer pending, failure transition skipped", q.QuestionID)
		}
		return nil
	}

	ok, err := p.repo.Question.MarkAnswered(q.QuestionID, result.Text, result.TokenUsage, elapsed.Milliseconds(), p.provider.ModelID())
	if err != nil {
		return fmt.Errorf("mark answered: %w", err)
	}
	if !ok {
		log.Printf("worker: question %s no longer pending, answer transition skipped", q.QuestionID)
		return nil
	}

	// 确认之前提交额度；提交按作业 ID 去重，重投时会重试而不会重复计费
	if err := p.ledger.Commit(ctx, q.UserID, job.JobID, usage.KindQuestion, baseCreditsPerAnswer); err != nil {
		return err
	}
	return nil
}

// handleFollowUp 回答追问
func (p *Pool) handleFollowUp(ctx context.Context, job queue.Job) error {
	q, err := p.repo.Question.GetByQuestionID(job.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("worker: question %s not found, dropping job %s", job.QuestionID, job.JobID)
			p.unlock(ctx, job.QuestionID)
			return nil
		}
		return fmt.Errorf("load question: %w", err)
	}
	if q.Status != model.QuestionStatusAnswered {
		log.Printf("worker: question %s is %s, follow-up job %s dropped", q.QuestionID, q.Status, job.JobID)
		p.unlock(ctx, job.QuestionID)
		return nil
	}

	history, err := p.repo.Chat.GetMessagesByQuestionID(q.QuestionID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if len(history) == 0 || history[len(history)-1].Role != model.RoleUser {
		// 没有待回答的用户消息：重复投递，回答已写入
		// 上一次投递可能在提交额度前中断，这里补提交后再解锁
		log.Printf("worker: no pending user message for %s, job %s is a replay", q.QuestionID, job.JobID)
		if err := p.ledger.Commit(ctx, q.UserID, job.JobID, usage.KindChat, baseCreditsPerAnswer); err != nil {
			return err
		}
		p.unlock(ctx, job.QuestionID)
		return nil
	}

	result, _, err := p.generateWithRetry(ctx, p.buildFollowUpMessages(q, history))
	if err != nil {
		if ctx.Err() != nil {
			// 停机取消：锁保留给重新认领的作业，TTL 兜底
			return ctx.Err()
		}
		// 追问失败不改变提问的终态，写入一条失败提示保持角色交替并解锁
		notice := &model.ChatMessage{
			ID:         uuid.New().String(),
			QuestionID: q.QuestionID,
			Role:       model.RoleAssistant,
			Content:    "Sorry, this follow-up could not be answered: " + failureMessage(err, p.cfg.MaxAttempts) + " Please try again.",
		}
		if cerr := p.repo.Chat.CreateMessage(notice); cerr != nil {
			return fmt.Errorf("store failure notice: %w", cerr)
		}
		p.unlock(ctx, q.QuestionID)
		return nil
	}

	reply := &model.ChatMessage{
		ID:         uuid.New().String(),
		QuestionID: q.QuestionID,
		Role:       model.RoleAssistant,
		Content:    result.Text,
		TokenUsed:  result.TokenUsage,
	}
	if err := p.repo.Chat.CreateMessage(reply); err != nil {
		return fmt.Errorf("store reply: %w", err)
	}
	p.unlock(ctx, q.QuestionID)

	if err := p.ledger.Commit(ctx, q.UserID, job.JobID, usage.KindChat, baseCreditsPerAnswer); err != nil {
		return err
	}
	return nil
}

// Discard 死信处理
// 作业超过最大投递次数被队列丢弃时执行补偿，避免提问永远停在 pending
func (p *Pool) Discard(ctx context.Context, job queue.Job) {
	switch job.Kind {
	case queue.KindFollowUp:
		last, err := p.repo.Chat.GetLastMessage(job.QuestionID)
		if err == nil && last.Role == model.RoleUser {
			notice := &model.ChatMessage{
				ID:         uuid.New().String(),
				QuestionID: job.QuestionID,
				Role:       model.RoleAssistant,
				Content:    "Sorry, this follow-up could not be answered. Please try again.",
			}
			if cerr := p.repo.Chat.CreateMessage(notice); cerr != nil {
				log.Printf("worker: discard notice for %s: %v", job.QuestionID, cerr)
			}
		}
		p.unlock(ctx, job.QuestionID)
	default:
		ok, err := p.repo.Question.MarkFailed(job.QuestionID, "The question could not be processed.", 0)
		if err != nil {
			log.Printf("worker: discard job %s: %v", job.JobID, err)
		} else if !ok {
			log.Printf("worker: discard job %s: question %s not pending", job.JobID, job.QuestionID)
		}
	}
}

// generateWithRetry 带超时与指数退避的推理调用
// 返回最后一次尝试的耗时，无论成败
func (p *Pool) generateWithRetry(ctx context.Context, messages []*schema.Message) (*inference.Result, time.Duration, error) {
	maxAttempts := p.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	backoff := p.cfg.BackoffInitial()

	var lastErr error
	var lastElapsed time.Duration
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout())
		result, err := p.provider.Generate(attemptCtx, messages)
		cancel()
		lastElapsed = time.Since(start)

		if err == nil {
			return result, result.Duration, nil
		}
		lastErr = err
		log.Printf("worker: inference attempt %d/%d failed: %v", attempt, maxAttempts, err)

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, lastElapsed, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, lastElapsed, lastErr
}

// buildInitialMessages 首次提问的上下文
func (p *Pool) buildInitialMessages(q *model.Question) []*schema.Message {
	return []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: q.QuestionText},
	}
}

// buildFollowUpMessages 追问的上下文：原始问答加全部历史消息，保持顺序
func (p *Pool) buildFollowUpMessages(q *model.Question, history []*model.ChatMessage) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+3)
	messages = append(messages,
		&schema.Message{Role: schema.System, Content: systemPrompt},
		&schema.Message{Role: schema.User, Content: q.QuestionText},
		&schema.Message{Role: schema.Assistant, Content: q.AnswerText},
	)
	for _, m := range history {
		role := schema.User
		if m.Role == model.RoleAssistant {
			role = schema.Assistant
		}
		messages = append(messages, &schema.Message{Role: role, Content: m.Content})
	}
	return messages
}

func (p *Pool) unlock(ctx context.Context, questionID string) {
	if err := p.locker.Release(ctx, questionID); err != nil {
		log.Printf("worker: release lock for %s: %v", questionID, err)
	}
}

// failureMessage 把最后一次失败归类成用户可读的描述
func failureMessage(err error, attempts int) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("The AI provider timed out after %d attempts.", attempts)
	case errors.Is(err, context.Canceled):
		return "Processing was interrupted before an answer could be generated."
	default:
		return fmt.Sprintf("The AI provider could not answer after %d attempts: %v.", attempts, err)
	}
}
