// Package service 服务集合与装配
package service

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/marville001/eduaiapp/internal/config"
	"github.com/marville001/eduaiapp/internal/queue"
	"github.com/marville001/eduaiapp/internal/repository"
	"github.com/marville001/eduaiapp/internal/service/conversation"
	"github.com/marville001/eduaiapp/internal/service/file"
	"github.com/marville001/eduaiapp/internal/service/inference"
	"github.com/marville001/eduaiapp/internal/service/question"
	"github.com/marville001/eduaiapp/internal/service/subject"
	"github.com/marville001/eduaiapp/internal/service/usage"
	"github.com/marville001/eduaiapp/internal/service/worker"
)

// Services 服务集合
type Services struct {
	Question     *question.Service
	Conversation *conversation.Service
	Subject      *subject.Service
	Usage        *usage.Ledger

	Queue   *queue.Queue
	Worker  *worker.Pool
	Storage file.Storage

	Config *config.Config
}

// NewServices 创建所有服务
func NewServices(repo *repository.Repositories, cfg *config.Config, redisClient *redis.Client) (*Services, error) {
	ctx := context.Background()

	storage, err := file.NewStorage(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	provider, err := inference.NewProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init inference provider: %w", err)
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "eduai"
	}
	jobQueue := queue.New(redisClient, cfg.Queue, hostname)

	ledger := usage.NewLedger(redisClient, repo, cfg.FreePlan)
	locker := conversation.NewLocker(redisClient, cfg.Worker.LockTTL())

	questionSvc := question.NewService(repo, ledger, storage, jobQueue, cfg.Limits)
	conversationSvc := conversation.NewService(repo, ledger, locker, jobQueue, cfg.Limits)
	subjectSvc := subject.NewService(repo)

	pool := worker.NewPool(repo, ledger, locker, provider, jobQueue, cfg.Worker)
	jobQueue.SetDiscardHandler(pool.Discard)

	return &Services{
		Question:     questionSvc,
		Conversation: conversationSvc,
		Subject:      subjectSvc,
		Usage:        ledger,
		Queue:        jobQueue,
		Worker:       pool,
		Storage:      storage,
		Config:       cfg,
	}, nil
}
