// Package queue 基于 Redis Streams 的作业队列
// 消费组 + XAUTOCLAIM 提供至少一次投递，处理函数必须幂等
package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marville001/eduaiapp/internal/config"
)

// 作业类型
const (
	KindInitialQuestion = "initial_question"
	KindFollowUp        = "follow_up"
)

// Job 一次回答作业
type Job struct {
	JobID      string
	QuestionID string
	Kind       string
}

// Handler 处理作业；返回 nil 表示作业完成并确认，
// 返回错误则不确认，消息会在空闲超时后被重新认领
type Handler func(ctx context.Context, job Job) error

// Queue Redis Streams 作业队列
type Queue struct {
	client        *redis.Client
	stream        string
	group         string
	consumerBase  string
	block         time.Duration
	claimIdle     time.Duration
	maxDeliveries int
	maxLen        int64
	discard       func(ctx context.Context, job Job)
	once          sync.Once
	wg            sync.WaitGroup
}

// New 创建队列
func New(client *redis.Client, cfg config.QueueConfig, consumerBase string) *Queue {
	if consumerBase == "" {
		consumerBase = "worker"
	}
	return &Queue{
		client:        client,
		stream:        cfg.Stream,
		group:         cfg.Group,
		consumerBase:  consumerBase,
		block:         cfg.Block(),
		claimIdle:     cfg.ClaimIdle(),
		maxDeliveries: cfg.MaxDeliveries,
		maxLen:        cfg.MaxLen,
	}
}

// Enqueue 投递作业
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	if job.JobID == "" || job.QuestionID == "" {
		return errors.New("job id and question id required")
	}
	if job.Kind != KindInitialQuestion && job.Kind != KindFollowUp {
		return fmt.Errorf("unknown job kind: %s", job.Kind)
	}
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"job_id":      job.JobID,
			"question_id": job.QuestionID,
			"kind":        job.Kind,
		},
	}).Err()
}

// SetDiscardHandler 注册死信回调
// 作业超过最大投递次数被丢弃时调用，在 Start 之前设置
func (q *Queue) SetDiscardHandler(fn func(ctx context.Context, job Job)) {
	q.discard = fn
}

// Start 启动固定数量的消费者协程
func (q *Queue) Start(ctx context.Context, concurrency int, handler Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.ensureGroup(ctx)
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.consumeLoop(ctx, consumer, handler)
		}()
	}
}

// Wait 等待所有消费者退出
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) ensureGroup(ctx context.Context) {
	q.once.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			log.Printf("queue: create group: %v", err)
		}
	})
}

func (q *Queue) consumeLoop(ctx context.Context, consumer string, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// 先认领其他消费者超时未确认的消息
		if msgs, err := q.claimPending(ctx, consumer); err == nil {
			for _, msg := range msgs {
				q.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    1,
			Block:    q.block,
		}).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *Queue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *Queue) handleMessage(ctx context.Context, msg redis.XMessage, handler Handler) {
	job := Job{}
	job.JobID, _ = msg.Values["job_id"].(string)
	job.QuestionID, _ = msg.Values["question_id"].(string)
	job.Kind, _ = msg.Values["kind"].(string)
	if job.JobID == "" || job.QuestionID == "" {
		q.ackAndDel(ctx, msg.ID)
		return
	}

	// 投递次数保护，防止异常消息无限循环
	deliveries, err := q.client.Incr(ctx, q.deliveryKey(job.JobID)).Result()
	if err == nil {
		_ = q.client.Expire(ctx, q.deliveryKey(job.JobID), 24*time.Hour).Err()
		if q.maxDeliveries > 0 && deliveries > int64(q.maxDeliveries) {
			log.Printf("queue: job %s exceeded %d deliveries, dropping", job.JobID, q.maxDeliveries)
			if q.discard != nil {
				q.discard(ctx, job)
			}
			q.ackAndDel(ctx, msg.ID)
			return
		}
	}

	if err := handler(ctx, job); err != nil {
		log.Printf("queue: job %s (%s) failed, will be redelivered: %v", job.JobID, job.Kind, err)
		return
	}
	q.ackAndDel(ctx, msg.ID)
}

func (q *Queue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

func (q *Queue) deliveryKey(jobID string) string {
	return fmt.Sprintf("%s:deliveries:%s", q.stream, jobID)
}
