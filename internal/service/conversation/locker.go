package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker 每个提问同一时刻只允许一条追问在处理中
// SET NX 保证并发提交下只有一个调用方拿到锁
// TTL 是工作进程崩溃后的保险，正常路径由工作池显式释放
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLocker 创建忙锁
func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Locker{client: client, ttl: ttl}
}

// Acquire 尝试获取提问的忙锁
func (l *Locker) Acquire(ctx context.Context, questionID string) (bool, error) {
	return l.client.SetNX(ctx, l.key(questionID), "1", l.ttl).Result()
}

// Release 释放忙锁
func (l *Locker) Release(ctx context.Context, questionID string) error {
	return l.client.Del(ctx, l.key(questionID)).Err()
}

// IsBusy 查询提问是否有追问在处理中
func (l *Locker) IsBusy(ctx context.Context, questionID string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(questionID)).Result()
	return n > 0, err
}

func (l *Locker) key(questionID string) string {
	return fmt.Sprintf("eduai:conversation:busy:%s", questionID)
}
