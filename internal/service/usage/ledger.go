// Package usage 按用户、按计费周期的用量台账
// 准入计数使用 Redis 原子脚本，Postgres 记录作为报表与审计数据
package usage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/marville001/eduaiapp/internal/config"
	"github.com/marville001/eduaiapp/internal/model"
	"github.com/marville001/eduaiapp/internal/repository"
)

// ErrQuotaExceeded 套餐额度已用尽
var ErrQuotaExceeded = errors.New("quota exceeded")

// 计量类型
const (
	KindQuestion   = "question"
	KindChat       = "chat"
	KindFileUpload = "file_upload"
)

// 检查与递增必须是同一个原子操作，
// 否则并发请求会同时通过过期的计数检查
var reserveScript = redis.NewScript(`
local used = tonumber(redis.call("GET", KEYS[1]) or "0")
local limit = tonumber(ARGV[1])
if limit >= 0 and used >= limit then
  return -1
end
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return count
`)

var releaseScript = redis.NewScript(`
local used = tonumber(redis.call("GET", KEYS[1]) or "0")
if used > 0 then
  return redis.call("DECR", KEYS[1])
end
return 0
`)

// Ledger 用量台账
type Ledger struct {
	client   *redis.Client
	repo     *repository.Repositories
	freePlan model.Plan
	prefix   string
}

// NewLedger 创建台账
func NewLedger(client *redis.Client, repo *repository.Repositories, freePlan config.FreePlanConfig) *Ledger {
	return &Ledger{
		client: client,
		repo:   repo,
		freePlan: model.Plan{
			ID:                     "free",
			Name:                   "Free",
			MaxQuestionsPerMonth:   freePlan.MaxQuestionsPerMonth,
			MaxChatsPerMonth:       freePlan.MaxChatsPerMonth,
			MaxFileUploadsPerMonth: freePlan.MaxFileUploadsPerMonth,
			CreditMultiplier:       freePlan.CreditMultiplier,
		},
		prefix: "eduai:usage",
	}
}

// Reserve 预留一个用量单位
// 额度为 -1 时不限量直接放行；额度用尽返回 ErrQuotaExceeded
func (l *Ledger) Reserve(ctx context.Context, userID, kind string) error {
	plan, start, end, err := l.resolvePlan(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve plan: %w", err)
	}

	limit := limitFor(plan, kind)
	if limit == model.LimitUnlimited {
		// 不限量也记录用量，供统计页展示
		l.mirrorIncrement(userID, start, end, kind)
		return nil
	}

	key := l.counterKey(userID, start, kind)
	ttl := time.Until(end) + 24*time.Hour
	res, err := reserveScript.Run(ctx, l.client, []string{key}, limit, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("reserve %s: %w", kind, err)
	}
	if res < 0 {
		return ErrQuotaExceeded
	}

	l.mirrorIncrement(userID, start, end, kind)
	return nil
}

// Release 释放一次预留，用于预留之后准入失败的回退
func (l *Ledger) Release(ctx context.Context, userID, kind string) {
	plan, start, _, err := l.resolvePlan(ctx, userID)
	if err != nil {
		log.Printf("usage: release resolve plan: %v", err)
		return
	}
	if limitFor(plan, kind) != model.LimitUnlimited {
		key := l.counterKey(userID, start, kind)
		if _, err := releaseScript.Run(ctx, l.client, []string{key}).Result(); err != nil {
			log.Printf("usage: release counter: %v", err)
		}
	}
	if err := l.repo.Usage.Decrement(l.userKey(userID), start, columnFor(kind)); err != nil {
		log.Printf("usage: release record: %v", err)
	}
}

// Commit 提交一次消耗的额度，按套餐倍率折算
// 以作业 ID 去重，重复投递下的二次提交是空操作
func (l *Ledger) Commit(ctx context.Context, userID, jobID, kind string, credits float64) error {
	commitKey := fmt.Sprintf("%s:commit:%s", l.prefix, jobID)
	ok, err := l.client.SetNX(ctx, commitKey, "1", 35*24*time.Hour).Result()
	if err != nil {
		return fmt.Errorf("commit %s: %w", jobID, err)
	}
	if !ok {
		// 已提交过
		return nil
	}

	plan, start, end, err := l.resolvePlan(ctx, userID)
	if err != nil {
		l.client.Del(ctx, commitKey)
		return fmt.Errorf("commit resolve plan: %w", err)
	}

	if _, err := l.repo.Usage.GetOrCreate(l.userKey(userID), start, end); err != nil {
		l.client.Del(ctx, commitKey)
		return fmt.Errorf("commit usage record: %w", err)
	}
	if err := l.repo.Usage.AddCredits(l.userKey(userID), start, credits*plan.CreditMultiplier); err != nil {
		// 回滚去重标记，重投时重试提交
		l.client.Del(ctx, commitKey)
		return fmt.Errorf("commit credits: %w", err)
	}
	return nil
}

// CurrentUsage 当前周期的用量与套餐额度
func (l *Ledger) CurrentUsage(ctx context.Context, userID string) (*model.UsageRecord, *model.Plan, error) {
	plan, start, end, err := l.resolvePlan(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	rec, err := l.repo.Usage.GetOrCreate(l.userKey(userID), start, end)
	if err != nil {
		return nil, nil, err
	}
	return rec, plan, nil
}

// History 最近若干个计费周期的用量记录，按周期倒序
func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]*model.UsageRecord, error) {
	if limit <= 0 || limit > 24 {
		limit = 12
	}
	return l.repo.Usage.ListByUser(l.userKey(userID), limit)
}

// resolvePlan 确定用户的套餐与当前计费周期
// 订阅周期已过期时向前滚动，旧周期的记录保留不动
func (l *Ledger) resolvePlan(ctx context.Context, userID string) (*model.Plan, time.Time, time.Time, error) {
	now := time.Now().UTC()

	if userID != "" {
		sub, err := l.repo.Subscription.GetActiveByUserID(userID)
		if err == nil {
			start, end := sub.CurrentPeriodStart.UTC(), sub.CurrentPeriodEnd.UTC()
			for !now.Before(end) {
				start = end
				end = start.AddDate(0, 1, 0)
			}
			plan := sub.Plan
			if plan == nil {
				// 关联未预加载时按 ID 查一次，套餐缺失退回默认套餐
				if p, perr := l.repo.Subscription.GetPlanByID(sub.PlanID); perr == nil {
					plan = p
				} else {
					plan = &l.freePlan
				}
			}
			return plan, start, end, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, time.Time{}, time.Time{}, err
		}
	}

	// 无订阅（含匿名）使用默认套餐，按自然月计周期
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return &l.freePlan, start, end, nil
}

// mirrorIncrement 把预留成功的计数同步到数据库记录
// 数据库写入失败不影响准入结果，只记录日志
func (l *Ledger) mirrorIncrement(userID string, start, end time.Time, kind string) {
	key := l.userKey(userID)
	if _, err := l.repo.Usage.GetOrCreate(key, start, end); err != nil {
		log.Printf("usage: mirror record: %v", err)
		return
	}
	if err := l.repo.Usage.Increment(key, start, columnFor(kind)); err != nil {
		log.Printf("usage: mirror increment: %v", err)
	}
}

func (l *Ledger) counterKey(userID string, start time.Time, kind string) string {
	return fmt.Sprintf("%s:%s:%s:%s", l.prefix, l.userKey(userID), start.Format("20060102"), kind)
}

func (l *Ledger) userKey(userID string) string {
	if userID == "" {
		return "anonymous"
	}
	return userID
}

func limitFor(plan *model.Plan, kind string) int {
	switch kind {
	case KindChat:
		return plan.MaxChatsPerMonth
	case KindFileUpload:
		return plan.MaxFileUploadsPerMonth
	default:
		return plan.MaxQuestionsPerMonth
	}
}

func columnFor(kind string) string {
	switch kind {
	case KindChat:
		return "chats_used"
	case KindFileUpload:
		return "file_uploads_used"
	default:
		return "questions_used"
	}
}
