package repository

import (
	"time"

	"github.com/marville001/eduaiapp/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageRepository 用量记录数据访问
// 记录按 (user_id, period_start) 唯一，周期滚动时新建记录
type UsageRepository struct {
	db *gorm.DB
}

// NewUsageRepository 创建用量仓库
func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// GetOrCreate 获取当前周期的用量记录，不存在则创建
func (r *UsageRepository) GetOrCreate(userID string, periodStart, periodEnd time.Time) (*model.UsageRecord, error) {
	rec := &model.UsageRecord{
		UserID:      userID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}
	// 并发下两个请求可能同时创建，冲突时以已有记录为准
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(rec).Error; err != nil {
		return nil, err
	}

	var out model.UsageRecord
	err := r.db.Where("user_id = ? AND period_start = ?", userID, periodStart).First(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Increment 递增指定计数列
func (r *UsageRepository) Increment(userID string, periodStart time.Time, column string) error {
	return r.db.Model(&model.UsageRecord{}).
		Where("user_id = ? AND period_start = ?", userID, periodStart).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error
}

// Decrement 回退指定计数列（预留失败时释放）
func (r *UsageRepository) Decrement(userID string, periodStart time.Time, column string) error {
	return r.db.Model(&model.UsageRecord{}).
		Where("user_id = ? AND period_start = ? AND "+column+" > 0", userID, periodStart).
		UpdateColumn(column, gorm.Expr(column+" - 1")).Error
}

// AddCredits 累加消耗的额度
func (r *UsageRepository) AddCredits(userID string, periodStart time.Time, credits float64) error {
	return r.db.Model(&model.UsageRecord{}).
		Where("user_id = ? AND period_start = ?", userID, periodStart).
		UpdateColumn("credits_consumed", gorm.Expr("credits_consumed + ?", credits)).Error
}

// Get 查询指定周期的用量记录
func (r *UsageRepository) Get(userID string, periodStart time.Time) (*model.UsageRecord, error) {
	var rec model.UsageRecord
	err := r.db.Where("user_id = ? AND period_start = ?", userID, periodStart).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByUser 列出用户的历史用量记录
func (r *UsageRepository) ListByUser(userID string, limit int) ([]*model.UsageRecord, error) {
	var records []*model.UsageRecord
	err := r.db.Where("user_id = ?", userID).
		Order("period_start DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
