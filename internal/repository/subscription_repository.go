package repository

import (
	"github.com/marville001/eduaiapp/internal/model"
	"gorm.io/gorm"
)

// SubscriptionRepository 订阅与套餐数据访问（只读，计费系统负责写入）
type SubscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository 创建订阅仓库
func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// GetActiveByUserID 获取用户当前生效的订阅
func (r *SubscriptionRepository) GetActiveByUserID(userID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.Preload("Plan").
		Where("user_id = ? AND status = ?", userID, model.SubscriptionStatusActive).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetPlanByID 获取套餐
func (r *SubscriptionRepository) GetPlanByID(id string) (*model.Plan, error) {
	var plan model.Plan
	err := r.db.Where("id = ?", id).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}
