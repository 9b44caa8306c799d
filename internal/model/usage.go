package model

import "time"

// LimitUnlimited 套餐额度为 -1 时表示不限量
const LimitUnlimited = -1

// Plan 订阅套餐
type Plan struct {
	ID                     string    `gorm:"primaryKey;size:36" json:"id"`
	Name                   string    `gorm:"size:100" json:"name"`
	MaxQuestionsPerMonth   int       `gorm:"default:0" json:"max_questions_per_month"`
	MaxChatsPerMonth       int       `gorm:"default:0" json:"max_chats_per_month"`
	MaxFileUploadsPerMonth int       `gorm:"default:0" json:"max_file_uploads_per_month"`
	CreditMultiplier       float64   `gorm:"default:1.0" json:"credit_multiplier"`
	IsActive               bool      `gorm:"index;default:true" json:"is_active"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// 订阅状态
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
)

// Subscription 用户订阅，计费周期由外部计费系统写入
type Subscription struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	UserID             string    `gorm:"index;size:36" json:"user_id"`
	PlanID             string    `gorm:"index;size:36" json:"plan_id"`
	Plan               *Plan     `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Status             string    `gorm:"index;size:20;default:active" json:"status"`
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UsageRecord 单个计费周期内的用量记录
// 周期滚动时新建记录，历史记录保留
type UsageRecord struct {
	ID              uint      `gorm:"primaryKey" json:"-"`
	UserID          string    `gorm:"uniqueIndex:idx_usage_user_period;size:36" json:"user_id"`
	PeriodStart     time.Time `gorm:"uniqueIndex:idx_usage_user_period" json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	QuestionsUsed   int       `gorm:"default:0" json:"questions_used"`
	ChatsUsed       int       `gorm:"default:0" json:"chats_used"`
	FileUploadsUsed int       `gorm:"default:0" json:"file_uploads_used"`
	CreditsConsumed float64   `gorm:"default:0" json:"credits_consumed"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Plan) TableName() string {
	return "plans"
}

func (Subscription) TableName() string {
	return "subscriptions"
}

func (UsageRecord) TableName() string {
	return "usage_records"
}
