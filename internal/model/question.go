package model

import (
	"time"

	"gorm.io/gorm"
)

// 问题状态
const (
	QuestionStatusPending  = "pending"
	QuestionStatusAnswered = "answered"
	QuestionStatusFailed   = "failed"
)

// Question 用户提问
// 内部数字主键不对外暴露，客户端只见 QuestionID (UUID)
type Question struct {
	ID               uint                 `gorm:"primaryKey" json:"-"`
	QuestionID       string               `gorm:"uniqueIndex;size:36" json:"question_id"`
	SubjectID        string               `gorm:"index;size:36" json:"subject_id"`
	UserID           string               `gorm:"index;size:36" json:"user_id,omitempty"` // 空值表示匿名用户
	QuestionText     string               `gorm:"type:text" json:"question_text"`
	Status           string               `gorm:"index;size:20;default:pending" json:"status"`
	AnswerText       string               `gorm:"type:text" json:"answer_text,omitempty"`
	ErrorMessage     string               `gorm:"type:text" json:"error_message,omitempty"`
	ProcessingTimeMs int64                `gorm:"default:0" json:"processing_time_ms,omitempty"`
	TokenUsage       int                  `gorm:"default:0" json:"token_usage,omitempty"`
	AIModelID        string               `gorm:"size:100" json:"ai_model_id,omitempty"`
	Attachments      []QuestionAttachment `gorm:"foreignKey:QuestionID;references:QuestionID" json:"attachments,omitempty"`
	CreatedAt        time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt       `gorm:"index" json:"-"`
}

// QuestionAttachment 提问的文件附件，Position 保持提交顺序
type QuestionAttachment struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	QuestionID  string    `gorm:"index;size:36" json:"-"`
	Position    int       `gorm:"default:0" json:"position"`
	FileName    string    `gorm:"size:255" json:"file_name"`
	ContentType string    `gorm:"size:100" json:"content_type"`
	FileSize    int64     `gorm:"default:0" json:"file_size"`
	AccessKey   string    `gorm:"size:255" json:"access_key"` // 存储系统中的对象键
	URL         string    `gorm:"-" json:"url,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// QuestionStats 用户提问统计
type QuestionStats struct {
	Total    int64 `json:"total"`
	Answered int64 `json:"answered"`
	Pending  int64 `json:"pending"`
	Failed   int64 `json:"failed"`
}

// TableName 指定表名
func (Question) TableName() string {
	return "questions"
}

func (QuestionAttachment) TableName() string {
	return "question_attachments"
}

// IsTerminal 是否已进入终态
func (q *Question) IsTerminal() bool {
	return q.Status == QuestionStatusAnswered || q.Status == QuestionStatusFailed
}
