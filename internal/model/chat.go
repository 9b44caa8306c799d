package model

import "time"

// 消息角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage 追问对话消息，挂在已回答的 Question 下
type ChatMessage struct {
	ID         string    `gorm:"primaryKey;size:36" json:"message_id"`
	QuestionID string    `gorm:"index;size:36" json:"question_id"`
	Role       string    `gorm:"size:20;index" json:"role"` // user, assistant
	Content    string    `gorm:"type:text" json:"content"`
	TokenUsed  int       `gorm:"default:0" json:"token_used,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName 指定表名
func (ChatMessage) TableName() string {
	return "chat_messages"
}
