package repository

import (
	"github.com/marville001/eduaiapp/internal/model"
	"gorm.io/gorm"
)

// ChatRepository 对话消息数据访问
type ChatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建对话仓库
func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateMessage 创建消息
func (r *ChatRepository) CreateMessage(msg *model.ChatMessage) error {
	return r.db.Create(msg).Error
}

// GetMessagesByQuestionID 获取提问下的全部消息，按时间升序
func (r *ChatRepository) GetMessagesByQuestionID(questionID string) ([]*model.ChatMessage, error) {
	var messages []*model.ChatMessage
	err := r.db.Where("question_id = ?", questionID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// DeleteMessage 删除消息，准入失败时补偿已落库的用户消息
func (r *ChatRepository) DeleteMessage(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.ChatMessage{}).Error
}

// GetLastMessage 获取提问下最新的一条消息
func (r *ChatRepository) GetLastMessage(questionID string) (*model.ChatMessage, error) {
	var msg model.ChatMessage
	err := r.db.Where("question_id = ?", questionID).
		Order("created_at DESC, id DESC").
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
