package repository

import (
	"github.com/marville001/eduaiapp/internal/model"
	"gorm.io/gorm"
)

// QuestionRepository 提问数据访问
type QuestionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository 创建提问仓库
func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// Create 创建提问（连同附件）
func (r *QuestionRepository) Create(q *model.Question) error {
	return r.db.Create(q).Error
}

// GetByQuestionID 根据对外 ID 获取提问
func (r *QuestionRepository) GetByQuestionID(questionID string) (*model.Question, error) {
	var q model.Question
	err := r.db.Preload("Attachments", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("question_id = ?", questionID).First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// GetByQuestionIDUnscoped 获取提问，包含已软删除的记录（管理端审计用）
func (r *QuestionRepository) GetByQuestionIDUnscoped(questionID string) (*model.Question, error) {
	var q model.Question
	err := r.db.Unscoped().Preload("Attachments", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("question_id = ?", questionID).First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListByUser 列出用户自己的提问
func (r *QuestionRepository) ListByUser(userID string, offset, limit int) ([]*model.Question, int64, error) {
	var questions []*model.Question
	var total int64

	query := r.db.Model(&model.Question{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Preload("Attachments", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Order("created_at DESC").Offset(offset).Limit(limit).Find(&questions).Error
	return questions, total, err
}

// AdminList 管理端列表，可按状态过滤、按提问内容搜索
// 与 GetByQuestionIDUnscoped 一致，软删除的记录也可见
func (r *QuestionRepository) AdminList(status, search string, offset, limit int) ([]*model.Question, int64, error) {
	var questions []*model.Question
	var total int64

	query := r.db.Unscoped().Model(&model.Question{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if search != "" {
		query = query.Where("question_text LIKE ?", "%"+search+"%")
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&questions).Error
	return questions, total, err
}

// CountStatsByUser 统计用户提问的各状态数量
func (r *QuestionRepository) CountStatsByUser(userID string) (*model.QuestionStats, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.Model(&model.Question{}).
		Select("status, count(*) as count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &model.QuestionStats{}
	for _, rw := range rows {
		stats.Total += rw.Count
		switch rw.Status {
		case model.QuestionStatusAnswered:
			stats.Answered = rw.Count
		case model.QuestionStatusPending:
			stats.Pending = rw.Count
		case model.QuestionStatusFailed:
			stats.Failed = rw.Count
		}
	}
	return stats, nil
}

// MarkAnswered 条件转移 pending -> answered
// 仅当当前状态为 pending 时生效，返回是否实际发生转移
// 重复投递时第二次调用不会改写已有答案
func (r *QuestionRepository) MarkAnswered(questionID, answerText string, tokenUsage int, processingTimeMs int64, aiModelID string) (bool, error) {
	res := r.db.Model(&model.Question{}).
		Where("question_id = ? AND status = ?", questionID, model.QuestionStatusPending).
		Updates(map[string]interface{}{
			"status":             model.QuestionStatusAnswered,
			"answer_text":        answerText,
			"token_usage":        tokenUsage,
			"processing_time_ms": processingTimeMs,
			"ai_model_id":        aiModelID,
		})
	return res.RowsAffected == 1, res.Error
}

// MarkFailed 条件转移 pending -> failed
func (r *QuestionRepository) MarkFailed(questionID, errorMessage string, processingTimeMs int64) (bool, error) {
	res := r.db.Model(&model.Question{}).
		Where("question_id = ? AND status = ?", questionID, model.QuestionStatusPending).
		Updates(map[string]interface{}{
			"status":             model.QuestionStatusFailed,
			"error_message":      errorMessage,
			"processing_time_ms": processingTimeMs,
		})
	return res.RowsAffected == 1, res.Error
}

// SoftDelete 软删除提问，记录保留供管理端查看
func (r *QuestionRepository) SoftDelete(questionID string) error {
	return r.db.Where("question_id = ?", questionID).Delete(&model.Question{}).Error
}
