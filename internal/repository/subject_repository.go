package repository

import (
	"github.com/marville001/eduaiapp/internal/model"
	"gorm.io/gorm"
)

// SubjectRepository 学科数据访问
type SubjectRepository struct {
	db *gorm.DB
}

// NewSubjectRepository 创建学科仓库
func NewSubjectRepository(db *gorm.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// GetByID 获取学科
func (r *SubjectRepository) GetByID(id string) (*model.Subject, error) {
	var subject model.Subject
	err := r.db.Where("id = ?", id).First(&subject).Error
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

// ListActive 列出启用的学科
func (r *SubjectRepository) ListActive() ([]*model.Subject, error) {
	var subjects []*model.Subject
	err := r.db.Where("is_active = ?", true).Order("name ASC").Find(&subjects).Error
	return subjects, err
}
