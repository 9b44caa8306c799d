// Package subject 学科目录服务
package subject

import (
	"errors"

	"gorm.io/gorm"

	"github.com/marville001/eduaiapp/internal/model"
	"github.com/marville001/eduaiapp/internal/repository"
)

// ErrNotFound 学科不存在或已停用
var ErrNotFound = errors.New("subject not found")

// Service 学科服务
type Service struct {
	repo *repository.Repositories
}

// NewService 创建学科服务
func NewService(repo *repository.Repositories) *Service {
	return &Service{repo: repo}
}

// List 返回所有启用的学科
func (s *Service) List() ([]*model.Subject, error) {
	return s.repo.Subject.ListActive()
}

// Get 按 ID 获取学科
func (s *Service) Get(id string) (*model.Subject, error) {
	subj, err := s.repo.Subject.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return subj, nil
}
