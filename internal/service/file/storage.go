package file

import (
	"context"
	"io"

	"github.com/marville001/eduaiapp/internal/config"
)

// Storage 附件存储接口
type Storage interface {
	// Save 保存文件，返回对象访问键
	Save(ctx context.Context, req *SaveRequest) (string, error)
	// Get 获取文件内容
	Get(ctx context.Context, accessKey string) (io.ReadCloser, error)
	// Delete 删除文件
	Delete(ctx context.Context, accessKey string) error
	// GetURL 根据访问键生成可访问的URL
	GetURL(accessKey string) string
}

// SaveRequest 保存文件请求
type SaveRequest struct {
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
	UserID      string
}

// 存储类型
const (
	StorageTypeLocal = "local"
	StorageTypeMinIO = "minio"
)

// NewStorage 根据配置创建存储后端
func NewStorage(cfg *config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case StorageTypeMinIO:
		return NewMinIOStorage(&cfg.MinIO)
	default:
		return NewLocalStorage(cfg.Local.BasePath, cfg.Local.URLPrefix)
	}
}
