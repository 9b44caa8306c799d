package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStorage 本地文件存储
type LocalStorage struct {
	basePath  string // 基础路径
	urlPrefix string // URL前缀，用于生成访问URL
}

// NewLocalStorage 创建本地存储服务
func NewLocalStorage(basePath, urlPrefix string) (*LocalStorage, error) {
	// 确保基础路径存在
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &LocalStorage{
		basePath:  basePath,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
	}, nil
}

// Save 保存文件到本地
func (s *LocalStorage) Save(ctx context.Context, req *SaveRequest) (string, error) {
	// 生成文件路径: {basePath}/{userID}/{uuid}.{ext}
	owner := req.UserID
	if owner == "" {
		owner = "anonymous"
	}
	ext := filepath.Ext(req.FileName)
	if ext == "" {
		// 根据内容类型推断扩展名
		ext = extensionByContentType(req.ContentType)
	}
	relativePath := fmt.Sprintf("%s/%s%s", owner, uuid.New().String(), ext)
	fullPath := filepath.Join(s.basePath, relativePath)

	// 创建目录
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	// 创建文件
	f, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	// 写入内容
	if _, err := io.Copy(f, req.Reader); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return relativePath, nil
}

// Get 获取文件内容
func (s *LocalStorage) Get(ctx context.Context, accessKey string) (io.ReadCloser, error) {
	fullPath := filepath.Join(s.basePath, accessKey)
	f, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete 删除文件
func (s *LocalStorage) Delete(ctx context.Context, accessKey string) error {
	fullPath := filepath.Join(s.basePath, accessKey)
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// GetURL 获取文件的访问URL
func (s *LocalStorage) GetURL(accessKey string) string {
	return fmt.Sprintf("%s/%s", s.urlPrefix, accessKey)
}

// extensionByContentType 根据内容类型返回扩展名
func extensionByContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "application/pdf":
		return ".pdf"
	case "text/plain", "text/csv":
		return ".txt"
	case "text/markdown":
		return ".md"
	default:
		return ".bin"
	}
}
