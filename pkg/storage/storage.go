package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	cfg "github.com/feichai0017/book-reader/config"
	"github.com/feichai0017/book-reader/pkg/logger"
	"github.com/feichai0017/book-reader/pkg/storage/local"
	"github.com/feichai0017/book-reader/pkg/storage/minio"
	"github.com/feichai0017/book-reader/pkg/storage/s3"
)

// StorageType 定义存储类型
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
	StorageTypeLocal StorageType = "local"
)

// Storage 接口定义, 缺失的对象返回包装了 fs.ErrNotExist 的错误
type Storage interface {
	// Store 存储对象, size 未知时传 -1
	Store(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Get 获取对象
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 删除对象, 不存在不算错误
	Delete(ctx context.Context, key string) error
	// DeletePrefix 删除前缀下的所有对象
	DeletePrefix(ctx context.Context, prefix string) error
	// List 列出前缀下的所有 key, 按字典序
	List(ctx context.Context, prefix string) ([]string, error)
}

// NewStorage 创建存储实例的工厂方法
func NewStorage(c cfg.StorageConfig, log logger.Logger) (Storage, error) {
	switch StorageType(c.Backend) {
	case StorageTypeS3:
		return s3.GetClient(log)
	case StorageTypeMinio:
		return minio.GetClient(log)
	case StorageTypeLocal:
		return local.NewLocalStorage(c.LocalRoot, log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Backend)
	}
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// ReadAll loads the whole object at key.
func ReadAll(ctx context.Context, s Storage, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}
