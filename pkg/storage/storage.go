package storage

import (
    "context"
    "fmt"
    "io"
    "time"

    cfg "github.com/feichai0017/document-reconstructor/config"
    "github.com/feichai0017/document-reconstructor/pkg/logger"
    "github.com/feichai0017/document-reconstructor/pkg/storage/minio"
    "github.com/feichai0017/document-reconstructor/pkg/storage/s3"
)

// StorageType 定义存储类型
type StorageType string

const (
    StorageTypeS3    StorageType = "s3"
    StorageTypeMinio StorageType = "minio"
)

// Storage 接口定义, 用于归档处理完成的文档
type Storage interface {
    // Store 存储文件
    Store(ctx context.Context, reader io.Reader, filename string) (string, error)
    // Delete 删除文件
    Delete(ctx context.Context, id string) error
    // CleanupBefore 删除 prefix 下早于 threshold 的对象
    CleanupBefore(ctx context.Context, prefix string, threshold time.Time) error
}

// NewStorage 创建存储实例的工厂方法
func NewStorage(ctx context.Context, storageType StorageType, c *cfg.Config, logger logger.Logger) (Storage, error) {
    switch storageType {
    case StorageTypeS3:
        return s3.NewS3Storage(ctx, &c.S3, logger)
    case StorageTypeMinio:
        return minio.NewMinioStorage(ctx, &c.Minio, logger)
    default:
        return nil, fmt.Errorf("unsupported storage type: %s", storageType)
    }
}
