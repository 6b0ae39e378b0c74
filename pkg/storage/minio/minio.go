package minio

import (
    "context"
    "fmt"
    "io"
    "path"
    "time"
    
    "github.com/minio/minio-go/v7"
    "github.com/minio/minio-go/v7/pkg/credentials"
    
    cfg "github.com/feichai0017/document-reconstructor/config"
    "github.com/feichai0017/document-reconstructor/internal/models"
    "github.com/feichai0017/document-reconstructor/pkg/logger"
)

type MinioStorage struct {
    client     *minio.Client
    bucketName string
    logger     logger.Logger
}

// Store implements Storage.Store
func (m *MinioStorage) Store(ctx context.Context, reader io.Reader, filename string) (string, error) {
    _, err := m.client.PutObject(ctx, m.bucketName, filename, reader, -1, minio.PutObjectOptions{
        ContentType: contentType(filename),
    })
    if err != nil {
        m.logger.Error("Failed to store file to MinIO",
            logger.String("bucket", m.bucketName),
            logger.String("filename", filename),
            logger.Error(err),
        )
        return "", fmt.Errorf("failed to store %s: %v: %w", filename, err, models.ErrStorage)
    }

    return filename, nil
}

// Delete implements Storage.Delete
func (m *MinioStorage) Delete(ctx context.Context, key string) error {
    err := m.client.RemoveObject(ctx, m.bucketName, key, minio.RemoveObjectOptions{})
    if err != nil {
        m.logger.Error("Failed to delete file from MinIO",
            logger.String("bucket", m.bucketName),
            logger.String("key", key),
            logger.Error(err),
        )
        return fmt.Errorf("failed to delete %s: %v: %w", key, err, models.ErrStorage)
    }

    return nil
}

// CleanupBefore implements Storage.CleanupBefore
func (m *MinioStorage) CleanupBefore(ctx context.Context, prefix string, threshold time.Time) error {
    objectCh := m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{
        Prefix:    prefix,
        Recursive: true,
    })

    removed := 0
    for obj := range objectCh {
        if obj.Err != nil {
            return fmt.Errorf("failed to list objects: %v: %w", obj.Err, models.ErrStorage)
        }

        if obj.LastModified.Before(threshold) {
            if err := m.Delete(ctx, obj.Key); err != nil {
                m.logger.Error("Failed to delete expired object",
                    logger.String("key", obj.Key),
                    logger.Error(err),
                )
                continue
            }
            removed++
        }
    }

    if removed > 0 {
        m.logger.Info("Deleted expired objects",
            logger.String("prefix", prefix),
            logger.Int("count", removed),
        )
    }
    return nil
}

func NewMinioStorage(ctx context.Context, minioConfig *cfg.MinioConfig, logger logger.Logger) (*MinioStorage, error) {
    client, err := minio.New(minioConfig.Endpoint, &minio.Options{
        Creds:  credentials.NewStaticV4(minioConfig.AccessKey, minioConfig.SecretKey, ""),
        Secure: minioConfig.UseSSL,
        Region: minioConfig.Region,
    })
    if err != nil {
        return nil, fmt.Errorf("failed to create MinIO client: %w", err)
    }

    exists, err := client.BucketExists(ctx, minioConfig.BucketName)
    if err != nil {
        return nil, fmt.Errorf("failed to check bucket existence: %w", err)
    }

    if !exists {
        err = client.MakeBucket(ctx, minioConfig.BucketName, minio.MakeBucketOptions{
            Region: minioConfig.Region,
        })
        if err != nil {
            return nil, fmt.Errorf("failed to create bucket: %w", err)
        }
    }

    return &MinioStorage{
        client:     client,
        bucketName: minioConfig.BucketName,
        logger:     logger,
    }, nil
}

func contentType(key string) string {
    switch path.Ext(key) {
    case ".json":
        return "application/json"
    case ".md":
        return "text/markdown; charset=utf-8"
    default:
        return "application/octet-stream"
    }
}
