package s3

import (
    "context"
    "fmt"
    "io"
    "path"
    "time"

    "github.com/aws/aws-sdk-go-v2/aws"
    "github.com/aws/aws-sdk-go-v2/config"
    "github.com/aws/aws-sdk-go-v2/credentials"
    "github.com/aws/aws-sdk-go-v2/service/s3"

    cfg "github.com/feichai0017/document-reconstructor/config"
    "github.com/feichai0017/document-reconstructor/internal/models"
    "github.com/feichai0017/document-reconstructor/pkg/logger"
)

type S3Storage struct {
    client     *s3.Client
    bucketName string
    region     string
    logger     logger.Logger
}

// Store 实现 Storage 接口的 Store 方法
func (s *S3Storage) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
    input := &s3.PutObjectInput{
        Bucket:      aws.String(s.bucketName),
        Key:         aws.String(key),
        Body:        reader,
        ContentType: aws.String(contentType(key)),
    }

    _, err := s.client.PutObject(ctx, input)
    if err != nil {
        s.logger.Error("Failed to store file to S3",
            logger.String("bucket", s.bucketName),
            logger.String("key", key),
            logger.Error(err),
        )
        return "", fmt.Errorf("failed to store %s: %v: %w", key, err, models.ErrStorage)
    }

    return key, nil
}

// Delete 实现 Storage 接口的 Delete 方法
func (s *S3Storage) Delete(ctx context.Context, key string) error {
    input := &s3.DeleteObjectInput{
        Bucket: aws.String(s.bucketName),
        Key:    aws.String(key),
    }

    _, err := s.client.DeleteObject(ctx, input)
    if err != nil {
        s.logger.Error("Failed to delete file from S3",
            logger.String("bucket", s.bucketName),
            logger.String("key", key),
            logger.Error(err),
        )
        return fmt.Errorf("failed to delete %s: %v: %w", key, err, models.ErrStorage)
    }

    return nil
}

// CleanupBefore 实现 Storage 接口的 CleanupBefore 方法
func (s *S3Storage) CleanupBefore(ctx context.Context, prefix string, threshold time.Time) error {
    input := &s3.ListObjectsV2Input{
        Bucket: aws.String(s.bucketName),
        Prefix: aws.String(prefix),
    }

    removed := 0
    paginator := s3.NewListObjectsV2Paginator(s.client, input)
    for paginator.HasMorePages() {
        page, err := paginator.NextPage(ctx)
        if err != nil {
            s.logger.Error("Failed to list objects",
                logger.String("bucket", s.bucketName),
                logger.Error(err),
            )
            return fmt.Errorf("failed to list objects: %v: %w", err, models.ErrStorage)
        }

        for _, obj := range page.Contents {
            if obj.LastModified != nil && obj.LastModified.Before(threshold) {
                if err := s.Delete(ctx, *obj.Key); err != nil {
                    s.logger.Error("Failed to delete expired object",
                        logger.String("key", *obj.Key),
                        logger.Error(err),
                    )
                    continue
                }
                removed++
            }
        }
    }

    if removed > 0 {
        s.logger.Info("Deleted expired objects",
            logger.String("prefix", prefix),
            logger.Int("count", removed),
        )
    }
    return nil
}

func NewS3Storage(ctx context.Context, s3Config *cfg.S3Config, log logger.Logger) (*S3Storage, error) {
    log.Info("S3 Configuration",
        logger.String("bucket", s3Config.BucketName),
        logger.String("region", s3Config.Region),
        logger.String("endpoint", s3Config.Endpoint),
    )

    // AWS SDK 配置
    awsCfg, err := config.LoadDefaultConfig(ctx,
        config.WithRegion(s3Config.Region),
        config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
            s3Config.AccessKey,
            s3Config.SecretKey,
            "",
        )),
    )
    if err != nil {
        return nil, fmt.Errorf("failed to load AWS config: %w", err)
    }

    client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
        if s3Config.Endpoint != "" {
            o.BaseEndpoint = aws.String(s3Config.Endpoint)
            o.UsePathStyle = true
        }
    })

    // 验证 bucket 是否存在
    _, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
        Bucket: aws.String(s3Config.BucketName),
    })
    if err != nil {
        return nil, fmt.Errorf("failed to verify bucket existence: %w", err)
    }

    return &S3Storage{
        client:     client,
        bucketName: s3Config.BucketName,
        region:     s3Config.Region,
        logger:     log,
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
