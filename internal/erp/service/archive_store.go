package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/Epitheton-ltd/project-bom/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArchiveStore 报表归档对象存储
type ArchiveStore struct {
	client *minio.Client
	bucket string
}

// NewArchiveStore 创建MinIO客户端；未配置 endpoint 时返回 nil
func NewArchiveStore(cfg config.MinIOConfig) (*ArchiveStore, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &ArchiveStore{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket bucket 不存在时创建
func (s *ArchiveStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Put 上传对象
func (s *ArchiveStore) Put(ctx context.Context, key string, data []byte, contentType string) (minio.UploadInfo, error) {
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return info, fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return info, nil
}

// PresignedURL 临时下载地址
func (s *ArchiveStore) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return u.String(), nil
}

// Bucket bucket 名称
func (s *ArchiveStore) Bucket() string {
	return s.bucket
}
