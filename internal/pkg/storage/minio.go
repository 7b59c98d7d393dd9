package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage implements Provider using a MinIO (or any S3-compatible)
// backend through the native MinIO SDK.
type MinioStorage struct {
	client    *minio.Client
	bucket    string
	urlExpiry time.Duration
}

// NewMinioStorage creates a MinIO client and ensures the bucket exists.
func NewMinioStorage(endpoint, accessKeyID, secretAccessKey, bucket string, useSSL bool, urlExpiry time.Duration) (*MinioStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx := context.Background()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
		}
	}

	return &MinioStorage{
		client:    client,
		bucket:    bucket,
		urlExpiry: urlExpiry,
	}, nil
}

// Upload streams data to MinIO under key. size must be the exact byte count.
func (s *MinioStorage) Upload(ctx context.Context, key string, data io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, data, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

func (s *MinioStorage) SignedURL(ctx context.Context, key, displayName string) (string, error) {
	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", contentDisposition(displayName))

	signed, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.urlExpiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("presign object %q: %w", key, err)
	}
	return signed.String(), nil
}

// Delete removes the object at key. RemoveObject succeeds for absent keys.
func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

func contentDisposition(displayName string) string {
	return fmt.Sprintf("attachment; filename=%q", displayName)
}
