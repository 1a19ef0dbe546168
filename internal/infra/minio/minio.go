// Package minio stores post images in an S3-compatible bucket.
package minio

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"inkwell/internal/platform/config"
)

type objectClient interface {
	PresignedPutObject(ctx context.Context, bucketName, objectName string, expires time.Duration) (*url.URL, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts mclient.StatObjectOptions) (mclient.ObjectInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

// ImageStore issues presigned uploads and verifies uploaded images.
type ImageStore struct {
	cfg    config.StorageConfig
	client objectClient
}

// New connects to the endpoint and fails fast when the bucket is missing.
func New(ctx context.Context, cfg config.StorageConfig) (*ImageStore, error) {
	const op = "minio.New"

	endpoint := cfg.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, cfg.Bucket)
	}

	return &ImageStore{cfg: cfg, client: client}, nil
}

func newWithClient(cfg config.StorageConfig, client objectClient) *ImageStore {
	return &ImageStore{cfg: cfg, client: client}
}

// HealthCheck confirms the bucket is still reachable.
func (s *ImageStore) HealthCheck(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", s.cfg.Bucket)
	}
	return nil
}
