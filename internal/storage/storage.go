// Package storage signs short-lived links to objects kept in S3-compatible
// storage, such as the ID card images attached to verification applications.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"campusboard/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultRegion = "us-east-1"

// ObjectStore wraps a bucket on an S3-compatible endpoint.
type ObjectStore struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

// NewObjectStore connects to the configured endpoint. It returns nil, nil
// when S3_ENDPOINT is empty so callers can treat storage as optional.
func NewObjectStore(cfg *config.Config) (*ObjectStore, error) {
	endpoint := strings.TrimSpace(cfg.S3Endpoint)
	if endpoint == "" {
		return nil, nil
	}
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")

	// A fixed region keeps presigning offline; minio otherwise asks the
	// server for the bucket location first.
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: defaultRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	ttl := cfg.S3PresignTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ObjectStore{client: client, bucket: cfg.S3Bucket, ttl: ttl}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: defaultRegion})
}

// PresignGet returns a time-limited download URL for key. Values that are
// already absolute URLs are returned unchanged.
func (s *ObjectStore) PresignGet(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", nil
	}
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		return key, nil
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, strings.TrimPrefix(key, "/"), s.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}
