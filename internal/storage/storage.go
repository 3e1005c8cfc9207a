// Package storage stores uploaded borrower documents in S3-compatible object
// storage via MinIO.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"brokerage_backend/platform/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PresignedURLTTL is the expiration for download links handed to agents.
const PresignedURLTTL = 15 * time.Minute

// Service stores and retrieves document files.
type Service struct {
	client *minio.Client
	bucket string
}

// NewService creates the MinIO-backed document store and ensures the bucket
// exists.
func NewService(ctx context.Context, cfg config.StorageConfig) (*Service, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("object storage is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	s := &Service{client: client, bucket: cfg.GetMinioBucketDocuments()}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// StoreDocument writes one uploaded document and returns its object key.
// Keys are unique per upload so a re-upload never overwrites history.
func (s *Service) StoreDocument(ctx context.Context, token, documentType, fileName, contentType string, size int64, content io.Reader) (string, error) {
	ext := path.Ext(fileName)
	key := fmt.Sprintf("%s/%s_%s%s", token, documentType, uuid.New().String()[:8], ext)

	_, err := s.client.PutObject(ctx, s.bucket, key, content, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store document: %w", err)
	}
	return key, nil
}

// PresignDownload returns a time-limited download URL for an object key.
func (s *Service) PresignDownload(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, PresignedURLTTL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return u.String(), nil
}

// AllowedContentTypes for borrower uploads.
var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/heic":      true,
}

// ValidateContentType rejects types outside the allow-list.
func ValidateContentType(contentType string) error {
	base := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if !allowedContentTypes[base] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}
