package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	apperrors "voicepipe/internal/app/errors"
)

// MinioBlobStore implements BlobStore on MinIO / any S3-compatible endpoint.
type MinioBlobStore struct {
	client *minio.Client
	bucket string
}

// NewMinioBlobStore builds the store from MINIO_* environment variables and
// ensures the bucket exists.
func NewMinioBlobStore() (*MinioBlobStore, error) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	if accessKey == "" {
		accessKey = "minioadmin"
	}
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	if secretKey == "" {
		secretKey = "minioadmin"
	}
	bucket := os.Getenv("MINIO_BUCKET")
	if bucket == "" {
		bucket = "voicepipe-recordings"
	}
	useSSL := strings.ToLower(os.Getenv("MINIO_USE_SSL")) == "true"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioBlobStore{client: client, bucket: bucket}, nil
}

func (s *MinioBlobStore) Upload(ctx context.Context, userID, filename, contentType string, r io.Reader, size int64) (string, error) {
	ext := filepath.Ext(filename)
	key := fmt.Sprintf("recordings/%s/%d-%s%s",
		userID, time.Now().Unix(), uuid.New().String()[:8], ext)

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"original-name": filename,
			"user-id":       userID,
			"uploaded-at":   time.Now().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", classifyMinioError(err)
	}
	return key, nil
}

func (s *MinioBlobStore) Fetch(ctx context.Context, location string) (io.ReadCloser, int64, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, location, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, classifyMinioError(err)
	}
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, 0, classifyMinioError(err)
	}
	return obj, st.Size, nil
}

func (s *MinioBlobStore) Remove(ctx context.Context, location string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, location, minio.RemoveObjectOptions{}); err != nil {
		return classifyMinioError(err)
	}
	return nil
}

func (s *MinioBlobStore) SignedURL(ctx context.Context, location string, ttl time.Duration) (string, error) {
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, location, ttl, url.Values{})
	if err != nil {
		return "", classifyMinioError(err)
	}
	return presigned.String(), nil
}

func classifyMinioError(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "QuotaExceeded", "EntityTooLarge":
		return apperrors.Wrap(apperrors.ErrQuotaExceeded, err.Error())
	case "NoSuchKey":
		return apperrors.New(apperrors.KindNotFound, "object not found")
	}
	return apperrors.Wrap(apperrors.ErrStorageUnavailable, err.Error())
}
