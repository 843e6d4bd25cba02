package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	uploadExpiry = 15 * time.Minute
	readExpiry   = time.Hour
)

var ErrContentType = errors.New("content type not allowed")

// ErrUnavailable is returned by a nil Storage.
var ErrUnavailable = errors.New("storage not configured")

type Storage struct {
	client     *minio.Client
	bucketName string
}

func NewStorage(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Storage{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// CoverKey builds the object key for a story cover uploaded by userID.
func CoverKey(userID, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if name == "." || name == "/" {
		name = "cover"
	}
	return fmt.Sprintf("covers/%s/%s-%s", userID, uuid.New().String(), name)
}

// ValidateCoverType accepts image content types only.
func ValidateCoverType(contentType string) error {
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return fmt.Errorf("%w: %s", ErrContentType, contentType)
	}
	return nil
}

// PresignCoverUpload returns a PUT URL the client uploads the cover to, along
// with the key to store on the story.
func (s *Storage) PresignCoverUpload(ctx context.Context, userID, fileName, contentType string) (string, string, error) {
	if s == nil {
		return "", "", ErrUnavailable
	}
	if err := ValidateCoverType(contentType); err != nil {
		return "", "", err
	}

	key := CoverKey(userID, fileName)
	u, err := s.client.PresignedPutObject(ctx, s.bucketName, key, uploadExpiry)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return u.String(), key, nil
}

// CoverURL returns a time-limited GET URL for a stored cover.
func (s *Storage) CoverURL(ctx context.Context, key string) (string, error) {
	if s == nil {
		return "", ErrUnavailable
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, readExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign cover: %w", err)
	}
	return u.String(), nil
}

// DeleteCover removes a cover object. Missing objects are not an error.
func (s *Storage) DeleteCover(ctx context.Context, key string) error {
	if s == nil {
		return ErrUnavailable
	}
	if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete cover: %w", err)
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	if s == nil {
		return ErrUnavailable
	}
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}
