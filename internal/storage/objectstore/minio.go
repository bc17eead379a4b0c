package objectstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/interfaces"
)

// MinioStore is the blob adapter for any S3-compatible endpoint. Page
// artifacts live under {job_id}/{md5(url)}.{html,md}.
type MinioStore struct {
	client *minio.Client
	bucket string
	logger arbor.ILogger
}

var _ interfaces.ObjectStore = (*MinioStore)(nil)

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, cfg common.StorageConfig, logger arbor.ILogger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, common.StorageError(fmt.Errorf("connect %s: %w", cfg.Endpoint, err))
	}

	store := &MinioStore{client: client, bucket: cfg.Bucket, logger: logger}
	if err := store.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}

	logger.Info().
		Str("endpoint", cfg.Endpoint).
		Str("bucket", cfg.Bucket).
		Msg("Object store ready")
	return store, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return common.StorageError(fmt.Errorf("check bucket %s: %w", s.bucket, err))
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return common.StorageError(fmt.Errorf("create bucket %s: %w", s.bucket, err))
	}
	s.logger.Info().Str("bucket", s.bucket).Msg("Created bucket")
	return nil
}

func (s *MinioStore) UploadHTML(ctx context.Context, jobID, url string, content []byte) (string, error) {
	return s.upload(ctx, jobID, url, content, "html", "text/html")
}

func (s *MinioStore) UploadMarkdown(ctx context.Context, jobID, url string, content []byte) (string, error) {
	return s.upload(ctx, jobID, url, content, "md", "text/markdown")
}

func (s *MinioStore) upload(ctx context.Context, jobID, url string, content []byte, extension, contentType string) (string, error) {
	path := objectPath(jobID, url, extension)
	_, err := s.client.PutObject(ctx, s.bucket, path, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"source_url": url,
			"job_id":     jobID,
		},
	})
	if err != nil {
		return "", common.StorageError(fmt.Errorf("upload %s: %w", path, err))
	}
	return path, nil
}

func (s *MinioStore) GetObject(ctx context.Context, path string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, common.StorageError(fmt.Errorf("get %s: %w", path, err))
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		// Missing keys surface on read, not on open.
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, common.NotFoundf("object %s not found", path)
		}
		return nil, common.StorageError(fmt.Errorf("read %s: %w", path, err))
	}
	return data, nil
}

func (s *MinioStore) DeleteObject(ctx context.Context, path string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return common.StorageError(fmt.Errorf("delete %s: %w", path, err))
	}
	return nil
}

func (s *MinioStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

// objectPath derives the object key for a page artifact. Hashing the URL
// keeps keys flat and safe for arbitrary query strings.
func objectPath(jobID, url, extension string) string {
	sum := md5.Sum([]byte(url))
	return fmt.Sprintf("%s/%s.%s", jobID, hex.EncodeToString(sum[:]), extension)
}
