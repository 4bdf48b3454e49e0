package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tradehub/internal/config"
)

// Store accepts a byte stream and returns a durable public URL.
type Store interface {
	Upload(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error)
}

// Module provides the blob store to the Fx graph.
var Module = fx.Provide(NewStore)

// NewStore builds the configured blob store (minio or noop when disabled).
func NewStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Store, error) {
	if !cfg.Storage.Enabled {
		logger.Info("blob storage disabled; using noop store")
		return noopStore{}, nil
	}

	client, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init blob storage: %w", err)
	}

	store := &minioStore{
		client:  client,
		bucket:  cfg.Storage.Bucket,
		baseURL: publicBaseURL(cfg.Storage),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			exists, err := client.BucketExists(ctx, cfg.Storage.Bucket)
			if err != nil {
				return fmt.Errorf("check bucket: %w", err)
			}
			if !exists {
				if err := client.MakeBucket(ctx, cfg.Storage.Bucket, minio.MakeBucketOptions{}); err != nil {
					return fmt.Errorf("create bucket: %w", err)
				}
			}
			logger.Info("blob storage connected",
				zap.String("endpoint", cfg.Storage.Endpoint),
				zap.String("bucket", cfg.Storage.Bucket),
			)
			return nil
		},
	})

	return store, nil
}

func publicBaseURL(cfg config.Storage) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
}

type noopStore struct{}

func (noopStore) Upload(_ context.Context, filename, _ string, _ io.Reader, _ int64) (string, error) {
	return "noop://" + filename, nil
}

type minioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

func (s *minioStore) Upload(ctx context.Context, filename, contentType string, r io.Reader, size int64) (string, error) {
	object := fmt.Sprintf("products/%s%s", uuid.NewString(), path.Ext(filename))
	_, err := s.client.PutObject(ctx, s.bucket, object, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}
	return s.baseURL + "/" + object, nil
}
