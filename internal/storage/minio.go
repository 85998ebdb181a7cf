package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docvault/internal/config"
	"docvault/internal/logger"
)

// unknownSizePart is the multipart chunk used when an upload's size is not known.
const unknownSizePart = 16 << 20

type minioArchive struct {
	client *minio.Client
	bucket string
}

// NewMinIO returns an Archive on an S3-compatible bucket, creating the bucket when it is
// missing. An empty endpoint yields Noop.
func NewMinIO(ctx context.Context, cfg config.MinIOConfig) (Archive, error) {
	if cfg.Endpoint == "" {
		logger.Info("archive_configured", logger.Fields{"archive": "none"})
		return Noop{}, nil
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := ensureBucket(ctx, cli, cfg.Bucket); err != nil {
		return nil, err
	}

	logger.Info("archive_configured", logger.Fields{
		"archive":  "minio",
		"endpoint": cfg.Endpoint,
		"bucket":   cfg.Bucket,
	})
	return &minioArchive{client: cli, bucket: cfg.Bucket}, nil
}

func validate(cfg config.MinIOConfig) error {
	var errs []error
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		errs = append(errs, errors.New("minio credentials are required"))
	}
	if cfg.Bucket == "" {
		errs = append(errs, errors.New("minio bucket is required"))
	}
	return errors.Join(errs...)
}

func ensureBucket(ctx context.Context, cli *minio.Client, bucket string) error {
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	err = cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

func (m *minioArchive) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	po := minio.PutObjectOptions{
		ContentType:  opt.ContentType,
		UserMetadata: opt.Metadata,
	}
	size := opt.Size
	if size <= 0 {
		size = -1
		po.PartSize = unknownSizePart
	}
	info, err := m.client.PutObject(ctx, m.bucket, key, r, size, po)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("put %s: %w", key, err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  opt.ContentType,
		LastModified: info.LastModified,
		Metadata:     opt.Metadata,
	}, nil
}

func (m *minioArchive) Delete(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
