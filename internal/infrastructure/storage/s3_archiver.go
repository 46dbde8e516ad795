// Package storage archives audit files to S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/integration"
	infraconfig "github.com/catalogsync/backend/internal/infrastructure/config"
)

const auditContentType = "application/x-ndjson"

// Ensure S3AuditArchiver implements AuditArchiver
var _ integration.AuditArchiver = (*S3AuditArchiver)(nil)

// S3AuditArchiver uploads finished audit files to a bucket.
// It is compatible with any S3-compatible storage (AWS S3, MinIO, etc.)
type S3AuditArchiver struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	logger    *zap.Logger
}

// S3AuditArchiverOption is a functional option for configuring S3AuditArchiver
type S3AuditArchiverOption func(*S3AuditArchiver)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3AuditArchiverOption {
	return func(a *S3AuditArchiver) {
		a.logger = logger
	}
}

// NewS3AuditArchiver creates a new archiver from configuration. Without
// explicit keys the default AWS credential chain is used.
func NewS3AuditArchiver(ctx context.Context, cfg *infraconfig.StorageConfig, opts ...S3AuditArchiverOption) (*S3AuditArchiver, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return nil, errors.New("storage access key id and secret access key must be set together")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	a := &S3AuditArchiver{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: strings.Trim(cfg.KeyPrefix, "/"),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Archive uploads the file at localPath, replacing any earlier upload of the
// same day's file.
func (a *S3AuditArchiver) Archive(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat audit file: %w", err)
	}

	key := a.ObjectKey(localPath)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(auditContentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload audit file: %w", err)
	}

	a.logger.Info("Audit file archived",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int64("bytes", info.Size()),
	)
	return nil
}

// ObjectKey returns the bucket key for a local audit file
func (a *S3AuditArchiver) ObjectKey(localPath string) string {
	name := filepath.Base(localPath)
	if a.keyPrefix == "" {
		return name
	}
	return path.Join(a.keyPrefix, name)
}

// Bucket returns the bucket name
func (a *S3AuditArchiver) Bucket() string {
	return a.bucket
}
