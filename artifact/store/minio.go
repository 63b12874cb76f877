package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/smartcontractkit/beamline/artifact"
	"github.com/smartcontractkit/beamline/pkg/logger"
	"github.com/smartcontractkit/beamline/platform"
)

// MinIOConfig configures an S3 compatible endpoint.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"` // secret
	Region    string `mapstructure:"region" yaml:"region"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
}

// Validate checks the required fields.
func (c MinIOConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.New("minio credentials are required")
	}

	return nil
}

// NewMinIOClient creates a client for cfg.
func NewMinIOClient(cfg MinIOConfig) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
}

// MinIOStore uploads packages to an S3 compatible store.
type MinIOStore struct {
	client *minio.Client
	bucket string
	region string
	lggr   logger.Logger
}

var _ Store = (*MinIOStore)(nil)

// NewMinIOStore creates a MinIOStore writing to bucket.
func NewMinIOStore(client *minio.Client, bucket, region string, lggr logger.Logger) (*MinIOStore, error) {
	if client == nil {
		return nil, errors.New("minio client is required")
	}

	return &MinIOStore{client: client, bucket: bucket, region: region, lggr: lggr}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}

	return nil
}

// Put uploads the package. The digest is stored as object metadata.
func (s *MinIOStore) Put(ctx context.Context, key string, a *artifact.Artifact) (platform.CodeLocation, error) {
	if a == nil || a.Digest == "" {
		return platform.CodeLocation{}, errors.New("artifact has no digest")
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(a.Bytes), int64(a.Size()), minio.PutObjectOptions{
		ContentType:    "application/zip",
		SendContentMd5: true,
		UserMetadata:   map[string]string{"sha256": a.Digest.String()},
	})
	if err != nil {
		return platform.CodeLocation{}, fmt.Errorf("failed to upload %s to %s: %w", key, s.bucket, err)
	}

	s.lggr.Infow("Uploaded package", "bucket", s.bucket, "key", key, "etag", info.ETag, "size", info.Size)

	return platform.CodeLocation{Bucket: s.bucket, Key: key}, nil
}
