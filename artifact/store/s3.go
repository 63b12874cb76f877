package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/smartcontractkit/beamline/artifact"
	"github.com/smartcontractkit/beamline/pkg/logger"
	"github.com/smartcontractkit/beamline/platform"
)

// S3API is the subset of the S3 API used by S3Store.
type S3API interface {
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// S3Store uploads packages to an S3 bucket.
type S3Store struct {
	client S3API
	bucket string
	lggr   logger.Logger
}

var _ Store = (*S3Store)(nil)

// NewS3Store creates an S3Store writing to bucket.
func NewS3Store(client S3API, bucket string, lggr logger.Logger) *S3Store {
	return &S3Store{client: client, bucket: bucket, lggr: lggr}
}

// Put uploads the package. S3 validates the SHA-256 checksum on receipt, so a corrupted
// upload is rejected before the platform ever reads it.
func (s *S3Store) Put(ctx context.Context, key string, a *artifact.Artifact) (platform.CodeLocation, error) {
	if a == nil || a.Digest == "" {
		return platform.CodeLocation{}, errors.New("artifact has no digest")
	}

	out, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(key),
		Body:              bytes.NewReader(a.Bytes),
		ContentLength:     aws.Int64(int64(a.Size())),
		ContentType:       aws.String("application/zip"),
		ChecksumAlgorithm: aws.String(s3.ChecksumAlgorithmSha256),
		ChecksumSHA256:    aws.String(a.Digest.String()),
	})
	if err != nil {
		return platform.CodeLocation{}, fmt.Errorf("failed to upload %s to s3://%s: %w", key, s.bucket, err)
	}

	s.lggr.Infow("Uploaded package", "bucket", s.bucket, "key", key, "etag", aws.StringValue(out.ETag), "size", a.Size())

	return platform.CodeLocation{Bucket: s.bucket, Key: key}, nil
}
