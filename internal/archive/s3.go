// Package archive copies garbage-collected chunks to an S3-compatible
// backend for cold retention. The store's authoritative data lives in
// PostgreSQL; this is a safety net for operators who want deleted bodies
// recoverable outside the database.
package archive

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/wordbank/lexstore/internal/config"
	"github.com/wordbank/lexstore/internal/models"
)

// Seams for testing without a live S3 endpoint.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(client *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return client.PutObject(ctx, in)
	}
)

// S3Archiver writes one object per chunk, keyed by content hash, so
// re-archiving the same chunk is idempotent.
type S3Archiver struct {
	config *config.Config
}

func NewS3Archiver(cfg *config.Config) *S3Archiver {
	return &S3Archiver{config: cfg}
}

func (a *S3Archiver) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(a.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			a.config.S3RootUser,
			a.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if a.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(a.config.S3BaseEndpoint)
			// MinIO and friends want path-style addressing
			o.UsePathStyle = true
		}
	})
	return client, nil
}

// ObjectKey returns the bucket key for a chunk hash.
func ObjectKey(hash string) string {
	return "chunks/" + hash
}

// Archive uploads the chunk body under its content hash.
func (a *S3Archiver) Archive(ctx context.Context, chunk *models.Chunk) error {
	client, err := a.getClient(ctx)
	if err != nil {
		return err
	}

	bucket := a.config.S3Bucket
	key := ObjectKey(chunk.Hash)

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   strings.NewReader(chunk.Data),
	})
	return err
}
