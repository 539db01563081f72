package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/printkeeper/internal/common"
)

// S3Options holds the credentials decrypted from the local configuration.
type S3Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// s3API is the subset of *s3.Client the backend uses.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Backend stores blobs as objects in one bucket.
type S3Backend struct {
	client s3API
	bucket string
}

// NewS3Backend builds an S3 client from static credentials. A non-empty
// Endpoint targets an S3-compatible server (MinIO, Ceph, ...).
//
// Example:
//
//	be, err := storage.NewS3Backend(ctx, storage.S3Options{
//	    Endpoint:        "http://minio:9000",
//	    Bucket:          "printers",
//	    AccessKeyID:     id,
//	    SecretAccessKey: secret,
//	    UsePathStyle:    true,
//	})
func NewS3Backend(ctx context.Context, o S3Options) (*S3Backend, error) {
	if o.Bucket == "" || o.AccessKeyID == "" || o.SecretAccessKey == "" {
		return nil, fmt.Errorf("%w: bucket and access keys are required", common.ErrConfiguration)
	}
	region := o.Region
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			o.AccessKeyID,
			o.SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", common.ErrConfiguration, err)
	}

	client := newS3ClientFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
		}
		so.UsePathStyle = o.UsePathStyle
	})

	return &S3Backend{client: client, bucket: o.Bucket}, nil
}

// DownloadText fetches the object body. NoSuchKey maps to
// common.ErrorNotFound, anything else to common.ErrStorage.
func (b *S3Backend) DownloadText(ctx context.Context, key string) (string, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return "", fmt.Errorf("blob %s: %w", key, common.ErrorNotFound)
		}
		return "", fmt.Errorf("%w: get %s: %v", common.ErrStorage, key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", common.ErrStorage, key, err)
	}
	return string(body), nil
}

// UploadText puts text as a JSON object under key.
func (b *S3Backend) UploadText(ctx context.Context, key, text string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(text),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", common.ErrStorage, key, err)
	}
	return nil
}
