package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/unklstewy/flightwx/pkg/logger"
)

// Uploader stores a local file under key.
type Uploader interface {
	Upload(ctx context.Context, key, localPath string) error
}

// PutObjectAPI is the subset of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader uploads files to a bucket.
type S3Uploader struct {
	client PutObjectAPI
	bucket string
}

// NewS3Uploader creates an uploader from the default AWS credential chain.
func NewS3Uploader(ctx context.Context, bucket, region string) (*S3Uploader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3UploaderWithClient(s3.NewFromConfig(cfg), bucket), nil
}

// NewS3UploaderWithClient wraps an existing client.
func NewS3UploaderWithClient(client PutObjectAPI, bucket string) *S3Uploader {
	return &S3Uploader{client: client, bucket: bucket}
}

// Upload puts localPath into the bucket under key.
func (u *S3Uploader) Upload(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/zstd"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to s3://%s/%s: %w", localPath, u.bucket, key, err)
	}
	return nil
}

// UploadDir uploads every *.csv.zst file in dir under prefix and returns
// the keys written. It stops at the first failure.
func UploadDir(ctx context.Context, up Uploader, dir, prefix string, log *logger.Logger) ([]string, error) {
	if log == nil {
		log = logger.Nop()
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.csv.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	keys := make([]string, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return keys, err
		}
		key := path.Join(prefix, filepath.Base(f))
		if err := up.Upload(ctx, key, f); err != nil {
			return keys, err
		}
		log.Info("Uploaded archive", logger.String("file", f), logger.String("key", key))
		keys = append(keys, key)
	}
	return keys, nil
}
