package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/local/margincheck/internal/export"
)

// S3Options configures NewS3Client. Empty keys fall back to the default
// AWS credential chain.
type S3Options struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// S3Client wraps the AWS S3 client with transfer managers.
type S3Client struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucketName string
}

// NewS3Client creates a new S3 client
func NewS3Client(ctx context.Context, opts S3Options) (*S3Client, error) {
	var loaders []func(*awscfg.LoadOptions) error
	if opts.Region != "" {
		loaders = append(loaders, awscfg.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loaders = append(loaders, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(cfg)
	return &S3Client{
		client:     cli,
		uploader:   manager.NewUploader(cli),
		downloader: manager.NewDownloader(cli),
		bucketName: opts.Bucket,
	}, nil
}

// Bucket returns the default bucket.
func (s *S3Client) Bucket() string { return s.bucketName }

// Download fetches an object. An empty bucket means the client's default.
func (s *S3Client) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	if bucket == "" {
		bucket = s.bucketName
	}
	buf := manager.NewWriteAtBuffer(nil)
	n, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}
	log.Debug().Str("bucket", bucket).Str("key", key).Int64("size", n).Msg("downloaded object from S3")
	return buf.Bytes(), nil
}

// Upload stores data under key in the default bucket and returns its s3:// URL.
func (s *S3Client) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s.bucketName == "" {
		return "", fmt.Errorf("s3 bucket not configured")
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucketName, key, err)
	}
	url := fmt.Sprintf("s3://%s/%s", s.bucketName, key)
	log.Info().Str("url", url).Int("size", len(data)).Msg("uploaded object to S3")
	return url, nil
}

// HeadBucket checks that the default bucket is reachable.
func (s *S3Client) HeadBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucketName)})
	return err
}

// S3Sink delivers exports to S3 under Prefix/JobID/filename.
type S3Sink struct {
	Client *S3Client
	Prefix string
	JobID  string
}

func (s S3Sink) Deliver(ctx context.Context, data []byte, filename string, f export.Format) (string, error) {
	if filename == "" {
		filename = f.Filename()
	}
	return s.Client.Upload(ctx, objectKey(s.Prefix, s.JobID, filename), data, f.ContentType())
}

func objectKey(parts ...string) string {
	var clean []string
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			clean = append(clean, p)
		}
	}
	return path.Join(clean...)
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(u string) (bucket, key string, err error) {
	p := strings.TrimPrefix(u, "s3://")
	slash := strings.Index(p, "/")
	if !strings.HasPrefix(u, "s3://") || slash <= 0 || slash == len(p)-1 {
		return "", "", fmt.Errorf("invalid s3 url: %s", u)
	}
	return p[:slash], p[slash+1:], nil
}
