package avatar

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gitlab.com/dirk.krummacker/contacts-api/internal/config"
)

// S3Store keeps avatar images in an S3 compatible bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store creates a client for the configured bucket. Static credentials are used when they
// are configured, otherwise the default AWS credential chain applies.
func NewS3Store(ctx context.Context, cfg config.Storage) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

// Put writes body under key, replacing any previous object, and returns a version string that
// changes with every upload.
func (s *S3Store) Put(ctx context.Context, key, contentType string, body io.ReadSeeker) (string, error) {
	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	if version := aws.ToString(out.VersionId); version != "" && version != "null" {
		return version, nil
	}
	if etag := strings.Trim(aws.ToString(out.ETag), `"`); etag != "" {
		return etag, nil
	}
	return strconv.FormatInt(time.Now().Unix(), 10), nil
}
