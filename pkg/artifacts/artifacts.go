// Package artifacts uploads run output files to object storage.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dd0wney/cluso-flowgraph/pkg/logging"
)

// ErrNoBucket is returned when S3 upload is configured without a bucket.
var ErrNoBucket = errors.New("artifacts: bucket is required")

// Uploader publishes the files of a run and returns their locations.
type Uploader interface {
	Upload(ctx context.Context, runID string, paths []string) ([]string, error)
}

// Noop uploads nothing.
type Noop struct{}

// Upload returns no locations.
func (Noop) Upload(context.Context, string, []string) ([]string, error) { return nil, nil }

// PutObjectAPI is the subset of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures an S3Uploader.
type S3Options struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // S3-compatible endpoint; path-style addressing is used when set
	// Static credentials; empty uses the default AWS chain.
	AccessKeyID     string
	SecretAccessKey string
	Logger          logging.Logger
}

// S3Uploader puts every file under s3://bucket/prefix/<runID>/<name>.
type S3Uploader struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger logging.Logger
}

// NewS3Uploader loads AWS configuration and creates an uploader.
func NewS3Uploader(ctx context.Context, opts S3Options) (*S3Uploader, error) {
	if opts.Bucket == "" {
		return nil, ErrNoBucket
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3UploaderWithClient(client, opts), nil
}

// NewS3UploaderWithClient creates an uploader around an existing client.
func NewS3UploaderWithClient(client PutObjectAPI, opts S3Options) *S3Uploader {
	return &S3Uploader{
		client: client,
		bucket: opts.Bucket,
		prefix: opts.Prefix,
		logger: logging.OrNop(opts.Logger).With(logging.Component("artifacts")),
	}
}

// Key returns the object key of a local file for runID.
func (u *S3Uploader) Key(runID, file string) string {
	return path.Join(u.prefix, runID, filepath.Base(file))
}

// Upload puts each file and returns its s3:// URI. It stops at the first
// failure.
func (u *S3Uploader) Upload(ctx context.Context, runID string, paths []string) ([]string, error) {
	uris := make([]string, 0, len(paths))
	for _, p := range paths {
		key := u.Key(runID, p)
		if err := u.put(ctx, key, p); err != nil {
			return uris, err
		}
		uri := "s3://" + u.bucket + "/" + key
		u.logger.Debug("uploaded artifact", logging.Path(p), logging.String("uri", uri))
		uris = append(uris, uri)
	}
	u.logger.Info("artifacts uploaded", logging.Count(len(uris)), logging.RunID(runID))
	return uris, nil
}

func (u *S3Uploader) put(ctx context.Context, key, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(file)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func contentType(file string) string {
	switch filepath.Ext(file) {
	case ".csv":
		return "text/csv"
	case ".gml", ".txt", ".prom":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
