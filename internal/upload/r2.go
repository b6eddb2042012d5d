package upload

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/interviewdeck/clip-recorder/internal/config"
)

const uploadsPrefix = "uploads"

// R2Uploader stores clips directly in an S3-compatible bucket,
// bypassing the edge worker. Object keys carry a millisecond prefix so
// repeated filenames never collide.
type R2Uploader struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      config.R2
}

var _ Uploader = (*R2Uploader)(nil)

func NewR2Uploader(ctx context.Context, cfg config.R2) (*R2Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	} else {
		log.Warn("r2 uploader using default credential chain")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024 // 5MB parts for streaming
	})

	return &R2Uploader{
		client:   client,
		uploader: uploader,
		cfg:      cfg,
	}, nil
}

func (r *R2Uploader) Upload(ctx context.Context, filename, mimeType string, data []byte) (UploadResult, error) {
	key := objectKey(filename)

	_, err := r.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return UploadResult{}, errors.Wrap(err, "upload")
	}

	return UploadResult{
		URL: r.publicURL(key),
		Key: key,
	}, nil
}

func (r *R2Uploader) Delete(ctx context.Context, key string) error {
	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrap(err, "delete object")
	}
	return nil
}

func (r *R2Uploader) publicURL(key string) string {
	base := strings.TrimRight(r.cfg.PublicBaseURL, "/")
	return base + "/" + key
}

// objectKey sanitizes the filename and prepends a timestamp:
// uploads/<millis>_<name>.
func objectKey(filename string) string {
	name := path.Base(filename)
	name = strings.ReplaceAll(name, " ", "_")
	return path.Join(uploadsPrefix, fmt.Sprintf("%d_%s", time.Now().UnixMilli(), name))
}
