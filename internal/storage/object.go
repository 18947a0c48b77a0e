package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// ObjectStorage keeps documents in S3 or an S3-compatible bucket (Cloudflare R2).
type ObjectStorage struct {
	client   *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	baseURL  string
	acl      *string
}

func NewObjectStorage(cfg Config) (*ObjectStorage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required for object storage")
	}

	awsConfig := &aws.Config{
		Credentials: credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
	}

	switch cfg.Type {
	case "cloudflare_r2":
		// R2 endpoint: https://<account_id>.r2.cloudflarestorage.com
		if cfg.Endpoint == "" {
			return nil, errors.New("endpoint is required for Cloudflare R2")
		}
		awsConfig.Region = aws.String("auto")
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	default:
		awsConfig.Region = aws.String(cfg.Region)
		if cfg.Endpoint != "" {
			awsConfig.Endpoint = aws.String(cfg.Endpoint)
			awsConfig.S3ForcePathStyle = aws.Bool(true)
		}
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage session: %w", err)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		if cfg.Type == "cloudflare_r2" {
			baseURL = fmt.Sprintf("https://%s.r2.dev", cfg.Bucket)
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}

	s := &ObjectStorage{
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
		bucket:   cfg.Bucket,
		baseURL:  baseURL,
	}
	// R2 не поддерживает ACL
	if cfg.PublicRead && cfg.Type != "cloudflare_r2" {
		s.acl = aws.String(s3.ObjectCannedACLPublicRead)
	}
	return s, nil
}

func (s *ObjectStorage) Save(ctx context.Context, key string, reader io.Reader, contentType string) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentType),
		ACL:         s.acl,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (s *ObjectStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", key, err)
}

func (s *ObjectStorage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *ObjectStorage) URL(key string) string {
	return s.baseURL + "/" + key
}
