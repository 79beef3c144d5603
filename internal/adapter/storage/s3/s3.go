// Package s3 implements the object store gateway on an S3-compatible store.
//
// The submission side and the worker share this gateway so raw uploads,
// error reports and presigned links use the same key layout and signing
// conventions.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/fairyhunter13/bulk-import-service/internal/config"
	"github.com/fairyhunter13/bulk-import-service/internal/domain"
)

const opTimeout = 30 * time.Second

// Store is the object store gateway.
type Store struct {
	client    *awss3.Client
	presigner *awss3.PresignClient
	bucket    string
	ttl       time.Duration
}

// New builds the gateway, creating clients for the internal endpoint and,
// when configured, a separate signing client on the public endpoint so
// presigned URLs resolve from outside the cluster with a valid signature.
// The bucket is created if missing.
func New(ctx context.Context, cfg config.Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("op=s3.config: %w", err)
	}
	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3EndpointURL)
		o.UsePathStyle = true
	})
	signingClient := client
	if cfg.S3PublicEndpointURL != "" {
		signingClient = awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3PublicEndpointURL)
			o.UsePathStyle = true
		})
	}
	st := &Store{
		client:    client,
		presigner: awss3.NewPresignClient(signingClient),
		bucket:    cfg.S3Bucket,
		ttl:       cfg.PresignTTL(),
	}
	if err := st.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

// ensureBucket creates the bucket, tolerating the idempotent-create errors.
func (s *Store) ensureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := s.client.CreateBucket(ctx, &awss3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("op=s3.ensure_bucket: %w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// PutBytes stages an upload under imports/<uuid>_<safe-name> and returns the key.
func (s *Store) PutBytes(ctx domain.Context, data []byte, filename string) (string, error) {
	key := fmt.Sprintf("imports/%s_%s", uuid.New().String(), sanitizeFilename(filename))
	if err := s.Put(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// Put writes data at an exact key.
func (s *Store) Put(ctx domain.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("op=s3.put: %w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// GetBytes fetches exactly the bytes previously stored under key.
func (s *Store) GetBytes(ctx domain.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("op=s3.get: %w: %s", domain.ErrObjectMissing, key)
		}
		return nil, fmt.Errorf("op=s3.get: %w: %v", domain.ErrStorageUnavailable, err)
	}
	defer func() { _ = out.Body.Close() }()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("op=s3.get: %w: %v", domain.ErrStorageUnavailable, err)
	}
	return data, nil
}

// PresignGet mints a time-bounded URL that downloads the object as an
// attachment named downloadFilename.
func (s *Store) PresignGet(ctx domain.Context, key, downloadFilename string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", downloadFilename)),
	}, func(po *awss3.PresignOptions) { po.Expires = s.ttl })
	if err != nil {
		return "", fmt.Errorf("op=s3.presign_get: %w: %v", domain.ErrStorageUnavailable, err)
	}
	return req.URL, nil
}

// HeadBucket probes the bucket; used by the health endpoint.
func (s *Store) HeadBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func sanitizeFilename(name string) string {
	if name == "" {
		name = "upload.csv"
	}
	name = strings.ReplaceAll(name, "/", "_")
	return strings.ReplaceAll(name, "\\", "_")
}
