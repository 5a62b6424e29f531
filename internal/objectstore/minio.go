package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config selects and configures a Backend.
type Config struct {
	Driver         string // "minio" or "s3"
	Endpoint       string
	Bucket         string
	AccessKey      string
	SecretKey      string
	Region         string
	UseSSL         bool
	ForcePathStyle bool
}

// NewBackend builds the backend named by cfg.Driver.
func NewBackend(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Driver {
	case "", "minio":
		return NewMinioBackend(ctx, cfg)
	case "s3":
		return NewS3Backend(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// splitEndpoint accepts "host:port" or a full URL and returns host:port and
// whether TLS should be used.
func splitEndpoint(endpoint string, useSSL bool) (string, bool) {
	if !strings.Contains(endpoint, "://") {
		return strings.TrimRight(endpoint, "/"), useSSL
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint, useSSL
	}
	return u.Host, u.Scheme == "https"
}

type MinioBackend struct {
	client *minio.Client
	bucket string
}

// NewMinioBackend connects with minio-go and creates the bucket when missing.
func NewMinioBackend(ctx context.Context, cfg Config) (*MinioBackend, error) {
	host, secure := splitEndpoint(cfg.Endpoint, cfg.UseSSL)

	lookup := minio.BucketLookupAuto
	if cfg.ForcePathStyle {
		lookup = minio.BucketLookupPath
	}

	client, err := minio.New(host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	b := &MinioBackend{client: client, bucket: cfg.Bucket}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := b.ensureBucket(ctx, cfg.Region); err != nil {
		return nil, classify("ensure bucket", cfg.Bucket, err)
	}
	return b, nil
}

func (b *MinioBackend) ensureBucket(ctx context.Context, region string) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		// Another instance may have won the race.
		if resp := minio.ToErrorResponse(err); resp.Code == "BucketAlreadyOwnedByYou" {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (b *MinioBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return minioErr(err)
}

func (b *MinioBackend) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := b.client.PresignedGetObject(ctx, b.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", minioErr(err)
	}
	return u.String(), nil
}

func (b *MinioBackend) Remove(ctx context.Context, key string) error {
	return minioErr(b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}))
}

func (b *MinioBackend) Ping(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return minioErr(err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", b.bucket)
	}
	return nil
}

// minioErr exposes the HTTP status of minio error responses to classify.
func minioErr(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == 0 {
		return err
	}
	return &statusError{status: resp.StatusCode, err: err}
}

type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string       { return fmt.Sprintf("%s (%s)", e.err, http.StatusText(e.status)) }
func (e *statusError) Unwrap() error       { return e.err }
func (e *statusError) HTTPStatusCode() int { return e.status }
