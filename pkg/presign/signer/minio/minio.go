package minio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tendant/simple-presign/pkg/presign"
)

// Config options for the MinIO signer
type Config struct {
	Endpoint        string // host:port or URL; a scheme overrides UseSSL
	AccessKeyID     string
	SecretAccessKey string
	Region          string // fixed so presigning never queries the bucket location
	UseSSL          bool
	UsePathStyle    bool
}

// Signer is a minio-go implementation of presign.Signer
type Signer struct {
	client *minio.Client
}

var _ presign.Signer = (*Signer)(nil)

// New creates a MinIO signer. No network calls are made.
func New(config Config) (*Signer, error) {
	if config.Endpoint == "" {
		return nil, errors.New("minio endpoint is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	host, secure, err := splitEndpoint(config.Endpoint, config.UseSSL)
	if err != nil {
		return nil, err
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: secure,
		Region: config.Region,
	}
	if config.UsePathStyle {
		opts.BucketLookup = minio.BucketLookupPath
	}

	client, err := minio.New(host, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Signer{client: client}, nil
}

// SignPut returns a presigned PUT URL with Content-Type as a signed header.
func (s *Signer) SignPut(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (string, error) {
	headers := make(http.Header)
	headers.Set("Content-Type", contentType)

	u, err := s.client.PresignHeader(ctx, http.MethodPut, bucket, key, ttl, url.Values{}, headers)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned upload url: %w", err)
	}
	return u.String(), nil
}

// SignPostPolicy returns a presigned POST policy. Only Content-Type equality
// and content-length-range conditions are supported.
func (s *Signer) SignPostPolicy(ctx context.Context, bucket, key string, conditions []presign.Condition, ttl time.Duration) (*presign.PostPolicy, error) {
	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(bucket); err != nil {
		return nil, err
	}
	if err := policy.SetKey(key); err != nil {
		return nil, err
	}
	if err := policy.SetExpires(time.Now().UTC().Add(ttl)); err != nil {
		return nil, err
	}

	for _, c := range conditions {
		switch {
		case c.Kind == presign.ConditionEquals && strings.EqualFold(c.Field, "Content-Type"):
			if err := policy.SetContentType(c.Value); err != nil {
				return nil, err
			}
		case c.Kind == presign.ConditionContentLengthRange:
			if err := policy.SetContentLengthRange(c.Min, c.Max); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unsupported policy condition for field %q", c.Field)
		}
	}

	u, fields, err := s.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned post policy: %w", err)
	}
	return &presign.PostPolicy{URL: u.String(), Fields: fields}, nil
}

// SignGet returns a presigned GET URL
func (s *Signer) SignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned url: %w", err)
	}
	return u.String(), nil
}

// VerifyBucket reports a missing bucket as a configuration error
func (s *Signer) VerifyBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return &presign.ConfigError{Field: "bucket", Err: fmt.Errorf("bucket %s does not exist", bucket)}
	}
	return nil
}

// splitEndpoint accepts "host:port" or "http(s)://host:port" and returns the
// bare host plus whether TLS should be used.
func splitEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, useSSL, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid minio endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid minio endpoint %q: missing host", endpoint)
	}
	return u.Host, u.Scheme == "https", nil
}
