package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tendant/simple-presign/pkg/presign"
	"github.com/tendant/simple-presign/pkg/presign/objectkey"
	"github.com/tendant/simple-presign/pkg/presign/signer/local"
	"github.com/tendant/simple-presign/pkg/presign/signer/minio"
	s3signer "github.com/tendant/simple-presign/pkg/presign/signer/s3"
)

// Storage backends
const (
	BackendS3    = "s3"
	BackendMinio = "minio"
	BackendLocal = "local"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of
// library defaults. WithEnv should come first so later options override the
// environment.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:               "8080",
		Environment:        "development",
		StorageBackend:     BackendS3,
		Region:             "us-east-1",
		UploadTTLSeconds:   int(presign.DefaultUploadTTL / time.Second),
		DownloadTTLSeconds: int(presign.DefaultDownloadTTL / time.Second),
		DefaultContentType: presign.DefaultContentType,
		KeyPrefix:          presign.DefaultKeyPrefix,
		KeyStrategy:        objectkey.StrategyFileName,
		CORSAllowedOrigins: []string{"*"},
		LocalBaseURL:       "http://localhost:8080/objects",
	}
}

// ServerConfig is read once at startup and never mutated afterwards.
type ServerConfig struct {
	BucketName string `env:"BUCKET_NAME" env-required:"true" validate:"required"`

	Port        string `env:"PORT" env-default:"8080" validate:"required"`
	Environment string `env:"ENVIRONMENT" env-default:"development"` // development, production, testing
	LogLevel    string `env:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`

	// Storage configuration
	StorageBackend  string `env:"STORAGE_BACKEND" env-default:"s3" validate:"oneof=s3 minio local"`
	Region          string `env:"AWS_REGION" env-default:"us-east-1"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	SessionToken    string `env:"AWS_SESSION_TOKEN"`
	Endpoint        string `env:"S3_ENDPOINT"`
	UsePathStyle    bool   `env:"S3_USE_PATH_STYLE"`
	UseSSL          bool   `env:"S3_USE_SSL"`
	VerifyBucket    bool   `env:"S3_VERIFY_BUCKET"`
	EnableSSE       bool   `env:"S3_ENABLE_SSE"`
	SSEAlgorithm    string `env:"S3_SSE_ALGORITHM" env-default:"AES256" validate:"omitempty,oneof=AES256 aws:kms"`
	SSEKMSKeyID     string `env:"S3_SSE_KMS_KEY_ID"`

	// Local HMAC signer
	LocalSecret  string `env:"LOCAL_SIGNER_SECRET"`
	LocalBaseURL string `env:"LOCAL_SIGNER_BASE_URL" env-default:"http://localhost:8080/objects" validate:"omitempty,url"`

	// Credential issuance
	UploadTTLSeconds   int    `env:"UPLOAD_TTL_SECONDS" env-default:"300" validate:"gt=0,lte=604800"`
	DownloadTTLSeconds int    `env:"DOWNLOAD_TTL_SECONDS" env-default:"3600" validate:"gt=0,lte=604800"`
	DefaultContentType string `env:"DEFAULT_CONTENT_TYPE" env-default:"image/jpeg" validate:"required"`
	KeyPrefix          string `env:"UPLOAD_KEY_PREFIX" env-default:"uploads/"`
	KeyStrategy        string `env:"KEY_STRATEGY" env-default:"filename" validate:"oneof=filename unique"`
	MaxUploadBytes     int64  `env:"MAX_UPLOAD_BYTES" validate:"gte=0"`

	// HTTP surface
	ExposeErrorDetails bool     `env:"EXPOSE_ERROR_DETAILS"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-default:"*" env-separator:","`

	// Lambda entry point
	LambdaHandler string `env:"LAMBDA_HANDLER" validate:"omitempty,oneof=upload-url upload-post download"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the server configuration. Failures are reported as
// *presign.ConfigError naming the first offending field.
func (c *ServerConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &presign.ConfigError{
				Field: fe.Field(),
				Err:   fmt.Errorf("failed %q validation (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return &presign.ConfigError{Err: err}
	}

	if c.StorageBackend == BackendMinio && c.Endpoint == "" {
		return &presign.ConfigError{Field: "Endpoint", Err: errors.New("S3_ENDPOINT is required for the minio backend")}
	}
	if c.StorageBackend == BackendLocal && c.LocalSecret == "" {
		return &presign.ConfigError{Field: "LocalSecret", Err: errors.New("LOCAL_SIGNER_SECRET is required for the local backend")}
	}

	return nil
}

// UploadTTL returns the upload credential lifetime
func (c *ServerConfig) UploadTTL() time.Duration {
	return time.Duration(c.UploadTTLSeconds) * time.Second
}

// DownloadTTL returns the download URL lifetime
func (c *ServerConfig) DownloadTTL() time.Duration {
	return time.Duration(c.DownloadTTLSeconds) * time.Second
}

// IsProduction reports whether the process runs in production mode
func (c *ServerConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// bucketVerifier is implemented by signers that can check the bucket at startup
type bucketVerifier interface {
	VerifyBucket(ctx context.Context, bucket string) error
}

// BuildSigner creates the configured signing backend. With VerifyBucket set,
// the bucket is checked before the signer is returned.
func (c *ServerConfig) BuildSigner(ctx context.Context) (presign.Signer, error) {
	var (
		signer presign.Signer
		err    error
	)

	switch c.StorageBackend {
	case BackendS3, "":
		signer, err = s3signer.New(ctx, s3signer.Config{
			Region:          c.Region,
			AccessKeyID:     c.AccessKeyID,
			SecretAccessKey: c.SecretAccessKey,
			SessionToken:    c.SessionToken,
			Endpoint:        c.Endpoint,
			UsePathStyle:    c.UsePathStyle,
			EnableSSE:       c.EnableSSE,
			SSEAlgorithm:    c.SSEAlgorithm,
			SSEKMSKeyID:     c.SSEKMSKeyID,
		})
	case BackendMinio:
		signer, err = minio.New(minio.Config{
			Endpoint:        c.Endpoint,
			AccessKeyID:     c.AccessKeyID,
			SecretAccessKey: c.SecretAccessKey,
			Region:          c.Region,
			UseSSL:          c.UseSSL,
			UsePathStyle:    c.UsePathStyle,
		})
	case BackendLocal:
		signer, err = local.New(
			local.WithSecretKey(c.LocalSecret),
			local.WithBaseURL(c.LocalBaseURL),
		)
	default:
		return nil, &presign.ConfigError{Field: "StorageBackend", Err: fmt.Errorf("unsupported storage backend %q", c.StorageBackend)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build %s signer: %w", c.StorageBackend, err)
	}

	if c.VerifyBucket {
		v, ok := signer.(bucketVerifier)
		if !ok {
			return nil, &presign.ConfigError{Field: "VerifyBucket", Err: fmt.Errorf("backend %s cannot verify buckets", c.StorageBackend)}
		}
		if err := v.VerifyBucket(ctx, c.BucketName); err != nil {
			return nil, err
		}
	}

	return signer, nil
}

// BuildService creates a presign.Service from the configuration using the
// configured signer.
func (c *ServerConfig) BuildService(ctx context.Context, opts ...presign.Option) (*presign.Service, error) {
	signer, err := c.BuildSigner(ctx)
	if err != nil {
		return nil, err
	}
	return c.BuildServiceWithSigner(signer, opts...)
}

// BuildServiceWithSigner creates a presign.Service around an existing signer.
func (c *ServerConfig) BuildServiceWithSigner(signer presign.Signer, opts ...presign.Option) (*presign.Service, error) {
	keys, err := objectkey.NewGenerator(c.KeyStrategy, c.KeyPrefix)
	if err != nil {
		return nil, &presign.ConfigError{Field: "KeyStrategy", Err: err}
	}

	options := append([]presign.Option{presign.WithKeyGenerator(keys)}, opts...)
	return presign.New(signer, presign.Config{
		Bucket:             c.BucketName,
		UploadTTL:          c.UploadTTL(),
		DownloadTTL:        c.DownloadTTL(),
		DefaultContentType: c.DefaultContentType,
		MaxUploadBytes:     c.MaxUploadBytes,
	}, options...)
}
