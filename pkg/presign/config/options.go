package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/tendant/simple-presign/pkg/presign"
)

// WithEnv reads the process environment into the configuration. Unset
// variables keep values applied by earlier options, then fall back to the
// env-default tags. A missing BUCKET_NAME is a configuration error.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return &presign.ConfigError{Err: err}
		}
		return nil
	}
}

// WithBucket sets the target bucket
func WithBucket(name string) Option {
	return func(c *ServerConfig) error {
		if name == "" {
			return &presign.ConfigError{Field: "BucketName", Err: fmt.Errorf("bucket name cannot be empty")}
		}
		c.BucketName = name
		return nil
	}
}

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithBackend selects the signing backend: s3, minio or local
func WithBackend(backend string) Option {
	return func(c *ServerConfig) error {
		switch backend {
		case BackendS3, BackendMinio, BackendLocal:
			c.StorageBackend = backend
			return nil
		default:
			return fmt.Errorf("storage backend must be 's3', 'minio' or 'local', got: %s", backend)
		}
	}
}

// WithS3 configures S3 or S3-compatible credentials and addressing.
// Empty credentials fall back to the default AWS credential chain.
func WithS3(region, accessKeyID, secretAccessKey, endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		if region != "" {
			c.Region = region
		}
		c.AccessKeyID = accessKeyID
		c.SecretAccessKey = secretAccessKey
		c.Endpoint = endpoint
		c.UsePathStyle = usePathStyle
		return nil
	}
}

// WithLocalSigner configures the HMAC development backend and selects it
func WithLocalSigner(secret, baseURL string) Option {
	return func(c *ServerConfig) error {
		if secret == "" {
			return fmt.Errorf("local signer secret cannot be empty")
		}
		c.StorageBackend = BackendLocal
		c.LocalSecret = secret
		if baseURL != "" {
			c.LocalBaseURL = baseURL
		}
		return nil
	}
}

// WithTTLs sets credential lifetimes; zero leaves a value unchanged
func WithTTLs(upload, download time.Duration) Option {
	return func(c *ServerConfig) error {
		if upload < 0 || download < 0 {
			return fmt.Errorf("ttl cannot be negative")
		}
		if upload > 0 {
			c.UploadTTLSeconds = int(upload / time.Second)
		}
		if download > 0 {
			c.DownloadTTLSeconds = int(download / time.Second)
		}
		return nil
	}
}

// WithKeyStrategy sets how object keys are derived from file names
func WithKeyStrategy(strategy, prefix string) Option {
	return func(c *ServerConfig) error {
		c.KeyStrategy = strategy
		c.KeyPrefix = prefix
		return nil
	}
}

// WithMaxUploadBytes caps POST policy uploads; 0 disables the cap
func WithMaxUploadBytes(n int64) Option {
	return func(c *ServerConfig) error {
		if n < 0 {
			return fmt.Errorf("max upload bytes cannot be negative")
		}
		c.MaxUploadBytes = n
		return nil
	}
}

// WithExposeErrorDetails returns raw upstream error text in 500 responses
func WithExposeErrorDetails(expose bool) Option {
	return func(c *ServerConfig) error {
		c.ExposeErrorDetails = expose
		return nil
	}
}
