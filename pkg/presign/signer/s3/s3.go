package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/tendant/simple-presign/pkg/presign"
)

// Config options for the S3 signer
type Config struct {
	Region          string // AWS region
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	SessionToken    string // Optional session token for temporary credentials
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)

	// Server-side encryption applied to presigned PUT uploads
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm
}

// presigner is the subset of *s3.PresignClient used by the Signer
type presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPostObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignPostOptions)) (*s3.PresignedPostRequest, error)
}

// Signer is an aws-sdk-go-v2 implementation of presign.Signer
type Signer struct {
	client    *s3.Client
	presigner presigner
	config    Config
}

var _ presign.Signer = (*Signer)(nil)

// New creates a new S3 signer. Credentials come from the config when both
// keys are set, otherwise from the default AWS credential chain.
func New(ctx context.Context, config Config) (*Signer, error) {
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	var awsCfg aws.Config
	var err error

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				config.SessionToken,
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(config.Region),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewFromConfig(awsCfg, config), nil
}

// NewFromConfig creates a signer from an already resolved aws.Config
func NewFromConfig(awsCfg aws.Config, config Config) *Signer {
	var s3Options []func(*s3.Options)

	// Custom endpoint for S3-compatible services (MinIO, LocalStack, etc.)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
		})
	}
	if config.UsePathStyle {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Options...)

	return &Signer{
		client:    client,
		presigner: s3.NewPresignClient(client),
		config:    config,
	}
}

// SignPut returns a presigned URL for a PUT upload. The content type is part
// of the signature, so the client must send the same Content-Type header.
func (s *Signer) SignPut(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
	s.applySSE(input)

	result, err := s.presigner.PresignPutObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
		opts.ClientOptions = append(opts.ClientOptions, withSignedContentType(contentType))
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned upload URL: %w", err)
	}

	return result.URL, nil
}

// SignPostPolicy returns a presigned POST policy. Equality conditions are
// added to the policy document and echoed into the form fields.
func (s *Signer) SignPostPolicy(ctx context.Context, bucket, key string, conditions []presign.Condition, ttl time.Duration) (*presign.PostPolicy, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	policyConditions, fields, err := buildConditions(conditions)
	if err != nil {
		return nil, err
	}

	result, err := s.presigner.PresignPostObject(ctx, input, func(opts *s3.PresignPostOptions) {
		opts.Expires = ttl
		opts.Conditions = policyConditions
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned post policy: %w", err)
	}

	values := make(map[string]string, len(result.Values)+len(fields))
	for k, v := range result.Values {
		values[k] = v
	}
	for k, v := range fields {
		values[k] = v
	}

	return &presign.PostPolicy{URL: result.URL, Fields: values}, nil
}

// SignGet returns a presigned URL for downloading an object
func (s *Signer) SignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	result, err := s.presigner.PresignGetObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
	}

	return result.URL, nil
}

// VerifyBucket checks that the bucket exists and is reachable with the
// configured credentials. A missing bucket is reported as a configuration error.
func (s *Signer) VerifyBucket(ctx context.Context, bucket string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket":
			return &presign.ConfigError{Field: "bucket", Err: fmt.Errorf("bucket %s does not exist", bucket)}
		case "Forbidden", "AccessDenied":
			return &presign.ConfigError{Field: "bucket", Err: fmt.Errorf("access to bucket %s denied", bucket)}
		}
	}
	return fmt.Errorf("failed to check bucket: %w", err)
}

// The presign client strips Content-Type from bodyless requests before
// signing. signedContentType runs after that step and puts it back.
type signedContentType struct {
	value string
}

func (m *signedContentType) ID() string {
	return "SignedContentType"
}

func (m *signedContentType) HandleBuild(ctx context.Context, in middleware.BuildInput, next middleware.BuildHandler) (
	out middleware.BuildOutput, metadata middleware.Metadata, err error,
) {
	req, ok := in.Request.(*smithyhttp.Request)
	if !ok {
		return out, metadata, fmt.Errorf("unknown transport type %T", in.Request)
	}
	req.Header.Set("Content-Type", m.value)
	return next.HandleBuild(ctx, in)
}

func withSignedContentType(contentType string) func(*s3.Options) {
	return func(o *s3.Options) {
		if contentType == "" {
			return
		}
		o.APIOptions = append(o.APIOptions, func(stack *middleware.Stack) error {
			return stack.Build.Add(&signedContentType{value: contentType}, middleware.After)
		})
	}
}

func (s *Signer) applySSE(input *s3.PutObjectInput) {
	if !s.config.EnableSSE {
		return
	}
	switch s.config.SSEAlgorithm {
	case "AES256":
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	case "aws:kms":
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		if s.config.SSEKMSKeyID != "" {
			input.SSEKMSKeyId = aws.String(s.config.SSEKMSKeyID)
		}
	}
}

// buildConditions converts policy conditions to the shapes the POST policy
// document expects: {"field": "value"} and ["content-length-range", min, max].
func buildConditions(conditions []presign.Condition) ([]interface{}, map[string]string, error) {
	out := make([]interface{}, 0, len(conditions))
	fields := make(map[string]string)

	for _, c := range conditions {
		switch c.Kind {
		case presign.ConditionEquals:
			if c.Field == "" {
				return nil, nil, errors.New("policy condition field is required")
			}
			out = append(out, map[string]string{c.Field: c.Value})
			fields[c.Field] = c.Value
		case presign.ConditionContentLengthRange:
			out = append(out, []interface{}{"content-length-range", c.Min, c.Max})
		default:
			return nil, nil, fmt.Errorf("unsupported policy condition kind: %d", c.Kind)
		}
	}
	return out, fields, nil
}
