package presign

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tendant/simple-presign/pkg/presign/objectkey"
)

const tracerName = "github.com/tendant/simple-presign/pkg/presign"

// Config is the immutable, process-wide configuration of a Service.
type Config struct {
	Bucket             string
	UploadTTL          time.Duration
	DownloadTTL        time.Duration
	DefaultContentType string
	// MaxUploadBytes adds a content-length-range condition to POST policies when positive.
	MaxUploadBytes int64
}

// Service issues presigned credentials for a single bucket.
type Service struct {
	cfg      Config
	signer   Signer
	keys     KeyGenerator
	recorder Recorder
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option represents a functional option for configuring the service
type Option func(*Service)

// WithKeyGenerator sets the object key derivation strategy
func WithKeyGenerator(g KeyGenerator) Option {
	return func(s *Service) {
		s.keys = g
	}
}

// WithRecorder sets the issuance observer (metrics)
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithLogger sets the logger used for diagnostic detail
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// New creates a Service. Zero-valued TTLs and content type fall back to the
// package defaults; a missing bucket or signer is a configuration error.
func New(signer Signer, cfg Config, options ...Option) (*Service, error) {
	if signer == nil {
		return nil, &ConfigError{Field: "signer", Err: errors.New("signer is required")}
	}
	if cfg.Bucket == "" {
		return nil, &ConfigError{Field: "bucket", Err: errors.New("bucket name is required")}
	}
	if cfg.UploadTTL <= 0 {
		cfg.UploadTTL = DefaultUploadTTL
	}
	if cfg.DownloadTTL <= 0 {
		cfg.DownloadTTL = DefaultDownloadTTL
	}
	if cfg.DefaultContentType == "" {
		cfg.DefaultContentType = DefaultContentType
	}

	s := &Service{
		cfg:    cfg,
		signer: signer,
	}
	for _, option := range options {
		option(s)
	}

	if s.keys == nil {
		s.keys = objectkey.NewPrefixGenerator(DefaultKeyPrefix)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s, nil
}

// Config returns a copy of the service configuration
func (s *Service) Config() Config {
	return s.cfg
}

// IssueUploadURL validates req and returns a presigned PUT URL for its object key.
func (s *Service) IssueUploadURL(ctx context.Context, req UploadRequest) (result *UploadURLResult, err error) {
	defer s.observe(KindUploadURL, time.Now(), &err)

	if err := validateUploadRequest(req); err != nil {
		return nil, err
	}

	key := s.keys.GenerateKey(req.FileName)
	contentType := s.contentType(req)

	ctx, span := s.startSpan(ctx, "presign.SignPut", key)
	defer span.End()

	url, err := s.signer.SignPut(ctx, s.cfg.Bucket, key, contentType, s.cfg.UploadTTL)
	if err != nil {
		return nil, s.signFailed(span, "put", key, err)
	}

	s.logger.DebugContext(ctx, "Issued upload URL", "object_key", key, "content_type", contentType)
	return &UploadURLResult{UploadURL: url, ObjectKey: key}, nil
}

// IssueUploadPost validates req and returns a presigned POST policy that
// restricts the upload to the requested content type.
func (s *Service) IssueUploadPost(ctx context.Context, req UploadRequest) (result *UploadPostResult, err error) {
	defer s.observe(KindUploadPost, time.Now(), &err)

	if err := validateUploadRequest(req); err != nil {
		return nil, err
	}

	key := s.keys.GenerateKey(req.FileName)
	contentType := s.contentType(req)

	conditions := []Condition{Equals("Content-Type", contentType)}
	if s.cfg.MaxUploadBytes > 0 {
		conditions = append(conditions, ContentLengthRange(0, s.cfg.MaxUploadBytes))
	}

	ctx, span := s.startSpan(ctx, "presign.SignPostPolicy", key)
	defer span.End()

	policy, err := s.signer.SignPostPolicy(ctx, s.cfg.Bucket, key, conditions, s.cfg.UploadTTL)
	if err != nil {
		return nil, s.signFailed(span, "post", key, err)
	}

	fields := make(map[string]string, len(policy.Fields)+1)
	for k, v := range policy.Fields {
		fields[k] = v
	}
	if _, ok := fields["Content-Type"]; !ok {
		fields["Content-Type"] = contentType
	}

	s.logger.DebugContext(ctx, "Issued upload policy", "object_key", key, "content_type", contentType)
	return &UploadPostResult{URL: policy.URL, Fields: fields, ObjectKey: key}, nil
}

// IssueDownloadURL decodes a percent-encoded object key and returns a
// presigned GET URL for it.
func (s *Service) IssueDownloadURL(ctx context.Context, rawKey string) (result *DownloadResult, err error) {
	defer s.observe(KindDownload, time.Now(), &err)

	key, err := DecodeObjectKey(rawKey)
	if err != nil {
		return nil, err
	}

	ctx, span := s.startSpan(ctx, "presign.SignGet", key)
	defer span.End()

	url, err := s.signer.SignGet(ctx, s.cfg.Bucket, key, s.cfg.DownloadTTL)
	if err != nil {
		return nil, s.signFailed(span, "get", key, err)
	}

	s.logger.DebugContext(ctx, "Issued download URL", "object_key", key)
	return &DownloadResult{URL: url, ObjectKey: key}, nil
}

// contentType treats an empty contentType the same as an absent one
func (s *Service) contentType(req UploadRequest) string {
	if req.ContentType == "" {
		return s.cfg.DefaultContentType
	}
	return req.ContentType
}

func (s *Service) startSpan(ctx context.Context, name, key string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("presign.bucket", s.cfg.Bucket),
		attribute.String("presign.object_key", key),
	))
}

func (s *Service) signFailed(span trace.Span, op, key string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "sign failed")
	return &SignError{Op: op, Key: key, Err: err}
}

func (s *Service) observe(kind string, start time.Time, err *error) {
	if s.recorder == nil {
		return
	}
	outcome := "success"
	switch {
	case *err == nil:
	case IsValidationError(*err):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	s.recorder.ObserveIssue(kind, outcome, time.Since(start))
}
