// Package local implements presign.Signer with HMAC-SHA256 signed URLs for
// development setups that have no cloud credentials.
//
// Signed URLs have the form
//
//	{baseURL}/{bucket}/{key}?signature={hmac}&expires={unix}
//
// and are checked with Verify by whatever serves baseURL. The payload signed is
// METHOD|/{bucket}/{key}|EXPIRES, plus |CONTENT-TYPE for PUT. POST policies
// sign the base64 policy document itself.
package local

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/simple-presign/pkg/presign"
)

// Signature validation errors
var (
	// ErrNoSecretKey is returned when attempting to sign URLs without a configured secret key
	ErrNoSecretKey = errors.New("local signer: no secret key configured")

	// ErrMissingSignature is returned when the signature query parameter is missing
	ErrMissingSignature = errors.New("local signer: missing signature parameter")

	// ErrInvalidExpiration is returned when the expires parameter is missing or unparsable
	ErrInvalidExpiration = errors.New("local signer: invalid expires parameter")

	// ErrExpired is returned when the presigned URL has expired
	ErrExpired = errors.New("local signer: URL has expired")

	// ErrInvalidSignature is returned when the signature does not match
	ErrInvalidSignature = errors.New("local signer: invalid signature")
)

// Option is a functional option for configuring a Signer
type Option func(*Signer)

// WithSecretKey sets the secret key used for HMAC signing
func WithSecretKey(key string) Option {
	return func(s *Signer) {
		s.secretKey = []byte(key)
	}
}

// WithBaseURL sets the URL prefix of generated links, e.g. http://localhost:8080/objects
func WithBaseURL(baseURL string) Option {
	return func(s *Signer) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// Signer generates and validates HMAC-signed URLs
type Signer struct {
	secretKey []byte
	baseURL   string
	now       func() time.Time
}

var _ presign.Signer = (*Signer)(nil)

// New creates a new Signer with the given options
func New(opts ...Option) (*Signer, error) {
	s := &Signer{
		baseURL: "http://localhost:8080/objects",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.secretKey) == 0 {
		return nil, ErrNoSecretKey
	}
	return s, nil
}

// SignPut signs a PUT for key; the uploader must send the same Content-Type.
func (s *Signer) SignPut(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (string, error) {
	path := objectPath(bucket, key)
	expiresAt := s.now().Add(ttl).Unix()
	sig := s.sign(http.MethodPut, path, expiresAt, contentType)
	return s.signedURL(path, sig, expiresAt), nil
}

// SignGet signs a GET for key
func (s *Signer) SignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	path := objectPath(bucket, key)
	expiresAt := s.now().Add(ttl).Unix()
	sig := s.sign(http.MethodGet, path, expiresAt, "")
	return s.signedURL(path, sig, expiresAt), nil
}

type policyDocument struct {
	Expiration string        `json:"expiration"`
	Conditions []interface{} `json:"conditions"`
}

// SignPostPolicy signs a policy document listing bucket, key and conditions.
// The form posts to {baseURL}/{bucket}.
func (s *Signer) SignPostPolicy(ctx context.Context, bucket, key string, conditions []presign.Condition, ttl time.Duration) (*presign.PostPolicy, error) {
	expires := s.now().Add(ttl).UTC()

	doc := policyDocument{
		Expiration: expires.Format(time.RFC3339),
		Conditions: []interface{}{
			map[string]string{"bucket": bucket},
			map[string]string{"key": key},
		},
	}
	fields := map[string]string{"key": key}

	for _, c := range conditions {
		switch c.Kind {
		case presign.ConditionEquals:
			doc.Conditions = append(doc.Conditions, map[string]string{c.Field: c.Value})
			fields[c.Field] = c.Value
		case presign.ConditionContentLengthRange:
			doc.Conditions = append(doc.Conditions, []interface{}{"content-length-range", c.Min, c.Max})
		default:
			return nil, fmt.Errorf("unsupported policy condition kind: %d", c.Kind)
		}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode policy: %w", err)
	}
	policy := base64.StdEncoding.EncodeToString(raw)
	fields["policy"] = policy
	fields["signature"] = s.generateSignature(policy)

	return &presign.PostPolicy{
		URL:    s.baseURL + "/" + bucket,
		Fields: fields,
	}, nil
}

// Verify checks a signed request for path (/{bucket}/{key}). contentType is
// only significant for PUT.
func (s *Signer) Verify(method, path, contentType, signature, expires string) error {
	if signature == "" {
		return ErrMissingSignature
	}
	expiresAt, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExpiration, err)
	}
	if s.now().Unix() > expiresAt {
		return ErrExpired
	}
	if method != http.MethodPut {
		contentType = ""
	}
	expected := s.sign(method, path, expiresAt, contentType)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyRequest validates an incoming request against its query parameters
func (s *Signer) VerifyRequest(r *http.Request) error {
	q := r.URL.Query()
	return s.Verify(r.Method, r.URL.Path, r.Header.Get("Content-Type"), q.Get("signature"), q.Get("expires"))
}

// VerifyPolicy checks the signature field of a POST policy form
func (s *Signer) VerifyPolicy(policy, signature string) error {
	if signature == "" {
		return ErrMissingSignature
	}
	if !hmac.Equal([]byte(signature), []byte(s.generateSignature(policy))) {
		return ErrInvalidSignature
	}
	return nil
}

// signedURL signs the decoded path but emits it escaped
func (s *Signer) signedURL(path, signature string, expiresAt int64) string {
	escaped := (&url.URL{Path: path}).EscapedPath()
	return fmt.Sprintf("%s%s?signature=%s&expires=%d", s.baseURL, escaped, signature, expiresAt)
}

func (s *Signer) sign(method, path string, expiresAt int64, contentType string) string {
	payload := fmt.Sprintf("%s|%s|%d", method, path, expiresAt)
	if contentType != "" {
		payload += "|" + contentType
	}
	return s.generateSignature(payload)
}

func (s *Signer) generateSignature(payload string) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

func objectPath(bucket, key string) string {
	return "/" + bucket + "/" + strings.TrimPrefix(key, "/")
}
