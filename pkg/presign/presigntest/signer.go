// Package presigntest provides a recording Signer for tests of code built on
// the presign package.
package presigntest

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/tendant/simple-presign/pkg/presign"
)

// Call records a single invocation of the Signer.
type Call struct {
	Method      string
	Bucket      string
	Key         string
	ContentType string
	Conditions  []presign.Condition
	TTL         time.Duration
}

// Signer is a presign.Signer that returns deterministic URLs of the form
// https://<bucket>.storage.test/<key>?method=PUT&ttl=300 and records every call.
// Setting Err makes every method fail with it.
type Signer struct {
	Err error

	mu    sync.Mutex
	calls []Call
}

var _ presign.Signer = (*Signer)(nil)

// New creates a Signer that succeeds
func New() *Signer {
	return &Signer{}
}

// Failing creates a Signer whose every call returns err
func Failing(err error) *Signer {
	return &Signer{Err: err}
}

func (s *Signer) SignPut(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (string, error) {
	s.record(Call{Method: "PUT", Bucket: bucket, Key: key, ContentType: contentType, TTL: ttl})
	if s.Err != nil {
		return "", s.Err
	}
	return fakeURL(bucket, key, "PUT", ttl), nil
}

func (s *Signer) SignPostPolicy(ctx context.Context, bucket, key string, conditions []presign.Condition, ttl time.Duration) (*presign.PostPolicy, error) {
	s.record(Call{Method: "POST", Bucket: bucket, Key: key, Conditions: conditions, TTL: ttl})
	if s.Err != nil {
		return nil, s.Err
	}

	fields := map[string]string{
		"key":    key,
		"policy": fmt.Sprintf("policy-%d", int(ttl.Seconds())),
	}
	for _, c := range conditions {
		if c.Kind == presign.ConditionEquals {
			fields[c.Field] = c.Value
		}
	}
	return &presign.PostPolicy{
		URL:    fmt.Sprintf("https://%s.storage.test/", bucket),
		Fields: fields,
	}, nil
}

func (s *Signer) SignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	s.record(Call{Method: "GET", Bucket: bucket, Key: key, TTL: ttl})
	if s.Err != nil {
		return "", s.Err
	}
	return fakeURL(bucket, key, "GET", ttl), nil
}

// Calls returns a copy of the recorded calls
func (s *Signer) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns the number of recorded calls
func (s *Signer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *Signer) record(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

func fakeURL(bucket, key, method string, ttl time.Duration) string {
	u := url.URL{
		Scheme: "https",
		Host:   bucket + ".storage.test",
		Path:   "/" + key,
	}
	q := url.Values{}
	q.Set("method", method)
	q.Set("ttl", fmt.Sprintf("%d", int(ttl.Seconds())))
	u.RawQuery = q.Encode()
	return u.String()
}
