package local

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-presign/pkg/presign"
)

var fixedNow = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := New(
		WithSecretKey("test-secret"),
		WithBaseURL("http://localhost:8080/objects/"),
		WithClock(func() time.Time { return fixedNow }),
	)
	require.NoError(t, err)
	return s
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New()
	assert.ErrorIs(t, err, ErrNoSecretKey)
}

func TestSigner_SignPut(t *testing.T) {
	s := newTestSigner(t)

	raw, err := s.SignPut(context.Background(), "photos", "uploads/cat.png", "image/png", 300*time.Second)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", u.Host)
	assert.Equal(t, "/objects/photos/uploads/cat.png", u.Path)
	assert.Equal(t, strconv.FormatInt(fixedNow.Add(300*time.Second).Unix(), 10), u.Query().Get("expires"))

	sig := u.Query().Get("signature")
	expires := u.Query().Get("expires")
	assert.NoError(t, s.Verify(http.MethodPut, "/photos/uploads/cat.png", "image/png", sig, expires))
	assert.ErrorIs(t, s.Verify(http.MethodPut, "/photos/uploads/cat.png", "image/jpeg", sig, expires), ErrInvalidSignature)
	assert.ErrorIs(t, s.Verify(http.MethodGet, "/photos/uploads/cat.png", "", sig, expires), ErrInvalidSignature)
}

func TestSigner_SignGet(t *testing.T) {
	s := newTestSigner(t)

	raw, err := s.SignGet(context.Background(), "photos", "uploads/cat.png", time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(fixedNow.Add(time.Hour).Unix(), 10), u.Query().Get("expires"))
	assert.NoError(t, s.Verify(http.MethodGet, "/photos/uploads/cat.png", "", u.Query().Get("signature"), u.Query().Get("expires")))
}

func TestSigner_Verify(t *testing.T) {
	s := newTestSigner(t)
	raw, err := s.SignGet(context.Background(), "photos", "a.png", time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	sig := u.Query().Get("signature")
	expires := u.Query().Get("expires")

	tests := []struct {
		name      string
		path      string
		signature string
		expires   string
		wantErr   error
	}{
		{name: "Valid", path: "/photos/a.png", signature: sig, expires: expires},
		{name: "MissingSignature", path: "/photos/a.png", expires: expires, wantErr: ErrMissingSignature},
		{name: "BadExpires", path: "/photos/a.png", signature: sig, expires: "soon", wantErr: ErrInvalidExpiration},
		{name: "Expired", path: "/photos/a.png", signature: sig, expires: strconv.FormatInt(fixedNow.Add(-time.Second).Unix(), 10), wantErr: ErrExpired},
		{name: "OtherPath", path: "/photos/b.png", signature: sig, expires: expires, wantErr: ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Verify(http.MethodGet, tt.path, "", tt.signature, tt.expires)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSigner_VerifyRequest(t *testing.T) {
	s := newTestSigner(t)
	raw, err := s.SignPut(context.Background(), "photos", "a.png", "image/png", time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/photos/a.png?"+u.RawQuery, nil)
	req.Header.Set("Content-Type", "image/png")
	assert.NoError(t, s.VerifyRequest(req))

	req.Header.Set("Content-Type", "text/plain")
	assert.ErrorIs(t, s.VerifyRequest(req), ErrInvalidSignature)
}

func TestSigner_SignPostPolicy(t *testing.T) {
	s := newTestSigner(t)

	policy, err := s.SignPostPolicy(context.Background(), "photos", "uploads/cat.png", []presign.Condition{
		presign.Equals("Content-Type", "image/png"),
		presign.ContentLengthRange(0, 2048),
	}, 5*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/objects/photos", policy.URL)
	assert.Equal(t, "uploads/cat.png", policy.Fields["key"])
	assert.Equal(t, "image/png", policy.Fields["Content-Type"])

	decoded, err := base64.StdEncoding.DecodeString(policy.Fields["policy"])
	require.NoError(t, err)
	assert.Contains(t, string(decoded), `{"Content-Type":"image/png"}`)
	assert.Contains(t, string(decoded), `["content-length-range",0,2048]`)
	assert.Contains(t, string(decoded), `"expiration":"2024-01-01T12:05:00Z"`)

	assert.NoError(t, s.VerifyPolicy(policy.Fields["policy"], policy.Fields["signature"]))
	assert.ErrorIs(t, s.VerifyPolicy(policy.Fields["policy"], "deadbeef"), ErrInvalidSignature)
	assert.ErrorIs(t, s.VerifyPolicy(policy.Fields["policy"], ""), ErrMissingSignature)
}

func TestSigner_SignPostPolicy_UnsupportedCondition(t *testing.T) {
	s := newTestSigner(t)
	_, err := s.SignPostPolicy(context.Background(), "photos", "k", []presign.Condition{{Kind: presign.ConditionKind(42)}}, time.Minute)
	assert.Error(t, err)
}
