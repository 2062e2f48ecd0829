package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_CountsByStatus(t *testing.T) {
	m := New()

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/ok", "/ok", "/missing"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("200", "GET")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("400", "GET")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inflight))
}

func TestObserveIssue(t *testing.T) {
	m := New()

	m.ObserveIssue("upload_url", "success", time.Millisecond)
	m.ObserveIssue("upload_url", "success", time.Millisecond)
	m.ObserveIssue("download", "invalid", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.issued.WithLabelValues("upload_url", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.issued.WithLabelValues("download", "invalid")))
}

func TestHandler_ExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveIssue("upload_post", "error", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `presign_credentials_issued_total{kind="upload_post",outcome="error"} 1`))
}
