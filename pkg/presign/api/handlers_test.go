package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-presign/pkg/presign"
	"github.com/tendant/simple-presign/pkg/presign/presigntest"
)

func newTestHandlers(t *testing.T, signer presign.Signer, opts ...HandlerOption) *Handlers {
	t.Helper()
	svc, err := presign.New(signer, presign.Config{Bucket: "test-bucket"})
	require.NoError(t, err)
	return NewHandlers(svc, opts...)
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestUploadURL(t *testing.T) {
	signer := presigntest.New()
	h := newTestHandlers(t, signer).Routes()

	rec := serve(h, http.MethodPost, "/upload-url", `{"fileName":"cat.png"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decodeBody(t, rec)
	assert.Equal(t, "uploads/cat.png", body["objectKey"])
	uploadURL, _ := body["uploadUrl"].(string)
	assert.Contains(t, uploadURL, "test-bucket")
	assert.Contains(t, uploadURL, "uploads/cat.png")

	calls := signer.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "PUT", calls[0].Method)
	assert.Equal(t, "image/jpeg", calls[0].ContentType)
}

func TestUploadPost(t *testing.T) {
	signer := presigntest.New()
	h := newTestHandlers(t, signer).Routes()

	rec := serve(h, http.MethodPost, "/upload-post", `{"fileName":"cat.png","contentType":"image/png"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body presign.UploadPostResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "uploads/cat.png", body.ObjectKey)
	assert.Equal(t, "image/png", body.Fields["Content-Type"])
	assert.Equal(t, "uploads/cat.png", body.Fields["key"])
	assert.Equal(t, "https://test-bucket.storage.test/", body.URL)
}

func TestUpload_MissingFileName(t *testing.T) {
	for _, path := range []string{"/upload-url", "/upload-post"} {
		for _, payload := range []string{`{}`, `{"fileName":""}`, ``} {
			t.Run(path+" "+payload, func(t *testing.T) {
				signer := presigntest.New()
				h := newTestHandlers(t, signer).Routes()

				rec := serve(h, http.MethodPost, path, payload)
				require.Equal(t, http.StatusBadRequest, rec.Code)
				assert.JSONEq(t, `{"message":"fileName is required"}`, rec.Body.String())
				assert.Zero(t, signer.CallCount())
			})
		}
	}
}

func TestUpload_MalformedBody(t *testing.T) {
	signer := presigntest.New()
	h := newTestHandlers(t, signer).Routes()

	for _, target := range []string{"/upload-url", "/upload-post"} {
		rec := serve(h, http.MethodPost, target, `{"fileName":`)
		require.Equal(t, http.StatusInternalServerError, rec.Code, target)
		assert.JSONEq(t, `{"error":"request body could not be parsed"}`, rec.Body.String())
	}
	assert.Zero(t, signer.CallCount())
}

func TestUpload_MalformedBody_ExposedDetails(t *testing.T) {
	signer := presigntest.New()
	h := newTestHandlers(t, signer, WithExposeErrors(true)).Routes()

	rec := serve(h, http.MethodPost, "/upload-url", `{"fileName":`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "unexpected end of JSON input", decodeBody(t, rec)["error"])
	assert.Zero(t, signer.CallCount())
}

func TestUpload_WrongFieldTypes(t *testing.T) {
	signer := presigntest.New()
	h := newTestHandlers(t, signer).Routes()

	for _, payload := range []string{`[]`, `{"fileName":42}`} {
		rec := serve(h, http.MethodPost, "/upload-url", payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code, payload)
		assert.Equal(t, "request body must be a JSON object with string fields", decodeBody(t, rec)["message"])
	}
	assert.Zero(t, signer.CallCount())
}

func TestUpload_EmptyContentTypeUsesDefault(t *testing.T) {
	signer := presigntest.New()
	h := newTestHandlers(t, signer).Routes()

	rec := serve(h, http.MethodPost, "/upload-url", `{"fileName":"cat.png","contentType":""}`)
	require.Equal(t, http.StatusOK, rec.Code)

	calls := signer.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "image/jpeg", calls[0].ContentType)
}

func TestUpload_BodyTooLarge(t *testing.T) {
	signer := presigntest.New()
	h := newTestHandlers(t, signer).Routes()

	payload := `{"fileName":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	rec := serve(h, http.MethodPost, "/upload-url", payload)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"request body too large"}`, rec.Body.String())
	assert.Zero(t, signer.CallCount())
}

func TestUpload_SignerFailure(t *testing.T) {
	cause := errors.New("credentials expired")

	t.Run("Controlled", func(t *testing.T) {
		h := newTestHandlers(t, presigntest.Failing(cause)).Routes()

		for _, path := range []string{"/upload-url", "/upload-post"} {
			rec := serve(h, http.MethodPost, path, `{"fileName":"cat.png"}`)
			require.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t, `{"error":"failed to issue presigned credential"}`, rec.Body.String())
		}
	})

	t.Run("Exposed", func(t *testing.T) {
		h := newTestHandlers(t, presigntest.Failing(cause), WithExposeErrors(true)).Routes()

		rec := serve(h, http.MethodPost, "/upload-url", `{"fileName":"cat.png"}`)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"credentials expired"}`, rec.Body.String())
	})
}

func TestDownload(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		wantKey string
	}{
		{name: "EncodedSlash", target: "/download/uploads%2Fcat.png", wantKey: "uploads/cat.png"},
		{name: "PlainPath", target: "/download/uploads/cat.png", wantKey: "uploads/cat.png"},
		{name: "EncodedSpace", target: "/download/a%20b.png", wantKey: "a b.png"},
		{name: "EncodedPercent", target: "/download/100%25.png", wantKey: "100%.png"},
		{name: "PlusIsLiteral", target: "/download/a+b.png", wantKey: "a+b.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer := presigntest.New()
			h := newTestHandlers(t, signer).Routes()

			rec := serve(h, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusFound, rec.Code)
			assert.Empty(t, rec.Body.String())

			calls := signer.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, "GET", calls[0].Method)
			assert.Equal(t, tt.wantKey, calls[0].Key)
			assert.Equal(t, "test-bucket", calls[0].Bucket)
			assert.Contains(t, rec.Header().Get("Location"), "https://test-bucket.storage.test/")
			assert.Contains(t, rec.Header().Get("Location"), "ttl=3600")
		})
	}
}

func TestDownload_MissingKey(t *testing.T) {
	for _, target := range []string{"/download", "/download/"} {
		t.Run(target, func(t *testing.T) {
			signer := presigntest.New()
			h := newTestHandlers(t, signer).Routes()

			rec := serve(h, http.MethodGet, target, "")
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"objectKey is required"}`, rec.Body.String())
			assert.Zero(t, signer.CallCount())
		})
	}
}

func TestDownload_InvalidEncoding(t *testing.T) {
	signer := presigntest.New()
	h := newTestHandlers(t, signer).Routes()

	req := httptest.NewRequest(http.MethodGet, "/download/x", nil)
	req.URL.RawPath = "/download/bad%zzkey"
	req.URL.Path = "/download/bad%zzkey"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "error")
	assert.Zero(t, signer.CallCount())
}

func TestDownload_SignerFailure(t *testing.T) {
	h := newTestHandlers(t, presigntest.Failing(errors.New("boom"))).Routes()

	rec := serve(h, http.MethodGet, "/download/uploads%2Fcat.png", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
	assert.JSONEq(t, `{"error":"failed to issue presigned credential"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	h := newTestHandlers(t, presigntest.New()).Routes()

	rec := serve(h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
