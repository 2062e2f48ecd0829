// Package client calls a presign server and moves object bytes through the
// URLs it hands out.
//
// Upload flow:
//  1. UploadURL obtains a presigned PUT URL and the object key
//  2. Put sends the bytes straight to storage with the signed Content-Type
//  3. DownloadURL resolves the redirect target for the stored object
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-presign/pkg/presign"
)

// APIError is a non-2xx reply from the presign server or from storage.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client talks to the upload-url, upload-post and download endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for a server rooted at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadURL requests a presigned PUT URL for fileName. An empty contentType
// leaves the choice to the server.
func (c *Client) UploadURL(ctx context.Context, fileName, contentType string) (*presign.UploadURLResult, error) {
	var result presign.UploadURLResult
	req := presign.UploadRequest{FileName: fileName, ContentType: contentType}
	if err := c.postJSON(ctx, "/upload-url", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadPost requests a presigned POST policy for fileName.
func (c *Client) UploadPost(ctx context.Context, fileName, contentType string) (*presign.UploadPostResult, error) {
	var result presign.UploadPostResult
	req := presign.UploadRequest{FileName: fileName, ContentType: contentType}
	if err := c.postJSON(ctx, "/upload-post", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DownloadURL returns the redirect target for objectKey without following it.
func (c *Client) DownloadURL(ctx context.Context, objectKey string) (string, error) {
	endpoint := c.baseURL + "/download/" + url.PathEscape(objectKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	hc := *c.httpClient
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		return "", decodeError(resp)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", errors.New("redirect without Location header")
	}
	return location, nil
}

// Put uploads body to a presigned PUT URL. contentType must match the one
// the URL was signed for.
func (c *Client) Put(ctx context.Context, uploadURL, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	return nil
}

// Upload requests a PUT URL for fileName and sends body to it, returning the
// object key.
func (c *Client) Upload(ctx context.Context, fileName, contentType string, body io.Reader) (string, error) {
	if contentType == "" {
		contentType = presign.DefaultContentType
	}
	issued, err := c.UploadURL(ctx, fileName, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to get upload URL: %w", err)
	}
	if err := c.Put(ctx, issued.UploadURL, contentType, body); err != nil {
		return "", err
	}
	return issued.ObjectKey, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, response any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError reads either error shape the server emits: {"message"} for
// rejected uploads and {"error"} for everything else.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}
