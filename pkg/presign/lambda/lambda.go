// Package lambda adapts the presign Service to API Gateway proxy events so the
// same credential endpoints can be deployed as AWS Lambda functions.
package lambda

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/tendant/simple-presign/pkg/presign"
)

// Handler names accepted by Adapter.Handler
const (
	HandlerUploadURL  = "upload-url"
	HandlerUploadPost = "upload-post"
	HandlerDownload   = "download"
)

// Handler is the signature lambda.Start expects for API Gateway proxy integrations
type Handler func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// Adapter translates proxy events to Service calls. Failures are always
// reported through the status code; the returned error is reserved for
// conditions the Lambda runtime should see.
type Adapter struct {
	service      *presign.Service
	exposeErrors bool
	logger       *slog.Logger
}

// Option configures an Adapter
type Option func(*Adapter)

// WithExposeErrors returns raw upstream error text in 500 responses
func WithExposeErrors(expose bool) Option {
	return func(a *Adapter) {
		a.exposeErrors = expose
	}
}

// WithLogger sets the logger used for failed invocations
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// New creates an Adapter serving API Gateway proxy events with service
func New(service *presign.Service, opts ...Option) *Adapter {
	a := &Adapter{
		service: service,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the entry point registered under name
func (a *Adapter) Handler(name string) (Handler, error) {
	switch name {
	case HandlerUploadURL:
		return a.UploadURL, nil
	case HandlerUploadPost:
		return a.UploadPost, nil
	case HandlerDownload:
		return a.Download, nil
	default:
		return nil, &presign.ConfigError{Field: "LambdaHandler", Err: fmt.Errorf("unknown handler %q", name)}
	}
}

// UploadURL handles a POST carrying {fileName, contentType?}
func (a *Adapter) UploadURL(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	upload, err := decodeBody(req)
	if err != nil {
		return a.uploadError(ctx, req, err), nil
	}

	result, err := a.service.IssueUploadURL(ctx, upload)
	if err != nil {
		return a.uploadError(ctx, req, err), nil
	}
	return jsonResponse(http.StatusOK, result), nil
}

// UploadPost handles a POST carrying {fileName, contentType?} and returns a POST policy
func (a *Adapter) UploadPost(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	upload, err := decodeBody(req)
	if err != nil {
		return a.uploadError(ctx, req, err), nil
	}

	result, err := a.service.IssueUploadPost(ctx, upload)
	if err != nil {
		return a.uploadError(ctx, req, err), nil
	}
	return jsonResponse(http.StatusOK, result), nil
}

// Download redirects to a presigned GET URL for pathParameters.objectKey
func (a *Adapter) Download(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	result, err := a.service.IssueDownloadURL(ctx, req.PathParameters["objectKey"])
	if err != nil {
		return a.errorResponse(ctx, req, err, "error"), nil
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers:    map[string]string{"Location": result.URL},
	}, nil
}

func decodeBody(req events.APIGatewayProxyRequest) (presign.UploadRequest, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return presign.UploadRequest{}, &presign.BodyError{Err: fmt.Errorf("invalid base64: %w", err)}
		}
		body = decoded
	}
	return presign.DecodeUploadRequest(body)
}

func (a *Adapter) uploadError(ctx context.Context, req events.APIGatewayProxyRequest, err error) events.APIGatewayProxyResponse {
	if presign.IsValidationError(err) {
		return a.errorResponse(ctx, req, err, "message")
	}
	return a.errorResponse(ctx, req, err, "error")
}

func (a *Adapter) errorResponse(ctx context.Context, req events.APIGatewayProxyRequest, err error, field string) events.APIGatewayProxyResponse {
	status := presign.StatusCode(err)

	attrs := []any{
		"path", req.Path,
		"status", status,
		"request_id", req.RequestContext.RequestID,
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		a.logger.ErrorContext(ctx, "Failed to issue credential", attrs...)
	} else {
		a.logger.InfoContext(ctx, "Rejected credential request", attrs...)
	}

	return jsonResponse(status, map[string]string{field: presign.PublicMessage(err, a.exposeErrors)})
}

func jsonResponse(status int, body any) events.APIGatewayProxyResponse {
	payload, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		payload = []byte(`{"error":"failed to encode response"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(payload),
	}
}
