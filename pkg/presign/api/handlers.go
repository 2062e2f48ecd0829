package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/tendant/simple-presign/pkg/presign"
)

// maxBodyBytes bounds upload request bodies; they only carry a file name
// and a content type.
const maxBodyBytes = 64 << 10

// Handlers serves the presigned credential endpoints
type Handlers struct {
	service      *presign.Service
	exposeErrors bool
	logger       *slog.Logger
}

// HandlerOption configures Handlers
type HandlerOption func(*Handlers)

// WithExposeErrors returns raw upstream error text in 500 responses
func WithExposeErrors(expose bool) HandlerOption {
	return func(h *Handlers) {
		h.exposeErrors = expose
	}
}

// WithHandlerLogger sets the logger used for failed requests
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handlers) {
		h.logger = logger
	}
}

// NewHandlers creates the HTTP handlers for service
func NewHandlers(service *presign.Service, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		service: service,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router for the credential endpoints
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/upload-url", h.UploadURL)
	r.Post("/upload-post", h.UploadPost)
	r.Get("/download", h.Download)
	r.Get("/download/*", h.Download)
	r.Get("/health", h.Health)
	return r
}

// UploadURL issues a presigned PUT URL for the file named in the body
func (h *Handlers) UploadURL(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeUpload(w, r)
	if err != nil {
		h.uploadError(w, r, err)
		return
	}

	result, err := h.service.IssueUploadURL(r.Context(), req)
	if err != nil {
		h.uploadError(w, r, err)
		return
	}

	render.JSON(w, r, result)
}

// UploadPost issues a presigned POST policy for the file named in the body
func (h *Handlers) UploadPost(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeUpload(w, r)
	if err != nil {
		h.uploadError(w, r, err)
		return
	}

	result, err := h.service.IssueUploadPost(r.Context(), req)
	if err != nil {
		h.uploadError(w, r, err)
		return
	}

	render.JSON(w, r, result)
}

// Download redirects to a presigned GET URL for the object key in the path
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.IssueDownloadURL(r.Context(), objectKeyParam(r))
	if err != nil {
		h.writeError(w, r, err, "error")
		return
	}

	// No body: http.Redirect would add an HTML link.
	w.Header().Set("Location", result.URL)
	w.WriteHeader(http.StatusFound)
}

// Health reports liveness
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (h *Handlers) decodeUpload(w http.ResponseWriter, r *http.Request) (presign.UploadRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return presign.UploadRequest{}, &presign.ValidationError{Message: "request body too large"}
		}
		return presign.UploadRequest{}, &presign.ValidationError{Message: "failed to read request body"}
	}
	return presign.DecodeUploadRequest(body)
}

// uploadError writes validation failures as {"message": ...} and everything
// else as {"error": ...}.
func (h *Handlers) uploadError(w http.ResponseWriter, r *http.Request, err error) {
	if presign.IsValidationError(err) {
		h.writeError(w, r, err, "message")
		return
	}
	h.writeError(w, r, err, "error")
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error, field string) {
	status := presign.StatusCode(err)
	msg := presign.PublicMessage(err, h.exposeErrors)

	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Failed to issue credential", attrs...)
	} else {
		h.logger.InfoContext(r.Context(), "Rejected credential request", attrs...)
	}

	render.Status(r, status)
	render.JSON(w, r, map[string]string{field: msg})
}

// objectKeyParam returns the object key segment of the path still
// percent-encoded, so that an encoded "/" survives until it is decoded.
func objectKeyParam(r *http.Request) string {
	key := chi.URLParam(r, "*")
	if key == "" || r.URL.RawPath != "" {
		// chi routes on RawPath when present, so key is still encoded.
		return key
	}
	return (&url.URL{Path: key}).EscapedPath()
}
