package presign

import "time"

const (
	// DefaultContentType is used when an upload request omits contentType.
	DefaultContentType = "image/jpeg"

	// DefaultUploadTTL is the validity window of upload credentials.
	DefaultUploadTTL = 300 * time.Second

	// DefaultDownloadTTL is the validity window of download URLs.
	DefaultDownloadTTL = 3600 * time.Second

	// DefaultKeyPrefix namespaces every uploaded object key.
	DefaultKeyPrefix = "uploads/"
)

// Credential kinds, used for logging and metrics labels.
const (
	KindUploadURL  = "upload_url"
	KindUploadPost = "upload_post"
	KindDownload   = "download"
)

// UploadRequest is the JSON body accepted by both upload handlers.
type UploadRequest struct {
	FileName    string `json:"fileName" validate:"required"`
	ContentType string `json:"contentType,omitempty"`
}

// UploadURLResult is returned by IssueUploadURL.
type UploadURLResult struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

// UploadPostResult is returned by IssueUploadPost.
type UploadPostResult struct {
	URL       string            `json:"url"`
	Fields    map[string]string `json:"fields"`
	ObjectKey string            `json:"objectKey"`
}

// DownloadResult is returned by IssueDownloadURL. Transports redirect to URL.
type DownloadResult struct {
	URL       string
	ObjectKey string
}

// PostPolicy is a signed browser-form upload bundle: the form is submitted
// to URL with every entry of Fields included as a form field.
type PostPolicy struct {
	URL    string
	Fields map[string]string
}

// ConditionKind selects how a POST policy condition is matched.
type ConditionKind int

const (
	// ConditionEquals requires the form field Field to equal Value exactly.
	ConditionEquals ConditionKind = iota
	// ConditionContentLengthRange bounds the uploaded size to [Min, Max] bytes.
	ConditionContentLengthRange
)

// Condition is a single POST policy restriction enforced by the storage service.
type Condition struct {
	Kind  ConditionKind
	Field string
	Value string
	Min   int64
	Max   int64
}

// Equals builds an exact-match condition on a form field.
func Equals(field, value string) Condition {
	return Condition{Kind: ConditionEquals, Field: field, Value: value}
}

// ContentLengthRange builds a size condition.
func ContentLengthRange(min, max int64) Condition {
	return Condition{Kind: ConditionContentLengthRange, Min: min, Max: max}
}
