package presign

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// DecodeUploadRequest parses and validates an upload request body. An empty
// body is treated as an empty JSON object. Syntactically broken JSON yields a
// *BodyError; well-formed JSON of the wrong shape yields a *ValidationError.
func DecodeUploadRequest(body []byte) (UploadRequest, error) {
	var req UploadRequest

	body = bytes.TrimSpace(body)
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				return UploadRequest{}, &ValidationError{
					Message: "request body must be a JSON object with string fields",
				}
			}
			return UploadRequest{}, &BodyError{Err: err}
		}
	}

	if err := validateUploadRequest(req); err != nil {
		return UploadRequest{}, err
	}
	return req, nil
}

func validateUploadRequest(req UploadRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := verrs[0].Field()
		return &ValidationError{Field: field, Message: field + " is required"}
	}
	return &ValidationError{Message: err.Error()}
}

// DecodeObjectKey percent-decodes an object key taken from a request path.
// Slashes and other reserved characters arrive encoded; "+" is left as is.
func DecodeObjectKey(raw string) (string, error) {
	if raw == "" {
		return "", &ValidationError{Field: "objectKey", Message: "objectKey is required"}
	}

	key, err := url.PathUnescape(raw)
	if err != nil {
		return "", &ValidationError{
			Field:   "objectKey",
			Message: "objectKey is not a valid percent-encoded key",
		}
	}
	if key == "" {
		return "", &ValidationError{Field: "objectKey", Message: "objectKey is required"}
	}
	return key, nil
}
