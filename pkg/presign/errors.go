package presign

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds
var (
	// ErrValidation indicates the caller supplied an invalid request
	ErrValidation = errors.New("invalid request")

	// ErrUpstream indicates the storage service could not sign the credential
	ErrUpstream = errors.New("storage service failure")

	// ErrConfiguration indicates the process is misconfigured and must not start
	ErrConfiguration = errors.New("invalid configuration")

	// ErrMalformedBody indicates the request body could not be parsed
	ErrMalformedBody = errors.New("malformed request body")
)

// InternalErrorMessage is returned to callers in place of upstream error text.
const InternalErrorMessage = "failed to issue presigned credential"

// MalformedBodyMessage is returned to callers in place of parser error text.
const MalformedBodyMessage = "request body could not be parsed"

// ValidationError reports a missing or malformed request field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// SignError represents a failure of the signing backend
type SignError struct {
	Op  string
	Key string
	Err error
}

func (e *SignError) Error() string {
	return fmt.Sprintf("sign operation %s failed for key %s: %v", e.Op, e.Key, e.Err)
}

func (e *SignError) Is(target error) bool {
	return target == ErrUpstream
}

func (e *SignError) Unwrap() error {
	return e.Err
}

// BodyError wraps a request body that could not be parsed. It is reported as a
// server error, not a validation error.
type BodyError struct {
	Err error
}

func (e *BodyError) Error() string {
	return fmt.Sprintf("failed to parse request body: %v", e.Err)
}

func (e *BodyError) Is(target error) bool {
	return target == ErrMalformedBody
}

func (e *BodyError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration problem detected at startup
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsValidationError returns true if err was caused by caller input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// StatusCode maps an error returned by the Service to an HTTP status code.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that may be shown to a caller for err.
// Validation messages are always shown. Malformed bodies get
// MalformedBodyMessage and other errors get InternalErrorMessage, unless
// expose is set, in which case the underlying error text is returned.
func PublicMessage(err error, expose bool) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	var berr *BodyError
	if errors.As(err, &berr) {
		if expose {
			return berr.Err.Error()
		}
		return MalformedBodyMessage
	}
	if !expose {
		return InternalErrorMessage
	}
	var serr *SignError
	if errors.As(err, &serr) && serr.Err != nil {
		return serr.Err.Error()
	}
	return err.Error()
}
