// Package presign issues short-lived, pre-authorized credentials for moving
// objects in and out of an S3-compatible bucket without proxying the bytes.
//
// A Service combines an immutable Config (bucket, TTLs, key strategy) with a
// Signer backend. It exposes three operations that mirror the public HTTP
// surface:
//
//   - IssueUploadURL: a single presigned PUT URL bound to a content type
//   - IssueUploadPost: a presigned POST policy (URL + form fields) that
//     enforces the content type at the storage service
//   - IssueDownloadURL: a presigned GET URL for an existing object key
//
// Signer implementations live under signer/ (aws-sdk-go-v2, minio-go and a
// local HMAC signer). Transports live under api/ (chi) and lambda/ (API
// Gateway proxy events).
//
// Errors returned by the Service fall into three kinds, checked with
// errors.Is: ErrValidation (caller input, 400), ErrUpstream (signing failed,
// 500) and ErrConfiguration (startup only). Transports also report
// ErrMalformedBody (unparseable JSON, 500).
//
// 500 responses carry a fixed message (InternalErrorMessage or
// MalformedBodyMessage) by default; the raw error text, such as a signing
// failure's own message, is only returned when error exposure is switched on
// (PublicMessage with expose set, EXPOSE_ERROR_DETAILS in config).
package presign
