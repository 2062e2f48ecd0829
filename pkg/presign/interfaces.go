package presign

import (
	"context"
	"time"
)

// Signer mints presigned credentials against a storage service. Implementations
// must be safe for concurrent use; signing is side-effect free and is never
// retried by the Service.
type Signer interface {
	// SignPut returns a URL authorizing a single PUT of key with the given content type.
	SignPut(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (string, error)

	// SignPostPolicy returns a POST policy for key restricted by conditions.
	// Fields for every ConditionEquals must be present in the returned policy.
	SignPostPolicy(ctx context.Context, bucket, key string, conditions []Condition, ttl time.Duration) (*PostPolicy, error)

	// SignGet returns a URL authorizing a GET of key.
	SignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// KeyGenerator derives an object key from a client supplied file name.
type KeyGenerator interface {
	GenerateKey(fileName string) string
}

// Recorder observes credential issuance. outcome is "success", "invalid" or "error".
type Recorder interface {
	ObserveIssue(kind, outcome string, elapsed time.Duration)
}
