package integration

import (
	"context"
	"encoding/json"
	"errors"
)

// ---------------------------------------------------------------------------
// CatalogPlatform Errors
// ---------------------------------------------------------------------------

var (
	ErrPlatformNotConfigured   = errors.New("integration: platform not configured")
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrPlatformAuthFailed      = errors.New("integration: platform authentication failed")
	ErrPlatformRateLimited     = errors.New("integration: platform rate limited")
)

// ---------------------------------------------------------------------------
// CatalogPlatform port
// ---------------------------------------------------------------------------

// CatalogPlatform is the remote catalog the local products are synced to.
// Authentication, retry and transport are the adapter's concern.
type CatalogPlatform interface {
	// UpsertProduct creates or overwrites a remote product
	UpsertProduct(ctx context.Context, vars ProductSetVariables) (*UpsertResult, error)

	// FetchExisting returns the remote state of the product with the given handle.
	// A product that does not exist remotely yields EmptyExistingProduct, not an error.
	FetchExisting(ctx context.Context, handle string, includeVariants bool) (*ExistingProduct, error)

	// ResolveHandles returns the remote IDs of the products with the given handles,
	// in the remote's response order. Unknown handles are absent from the result.
	ResolveHandles(ctx context.Context, handles []string) ([]string, error)
}

// UserError is a validation error reported by the remote for a mutation
type UserError struct {
	Field   []string `json:"field,omitempty"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

// UpsertResult is the outcome of one upsert mutation
type UpsertResult struct {
	ProductID  string
	UserErrors []UserError
	// Raw is the full response body, kept for the audit log
	Raw json.RawMessage
}

// HasUserErrors reports whether the remote rejected part of the mutation
func (r *UpsertResult) HasUserErrors() bool {
	return len(r.UserErrors) > 0
}
