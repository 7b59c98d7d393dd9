// Package storage defines the capability interface over the object storage
// backend. One concrete adapter is selected at process start via
// configuration; both adapters speak to S3-compatible stores, so switching
// providers is a config change, not a code change.
package storage

import (
	"context"
	"io"
)

// Provider is the uniform capability set the file service needs from a blob
// backend. Implementations hold the bucket and signed-URL lifetime as
// construction-time configuration.
type Provider interface {
	// Upload writes the blob under key, overwriting any existing object.
	Upload(ctx context.Context, key string, data io.Reader, size int64, contentType string) error

	// SignedURL issues a time-limited read-only URL for key. The returned
	// URL carries a content-disposition forcing a download under
	// displayName. Issuing a URL does not check that the blob exists.
	SignedURL(ctx context.Context, key, displayName string) (string, error)

	// Delete removes the blob at key. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) error
}
