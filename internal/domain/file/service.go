package file

import "context"

// Service is the file lifecycle orchestrator: it enforces the upload policy
// (content-type allow-list, size cap) and sequences the storage backend and
// the metadata store across create/replace/delete. Partial failures are
// surfaced, never compensated; see the service implementation for the
// accepted orphan windows.
type Service interface {
	Upload(ctx context.Context, req UploadRequest) (File, error)
	Get(ctx context.Context, id string, ownerID int64) (File, error)
	Update(ctx context.Context, id string, ownerID int64, req UpdateRequest) (File, error)
	Delete(ctx context.Context, id string, ownerID int64) error
	List(ctx context.Context, ownerID int64, req ListRequest) ([]File, int64, error)
}
