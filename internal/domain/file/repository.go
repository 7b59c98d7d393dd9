package file

import "context"

// ListFilter is the repository-level pagination/sort input. Callers are
// expected to have validated and normalized it already.
type ListFilter struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

type Repository interface {
	Create(ctx context.Context, newFile File) (File, error)
	GetByIDAndOwner(ctx context.Context, id string, ownerID int64) (File, error)
	// Replace overwrites the record's payload columns and bumps the version.
	// The write only applies when the stored version still matches
	// f.Version; otherwise pgx.ErrNoRows is returned.
	Replace(ctx context.Context, f File) (File, error)
	UpdateSignedURL(ctx context.Context, id string, ownerID int64, signedURL string) error
	Delete(ctx context.Context, id string, ownerID int64) error
	ListByOwner(ctx context.Context, ownerID int64, filter ListFilter) ([]File, int64, error)
}
