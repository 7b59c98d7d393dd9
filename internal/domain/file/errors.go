package file

import "errors"

var (
	// ErrFileNotFound covers both a missing record and a record owned by
	// someone else; the two are deliberately indistinguishable so that
	// existence never leaks across owners.
	ErrFileNotFound = errors.New("file not found")

	ErrFileRequired         = errors.New("file is required")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrFileTooLarge         = errors.New("file exceeds maximum upload size")

	// ErrUpdateConflict is returned when a replace loses the optimistic
	// version check against a concurrent replace or delete.
	ErrUpdateConflict = errors.New("file was modified concurrently")

	ErrStorageBackend = errors.New("storage backend failure")
)
