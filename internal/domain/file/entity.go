package file

import (
	"fmt"
	"time"
)

// File is the metadata record for one logical uploaded file. Every live
// record has exactly one blob in the storage backend, addressed by
// ObjectKey(OwnerID, StorageKey).
type File struct {
	ID           string
	OwnerID      int64
	StorageKey   string
	OriginalName string
	ContentType  string
	Size         int64
	SignedURL    string
	Version      int
	UploadedAt   time.Time
	UpdatedAt    time.Time
}

// ObjectKey returns the blob address for a record. Blobs are namespaced per
// owner; the user-supplied original name is never part of the address.
func ObjectKey(ownerID int64, storageKey string) string {
	return fmt.Sprintf("%d/%s", ownerID, storageKey)
}

func (f *File) ObjectKey() string {
	return ObjectKey(f.OwnerID, f.StorageKey)
}
