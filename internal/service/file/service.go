package file

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stashbox/stashbox-backend-go/internal/config"
	"github.com/stashbox/stashbox-backend-go/internal/domain/file"
	"github.com/stashbox/stashbox-backend-go/internal/pkg/storage"
)

// FileServiceImpl sequences the storage backend and the metadata store for
// every lifecycle operation. There is no cross-call state: each call runs to
// completion against the injected collaborators.
//
// Consistency model: blob writes come first, metadata second, and failures
// mid-sequence are surfaced without compensation. The accepted outcomes of
// partial failure are an orphaned blob (blob written, record insert failed)
// and an orphaned record (blob deleted, record delete failed). Reconciling
// those is out of scope here.
type FileServiceImpl struct {
	repo          file.Repository
	provider      storage.Provider
	allowedTypes  map[string]struct{}
	maxUploadSize int64
}

func NewFileService(repo file.Repository, provider storage.Provider, cfg config.StorageConfig) file.Service {
	allowed := make(map[string]struct{}, len(cfg.AllowedContentTypes))
	for _, contentType := range cfg.AllowedContentTypes {
		allowed[strings.ToLower(contentType)] = struct{}{}
	}
	return &FileServiceImpl{
		repo:          repo,
		provider:      provider,
		allowedTypes:  allowed,
		maxUploadSize: cfg.MaxUploadSize,
	}
}

// Upload implements file.Service.
func (s *FileServiceImpl) Upload(ctx context.Context, req file.UploadRequest) (file.File, error) {
	if err := s.validatePayload(req.ContentType, req.Size); err != nil {
		return file.File{}, err
	}

	storageKey, err := generateStorageKey(req.FileName)
	if err != nil {
		return file.File{}, err
	}
	objectKey := file.ObjectKey(req.OwnerID, storageKey)

	if err := s.provider.Upload(ctx, objectKey, req.Data, req.Size, req.ContentType); err != nil {
		return file.File{}, fmt.Errorf("%w: upload blob: %v", file.ErrStorageBackend, err)
	}

	signedURL, err := s.provider.SignedURL(ctx, objectKey, req.FileName)
	if err != nil {
		// The blob is written but no record will reference it.
		slog.Warn("signed URL issuance failed after blob upload, blob orphaned",
			"object_key", objectKey, "error", err)
		return file.File{}, fmt.Errorf("%w: sign url: %v", file.ErrStorageBackend, err)
	}

	newFile := file.File{
		ID:           uuid.New().String(),
		OwnerID:      req.OwnerID,
		StorageKey:   storageKey,
		OriginalName: req.FileName,
		ContentType:  req.ContentType,
		Size:         req.Size,
		SignedURL:    signedURL,
		Version:      1,
	}

	created, err := s.repo.Create(ctx, newFile)
	if err != nil {
		slog.Warn("file record insert failed after blob upload, blob orphaned",
			"object_key", objectKey, "error", err)
		return file.File{}, fmt.Errorf("create file record: %w", err)
	}

	return created, nil
}

// Get implements file.Service. The signed URL is refreshed best-effort: a
// signer failure degrades to the last-known URL instead of failing the read.
func (s *FileServiceImpl) Get(ctx context.Context, id string, ownerID int64) (file.File, error) {
	found, err := s.repo.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return file.File{}, file.ErrFileNotFound
		}
		return file.File{}, fmt.Errorf("get file record: %w", err)
	}

	signedURL, err := s.provider.SignedURL(ctx, found.ObjectKey(), found.OriginalName)
	if err != nil {
		slog.Warn("signed URL refresh failed, returning last-known URL",
			"file_id", found.ID, "error", err)
		return found, nil
	}

	found.SignedURL = signedURL
	if err := s.repo.UpdateSignedURL(ctx, found.ID, ownerID, signedURL); err != nil {
		slog.Warn("failed to persist refreshed signed URL",
			"file_id", found.ID, "error", err)
	}

	return found, nil
}

// Update implements file.Service. The new blob is uploaded before the old one
// is deleted, so a failure mid-sequence never leaves the record without a
// readable blob; the cost is a transient orphan blob when the trailing
// old-blob delete fails.
func (s *FileServiceImpl) Update(ctx context.Context, id string, ownerID int64, req file.UpdateRequest) (file.File, error) {
	if err := s.validatePayload(req.ContentType, req.Size); err != nil {
		return file.File{}, err
	}

	existing, err := s.repo.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return file.File{}, file.ErrFileNotFound
		}
		return file.File{}, fmt.Errorf("get file record: %w", err)
	}

	storageKey, err := generateStorageKey(req.FileName)
	if err != nil {
		return file.File{}, err
	}
	newObjectKey := file.ObjectKey(ownerID, storageKey)

	if err := s.provider.Upload(ctx, newObjectKey, req.Data, req.Size, req.ContentType); err != nil {
		return file.File{}, fmt.Errorf("%w: upload blob: %v", file.ErrStorageBackend, err)
	}

	signedURL, err := s.provider.SignedURL(ctx, newObjectKey, req.FileName)
	if err != nil {
		s.discardBlob(ctx, newObjectKey)
		return file.File{}, fmt.Errorf("%w: sign url: %v", file.ErrStorageBackend, err)
	}

	updated := existing
	updated.StorageKey = storageKey
	updated.OriginalName = req.FileName
	updated.ContentType = req.ContentType
	updated.Size = req.Size
	updated.SignedURL = signedURL

	replaced, err := s.repo.Replace(ctx, updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the version check to a concurrent replace or delete.
			// The record still points at a valid blob, so the one we just
			// wrote is garbage.
			s.discardBlob(ctx, newObjectKey)
			return file.File{}, file.ErrUpdateConflict
		}
		// Unknown persistence outcome; the new blob is left for an
		// out-of-band sweep rather than guessing.
		slog.Warn("file record replace failed after blob upload",
			"file_id", existing.ID, "object_key", newObjectKey, "error", err)
		return file.File{}, fmt.Errorf("replace file record: %w", err)
	}

	if err := s.provider.Delete(ctx, existing.ObjectKey()); err != nil {
		slog.Warn("old blob delete failed, blob orphaned",
			"file_id", existing.ID, "object_key", existing.ObjectKey(), "error", err)
	}

	return replaced, nil
}

// Delete implements file.Service. Blob first, record second: a failure in
// between leaves an orphaned record that a retry can clear, never a record
// pointing at nothing while claiming success.
func (s *FileServiceImpl) Delete(ctx context.Context, id string, ownerID int64) error {
	existing, err := s.repo.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return file.ErrFileNotFound
		}
		return fmt.Errorf("get file record: %w", err)
	}

	if err := s.provider.Delete(ctx, existing.ObjectKey()); err != nil {
		return fmt.Errorf("%w: delete blob: %v", file.ErrStorageBackend, err)
	}

	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Deleted concurrently after our lookup.
			return file.ErrFileNotFound
		}
		return fmt.Errorf("delete file record: %w", err)
	}

	return nil
}

// List implements file.Service.
func (s *FileServiceImpl) List(ctx context.Context, ownerID int64, req file.ListRequest) ([]file.File, int64, error) {
	if err := req.Validate(); err != nil {
		return nil, 0, err
	}
	req.Normalize()

	files, total, err := s.repo.ListByOwner(ctx, ownerID, file.ListFilter{
		Page:      req.Page,
		Limit:     req.Limit,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list file records: %w", err)
	}

	return files, total, nil
}

// validatePayload enforces the upload policy before any side effect.
func (s *FileServiceImpl) validatePayload(contentType string, size int64) error {
	if size <= 0 {
		return file.ErrFileRequired
	}
	if _, ok := s.allowedTypes[strings.ToLower(contentType)]; !ok {
		return file.ErrUnsupportedMediaType
	}
	if size > s.maxUploadSize {
		return file.ErrFileTooLarge
	}
	return nil
}

// discardBlob removes a blob that never made it into a record. Best-effort: a
// failure here only widens the orphan window already accepted above.
func (s *FileServiceImpl) discardBlob(ctx context.Context, objectKey string) {
	if err := s.provider.Delete(ctx, objectKey); err != nil {
		slog.Warn("blob cleanup failed, blob orphaned", "object_key", objectKey, "error", err)
	}
}

// generateStorageKey returns a fresh random token suffixed with the original
// file extension. Collisions are negligible; no existence check is made.
func generateStorageKey(fileName string) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate storage key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b) + strings.ToLower(filepath.Ext(fileName)), nil
}
