package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashbox/stashbox-backend-go/internal/config"
	"github.com/stashbox/stashbox-backend-go/internal/domain/file"
)

type fakeProvider struct {
	objects   map[string][]byte
	ops       []string
	uploadErr error
	signErr   error
	deleteErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{objects: make(map[string][]byte)}
}

func (p *fakeProvider) Upload(_ context.Context, key string, data io.Reader, _ int64, _ string) error {
	p.ops = append(p.ops, "upload:"+key)
	if p.uploadErr != nil {
		return p.uploadErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	p.objects[key] = b
	return nil
}

func (p *fakeProvider) SignedURL(_ context.Context, key, displayName string) (string, error) {
	p.ops = append(p.ops, "sign:"+key)
	if p.signErr != nil {
		return "", p.signErr
	}
	return fmt.Sprintf("https://blob.test/%s?dn=%s&exp=900", key, displayName), nil
}

func (p *fakeProvider) Delete(_ context.Context, key string) error {
	p.ops = append(p.ops, "delete:"+key)
	if p.deleteErr != nil {
		return p.deleteErr
	}
	delete(p.objects, key)
	return nil
}

type fakeRepo struct {
	files        map[string]file.File
	ops          []string
	createErr    error
	replaceErr   error
	updateURLErr error
	deleteErr    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{files: make(map[string]file.File)}
}

func (r *fakeRepo) Create(_ context.Context, newFile file.File) (file.File, error) {
	r.ops = append(r.ops, "create:"+newFile.ID)
	if r.createErr != nil {
		return file.File{}, r.createErr
	}
	now := time.Now()
	newFile.UploadedAt = now
	newFile.UpdatedAt = now
	r.files[newFile.ID] = newFile
	return newFile, nil
}

func (r *fakeRepo) GetByIDAndOwner(_ context.Context, id string, ownerID int64) (file.File, error) {
	found, ok := r.files[id]
	if !ok || found.OwnerID != ownerID {
		return file.File{}, pgx.ErrNoRows
	}
	return found, nil
}

func (r *fakeRepo) Replace(_ context.Context, f file.File) (file.File, error) {
	r.ops = append(r.ops, "replace:"+f.ID)
	if r.replaceErr != nil {
		return file.File{}, r.replaceErr
	}
	stored, ok := r.files[f.ID]
	if !ok || stored.OwnerID != f.OwnerID || stored.Version != f.Version {
		return file.File{}, pgx.ErrNoRows
	}
	f.Version = stored.Version + 1
	f.UploadedAt = stored.UploadedAt
	f.UpdatedAt = time.Now()
	r.files[f.ID] = f
	return f, nil
}

func (r *fakeRepo) UpdateSignedURL(_ context.Context, id string, ownerID int64, signedURL string) error {
	if r.updateURLErr != nil {
		return r.updateURLErr
	}
	stored, ok := r.files[id]
	if !ok || stored.OwnerID != ownerID {
		return pgx.ErrNoRows
	}
	stored.SignedURL = signedURL
	r.files[id] = stored
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id string, ownerID int64) error {
	r.ops = append(r.ops, "delete:"+id)
	if r.deleteErr != nil {
		return r.deleteErr
	}
	stored, ok := r.files[id]
	if !ok || stored.OwnerID != ownerID {
		return pgx.ErrNoRows
	}
	delete(r.files, id)
	return nil
}

func (r *fakeRepo) ListByOwner(_ context.Context, ownerID int64, filter file.ListFilter) ([]file.File, int64, error) {
	r.ops = append(r.ops, fmt.Sprintf("list:%s:%s:%d:%d", filter.SortBy, filter.SortOrder, filter.Page, filter.Limit))
	var owned []file.File
	for _, f := range r.files {
		if f.OwnerID == ownerID {
			owned = append(owned, f)
		}
	}
	return owned, int64(len(owned)), nil
}

func testStorageConfig() config.StorageConfig {
	return config.StorageConfig{
		MaxUploadSize: 10 << 20,
		AllowedContentTypes: []string{
			"image/jpeg", "image/png", "application/pdf", "text/plain",
		},
	}
}

func newTestService(repo file.Repository, provider *fakeProvider) file.Service {
	return NewFileService(repo, provider, testStorageConfig())
}

func uploadRequest(ownerID int64, name, contentType string, size int64) file.UploadRequest {
	return file.UploadRequest{
		OwnerID:     ownerID,
		Data:        bytes.NewReader(make([]byte, size)),
		FileName:    name,
		ContentType: contentType,
		Size:        size,
	}
}

func TestUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("success creates blob and record", func(t *testing.T) {
		repo := newFakeRepo()
		provider := newFakeProvider()
		svc := newTestService(repo, provider)

		created, err := svc.Upload(ctx, uploadRequest(42, "photo.jpg", "image/jpeg", 1024))
		require.NoError(t, err)

		assert.NotEmpty(t, created.ID)
		assert.Equal(t, int64(42), created.OwnerID)
		assert.Equal(t, "photo.jpg", created.OriginalName)
		assert.Equal(t, "image/jpeg", created.ContentType)
		assert.Equal(t, int64(1024), created.Size)
		assert.Equal(t, 1, created.Version)
		assert.NotEmpty(t, created.SignedURL)

		// blob is namespaced under the owner and keeps the extension,
		// never the original name
		assert.True(t, strings.HasPrefix(created.ObjectKey(), "42/"))
		assert.True(t, strings.HasSuffix(created.StorageKey, ".jpg"))
		assert.NotContains(t, created.StorageKey, "photo")
		assert.Contains(t, provider.objects, created.ObjectKey())
		assert.Len(t, repo.files, 1)
	})

	t.Run("storage keys are unique per upload", func(t *testing.T) {
		repo := newFakeRepo()
		provider := newFakeProvider()
		svc := newTestService(repo, provider)

		first, err := svc.Upload(ctx, uploadRequest(1, "a.png", "image/png", 10))
		require.NoError(t, err)
		second, err := svc.Upload(ctx, uploadRequest(1, "a.png", "image/png", 10))
		require.NoError(t, err)

		assert.NotEqual(t, first.StorageKey, second.StorageKey)
		assert.Len(t, provider.objects, 2)
	})

	t.Run("rejects missing payload", func(t *testing.T) {
		svc := newTestService(newFakeRepo(), newFakeProvider())

		_, err := svc.Upload(ctx, file.UploadRequest{OwnerID: 1, FileName: "a.txt", ContentType: "text/plain"})
		assert.ErrorIs(t, err, file.ErrFileRequired)
	})

	t.Run("rejects disallowed content type", func(t *testing.T) {
		repo := newFakeRepo()
		provider := newFakeProvider()
		svc := newTestService(repo, provider)

		_, err := svc.Upload(ctx, uploadRequest(1, "payload.bin", "application/octet-stream", 10))
		assert.ErrorIs(t, err, file.ErrUnsupportedMediaType)
		assert.Empty(t, provider.ops)
		assert.Empty(t, repo.files)
	})

	t.Run("rejects oversize payload", func(t *testing.T) {
		provider := newFakeProvider()
		svc := newTestService(newFakeRepo(), provider)

		req := uploadRequest(1, "big.pdf", "application/pdf", (10<<20)+1)
		_, err := svc.Upload(ctx, req)
		assert.ErrorIs(t, err, file.ErrFileTooLarge)
		assert.Empty(t, provider.ops)
	})

	t.Run("content type match is case-insensitive", func(t *testing.T) {
		svc := newTestService(newFakeRepo(), newFakeProvider())

		_, err := svc.Upload(ctx, uploadRequest(1, "photo.JPG", "Image/JPEG", 10))
		assert.NoError(t, err)
	})

	t.Run("blob upload failure creates no record", func(t *testing.T) {
		repo := newFakeRepo()
		provider := newFakeProvider()
		provider.uploadErr = errors.New("connection refused")
		svc := newTestService(repo, provider)

		_, err := svc.Upload(ctx, uploadRequest(1, "a.txt", "text/plain", 10))
		assert.ErrorIs(t, err, file.ErrStorageBackend)
		assert.Empty(t, repo.files)
	})

	t.Run("signer failure creates no record", func(t *testing.T) {
		repo := newFakeRepo()
		provider := newFakeProvider()
		provider.signErr = errors.New("signer unavailable")
		svc := newTestService(repo, provider)

		_, err := svc.Upload(ctx, uploadRequest(1, "a.txt", "text/plain", 10))
		assert.ErrorIs(t, err, file.ErrStorageBackend)
		assert.Empty(t, repo.files)
		// the orphaned blob stays; nothing references it
		assert.Len(t, provider.objects, 1)
	})

	t.Run("record insert failure leaves blob orphaned", func(t *testing.T) {
		repo := newFakeRepo()
		repo.createErr = errors.New("deadlock detected")
		provider := newFakeProvider()
		svc := newTestService(repo, provider)

		_, err := svc.Upload(ctx, uploadRequest(1, "a.txt", "text/plain", 10))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, file.ErrStorageBackend)
		assert.Len(t, provider.objects, 1)
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) (*fakeRepo, *fakeProvider, file.Service, file.File) {
		t.Helper()
		repo := newFakeRepo()
		provider := newFakeProvider()
		svc := newTestService(repo, provider)
		created, err := svc.Upload(ctx, uploadRequest(7, "doc.pdf", "application/pdf", 2048))
		require.NoError(t, err)
		return repo, provider, svc, created
	}

	t.Run("refreshes and persists signed URL", func(t *testing.T) {
		repo, _, svc, created := seed(t)

		found, err := svc.Get(ctx, created.ID, 7)
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.NotEmpty(t, found.SignedURL)
		assert.Equal(t, found.SignedURL, repo.files[created.ID].SignedURL)
	})

	t.Run("signer failure degrades to last-known URL", func(t *testing.T) {
		_, provider, svc, created := seed(t)
		provider.signErr = errors.New("signer unavailable")

		found, err := svc.Get(ctx, created.ID, 7)
		require.NoError(t, err)
		assert.Equal(t, created.SignedURL, found.SignedURL)
	})

	t.Run("persist failure still returns refreshed URL", func(t *testing.T) {
		repo, _, svc, created := seed(t)
		repo.updateURLErr = errors.New("connection reset")

		found, err := svc.Get(ctx, created.ID, 7)
		require.NoError(t, err)
		assert.NotEmpty(t, found.SignedURL)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, _, svc, _ := seed(t)

		_, err := svc.Get(ctx, "2b0e7f74-14de-4a6b-8c4f-1f2b45f7f3aa", 7)
		assert.ErrorIs(t, err, file.ErrFileNotFound)
	})

	t.Run("other owner's file looks absent", func(t *testing.T) {
		_, _, svc, created := seed(t)

		_, err := svc.Get(ctx, created.ID, 8)
		assert.ErrorIs(t, err, file.ErrFileNotFound)
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) (*fakeRepo, *fakeProvider, file.Service, file.File) {
		t.Helper()
		repo := newFakeRepo()
		provider := newFakeProvider()
		svc := newTestService(repo, provider)
		created, err := svc.Upload(ctx, uploadRequest(3, "v1.jpg", "image/jpeg", 1024000))
		require.NoError(t, err)
		return repo, provider, svc, created
	}

	updateReq := func(name, contentType string, size int64) file.UpdateRequest {
		return file.UpdateRequest{
			Data:        bytes.NewReader(make([]byte, size)),
			FileName:    name,
			ContentType: contentType,
			Size:        size,
		}
	}

	t.Run("replaces blob and record, keeps id", func(t *testing.T) {
		repo, provider, svc, created := seed(t)

		updated, err := svc.Update(ctx, created.ID, 3, updateReq("v2.pdf", "application/pdf", 2048000))
		require.NoError(t, err)

		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "v2.pdf", updated.OriginalName)
		assert.Equal(t, "application/pdf", updated.ContentType)
		assert.Equal(t, int64(2048000), updated.Size)
		assert.Equal(t, 2, updated.Version)
		assert.NotEqual(t, created.StorageKey, updated.StorageKey)
		assert.Equal(t, created.UploadedAt, updated.UploadedAt)

		// old blob gone, new blob present
		assert.NotContains(t, provider.objects, created.ObjectKey())
		assert.Contains(t, provider.objects, updated.ObjectKey())
		assert.Len(t, repo.files, 1)
	})

	t.Run("uploads the new blob before deleting the old one", func(t *testing.T) {
		_, provider, svc, created := seed(t)

		updated, err := svc.Update(ctx, created.ID, 3, updateReq("v2.png", "image/png", 512))
		require.NoError(t, err)

		var sequence []string
		for _, op := range provider.ops {
			if op == "upload:"+updated.ObjectKey() || op == "delete:"+created.ObjectKey() {
				sequence = append(sequence, op)
			}
		}
		require.Equal(t, []string{"upload:" + updated.ObjectKey(), "delete:" + created.ObjectKey()}, sequence)
	})

	t.Run("new blob upload failure leaves everything intact", func(t *testing.T) {
		repo, provider, svc, created := seed(t)
		provider.uploadErr = errors.New("connection refused")

		_, err := svc.Update(ctx, created.ID, 3, updateReq("v2.png", "image/png", 512))
		assert.ErrorIs(t, err, file.ErrStorageBackend)
		assert.Contains(t, provider.objects, created.ObjectKey())
		assert.Equal(t, created, repo.files[created.ID])
	})

	t.Run("version conflict discards the new blob", func(t *testing.T) {
		repo, provider, svc, created := seed(t)

		// a concurrent replace lands between our read and our write
		repo.replaceErr = pgx.ErrNoRows

		_, err := svc.Update(ctx, created.ID, 3, updateReq("v2.png", "image/png", 512))
		assert.ErrorIs(t, err, file.ErrUpdateConflict)

		// only the original blob remains
		assert.Len(t, provider.objects, 1)
		assert.Contains(t, provider.objects, created.ObjectKey())
	})

	t.Run("old blob delete failure still succeeds", func(t *testing.T) {
		_, provider, svc, created := seed(t)
		provider.deleteErr = errors.New("throttled")

		updated, err := svc.Update(ctx, created.ID, 3, updateReq("v2.png", "image/png", 512))
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Version)
	})

	t.Run("unknown id uploads nothing", func(t *testing.T) {
		_, provider, svc, _ := seed(t)
		before := len(provider.objects)

		_, err := svc.Update(ctx, "9f1c3a4e-0000-0000-0000-000000000000", 3, updateReq("v2.png", "image/png", 512))
		assert.ErrorIs(t, err, file.ErrFileNotFound)
		assert.Len(t, provider.objects, before)
	})

	t.Run("policy applies to replacements too", func(t *testing.T) {
		_, _, svc, created := seed(t)

		_, err := svc.Update(ctx, created.ID, 3, updateReq("v2.exe", "application/x-msdownload", 512))
		assert.ErrorIs(t, err, file.ErrUnsupportedMediaType)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) (*fakeRepo, *fakeProvider, file.Service, file.File) {
		t.Helper()
		repo := newFakeRepo()
		provider := newFakeProvider()
		svc := newTestService(repo, provider)
		created, err := svc.Upload(ctx, uploadRequest(5, "gone.txt", "text/plain", 64))
		require.NoError(t, err)
		return repo, provider, svc, created
	}

	t.Run("removes blob then record", func(t *testing.T) {
		repo, provider, svc, created := seed(t)

		require.NoError(t, svc.Delete(ctx, created.ID, 5))
		assert.Empty(t, provider.objects)
		assert.Empty(t, repo.files)

		// blob delete must precede the record delete
		assert.Equal(t, "delete:"+created.ObjectKey(), provider.ops[len(provider.ops)-1])
	})

	t.Run("delete is not idempotent at the API level", func(t *testing.T) {
		_, _, svc, created := seed(t)

		require.NoError(t, svc.Delete(ctx, created.ID, 5))
		assert.ErrorIs(t, svc.Delete(ctx, created.ID, 5), file.ErrFileNotFound)
	})

	t.Run("blob failure keeps the record", func(t *testing.T) {
		repo, provider, svc, created := seed(t)
		provider.deleteErr = errors.New("throttled")

		err := svc.Delete(ctx, created.ID, 5)
		assert.ErrorIs(t, err, file.ErrStorageBackend)
		assert.Contains(t, repo.files, created.ID)
	})

	t.Run("record failure after blob delete leaves orphaned record", func(t *testing.T) {
		repo, provider, svc, created := seed(t)
		repo.deleteErr = errors.New("connection reset")

		err := svc.Delete(ctx, created.ID, 5)
		assert.Error(t, err)
		assert.Empty(t, provider.objects)
		assert.Contains(t, repo.files, created.ID)

		// a retry clears it once the store recovers
		repo.deleteErr = nil
		assert.NoError(t, svc.Delete(ctx, created.ID, 5))
	})

	t.Run("other owner cannot delete", func(t *testing.T) {
		repo, _, svc, created := seed(t)

		assert.ErrorIs(t, svc.Delete(ctx, created.ID, 6), file.ErrFileNotFound)
		assert.Contains(t, repo.files, created.ID)
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()

	t.Run("applies defaults", func(t *testing.T) {
		repo := newFakeRepo()
		svc := newTestService(repo, newFakeProvider())

		_, _, err := svc.List(ctx, 1, file.ListRequest{})
		require.NoError(t, err)
		assert.Equal(t, []string{"list:uploaded_at:desc:1:20"}, repo.ops)
	})

	t.Run("rejects unknown sort column", func(t *testing.T) {
		svc := newTestService(newFakeRepo(), newFakeProvider())

		_, _, err := svc.List(ctx, 1, file.ListRequest{SortBy: "owner_id"})
		assert.Error(t, err)
	})

	t.Run("only the owner's files are returned", func(t *testing.T) {
		repo := newFakeRepo()
		provider := newFakeProvider()
		svc := newTestService(repo, provider)

		_, err := svc.Upload(ctx, uploadRequest(1, "mine.txt", "text/plain", 8))
		require.NoError(t, err)
		_, err = svc.Upload(ctx, uploadRequest(2, "theirs.txt", "text/plain", 8))
		require.NoError(t, err)

		files, total, err := svc.List(ctx, 1, file.ListRequest{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, files, 1)
		assert.Equal(t, "mine.txt", files[0].OriginalName)
	})
}
