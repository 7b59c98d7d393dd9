package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashbox/stashbox-backend-go/internal/domain/file"
	"github.com/stashbox/stashbox-backend-go/internal/pkg/database"
	"github.com/stashbox/stashbox-backend-go/internal/repository/postgresql"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	require.NoError(t, database.Migrate(dsn))

	db, err := database.NewPostgreSQLDB(dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	ctx := context.Background()
	for _, table := range []string{"files", "refresh_tokens", "users"} {
		_, err := db.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		require.NoError(t, err)
	}

	return db
}

func createTestUser(t *testing.T, db *database.DB, email string) int64 {
	t.Helper()

	var id int64
	err := db.QueryRow(context.Background(), `
		INSERT INTO users (email, email_verified)
		VALUES ($1, TRUE)
		RETURNING id
	`, email).Scan(&id)
	require.NoError(t, err)
	return id
}

func seedFile(t *testing.T, repo file.Repository, ownerID int64, name string) file.File {
	t.Helper()

	created, err := repo.Create(context.Background(), file.File{
		OwnerID:      ownerID,
		StorageKey:   fmt.Sprintf("key-%s", name),
		OriginalName: name,
		ContentType:  "text/plain",
		Size:         64,
		SignedURL:    "https://blob.test/" + name,
	})
	require.NoError(t, err)
	return created
}

func TestFileRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ownerID := createTestUser(t, db, "owner@example.com")
	repo := postgresql.NewFileRepository(db)

	created := seedFile(t, repo, ownerID, "doc.txt")
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 1, created.Version)
	assert.False(t, created.UploadedAt.IsZero())

	found, err := repo.GetByIDAndOwner(ctx, created.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "doc.txt", found.OriginalName)
}

func TestFileRepository_GetByIDAndOwner_WrongOwner(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ownerID := createTestUser(t, db, "owner@example.com")
	otherID := createTestUser(t, db, "other@example.com")
	repo := postgresql.NewFileRepository(db)

	created := seedFile(t, repo, ownerID, "doc.txt")

	_, err := repo.GetByIDAndOwner(ctx, created.ID, otherID)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestFileRepository_Replace(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ownerID := createTestUser(t, db, "owner@example.com")
	repo := postgresql.NewFileRepository(db)

	created := seedFile(t, repo, ownerID, "v1.txt")

	updated := created
	updated.StorageKey = "key-v2"
	updated.OriginalName = "v2.txt"
	updated.Size = 128

	replaced, err := repo.Replace(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, created.ID, replaced.ID)
	assert.Equal(t, "v2.txt", replaced.OriginalName)
	assert.Equal(t, 2, replaced.Version)
	assert.Equal(t, created.UploadedAt, replaced.UploadedAt)

	// the first writer's version is now stale
	_, err = repo.Replace(ctx, updated)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestFileRepository_UpdateSignedURL(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ownerID := createTestUser(t, db, "owner@example.com")
	repo := postgresql.NewFileRepository(db)

	created := seedFile(t, repo, ownerID, "doc.txt")

	require.NoError(t, repo.UpdateSignedURL(ctx, created.ID, ownerID, "https://blob.test/refreshed"))

	found, err := repo.GetByIDAndOwner(ctx, created.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, "https://blob.test/refreshed", found.SignedURL)
	assert.Equal(t, created.Version, found.Version)
}

func TestFileRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ownerID := createTestUser(t, db, "owner@example.com")
	repo := postgresql.NewFileRepository(db)

	created := seedFile(t, repo, ownerID, "doc.txt")

	require.NoError(t, repo.Delete(ctx, created.ID, ownerID))
	assert.ErrorIs(t, repo.Delete(ctx, created.ID, ownerID), pgx.ErrNoRows)
}

func TestFileRepository_ListByOwner(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ownerID := createTestUser(t, db, "owner@example.com")
	otherID := createTestUser(t, db, "other@example.com")
	repo := postgresql.NewFileRepository(db)

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		seedFile(t, repo, ownerID, name)
	}
	seedFile(t, repo, otherID, "theirs.txt")

	t.Run("scoped to owner with total", func(t *testing.T) {
		files, total, err := repo.ListByOwner(ctx, ownerID, file.ListFilter{
			Page: 1, Limit: 10, SortBy: "original_name", SortOrder: "asc",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, files, 3)
		assert.Equal(t, "a.txt", files[0].OriginalName)
		assert.Equal(t, "c.txt", files[2].OriginalName)
	})

	t.Run("pagination past the end", func(t *testing.T) {
		files, total, err := repo.ListByOwner(ctx, ownerID, file.ListFilter{
			Page: 2, Limit: 2, SortBy: "original_name", SortOrder: "asc",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, files, 1)
		assert.Equal(t, "c.txt", files[0].OriginalName)
	})

	t.Run("empty owner", func(t *testing.T) {
		emptyID := createTestUser(t, db, "empty@example.com")
		files, total, err := repo.ListByOwner(ctx, emptyID, file.ListFilter{
			Page: 1, Limit: 10, SortBy: "uploaded_at", SortOrder: "desc",
		})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, files)
	})
}
