package postgresql

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stashbox/stashbox-backend-go/internal/domain/file"
	"github.com/stashbox/stashbox-backend-go/internal/pkg/database"
)

type fileRepositoryImpl struct {
	db *database.DB
}

func NewFileRepository(db *database.DB) file.Repository {
	return &fileRepositoryImpl{db: db}
}

const fileColumns = `id, owner_id, storage_key, original_name, content_type, size,
	   signed_url, version, uploaded_at, updated_at`

// sortColumns whitelists the ORDER BY targets; sort input never reaches the
// query as-is.
var sortColumns = map[string]string{
	"uploaded_at":   "uploaded_at",
	"original_name": "original_name",
	"size":          "size",
	"content_type":  "content_type",
}

func scanFile(row interface{ Scan(...any) error }) (file.File, error) {
	var f file.File
	err := row.Scan(
		&f.ID,
		&f.OwnerID,
		&f.StorageKey,
		&f.OriginalName,
		&f.ContentType,
		&f.Size,
		&f.SignedURL,
		&f.Version,
		&f.UploadedAt,
		&f.UpdatedAt,
	)
	return f, err
}

// Create implements file.Repository.
func (r *fileRepositoryImpl) Create(ctx context.Context, newFile file.File) (file.File, error) {
	q := GetQuerier(ctx, r.db)

	if newFile.ID == "" {
		newFile.ID = uuid.New().String()
	}

	query := `
		INSERT INTO files (id, owner_id, storage_key, original_name, content_type, size, signed_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + fileColumns

	return scanFile(q.QueryRow(ctx, query,
		newFile.ID,
		newFile.OwnerID,
		newFile.StorageKey,
		newFile.OriginalName,
		newFile.ContentType,
		newFile.Size,
		newFile.SignedURL,
	))
}

// GetByIDAndOwner implements file.Repository.
func (r *fileRepositoryImpl) GetByIDAndOwner(ctx context.Context, id string, ownerID int64) (file.File, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 AND owner_id = $2`

	return scanFile(q.QueryRow(ctx, query, id, ownerID))
}

// Replace implements file.Repository. The version predicate makes concurrent
// replaces lose cleanly: the second writer sees pgx.ErrNoRows instead of
// silently clobbering the first.
func (r *fileRepositoryImpl) Replace(ctx context.Context, f file.File) (file.File, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE files
		SET storage_key = $1, original_name = $2, content_type = $3, size = $4,
			signed_url = $5, version = version + 1, updated_at = NOW()
		WHERE id = $6 AND owner_id = $7 AND version = $8
		RETURNING ` + fileColumns

	return scanFile(q.QueryRow(ctx, query,
		f.StorageKey,
		f.OriginalName,
		f.ContentType,
		f.Size,
		f.SignedURL,
		f.ID,
		f.OwnerID,
		f.Version,
	))
}

// UpdateSignedURL implements file.Repository. Refreshing a URL is not a
// content change, so the version is left alone.
func (r *fileRepositoryImpl) UpdateSignedURL(ctx context.Context, id string, ownerID int64, signedURL string) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE files
		SET signed_url = $1
		WHERE id = $2 AND owner_id = $3
	`
	_, err := q.Exec(ctx, query, signedURL, id, ownerID)
	return err
}

// Delete implements file.Repository.
func (r *fileRepositoryImpl) Delete(ctx context.Context, id string, ownerID int64) error {
	q := GetQuerier(ctx, r.db)

	query := `DELETE FROM files WHERE id = $1 AND owner_id = $2 RETURNING id`

	var deletedID string
	return q.QueryRow(ctx, query, id, ownerID).Scan(&deletedID)
}

// ListByOwner implements file.Repository.
func (r *fileRepositoryImpl) ListByOwner(ctx context.Context, ownerID int64, filter file.ListFilter) ([]file.File, int64, error) {
	q := GetQuerier(ctx, r.db)

	var total int64
	countQuery := `SELECT COUNT(*) FROM files WHERE owner_id = $1`
	if err := q.QueryRow(ctx, countQuery, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortColumn, ok := sortColumns[filter.SortBy]
	if !ok {
		sortColumn = "uploaded_at"
	}
	direction := "DESC"
	if filter.SortOrder == "asc" {
		direction = "ASC"
	}

	offset := (filter.Page - 1) * filter.Limit

	query := fmt.Sprintf(`
		SELECT `+fileColumns+`
		FROM files
		WHERE owner_id = $1
		ORDER BY %s %s
		LIMIT $2 OFFSET $3
	`, sortColumn, direction)

	rows, err := q.Query(ctx, query, ownerID, filter.Limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var files []file.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, 0, err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return files, total, nil
}
