package file

import (
	"io"
	"time"

	"github.com/stashbox/stashbox-backend-go/internal/pkg/validator"
)

// SortFields enumerates the columns List may sort on. Anything else is
// rejected before it reaches the service.
var SortFields = []string{"uploaded_at", "original_name", "size", "content_type"}

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

type UploadRequest struct {
	OwnerID     int64
	Data        io.Reader
	FileName    string
	ContentType string
	Size        int64
}

func (r *UploadRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Data == nil || r.Size == 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "file",
			Message: "file is required",
		})
	}
	if r.Size < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "file",
			Message: "file size must not be negative",
		})
	}
	if validator.IsEmpty(r.FileName) {
		errs = append(errs, validator.ValidationError{
			Field:   "file",
			Message: "file name is required",
		})
	}
	if len(r.FileName) > 255 {
		errs = append(errs, validator.ValidationError{
			Field:   "file",
			Message: "file name must not exceed 255 characters",
		})
	}
	if validator.IsEmpty(r.ContentType) || !validator.IsValidContentType(r.ContentType) {
		errs = append(errs, validator.ValidationError{
			Field:   "content_type",
			Message: "content type must be a valid MIME type",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// UpdateRequest carries the replacement payload. Validation rules are the
// same as for an upload.
type UpdateRequest struct {
	Data        io.Reader
	FileName    string
	ContentType string
	Size        int64
}

func (r *UpdateRequest) Validate() error {
	upload := UploadRequest{
		Data:        r.Data,
		FileName:    r.FileName,
		ContentType: r.ContentType,
		Size:        r.Size,
	}
	return upload.Validate()
}

type ListRequest struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

func (r *ListRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Page < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "page",
			Message: "page must be a positive number",
		})
	}
	if r.Limit < 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must be a positive number",
		})
	}
	if r.Limit > MaxLimit {
		errs = append(errs, validator.ValidationError{
			Field:   "limit",
			Message: "limit must not exceed 100",
		})
	}
	if r.SortBy != "" && !validator.IsInSlice(r.SortBy, SortFields) {
		errs = append(errs, validator.ValidationError{
			Field:   "sort_by",
			Message: "sort_by must be one of uploaded_at, original_name, size, content_type",
		})
	}
	if r.SortOrder != "" && r.SortOrder != "asc" && r.SortOrder != "desc" {
		errs = append(errs, validator.ValidationError{
			Field:   "sort_order",
			Message: "sort_order must be either asc or desc",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// Normalize fills in defaults for unset pagination and sort parameters.
func (r *ListRequest) Normalize() {
	if r.Page == 0 {
		r.Page = DefaultPage
	}
	if r.Limit == 0 {
		r.Limit = DefaultLimit
	}
	if r.SortBy == "" {
		r.SortBy = "uploaded_at"
	}
	if r.SortOrder == "" {
		r.SortOrder = "desc"
	}
}

// FileResponse is the wire shape handed to the transport layer. The storage
// key stays internal.
type FileResponse struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	SignedURL   string    `json:"signed_url"`
	UploadedAt  time.Time `json:"uploaded_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (f *File) ToResponse() FileResponse {
	return FileResponse{
		ID:          f.ID,
		Filename:    f.OriginalName,
		ContentType: f.ContentType,
		Size:        f.Size,
		SignedURL:   f.SignedURL,
		UploadedAt:  f.UploadedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func ToResponses(files []File) []FileResponse {
	responses := make([]FileResponse, 0, len(files))
	for i := range files {
		responses = append(responses, files[i].ToResponse())
	}
	return responses
}
