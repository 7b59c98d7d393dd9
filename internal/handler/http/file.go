package http

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stashbox/stashbox-backend-go/internal/domain/file"
	"github.com/stashbox/stashbox-backend-go/internal/handler/http/middleware"
	"github.com/stashbox/stashbox-backend-go/internal/handler/http/response"
	"github.com/stashbox/stashbox-backend-go/internal/pkg/validator"
)

// multipartOverhead covers boundary markers and part headers on top of the
// file payload when capping the request body.
const multipartOverhead = 1 << 20

type FileHandler interface {
	Upload(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
}

type FileHandlerImpl struct {
	fileService   file.Service
	maxUploadSize int64
}

func NewFileHandler(fileService file.Service, maxUploadSize int64) FileHandler {
	return &FileHandlerImpl{
		fileService:   fileService,
		maxUploadSize: maxUploadSize,
	}
}

// formFile pulls the "file" part out of a multipart request. The body is
// capped so an oversized upload fails early instead of streaming to the
// storage backend first.
func (h *FileHandlerImpl) formFile(w http.ResponseWriter, r *http.Request) (file.UploadRequest, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return file.UploadRequest{}, nil, file.ErrFileTooLarge
		}
		return file.UploadRequest{}, nil, file.ErrFileRequired
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		return file.UploadRequest{}, nil, file.ErrFileRequired
	}

	req := file.UploadRequest{
		Data:        part,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}
	return req, func() { part.Close() }, nil
}

// Upload implements FileHandler.
func (h *FileHandlerImpl) Upload(w http.ResponseWriter, r *http.Request) {
	ownerID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	req, cleanup, err := h.formFile(w, r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	defer cleanup()
	req.OwnerID = ownerID

	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	created, err := h.fileService.Upload(r.Context(), req)
	if err != nil {
		slog.Error("Upload service error", "error", err, "owner_id", ownerID)
		response.HandleError(w, err)
		return
	}

	slog.Info("File uploaded", "file_id", created.ID, "owner_id", ownerID, "size", created.Size)
	response.Created(w, "File uploaded successfully", created.ToResponse())
}

// Get implements FileHandler.
func (h *FileHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	fileID := chi.URLParam(r, "fileID")
	if !validator.IsValidUUID(fileID) {
		response.HandleError(w, file.ErrFileNotFound)
		return
	}

	found, err := h.fileService.Get(r.Context(), fileID, ownerID)
	if err != nil {
		if !errors.Is(err, file.ErrFileNotFound) {
			slog.Error("Get file service error", "error", err, "file_id", fileID)
		}
		response.HandleError(w, err)
		return
	}

	response.Success(w, found.ToResponse())
}

// Update implements FileHandler.
func (h *FileHandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	fileID := chi.URLParam(r, "fileID")
	if !validator.IsValidUUID(fileID) {
		response.HandleError(w, file.ErrFileNotFound)
		return
	}

	req, cleanup, err := h.formFile(w, r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	defer cleanup()

	updateReq := file.UpdateRequest{
		Data:        req.Data,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Size:        req.Size,
	}
	if err := updateReq.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	updated, err := h.fileService.Update(r.Context(), fileID, ownerID, updateReq)
	if err != nil {
		if !errors.Is(err, file.ErrFileNotFound) && !errors.Is(err, file.ErrUpdateConflict) {
			slog.Error("Update file service error", "error", err, "file_id", fileID)
		}
		response.HandleError(w, err)
		return
	}

	slog.Info("File replaced", "file_id", updated.ID, "owner_id", ownerID, "size", updated.Size)
	response.SuccessWithMessage(w, "File updated successfully", updated.ToResponse())
}

// Delete implements FileHandler.
func (h *FileHandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	fileID := chi.URLParam(r, "fileID")
	if !validator.IsValidUUID(fileID) {
		response.HandleError(w, file.ErrFileNotFound)
		return
	}

	if err := h.fileService.Delete(r.Context(), fileID, ownerID); err != nil {
		if !errors.Is(err, file.ErrFileNotFound) {
			slog.Error("Delete file service error", "error", err, "file_id", fileID)
		}
		response.HandleError(w, err)
		return
	}

	slog.Info("File deleted", "file_id", fileID, "owner_id", ownerID)
	response.SuccessWithMessage(w, "File deleted successfully", nil)
}

// List implements FileHandler.
func (h *FileHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	ownerID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	listReq, err := parseListRequest(r)
	if err != nil {
		response.BadRequest(w, err.Error(), nil)
		return
	}

	if err := listReq.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}
	listReq.Normalize()

	files, total, err := h.fileService.List(r.Context(), ownerID, listReq)
	if err != nil {
		slog.Error("List files service error", "error", err, "owner_id", ownerID)
		response.HandleError(w, err)
		return
	}

	totalPages := int(math.Ceil(float64(total) / float64(listReq.Limit)))
	response.SuccessWithMeta(w, file.ToResponses(files), &response.Meta{
		Page:       listReq.Page,
		Limit:      listReq.Limit,
		TotalItems: total,
		TotalPages: totalPages,
	})
}

func parseListRequest(r *http.Request) (file.ListRequest, error) {
	query := r.URL.Query()
	req := file.ListRequest{
		SortBy:    query.Get("sort_by"),
		SortOrder: query.Get("sort_order"),
	}

	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return file.ListRequest{}, errors.New("page must be a number")
		}
		req.Page = page
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return file.ListRequest{}, errors.New("limit must be a number")
		}
		req.Limit = limit
	}

	return req, nil
}
