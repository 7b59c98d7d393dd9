package response

import (
	"errors"
	"net/http"

	"github.com/stashbox/stashbox-backend-go/internal/domain/auth"
	"github.com/stashbox/stashbox-backend-go/internal/domain/file"
	"github.com/stashbox/stashbox-backend-go/internal/domain/user"
	"github.com/stashbox/stashbox-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth domain errors
	case errors.Is(err, auth.ErrInvalidCredentials):
		Unauthorized(w, err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		Unauthorized(w, "Invalid or expired token")
	case errors.Is(err, auth.ErrTokenExpired):
		Unauthorized(w, "Token expired")
	case errors.Is(err, auth.ErrRefreshTokenRevoked):
		Unauthorized(w, "Refresh token revoked")
	case errors.Is(err, auth.ErrRefreshTokenCookieNotFound),
		errors.Is(err, auth.ErrRefreshTokenCookieEmpty):
		Unauthorized(w, "Refresh token missing")
	case errors.Is(err, auth.ErrEmailAlreadyExists),
		errors.Is(err, user.ErrUserEmailExists):
		Conflict(w, "Email already registered")
	case errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, user.ErrUserNotFound):
		NotFound(w, "User not found")

	// File domain errors
	case errors.Is(err, file.ErrFileNotFound):
		NotFound(w, "File not found")
	case errors.Is(err, file.ErrFileRequired):
		BadRequest(w, "File is required", nil)
	case errors.Is(err, file.ErrUnsupportedMediaType):
		UnsupportedMediaType(w, "File type is not allowed")
	case errors.Is(err, file.ErrFileTooLarge):
		PayloadTooLarge(w, "File exceeds the maximum upload size")
	case errors.Is(err, file.ErrUpdateConflict):
		Conflict(w, "File was modified concurrently, retry with the latest version")

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
