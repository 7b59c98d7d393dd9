package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth/v5"

	"github.com/stashbox/stashbox-backend-go/internal/domain/auth"
	"github.com/stashbox/stashbox-backend-go/internal/handler/http/response"
	"github.com/stashbox/stashbox-backend-go/internal/pkg/jwt"
)

// AuthRequired rejects requests whose verified token is missing or is not an
// access token. Must run after jwtauth.Verifier.
func AuthRequired(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			token, _, err := jwtauth.FromContext(r.Context())
			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}

			if token == nil {
				response.HandleError(w, auth.ErrInvalidToken)
				return
			}

			claims, err := token.AsMap(r.Context())
			if err != nil {
				response.HandleError(w, auth.ErrInvalidToken)
				return
			}
			tokenType, ok := claims["type"].(string)
			if !ok || tokenType != "access" {
				response.HandleError(w, auth.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

// UserIDFromContext extracts the authenticated user's id from the verified
// token claims.
func UserIDFromContext(ctx context.Context) (int64, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return 0, auth.ErrInvalidToken
	}

	value, ok := claims["user_id"]
	if !ok {
		return 0, auth.ErrInvalidToken
	}

	userID, err := jwt.UserIDFromClaim(value)
	if err != nil {
		return 0, auth.ErrInvalidToken
	}
	return userID, nil
}
