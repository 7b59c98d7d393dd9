package cron

import (
	"context"
	"log/slog"

	"github.com/stashbox/stashbox-backend-go/internal/repository/postgresql"
)

// RefreshTokenCleanup returns a job that prunes refresh tokens past their
// expiry. Revocation checks never match them anyway; this keeps the table
// from growing without bound.
func RefreshTokenCleanup(repo postgresql.JWTRepository) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		deleted, err := repo.DeleteExpiredRefreshTokens(ctx)
		if err != nil {
			return err
		}
		if deleted > 0 {
			slog.Info("Pruned expired refresh tokens", "count", deleted)
		}
		return nil
	}
}
