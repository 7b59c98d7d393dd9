package user

import "context"

type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, newUser User) (User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// LinkGoogleAccount attaches a Google identity to the account registered
	// under email, marking the email verified.
	LinkGoogleAccount(ctx context.Context, googleID, email string) (User, error)
}
