package account

import (
	"context"
)

// Repository is the account side of the clinic API. Calls other than SignIn
// and SignUp run as the user whose token is on ctx.
type Repository interface {
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignUp(ctx context.Context, form SignUpForm) (*Identity, error)
	Logout(ctx context.Context) error
	GetUser(ctx context.Context, userID string) (*User, error)
	UpdateName(ctx context.Context, userID, fullName string) error
}
