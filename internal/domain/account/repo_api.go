package account

import (
	"context"
	"fmt"

	"github.com/orthovision/portal/internal/platform/apiclient"
	"github.com/orthovision/portal/internal/platform/auth"
)

type apiRepo struct {
	api *apiclient.Client
}

// NewAPIRepository returns a Repository backed by the clinic API.
func NewAPIRepository(api *apiclient.Client) Repository {
	return &apiRepo{api: api}
}

func (r *apiRepo) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	resp, err := r.api.SignIn(ctx, apiclient.SignInRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return identityFrom(resp), nil
}

func (r *apiRepo) SignUp(ctx context.Context, form SignUpForm) (*Identity, error) {
	resp, err := r.api.SignUp(ctx, apiclient.SignUpRequest{
		Email:    form.Email,
		Password: form.Password,
		FullName: form.FullName,
		Role:     form.Role,
	})
	if err != nil {
		return nil, err
	}
	return identityFrom(resp), nil
}

func identityFrom(resp *apiclient.AuthResponse) *Identity {
	return &Identity{
		Token:     resp.Token,
		UserID:    resp.UserID.String(),
		Role:      resp.Role,
		PatientID: resp.PatientID.String(),
	}
}

func (r *apiRepo) Logout(ctx context.Context) error {
	return r.api.Logout(ctx, auth.TokenFromContext(ctx))
}

func (r *apiRepo) GetUser(ctx context.Context, userID string) (*User, error) {
	u, err := r.api.GetUser(ctx, auth.TokenFromContext(ctx), apiclient.ID(userID))
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	id := u.UserID.String()
	if id == "" {
		id = u.ID.String()
	}
	return &User{ID: id, FullName: u.FullName, Email: u.Email, Role: u.Role}, nil
}

func (r *apiRepo) UpdateName(ctx context.Context, userID, fullName string) error {
	if err := r.api.UpdateUserName(ctx, auth.TokenFromContext(ctx), apiclient.ID(userID), fullName); err != nil {
		if apiclient.IsNotFound(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update user %s: %w", userID, err)
	}
	return nil
}
