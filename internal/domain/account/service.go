package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/orthovision/portal/internal/platform/apiclient"
	"github.com/orthovision/portal/internal/platform/auth"
	"github.com/orthovision/portal/internal/platform/session"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUnusableToken      = errors.New("clinic api returned an unusable token")
)

// MaxNameLength bounds the full name on the profile form.
const MaxNameLength = 100

type Service struct {
	repo   Repository
	tokens *auth.TokenValidator
	logger zerolog.Logger
}

func NewService(repo Repository, tokens *auth.TokenValidator, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		tokens: tokens,
		logger: logger.With().Str("component", "account").Logger(),
	}
}

// SignIn exchanges credentials for an API identity. Rejections the user can
// act on come back as *FormError.
func (s *Service) SignIn(ctx context.Context, form SignInForm) (*Identity, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	id, err := s.repo.SignIn(ctx, form.Email, form.Password)
	if err != nil {
		var apiErr *apiclient.Error
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			s.logger.Info().Int("status", apiErr.Status).Msg("sign-in rejected")
			return nil, &FormError{Message: "Invalid email or password."}
		}
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if err := s.checkIdentity(id); err != nil {
		return nil, err
	}
	return id, nil
}

// SignUp registers a new account. A patient can only register once their
// clinician has created a matching patient record; the API's explanation is
// passed through.
func (s *Service) SignUp(ctx context.Context, form SignUpForm) (*Identity, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	id, err := s.repo.SignUp(ctx, form)
	if err != nil {
		var apiErr *apiclient.Error
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			msg := apiErr.Message
			if msg == "" {
				msg = "An error occurred during signup."
			}
			return nil, &FormError{Message: msg}
		}
		return nil, fmt.Errorf("sign up: %w", err)
	}
	if id.Role == "" {
		id.Role = form.Role
	}
	if err := s.checkIdentity(id); err != nil {
		return nil, err
	}
	return id, nil
}

func (s *Service) checkIdentity(id *Identity) error {
	if id.UserID == "" || id.Role == "" {
		return fmt.Errorf("%w: missing user id or role", ErrUnusableToken)
	}
	if _, err := s.tokens.Validate(id.Token); err != nil {
		return fmt.Errorf("%w: %v", ErrUnusableToken, err)
	}
	return nil
}

// Logout tells the API the token is done with.
func (s *Service) Logout(ctx context.Context) error {
	return s.repo.Logout(ctx)
}

func (s *Service) Profile(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}
	return s.repo.GetUser(ctx, userID)
}

// Rename updates the user's full name and returns the stored value.
func (s *Service) Rename(ctx context.Context, userID, fullName string) (string, error) {
	fullName = strings.Join(strings.Fields(fullName), " ")
	if fullName == "" {
		return "", &FormError{Message: "Full name is required."}
	}
	if utf8.RuneCountInString(fullName) > MaxNameLength {
		return "", &FormError{Message: fmt.Sprintf("Full name must be at most %d characters.", MaxNameLength)}
	}
	if err := s.repo.UpdateName(ctx, userID, fullName); err != nil {
		return "", err
	}
	return fullName, nil
}

// Landing is the first page after sign-in: clinicians see their patient
// list, patients their own record.
func Landing(role, patientID string) string {
	switch {
	case role == session.RoleDoctor:
		return "/patients"
	case role == session.RolePatient && patientID != "":
		return "/patients/" + url.PathEscape(patientID)
	default:
		return "/profile"
	}
}

// SafeNext returns next when it is a local path, otherwise fallback.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") ||
		strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") ||
		strings.HasPrefix(next, "/signin") || strings.HasPrefix(next, "/signup") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return fallback
	}
	return next
}
