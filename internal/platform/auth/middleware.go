package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/orthovision/portal/internal/platform/session"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRolesKey contextKey = "user_roles"
	PatientIDKey contextKey = "patient_id"
	TokenKey     contextKey = "api_token"
)

var (
	ErrNoToken      = errors.New("no api token")
	ErrTokenExpired = errors.New("api token expired")
	ErrTokenInvalid = errors.New("api token invalid")
)

// TokenValidator decides whether a clinic API token is still usable. A token
// that cannot be decoded, has no exp claim, or whose exp has passed is
// rejected. With a signing secret the HS256 signature is verified too.
type TokenValidator struct {
	secret []byte
	now    func() time.Time
}

func NewTokenValidator(secret string) *TokenValidator {
	v := &TokenValidator{now: time.Now}
	if secret != "" {
		v.secret = []byte(secret)
	}
	return v
}

// Validate returns the token's registered claims or the reason it is unusable.
func (v *TokenValidator) Validate(token string) (*jwt.RegisteredClaims, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	claims := &jwt.RegisteredClaims{}
	if len(v.secret) > 0 {
		parser := jwt.NewParser(
			jwt.WithValidMethods([]string{"HS256"}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(v.now),
		)
		_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			return v.secret, nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, ErrTokenExpired
			}
			return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
		return claims, nil
	}

	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrTokenInvalid)
	}
	if !v.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

// SessionEnder ends a browser session. *session.Manager satisfies it.
type SessionEnder interface {
	Destroy(c echo.Context) error
}

// RequireSignIn admits requests whose session holds a usable API token and
// copies the session identity into the request context. Anything else ends
// the session and redirects to the sign-in page.
func RequireSignIn(v *TokenValidator, sessions SessionEnder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if AuthSkipper(c) {
				return next(c)
			}

			s := session.From(c)
			if _, err := v.Validate(s.Token); err != nil {
				if s.Token != "" {
					c.Logger().Debugf("session %s signed out: %v", s.ID, err)
					_ = sessions.Destroy(c)
				}
				return SignInRedirect(c)
			}

			ctx := WithIdentity(c.Request().Context(), s)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// SignInRedirect sends the browser to the sign-in page, remembering the
// page it asked for when that was a plain GET.
func SignInRedirect(c echo.Context) error {
	target := "/signin"
	if c.Request().Method == http.MethodGet {
		target += "?next=" + url.QueryEscape(c.Request().URL.RequestURI())
	}
	return c.Redirect(http.StatusSeeOther, target)
}

// WithIdentity stores the session identity on ctx.
func WithIdentity(ctx context.Context, s *session.Session) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, s.UserID)
	ctx = context.WithValue(ctx, UserRolesKey, []string{s.Role})
	ctx = context.WithValue(ctx, PatientIDKey, s.PatientID)
	ctx = context.WithValue(ctx, TokenKey, s.Token)
	return ctx
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}

// PatientIDFromContext returns the patient record of a signed-in patient.
func PatientIDFromContext(ctx context.Context) string {
	pid, _ := ctx.Value(PatientIDKey).(string)
	return pid
}

// TokenFromContext returns the clinic API token for outbound calls.
func TokenFromContext(ctx context.Context) string {
	tok, _ := ctx.Value(TokenKey).(string)
	return tok
}
