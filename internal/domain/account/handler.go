package account

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/orthovision/portal/internal/platform/auth"
	"github.com/orthovision/portal/internal/platform/session"
)

type Handler struct {
	svc      *Service
	sessions *session.Manager
	tokens   *auth.TokenValidator
	logger   zerolog.Logger
}

func NewHandler(svc *Service, sessions *session.Manager, tokens *auth.TokenValidator, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		sessions: sessions,
		tokens:   tokens,
		logger:   logger.With().Str("component", "account").Logger(),
	}
}

// RegisterRoutes mounts the account pages. throttle wraps the credential
// POSTs.
func (h *Handler) RegisterRoutes(g *echo.Group, throttle ...echo.MiddlewareFunc) {
	// Public
	g.GET("/", h.Home)
	g.GET("/signin", h.SignInForm)
	g.POST("/signin", h.SignIn, throttle...)
	g.GET("/signup", h.SignUpForm)
	g.POST("/signup", h.SignUp, throttle...)

	// Signed in
	g.POST("/logout", h.Logout)
	g.GET("/profile", h.Profile)
	g.POST("/profile", h.UpdateProfile)
}

type SignInPage struct {
	Form  SignInForm
	Error string
}

type SignUpPage struct {
	Form  SignUpForm
	Error string
	Roles []string
}

type ProfilePage struct {
	User  *User
	Error string
}

// signedIn reports whether the request's session holds a usable token.
func (h *Handler) signedIn(c echo.Context) (*session.Session, bool) {
	s := session.From(c)
	_, err := h.tokens.Validate(s.Token)
	return s, err == nil
}

func (h *Handler) Home(c echo.Context) error {
	if s, ok := h.signedIn(c); ok {
		return c.Redirect(http.StatusSeeOther, Landing(s.Role, s.PatientID))
	}
	return c.Render(http.StatusOK, "home", nil)
}

func (h *Handler) SignInForm(c echo.Context) error {
	if s, ok := h.signedIn(c); ok {
		return c.Redirect(http.StatusSeeOther, Landing(s.Role, s.PatientID))
	}
	return c.Render(http.StatusOK, "account/signin", SignInPage{
		Form: SignInForm{Next: c.QueryParam("next")},
	})
}

func (h *Handler) SignIn(c echo.Context) error {
	var form SignInForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	id, err := h.svc.SignIn(c.Request().Context(), form)
	if err != nil {
		var ferr *FormError
		if errors.As(err, &ferr) {
			form.Password = ""
			return c.Render(http.StatusUnauthorized, "account/signin", SignInPage{Form: form, Error: ferr.Message})
		}
		return err
	}

	if err := h.startSession(c, id); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, SafeNext(form.Next, Landing(id.Role, id.PatientID)))
}

func (h *Handler) SignUpForm(c echo.Context) error {
	return c.Render(http.StatusOK, "account/signup", SignUpPage{
		Form:  SignUpForm{Role: session.RoleDoctor},
		Roles: SignUpRoles,
	})
}

func (h *Handler) SignUp(c echo.Context) error {
	var form SignUpForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	id, err := h.svc.SignUp(c.Request().Context(), form)
	if err != nil {
		var ferr *FormError
		if errors.As(err, &ferr) {
			form.Password, form.Confirm = "", ""
			return c.Render(http.StatusUnprocessableEntity, "account/signup", SignUpPage{
				Form:  form,
				Error: ferr.Message,
				Roles: SignUpRoles,
			})
		}
		return err
	}

	if err := h.startSession(c, id); err != nil {
		return err
	}
	session.From(c).AddFlash("info", "Welcome, "+form.FullName+". Your account is ready.")
	if err := h.sessions.Save(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, Landing(id.Role, id.PatientID))
}

// startSession replaces whatever the browser had with the new identity and
// moves it to a fresh session id.
func (h *Handler) startSession(c echo.Context, id *Identity) error {
	s := session.From(c)
	s.Clear()
	s.SignIn(id.Token, id.UserID, id.Role, id.PatientID)

	ctx := auth.WithIdentity(c.Request().Context(), s)
	if u, err := h.svc.Profile(ctx, id.UserID); err == nil {
		s.FullName = u.FullName
	} else {
		h.logger.Debug().Err(err).Str("user_id", id.UserID).Msg("profile lookup after sign-in")
	}

	if err := h.sessions.Rotate(c); err != nil {
		return err
	}
	h.logger.Info().Str("user_id", id.UserID).Str("role", id.Role).Msg("signed in")
	return nil
}

// Logout ends the API token and the whole portal session, chat transcript
// included.
func (h *Handler) Logout(c echo.Context) error {
	if err := h.svc.Logout(c.Request().Context()); err != nil {
		h.logger.Warn().Err(err).Msg("api logout")
	}
	if err := h.sessions.Destroy(c); err != nil {
		h.logger.Warn().Err(err).Msg("destroy session")
	}
	if err := h.sessions.Flash(c, "info", "You have been signed out."); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/signin")
}

func (h *Handler) Profile(c echo.Context) error {
	return c.Render(http.StatusOK, "account/profile", ProfilePage{User: h.currentUser(c)})
}

// currentUser asks the API for the profile, falling back to what the
// session knows.
func (h *Handler) currentUser(c echo.Context) *User {
	ctx := c.Request().Context()
	s := session.From(c)
	u, err := h.svc.Profile(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		h.logger.Warn().Err(err).Msg("load profile")
		return &User{ID: s.UserID, FullName: s.FullName, Role: s.Role}
	}
	if u.Role == "" {
		u.Role = s.Role
	}
	return u
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	name, err := h.svc.Rename(ctx, auth.UserIDFromContext(ctx), c.FormValue("fullname"))
	if err != nil {
		var ferr *FormError
		if errors.As(err, &ferr) {
			return c.Render(http.StatusUnprocessableEntity, "account/profile", ProfilePage{
				User:  h.currentUser(c),
				Error: ferr.Message,
			})
		}
		return err
	}

	s := session.From(c)
	s.FullName = name
	if err := h.sessions.Flash(c, "info", "Profile updated."); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/profile")
}
