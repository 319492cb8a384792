package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const contextKey = "portal_session"

type Options struct {
	CookieName string
	Secure     bool
	TTL        time.Duration
}

// Manager binds a Store to HTTP requests through a session cookie.
type Manager struct {
	store  Store
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

func NewManager(store Store, opts Options, logger zerolog.Logger) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "ov_session"
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	return &Manager{
		store:  store,
		opts:   opts,
		logger: logger.With().Str("component", "session").Logger(),
		now:    time.Now,
	}
}

// Middleware loads the session named by the request cookie, or starts a new
// unsaved one, and makes it available through From.
func (m *Manager) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(contextKey, m.load(c))
			return next(c)
		}
	}
}

func (m *Manager) load(c echo.Context) *Session {
	cookie, err := c.Cookie(m.opts.CookieName)
	if err == nil && cookie.Value != "" {
		if _, perr := uuid.Parse(cookie.Value); perr == nil {
			s, gerr := m.store.Get(c.Request().Context(), cookie.Value)
			switch {
			case gerr == nil && !s.Expired(m.now()):
				return s
			case gerr != nil && !errors.Is(gerr, ErrNotFound):
				m.logger.Error().Err(gerr).Msg("load session")
			}
		}
	}
	now := m.now()
	return &Session{ID: uuid.New().String(), CreatedAt: now}
}

// From returns the session loaded by Middleware. Outside the middleware it
// returns a fresh, unsaved session.
func From(c echo.Context) *Session {
	if s, ok := c.Get(contextKey).(*Session); ok && s != nil {
		return s
	}
	s := &Session{ID: uuid.New().String(), CreatedAt: time.Now()}
	c.Set(contextKey, s)
	return s
}

// Save persists the request's session, extends its expiry, and refreshes
// the cookie.
func (m *Manager) Save(c echo.Context) error {
	s := From(c)
	s.ExpiresAt = m.now().Add(m.opts.TTL)
	if err := m.store.Save(c.Request().Context(), s); err != nil {
		return err
	}
	c.SetCookie(m.cookie(s.ID, s.ExpiresAt, int(m.opts.TTL.Seconds())))
	return nil
}

// Flash queues a one-shot message for the next rendered page and saves the
// session.
func (m *Manager) Flash(c echo.Context, kind, message string) error {
	From(c).AddFlash(kind, message)
	return m.Save(c)
}

// Destroy deletes the session, expires the cookie, and replaces the
// request's session with an empty one.
func (m *Manager) Destroy(c echo.Context) error {
	s := From(c)
	err := m.store.Delete(c.Request().Context(), s.ID)
	c.SetCookie(m.cookie("", time.Unix(0, 0), -1))
	c.Set(contextKey, &Session{ID: uuid.New().String(), CreatedAt: m.now()})
	return err
}

// Rotate moves the session to a fresh id, used on sign-in.
func (m *Manager) Rotate(c echo.Context) error {
	s := From(c)
	old := s.ID
	s.ID = uuid.New().String()
	if err := m.store.Delete(c.Request().Context(), old); err != nil {
		m.logger.Warn().Err(err).Msg("delete rotated session")
	}
	return m.Save(c)
}

func (m *Manager) cookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// StartPurger removes expired sessions every interval until ctx is done.
func (m *Manager) StartPurger(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := m.store.Purge(ctx, m.now())
				if err != nil {
					m.logger.Error().Err(err).Msg("purge sessions")
					continue
				}
				if n > 0 {
					m.logger.Debug().Int("purged", n).Msg("expired sessions removed")
				}
			}
		}
	}()
}
