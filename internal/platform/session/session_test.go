package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestSession_Clear(t *testing.T) {
	created := time.Now()
	s := &Session{ID: "id-1", CreatedAt: created}
	s.SignIn("tok", "7", RoleDoctor, "")
	s.Chat = []ChatEntry{{Sender: "user", Text: "hi"}}
	s.Overlay = OverlaySelection{ReportID: "3", Tooth: 5}

	s.Clear()

	if s.ID != "id-1" || !s.CreatedAt.Equal(created) {
		t.Errorf("Clear should keep id and creation time: %+v", s)
	}
	if s.Token != "" || s.UserID != "" || s.Role != "" {
		t.Errorf("Clear should drop identity: %+v", s)
	}
	if len(s.Chat) != 0 || s.Overlay.Tooth != 0 {
		t.Errorf("Clear should drop chat and selection: %+v", s)
	}
}

func TestSession_Flashes(t *testing.T) {
	s := &Session{}
	s.AddFlash("error", "Failed to upload")
	s.AddFlash("info", "Saved")

	got := s.PopFlashes()
	if len(got) != 2 || got[0].Message != "Failed to upload" {
		t.Errorf("unexpected flashes %+v", got)
	}
	if len(s.PopFlashes()) != 0 {
		t.Error("flashes should be consumed")
	}
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := &Session{Chat: []ChatEntry{{Sender: "user", Text: "a"}}}
	c := s.Clone()
	c.Chat[0].Text = "changed"
	if s.Chat[0].Text != "a" {
		t.Error("clone shares chat slice with original")
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	live := &Session{ID: "live", ExpiresAt: now.Add(time.Hour)}
	dead := &Session{ID: "dead", ExpiresAt: now.Add(-time.Minute)}
	store.Save(ctx, live)
	store.Save(ctx, dead)

	got, err := store.Get(ctx, "live")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got.UserID = "mutated"
	again, _ := store.Get(ctx, "live")
	if again.UserID != "" {
		t.Error("store returned a shared pointer")
	}

	n, err := store.Purge(ctx, now)
	if err != nil || n != 1 {
		t.Errorf("Purge = %d, %v; want 1", n, err)
	}
	if _, err := store.Get(ctx, "dead"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	store.Delete(ctx, "live")
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d", store.Len())
	}
}

func newManager(store Store) *Manager {
	return NewManager(store, Options{CookieName: "sid", TTL: time.Hour}, zerolog.Nop())
}

func serve(e *echo.Echo, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			return c
		}
	}
	return nil
}

func TestManager_SaveAndLoad(t *testing.T) {
	store := NewMemoryStore()
	m := newManager(store)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/", func(c echo.Context) error {
		s := From(c)
		if s.UserID == "" {
			s.SignIn("tok", "7", RoleDoctor, "")
			if err := m.Save(c); err != nil {
				return err
			}
			return c.String(http.StatusOK, "new")
		}
		return c.String(http.StatusOK, "user "+s.UserID)
	})

	rec := serve(e, nil)
	if rec.Body.String() != "new" {
		t.Fatalf("first request: %q", rec.Body.String())
	}
	cookie := sessionCookie(rec)
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("expected HttpOnly session cookie, got %+v", cookie)
	}

	rec = serve(e, cookie)
	if rec.Body.String() != "user 7" {
		t.Errorf("second request: %q", rec.Body.String())
	}
}

func TestManager_UnknownOrMalformedCookie(t *testing.T) {
	m := newManager(NewMemoryStore())
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, From(c).UserID)
	})

	for _, v := range []string{"not-a-uuid", "0b8e1f34-5c2f-4a5e-9c1e-123456789abc"} {
		rec := serve(e, &http.Cookie{Name: "sid", Value: v})
		if rec.Code != http.StatusOK || rec.Body.String() != "" {
			t.Errorf("cookie %q: got %d %q", v, rec.Code, rec.Body.String())
		}
	}
}

func TestManager_ExpiredSessionIgnored(t *testing.T) {
	store := NewMemoryStore()
	m := newManager(store)
	store.Save(context.Background(), &Session{
		ID:        "0b8e1f34-5c2f-4a5e-9c1e-123456789abc",
		UserID:    "7",
		ExpiresAt: time.Now().Add(-time.Second),
	})

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, From(c).UserID)
	})

	rec := serve(e, &http.Cookie{Name: "sid", Value: "0b8e1f34-5c2f-4a5e-9c1e-123456789abc"})
	if rec.Body.String() != "" {
		t.Errorf("expired session should not load, got %q", rec.Body.String())
	}
}

func TestManager_Destroy(t *testing.T) {
	store := NewMemoryStore()
	m := newManager(store)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/", func(c echo.Context) error {
		From(c).SignIn("tok", "7", RolePatient, "p1")
		return m.Save(c)
	})
	e.GET("/logout", func(c echo.Context) error {
		return m.Destroy(c)
	})

	cookie := sessionCookie(serve(e, nil))
	if store.Len() != 1 {
		t.Fatalf("expected one stored session, got %d", store.Len())
	}

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if store.Len() != 0 {
		t.Errorf("expected session deleted, got %d", store.Len())
	}
	cleared := sessionCookie(rec)
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Errorf("expected expiring cookie, got %+v", cleared)
	}
}

func TestManager_Rotate(t *testing.T) {
	store := NewMemoryStore()
	m := newManager(store)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/", func(c echo.Context) error { return m.Save(c) })
	e.GET("/signin", func(c echo.Context) error { return m.Rotate(c) })

	first := sessionCookie(serve(e, nil))

	req := httptest.NewRequest(http.MethodGet, "/signin", nil)
	req.AddCookie(first)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	second := sessionCookie(rec)
	if second == nil || second.Value == first.Value {
		t.Fatalf("expected a new session id, got %+v", second)
	}
	if _, err := store.Get(context.Background(), first.Value); !errors.Is(err, ErrNotFound) {
		t.Errorf("old session should be gone, got %v", err)
	}
}

// fake pgx DB for PGStore

type fakeRow struct {
	data []byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.data
	return nil
}

type fakeDB struct {
	rows    map[string][]byte
	expires map[string]time.Time
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "INSERT INTO portal_session"):
		id := args[0].(string)
		f.rows[id] = args[1].([]byte)
		f.expires[id] = args[2].(time.Time)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.Contains(sql, "WHERE id ="):
		delete(f.rows, args[0].(string))
		return pgconn.NewCommandTag("DELETE 1"), nil
	case strings.Contains(sql, "expires_at <="):
		now := args[0].(time.Time)
		n := 0
		for id, exp := range f.expires {
			if !exp.After(now) {
				delete(f.rows, id)
				delete(f.expires, id)
				n++
			}
		}
		return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", n)), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("unexpected sql %s", sql)
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	data, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{data: data}
}

func TestPGStore(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{rows: map[string][]byte{}, expires: map[string]time.Time{}}
	store := NewPGStore(db)
	now := time.Now()

	s := &Session{ID: "a", Token: "tok", Role: RoleDoctor, ExpiresAt: now.Add(time.Hour),
		Chat: []ChatEntry{{Sender: "ai", Text: "hello"}}}
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var raw map[string]interface{}
	json.Unmarshal(db.rows["a"], &raw)
	if raw["token"] != "tok" {
		t.Errorf("stored JSON missing token: %s", db.rows["a"])
	}

	got, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Role != RoleDoctor || len(got.Chat) != 1 || got.Chat[0].Text != "hello" {
		t.Errorf("unexpected session %+v", got)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	store.Save(ctx, &Session{ID: "old", ExpiresAt: now.Add(-time.Hour)})
	n, err := store.Purge(ctx, now)
	if err != nil || n != 1 {
		t.Errorf("Purge = %d, %v; want 1", n, err)
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
