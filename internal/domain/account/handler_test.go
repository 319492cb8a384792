package account

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/orthovision/portal/internal/platform/auth"
	"github.com/orthovision/portal/internal/platform/session"
)

type captureRenderer struct {
	name string
	data interface{}
}

func (r *captureRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	r.name = name
	r.data = data
	_, err := io.WriteString(w, name)
	return err
}

type testEnv struct {
	e        *echo.Echo
	repo     *mockRepo
	store    *session.MemoryStore
	renderer *captureRenderer
}

func newTestEnv(t *testing.T) *testEnv {
	svc, repo := newTestService(t)
	store := session.NewMemoryStore()
	sessions := session.NewManager(store, session.Options{CookieName: "sid", TTL: time.Hour}, zerolog.Nop())
	tokens := auth.NewTokenValidator(testSecret)
	h := NewHandler(svc, sessions, tokens, zerolog.Nop())

	e := echo.New()
	r := &captureRenderer{}
	e.Renderer = r
	e.Use(sessions.Middleware())
	e.Use(auth.RequireSignIn(tokens, sessions))
	h.RegisterRoutes(e.Group(""))
	return &testEnv{e: e, repo: repo, store: store, renderer: r}
}

func (env *testEnv) do(method, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func lastCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	var out *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid" {
			out = c
		}
	}
	return out
}

func TestHandler_SignIn(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/signin", url.Values{
		"email":    {"ada@clinic.test"},
		"password": {"correct-horse"},
		"next":     {"/patients/3"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/patients/3" {
		t.Errorf("expected redirect to next, got %s", loc)
	}

	cookie := lastCookie(rec)
	if cookie == nil {
		t.Fatal("expected session cookie")
	}
	s, err := env.store.Get(context.Background(), cookie.Value)
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if s.UserID != "7" || s.Role != session.RoleDoctor || s.FullName != "Dr. Ada Byte" {
		t.Errorf("unexpected session %+v", s)
	}

	// Signed in: the home page forwards to the landing page.
	rec = env.do(http.MethodGet, "/", nil, cookie)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/patients" {
		t.Errorf("expected landing redirect, got %d %s", rec.Code, rec.Header().Get("Location"))
	}
}

func TestHandler_SignIn_PatientLanding(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/signin", url.Values{
		"email":    {"pat@mail.test"},
		"password": {"battery-staple"},
	})
	if loc := rec.Header().Get("Location"); loc != "/patients/42" {
		t.Errorf("expected patient landing, got %s", loc)
	}
}

func TestHandler_SignIn_BadCredentials(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/signin", url.Values{
		"email":    {"ada@clinic.test"},
		"password": {"wrong"},
	})
	if rec.Code != http.StatusUnauthorized || env.renderer.name != "account/signin" {
		t.Fatalf("expected signin page with 401, got %d %s", rec.Code, env.renderer.name)
	}
	page := env.renderer.data.(SignInPage)
	if page.Error == "" || page.Form.Password != "" {
		t.Errorf("expected error and cleared password, got %+v", page)
	}
	if env.store.Len() != 0 {
		t.Error("failed sign-in should not store a session")
	}
}

func TestHandler_SignUp(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/signup", url.Values{
		"fullname": {"New Doc"},
		"email":    {"new@clinic.test"},
		"password": {"longenough"},
		"confirm":  {"longenough"},
		"role":     {"doctor"},
	})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/patients" {
		t.Fatalf("expected redirect to /patients, got %d %s", rec.Code, rec.Header().Get("Location"))
	}
	s, err := env.store.Get(context.Background(), lastCookie(rec).Value)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Flashes) != 1 {
		t.Errorf("expected welcome flash, got %+v", s.Flashes)
	}
}

func TestHandler_SignUp_Invalid(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/signup", url.Values{
		"fullname": {"New Doc"},
		"email":    {"new@clinic.test"},
		"password": {"short"},
		"role":     {"doctor"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if page := env.renderer.data.(SignUpPage); page.Form.FullName != "New Doc" {
		t.Errorf("form should keep the name, got %+v", page.Form)
	}
}

func signIn(t *testing.T, env *testEnv) *http.Cookie {
	t.Helper()
	rec := env.do(http.MethodPost, "/signin", url.Values{
		"email":    {"ada@clinic.test"},
		"password": {"correct-horse"},
	})
	c := lastCookie(rec)
	if c == nil {
		t.Fatalf("sign-in failed: %d", rec.Code)
	}
	return c
}

func TestHandler_Logout_ClearsEverything(t *testing.T) {
	env := newTestEnv(t)
	cookie := signIn(t, env)

	s, _ := env.store.Get(context.Background(), cookie.Value)
	s.Chat = []session.ChatEntry{{Sender: "user", Text: "what is tooth 5?"}}
	env.store.Save(context.Background(), s)

	rec := env.do(http.MethodPost, "/logout", nil, cookie)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/signin" {
		t.Fatalf("expected redirect to /signin, got %d %s", rec.Code, rec.Header().Get("Location"))
	}
	if _, err := env.store.Get(context.Background(), cookie.Value); err == nil {
		t.Error("old session should be deleted")
	}
	if len(env.repo.loggedOut) != 1 || env.repo.loggedOut[0] == "" {
		t.Errorf("expected API logout with token, got %v", env.repo.loggedOut)
	}

	next, err := env.store.Get(context.Background(), lastCookie(rec).Value)
	if err != nil {
		t.Fatalf("expected a fresh session for the flash: %v", err)
	}
	if next.Token != "" || len(next.Chat) != 0 || len(next.Flashes) != 1 {
		t.Errorf("fresh session should only carry the flash: %+v", next)
	}
}

func TestHandler_Profile(t *testing.T) {
	env := newTestEnv(t)
	cookie := signIn(t, env)

	rec := env.do(http.MethodGet, "/profile", nil, cookie)
	if rec.Code != http.StatusOK || env.renderer.name != "account/profile" {
		t.Fatalf("expected profile page, got %d %s", rec.Code, env.renderer.name)
	}
	if page := env.renderer.data.(ProfilePage); page.User.Email != "ada@clinic.test" {
		t.Errorf("unexpected user %+v", page.User)
	}

	rec = env.do(http.MethodPost, "/profile", url.Values{"fullname": {"Ada Lovelace"}}, cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rec.Code)
	}
	s, _ := env.store.Get(context.Background(), cookie.Value)
	if s.FullName != "Ada Lovelace" || env.repo.users["7"].FullName != "Ada Lovelace" {
		t.Errorf("name not updated: session %q api %q", s.FullName, env.repo.users["7"].FullName)
	}
}

func TestHandler_Profile_RequiresSignIn(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/profile", nil)
	if rec.Code != http.StatusSeeOther || !strings.HasPrefix(rec.Header().Get("Location"), "/signin") {
		t.Errorf("expected sign-in redirect, got %d %s", rec.Code, rec.Header().Get("Location"))
	}
}
