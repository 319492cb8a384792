// Package web renders the portal's pages. Every page is a template under
// templates/pages executed inside the shared layout, with the signed-in
// identity, pending flash messages, and the CSRF token added around the
// handler's page data.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/orthovision/portal/internal/platform/session"
)

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static returns the stylesheet and other assets served under /static.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Nav is what the layout needs to know about the visitor.
type Nav struct {
	SignedIn  bool
	FullName  string
	Role      string
	PatientID string
}

func (n Nav) IsDoctor() bool  { return n.Role == session.RoleDoctor }
func (n Nav) IsPatient() bool { return n.Role == session.RolePatient }

// Home is the visitor's landing page.
func (n Nav) Home() string {
	switch {
	case n.IsDoctor():
		return "/patients"
	case n.IsPatient() && n.PatientID != "":
		return "/patients/" + url.PathEscape(n.PatientID)
	case n.SignedIn:
		return "/profile"
	}
	return "/"
}

// View is the data every template receives. Page is the handler's value.
type View struct {
	Name    string
	Page    interface{}
	Nav     Nav
	Flashes []session.Flash
	CSRF    string
	Path    string
}

// Flusher saves a session after its flashes were consumed.
type Flusher interface {
	Save(c echo.Context) error
}

type Renderer struct {
	pages    map[string]*template.Template
	sessions Flusher
	logger   zerolog.Logger
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "unknown date"
		}
		return t.Format("Jan 2, 2006 15:04")
	},
	"inc":   func(i int) int { return i + 1 },
	"join":  strings.Join,
	"lower": strings.ToLower,
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
	"plural": func(n int, one, many string) string {
		if n == 1 {
			return one
		}
		return many
	},
}

// NewRenderer parses the layout and every page. sessions may be nil, in
// which case flashes are shown but not cleared.
func NewRenderer(sessions Flusher, logger zerolog.Logger) (*Renderer, error) {
	base, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages := make(map[string]*template.Template)
	err = fs.WalkDir(templateFS, "templates/pages", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path.Ext(p) != ".html" {
			return err
		}
		name := strings.TrimSuffix(strings.TrimPrefix(p, "templates/pages/"), ".html")
		t, err := template.Must(base.Clone()).ParseFS(templateFS, p)
		if err != nil {
			return fmt.Errorf("parse page %s: %w", name, err)
		}
		pages[name] = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Renderer{
		pages:    pages,
		sessions: sessions,
		logger:   logger.With().Str("component", "web").Logger(),
	}, nil
}

// Has reports whether a page of that name exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Render implements echo.Renderer.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("web: no page named %q", name)
	}
	return t.ExecuteTemplate(w, "layout.html", r.view(name, data, c))
}

func (r *Renderer) view(name string, data interface{}, c echo.Context) View {
	v := View{Name: name, Page: data}
	if c == nil {
		return v
	}
	v.Path = c.Request().URL.Path
	if tok, ok := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string); ok {
		v.CSRF = tok
	}

	s := session.From(c)
	v.Nav = Nav{
		SignedIn:  s.Token != "",
		FullName:  s.FullName,
		Role:      s.Role,
		PatientID: s.PatientID,
	}
	if len(s.Flashes) > 0 {
		v.Flashes = s.PopFlashes()
		if r.sessions != nil {
			if err := r.sessions.Save(c); err != nil {
				r.logger.Warn().Err(err).Str("session_id", s.ID).Msg("clear flashes")
			}
		}
	}
	return v
}
