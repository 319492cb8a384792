package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1M", 1 << 20},
		{"25MB", 25 << 20},
		{"512K", 512 << 10},
		{"1G", 1 << 30},
		{"2048", 2048},
		{"", 1 << 20},
		{"garbage", 1 << 20},
		{" 10m ", 10 << 20},
	}
	for _, tt := range tests {
		if got := parseLimit(tt.in); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestHumanSize(t *testing.T) {
	tests := map[int64]string{
		20 << 20: "20 MB",
		512 << 10: "512 KB",
		1 << 30:  "1 GB",
		1000:     "1000 bytes",
	}
	for in, want := range tests {
		if got := humanSize(in); got != want {
			t.Errorf("humanSize(%d) = %q, want %q", in, got, want)
		}
	}
}

func runBodyLimit(t *testing.T, req *http.Request, mw echo.MiddlewareFunc) (int, error) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var readErr error
	err := mw(func(c echo.Context) error {
		_, readErr = io.ReadAll(c.Request().Body)
		if readErr != nil {
			return readErr
		}
		return c.String(http.StatusOK, "ok")
	})(c)
	return rec.Code, err
}

func statusOf(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return 0
}

func TestBodyLimit_AllowsSmallBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/patients/new", strings.NewReader("first_name=Ana"))
	code, err := runBodyLimit(t, req, BodyLimit("1K", "1M"))
	if err != nil || code != http.StatusOK {
		t.Errorf("expected 200, got %d %v", code, err)
	}
}

func TestBodyLimit_RejectsOversizedForm(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/patients/new", bytes.NewReader(make([]byte, 2048)))
	_, err := runBodyLimit(t, req, BodyLimit("1K", "1M"))
	if statusOf(err) != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %v", err)
	}
	if he, ok := err.(*echo.HTTPError); ok && !strings.Contains(he.Message.(string), "1 KB") {
		t.Errorf("message should name the limit: %v", he.Message)
	}
}

func TestBodyLimit_UploadLimitForRadiographs(t *testing.T) {
	body := bytes.NewReader(make([]byte, 4096))
	req := httptest.NewRequest(http.MethodPost, "/patients/5/radiographs", body)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	code, err := runBodyLimit(t, req, BodyLimit("1K", "8K"))
	if err != nil || code != http.StatusOK {
		t.Errorf("upload under upload limit should pass, got %d %v", code, err)
	}

	req = httptest.NewRequest(http.MethodPost, "/patients/5/radiographs", bytes.NewReader(make([]byte, 16384)))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	_, err = runBodyLimit(t, req, BodyLimit("1K", "8K"))
	if statusOf(err) != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 over upload limit, got %v", err)
	}
}

func TestBodyLimit_SkipsNilBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/patients", nil)
	code, err := runBodyLimit(t, req, BodyLimit("1", "1"))
	if err != nil || code != http.StatusOK {
		t.Errorf("expected 200, got %d %v", code, err)
	}
}

func TestBodyLimit_EnforcesLimitDuringRead(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(make([]byte, 2048)))
	req.ContentLength = -1
	_, err := runBodyLimit(t, req, BodyLimit("1K", "1M"))
	if statusOf(err) != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 while reading, got %v", err)
	}
}
