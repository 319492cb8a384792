package dentition

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"math"
	"strconv"
)

//go:embed templates/overlay.html
var templateFS embed.FS

var overlayTmpl = template.Must(template.New("overlay.html").Funcs(template.FuncMap{
	"pct": func(f float64) string {
		return strconv.FormatFloat(math.Round(f*1e4)/1e2, 'f', -1, 64)
	},
}).ParseFS(templateFS, "templates/overlay.html"))

// RenderOptions controls the links and image of a rendered overlay.
type RenderOptions struct {
	// ImageURL is the diagram the regions are positioned over.
	ImageURL string
	// SelectURL returns the link that opens the detail panel for a tooth.
	SelectURL func(ToothID) string
	// CloseURL is the link behind the panel's Close button.
	CloseURL string
}

// RenderHTML writes the overlay as an HTML fragment: the diagram, one link per
// region positioned in percent of the diagram, and the detail panel when a
// tooth is selected.
func RenderHTML(w io.Writer, v View, opts RenderOptions) error {
	if opts.SelectURL == nil {
		opts.SelectURL = func(id ToothID) string { return "?tooth=" + id.String() }
	}
	return overlayTmpl.Execute(w, struct {
		View View
		RenderOptions
	}{View: v, RenderOptions: opts})
}

// HTML renders the overlay to a template.HTML value for embedding in a page.
func HTML(v View, opts RenderOptions) (template.HTML, error) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, v, opts); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
