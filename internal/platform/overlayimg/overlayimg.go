// Package overlayimg rasterizes a tooth report overlay: the reference
// diagram, one outlined box per tooth, tooth numbers, and the selection ring.
package overlayimg

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/orthovision/portal/internal/domain/dentition"
)

const (
	MinWidth     = 240
	MaxWidth     = 4800
	DefaultWidth = dentition.ReferenceWidth
)

var (
	clearStroke   = color.RGBA{0x1e, 0x88, 0xe5, 0xff}
	anomalyStroke = color.RGBA{0xe5, 0x39, 0x35, 0xff}
	anomalyFill   = color.RGBA{0x73, 0x1c, 0x1a, 0x73} // premultiplied, ~45% alpha
	selectedRing  = color.RGBA{0xff, 0xb3, 0x00, 0xff}
	labelColor    = color.RGBA{0x21, 0x21, 0x21, 0xff}
)

// Options controls a render.
type Options struct {
	// Width of the output in pixels; height follows the diagram's aspect.
	Width int
	// Base is drawn under the regions, scaled to fit. Nil uses Diagram.
	Base image.Image
	// Labels draws tooth numbers inside each box.
	Labels bool
}

// ClampWidth keeps a requested width inside the supported range.
func ClampWidth(w int) int {
	switch {
	case w <= 0:
		return DefaultWidth
	case w < MinWidth:
		return MinWidth
	case w > MaxWidth:
		return MaxWidth
	}
	return w
}

// HeightFor returns the canvas height matching width.
func HeightFor(width int) int {
	return width * dentition.ReferenceHeight / dentition.ReferenceWidth
}

// Render draws v. Clear teeth get a blue outline, teeth with anomalies a red
// outline over a translucent red fill, and the selected tooth an extra amber
// ring.
func Render(v dentition.View, opts Options) *image.RGBA {
	w := ClampWidth(opts.Width)
	h := HeightFor(w)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	base := opts.Base
	if base == nil {
		base = Diagram(w)
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), base, base.Bounds(), draw.Src, nil)

	stroke := strokeWidth(w)
	for _, rv := range v.Regions {
		x0, y0, x1, y1 := rv.Box.Scale(w, h)
		r := image.Rect(x0, y0, x1, y1)
		if rv.HasAnomaly {
			draw.Draw(dst, r, image.NewUniform(anomalyFill), image.Point{}, draw.Over)
			outline(dst, r, stroke, anomalyStroke)
		} else {
			outline(dst, r, stroke, clearStroke)
		}
		if rv.Selected {
			outline(dst, r.Inset(-2*stroke), 2*stroke, selectedRing)
		}
		if opts.Labels {
			label(dst, r, rv.ID.String())
		}
	}
	return dst
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, img)
}

func strokeWidth(w int) int {
	s := w / 600
	if s < 1 {
		s = 1
	}
	return s
}

// outline draws a rectangle border of thickness t inside r.
func outline(dst draw.Image, r image.Rectangle, t int, c color.Color) {
	src := image.NewUniform(c)
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	for _, edge := range []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	} {
		draw.Draw(dst, edge.Intersect(r), src, image.Point{}, draw.Over)
	}
}

// label centers text in r using the 7x13 bitmap face.
func label(dst draw.Image, r image.Rectangle, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelColor),
		Face: face,
	}
	adv := d.MeasureString(text)
	cx := (r.Min.X + r.Max.X) / 2
	cy := (r.Min.Y + r.Max.Y) / 2
	d.Dot = fixed.Point26_6{
		X: fixed.I(cx) - adv/2,
		Y: fixed.I(cy) + face.Metrics().Ascent/2 - fixed.I(1),
	}
	d.DrawString(text)
}
