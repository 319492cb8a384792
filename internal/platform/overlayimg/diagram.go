package overlayimg

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/vector"

	"github.com/orthovision/portal/internal/domain/dentition"
)

var (
	diagramBackground = color.RGBA{0xf7, 0xf4, 0xef, 0xff}
	gumColor          = color.RGBA{0xf2, 0xb8, 0xb5, 0xff}
	toothColor        = color.RGBA{0xff, 0xff, 0xfa, 0xff}
	toothShade        = color.RGBA{0xd9, 0xd4, 0xc8, 0xff}
)

// Diagram draws the reference tooth chart at the given width: two gum arches
// and one tooth silhouette per region of the geometry table. Region boxes
// rendered on top line up with the silhouettes at any width.
func Diagram(width int) *image.RGBA {
	w := ClampWidth(width)
	h := HeightFor(w)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(diagramBackground), image.Point{}, draw.Src)

	fw, fh := float32(w), float32(h)
	upperGum := unionBox(1, 16)
	lowerGum := unionBox(17, 32)
	for _, g := range []dentition.Box{upperGum, lowerGum} {
		x0, y0 := float32(g.Left)*fw, float32(g.Top)*fh
		x1, y1 := float32(g.Right())*fw, float32(g.Bottom())*fh
		pad := (y1 - y0) * 0.15
		fillEllipse(img, x0-pad, y0-pad, x1+pad, y1+pad, gumColor)
	}

	for _, region := range dentition.Regions() {
		b := region.Box
		x0, y0 := float32(b.Left)*fw, float32(b.Top)*fh
		x1, y1 := float32(b.Right())*fw, float32(b.Bottom())*fh
		insetX, insetY := (x1-x0)*0.12, (y1-y0)*0.08
		fillEllipse(img, x0+insetX, y0+insetY, x1-insetX, y1-insetY, toothShade)
		fillEllipse(img, x0+insetX*1.6, y0+insetY*1.6, x1-insetX*1.6, y1-insetY*1.6, toothColor)
	}
	return img
}

// unionBox returns the box covering teeth first..last.
func unionBox(first, last dentition.ToothID) dentition.Box {
	r, _ := dentition.RegionFor(first)
	left, top, right, bottom := r.Box.Left, r.Box.Top, r.Box.Right(), r.Box.Bottom()
	for id := first + 1; id <= last; id++ {
		r, _ := dentition.RegionFor(id)
		if r.Box.Left < left {
			left = r.Box.Left
		}
		if r.Box.Top < top {
			top = r.Box.Top
		}
		if r.Box.Right() > right {
			right = r.Box.Right()
		}
		if r.Box.Bottom() > bottom {
			bottom = r.Box.Bottom()
		}
	}
	return dentition.Box{Left: left, Top: top, Width: right - left, Height: bottom - top}
}

// kappa places cubic control points so four curves approximate an ellipse.
const kappa = 0.5522848

// fillEllipse fills the ellipse inscribed in (x0,y0)-(x1,y1).
func fillEllipse(dst draw.Image, x0, y0, x1, y1 float32, c color.Color) {
	b := dst.Bounds()
	if x1 <= x0 || y1 <= y0 {
		return
	}
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	cx, cy := (x0+x1)/2, (y0+y1)/2
	rx, ry := (x1-x0)/2, (y1-y0)/2
	kx, ky := rx*kappa, ry*kappa

	z.MoveTo(cx+rx, cy)
	z.CubeTo(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry)
	z.CubeTo(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy)
	z.CubeTo(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry)
	z.CubeTo(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy)
	z.ClosePath()
	z.DrawOp = draw.Over
	z.Draw(dst, b, image.NewUniform(c), image.Point{})
}
