package overlayimg

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/orthovision/portal/internal/domain/dentition"
)

func viewWith(t *testing.T, anomalies map[dentition.ToothID][]string, selected dentition.ToothID) dentition.View {
	t.Helper()
	var opts []dentition.Option
	if selected != 0 {
		opts = append(opts, dentition.WithSelected(selected))
	}
	return dentition.NewOverlay(dentition.NewReport(anomalies), opts...).View()
}

func TestClampWidth(t *testing.T) {
	tests := map[int]int{
		0:      DefaultWidth,
		-5:     DefaultWidth,
		100:    MinWidth,
		600:    600,
		100000: MaxWidth,
	}
	for in, want := range tests {
		if got := ClampWidth(in); got != want {
			t.Errorf("ClampWidth(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestRender_Size(t *testing.T) {
	img := Render(viewWith(t, nil, 0), Options{Width: 600})
	if b := img.Bounds(); b.Dx() != 600 || b.Dy() != 300 {
		t.Errorf("expected 600x300, got %dx%d", b.Dx(), b.Dy())
	}
}

func edgePixel(t *testing.T, img *image.RGBA, id dentition.ToothID) color.RGBA {
	t.Helper()
	r, ok := dentition.RegionFor(id)
	if !ok {
		t.Fatalf("no region %d", id)
	}
	b := img.Bounds()
	x0, y0, x1, _ := r.Box.Scale(b.Dx(), b.Dy())
	// middle of the top edge
	return img.RGBAAt((x0+x1)/2, y0)
}

func TestRender_Classification(t *testing.T) {
	img := Render(viewWith(t, map[dentition.ToothID][]string{5: {"Cavity"}}, 0), Options{Width: 1200})

	if got := edgePixel(t, img, 5); got != anomalyStroke {
		t.Errorf("tooth 5 edge = %v, want anomaly stroke", got)
	}
	if got := edgePixel(t, img, 6); got != clearStroke {
		t.Errorf("tooth 6 edge = %v, want clear stroke", got)
	}
}

func TestRender_SelectionRing(t *testing.T) {
	img := Render(viewWith(t, nil, 12), Options{Width: 1200})

	r, _ := dentition.RegionFor(12)
	x0, y0, x1, _ := r.Box.Scale(1200, 600)
	stroke := strokeWidth(1200)
	// The ring sits just outside the region box.
	got := img.RGBAAt((x0+x1)/2, y0-stroke-1)
	if got != selectedRing {
		t.Errorf("expected selection ring above tooth 12, got %v", got)
	}
}

func TestRender_LabelsDrawText(t *testing.T) {
	plain := Render(viewWith(t, nil, 0), Options{Width: 1200})
	labelled := Render(viewWith(t, nil, 0), Options{Width: 1200, Labels: true})
	if bytes.Equal(plain.Pix, labelled.Pix) {
		t.Error("labels should change the raster")
	}
}

func TestRender_ScalesBaseImage(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 100, 50))
	black := color.RGBA{0, 0, 0, 0xff}
	for y := 0; y < 50; y++ {
		for x := 0; x < 100; x++ {
			base.SetRGBA(x, y, black)
		}
	}

	img := Render(viewWith(t, nil, 0), Options{Width: 600, Base: base})
	if got := img.RGBAAt(1, 1); got != black {
		t.Errorf("corner should come from the base image, got %v", got)
	}
}

func TestDiagram_DrawsTeeth(t *testing.T) {
	img := Diagram(1200)
	if got := img.RGBAAt(0, 0); got != diagramBackground {
		t.Errorf("corner = %v, want background", got)
	}
	r, _ := dentition.RegionFor(8)
	x0, y0, x1, y1 := r.Box.Scale(1200, 600)
	if got := img.RGBAAt((x0+x1)/2, (y0+y1)/2); got != toothColor {
		t.Errorf("tooth center = %v, want tooth color", got)
	}
}

func TestEncodePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, Render(viewWith(t, nil, 0), Options{Width: 240})); err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	cfg, err := png.DecodeConfig(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 240 || cfg.Height != 120 {
		t.Errorf("unexpected size %dx%d", cfg.Width, cfg.Height)
	}
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	png.Encode(&buf, image.NewGray(image.Rect(0, 0, 64, 32)))

	_, info, err := Decode(buf.Bytes(), 16)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if info.Format != "png" || info.Width != 64 || info.Height != 32 {
		t.Errorf("unexpected info %+v", info)
	}

	if _, _, err := Decode(buf.Bytes(), 48); !errors.Is(err, ErrNotImage) {
		t.Errorf("expected too-small rejection, got %v", err)
	}
	if _, _, err := Decode([]byte("%PDF-1.4"), 1); !errors.Is(err, ErrNotImage) {
		t.Errorf("expected ErrNotImage, got %v", err)
	}

	cfgInfo, err := DecodeConfig(buf.Bytes())
	if err != nil || cfgInfo.Width != 64 {
		t.Errorf("DecodeConfig = %+v, %v", cfgInfo, err)
	}
}
