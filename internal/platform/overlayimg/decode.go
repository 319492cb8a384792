package overlayimg

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrNotImage = errors.New("file is not a supported image")

// Formats lists the image formats Decode accepts.
var Formats = []string{"jpeg", "png", "gif", "bmp", "tiff", "webp"}

// Info describes a decoded image.
type Info struct {
	Format string
	Width  int
	Height int
}

// Decode decodes data with any registered decoder. It rejects anything that
// is not an image or is smaller than minSide pixels on either side.
func Decode(data []byte, minSide int) (image.Image, Info, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, Info{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	b := img.Bounds()
	info := Info{Format: format, Width: b.Dx(), Height: b.Dy()}
	if info.Width < minSide || info.Height < minSide {
		return nil, info, fmt.Errorf("%w: %dx%d is too small", ErrNotImage, info.Width, info.Height)
	}
	return img, info, nil
}

// DecodeConfig reads only the header of data.
func DecodeConfig(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
