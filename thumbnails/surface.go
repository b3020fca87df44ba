package thumbnails

import (
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/edtenz/imgsch/imgsch"
	"golang.org/x/image/draw"
)

var pixelsPool = sync.Pool{
	New: func() any { return new([]uint8) },
}

// surface is an off-screen raster the thumbnail is drawn on. It must be released
// after use, the pixel buffer returns to the pool and the surface becomes unusable.
type surface struct {
	img    *image.RGBA
	pixels *[]uint8
}

// acquireSurface returns a fully transparent surface of the passed size.
func acquireSurface(width, height int) *surface {
	pixels := pixelsPool.Get().(*[]uint8) //nolint:forcetypeassert

	size := 4 * width * height
	if cap(*pixels) < size {
		*pixels = make([]uint8, size)
	} else {
		*pixels = (*pixels)[:size]
		clear(*pixels)
	}

	return &surface{
		img: &image.RGBA{
			Pix:    *pixels,
			Stride: 4 * width,
			Rect:   image.Rect(0, 0, width, height),
		},
		pixels: pixels,
	}
}

func (s *surface) Bounds() image.Rectangle {
	return s.img.Rect
}

// drawScaled draws the whole src over the whole surface.
func (s *surface) drawScaled(src image.Image, interpolator draw.Interpolator) {
	interpolator.Scale(s.img, s.img.Rect, src, src.Bounds(), draw.Src, nil)
}

func (s *surface) encode(w io.Writer, format imgsch.ThumbnailFormat, jpegQuality int) error {
	var err error
	switch format {
	case imgsch.PngThumbnails:
		err = imaging.Encode(w, s.img, imaging.PNG)
	case imgsch.JpegThumbnails:
		err = imaging.Encode(w, s.img, imaging.JPEG, imaging.JPEGQuality(jpegQuality))
	default:
		return fmt.Errorf("%w: %q", imgsch.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return fmt.Errorf("couldn't encode %s: %w", format, err)
	}
	return nil
}

func (s *surface) release() {
	if s.pixels == nil {
		return
	}

	pixelsPool.Put(s.pixels)
	s.pixels = nil
	s.img = nil
}
