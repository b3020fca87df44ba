package imgsch

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrDecode              = errors.New("couldn't decode image")
	ErrEmptyImage          = errors.New("image has zero width or height")
	ErrInvalidMaxDimension = errors.New("max dimension must be > 0")
	ErrUnsupportedFormat   = errors.New("unsupported thumbnail format")
	ErrTooLarge            = errors.New("thumbnail is too large")
)

// Surface limits, the same as browsers have for a canvas.
const (
	MaxSurfaceSide = 32767
	MaxSurfaceArea = 16384 * 16384
)

// EncodedImage is an encoded raster image: PNG, JPEG and etc.
type EncodedImage []byte

// MaxDimension is the bound of the longer side of a thumbnail, in pixels.
type MaxDimension int

func (d MaxDimension) Validate() error {
	if d <= 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidMaxDimension, d)
	}
	if d > MaxSurfaceSide {
		return fmt.Errorf("%w: max dimension must be <= %d, got %d", ErrTooLarge, MaxSurfaceSide, d)
	}
	return nil
}

// Result is the only outcome of an asynchronous thumbnail generation.
type Result struct {
	Image EncodedImage
	Err   error
}

type ThumbnailFormat string

const (
	// PNG thumbnails are lossless, it is the default format of a canvas.
	PngThumbnails ThumbnailFormat = "png"
	// JPEG thumbnails are much smaller, but lose transparency.
	JpegThumbnails ThumbnailFormat = "jpeg"
)

func (f ThumbnailFormat) MarshalText() (text []byte, err error) {
	return []byte(f), nil
}

func (f *ThumbnailFormat) UnmarshalText(text []byte) error {
	*f = ThumbnailFormat(text)

	return checkEnum(*f, PngThumbnails, JpegThumbnails)
}

// Ext returns the file extension with leading dot.
func (f ThumbnailFormat) Ext() string {
	switch f {
	case JpegThumbnails:
		return ".jpeg"
	default:
		return ".png"
	}
}

// Interpolator selects how the source raster is sampled during the scaled draw.
type Interpolator string

const (
	NearestNeighbor Interpolator = "nearest"
	BiLinear        Interpolator = "bilinear"
	CatmullRom      Interpolator = "catmullrom"
)

func (i Interpolator) MarshalText() (text []byte, err error) {
	return []byte(i), nil
}

func (i *Interpolator) UnmarshalText(text []byte) error {
	*i = Interpolator(text)

	return checkEnum(*i, NearestNeighbor, BiLinear, CatmullRom)
}

func checkEnum[T comparable](v T, validValues ...T) error {
	if !slices.Contains(validValues, v) {
		return fmt.Errorf("valid values: %v", validValues)
	}
	return nil
}
