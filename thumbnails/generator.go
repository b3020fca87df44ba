package thumbnails

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/edtenz/imgsch/imgsch"
	"github.com/edtenz/imgsch/pkg/metrics"
	"github.com/edtenz/imgsch/pkg/misc"
	"github.com/edtenz/imgsch/pkg/rlog"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register webp decoder
)

type Options struct {
	Format       imgsch.ThumbnailFormat
	JPEGQuality  int
	Interpolator imgsch.Interpolator
}

// Generator generates thumbnails. It keeps no state between calls, so it is safe
// for concurrent use.
type Generator struct {
	format       imgsch.ThumbnailFormat
	jpegQuality  int
	interpolator draw.Interpolator
}

func NewGenerator(opts Options) (*Generator, error) {
	switch opts.Format {
	case imgsch.PngThumbnails, imgsch.JpegThumbnails:
	case "":
		opts.Format = imgsch.PngThumbnails
	default:
		return nil, fmt.Errorf("%w: %q", imgsch.ErrUnsupportedFormat, opts.Format)
	}

	if opts.JPEGQuality == 0 {
		opts.JPEGQuality = 70
	}
	if opts.JPEGQuality < 1 || opts.JPEGQuality > 100 {
		return nil, fmt.Errorf("invalid jpeg quality: %d", opts.JPEGQuality)
	}

	var interpolator draw.Interpolator
	switch opts.Interpolator {
	case imgsch.NearestNeighbor:
		interpolator = draw.NearestNeighbor
	case imgsch.BiLinear, "":
		interpolator = draw.BiLinear
	case imgsch.CatmullRom:
		interpolator = draw.CatmullRom
	default:
		return nil, fmt.Errorf("invalid interpolator: %q", opts.Interpolator)
	}

	return &Generator{
		format:       opts.Format,
		jpegQuality:  opts.JPEGQuality,
		interpolator: interpolator,
	}, nil
}

// GenerateAsync starts thumbnail generation. The returned channel receives exactly
// one result and is closed after that. Generation can't be canceled.
func (g *Generator) GenerateAsync(img imgsch.EncodedImage, maxDimension imgsch.MaxDimension) <-chan imgsch.Result {
	resCh := make(chan imgsch.Result, 1)
	go func() {
		defer close(resCh)

		thumbnail, err := g.Generate(img, maxDimension)
		resCh <- imgsch.Result{
			Image: thumbnail,
			Err:   err,
		}
	}()
	return resCh
}

// Generate decodes the image, scales it so that its longer side is equal to maxDimension
// and encodes the result. It returns [imgsch.ErrDecode] if the image can't be decoded.
func (g *Generator) Generate(img imgsch.EncodedImage, maxDimension imgsch.MaxDimension) (imgsch.EncodedImage, error) {
	now := time.Now()
	thumbnail, stats, err := g.generate(img, maxDimension)
	dur := time.Since(now)

	if len(img) > 0 {
		metrics.ThumbnailsOriginalImageSizes.Observe(float64(len(img)))
	}

	if err != nil {
		metrics.ThumbnailsErrors.WithLabelValues(errorReason(err)).Inc()
		return nil, err
	}

	metrics.ThumbnailsGenerated.Inc()
	metrics.ThumbnailsGenerateDuration.Observe(dur.Seconds())
	metrics.ThumbnailsSizeRatio.Observe(float64(len(img)) / float64(len(thumbnail)))

	rlog.Debugf(
		"thumbnail %dx%d -> %dx%d was generated in %s, original size: %s, new size: %s",
		stats.originalBounds.Dx(), stats.originalBounds.Dy(), stats.thumbnailBounds.Dx(), stats.thumbnailBounds.Dy(),
		dur, misc.FormatFileSize(int64(len(img))), misc.FormatFileSize(int64(len(thumbnail))),
	)

	return thumbnail, nil
}

type stats struct {
	originalBounds  image.Rectangle
	thumbnailBounds image.Rectangle
}

func (g *Generator) generate(img imgsch.EncodedImage, maxDimension imgsch.MaxDimension) (imgsch.EncodedImage, stats, error) {
	if err := maxDimension.Validate(); err != nil {
		return nil, stats{}, err
	}

	res := <-decode(img)
	if res.err != nil {
		return nil, stats{}, res.err
	}
	src := res.img

	width, height, err := thumbnailSize(src.Bounds(), maxDimension)
	if err != nil {
		return nil, stats{}, err
	}

	s := acquireSurface(width, height)
	defer s.release()

	s.drawScaled(src, g.interpolator)

	buf := bytes.NewBuffer(nil)
	if err := s.encode(buf, g.format, g.jpegQuality); err != nil {
		return nil, stats{}, err
	}

	return buf.Bytes(), stats{
		originalBounds:  src.Bounds(),
		thumbnailBounds: s.Bounds(),
	}, nil
}

type decodeResult struct {
	img image.Image
	err error
}

// decode decodes the image in a separate goroutine. The returned channel receives
// exactly one result.
func decode(data imgsch.EncodedImage) <-chan decodeResult {
	resCh := make(chan decodeResult, 1)
	go func() {
		defer close(resCh)

		now := time.Now()

		// Apply EXIF orientation, browsers do the same for <img>.
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			resCh <- decodeResult{err: fmt.Errorf("%w: %w", imgsch.ErrDecode, err)}
			return
		}

		metrics.ThumbnailsDecodeDuration.Observe(time.Since(now).Seconds())

		resCh <- decodeResult{img: img}
	}()
	return resCh
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, imgsch.ErrDecode):
		return metrics.ReasonDecode
	case errors.Is(err, imgsch.ErrEmptyImage):
		return metrics.ReasonEmptyImage
	case errors.Is(err, imgsch.ErrInvalidMaxDimension):
		return metrics.ReasonInvalidDimension
	case errors.Is(err, imgsch.ErrTooLarge):
		return metrics.ReasonTooLarge
	default:
		return metrics.ReasonEncode
	}
}
