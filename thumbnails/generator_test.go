package thumbnails

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"sync"
	"testing"

	"github.com/edtenz/imgsch/imgsch"
	"github.com/edtenz/imgsch/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func TestGenerator(t *testing.T) {
	t.Parallel()

	type Test struct {
		width, height int
		maxDimension  imgsch.MaxDimension
		//
		wantWidth  int
		wantHeight int
	}
	tests := []Test{
		{width: 800, height: 400, maxDimension: 100, wantWidth: 100, wantHeight: 50},
		{width: 400, height: 800, maxDimension: 100, wantWidth: 50, wantHeight: 100},
		{width: 100, height: 100, maxDimension: 50, wantWidth: 50, wantHeight: 50},
		{width: 1100, height: 800, maxDimension: 1000, wantWidth: 1000, wantHeight: 727},
		{width: 30, height: 20, maxDimension: 90, wantWidth: 90, wantHeight: 60},
	}

	for _, encode := range []struct {
		name string
		fn   func(t *testing.T, img image.Image) []byte
	}{
		{"png", encodePNG},
		{"jpeg", encodeJPEG},
	} {
		for _, format := range []imgsch.ThumbnailFormat{imgsch.PngThumbnails, imgsch.JpegThumbnails} {
			for _, interpolator := range []imgsch.Interpolator{imgsch.NearestNeighbor, imgsch.BiLinear, imgsch.CatmullRom} {
				generator, err := NewGenerator(Options{Format: format, Interpolator: interpolator})
				require.NoError(t, err)

				for _, tt := range tests {
					name := fmt.Sprintf("%s/%s/%s/%dx%d_%d", encode.name, format, interpolator, tt.width, tt.height, tt.maxDimension)
					t.Run(name, func(t *testing.T) {
						t.Parallel()

						r := require.New(t)

						original := encode.fn(t, newTestImage(tt.width, tt.height))

						thumbnail, err := generator.Generate(original, tt.maxDimension)
						r.NoError(err)

						cfg, gotFormat := decodeConfig(t, thumbnail)
						r.Equal(string(format), gotFormat)
						r.Equal(tt.wantWidth, cfg.Width)
						r.Equal(tt.wantHeight, cfg.Height)
					})
				}
			}
		}
	}
}

func TestGenerator_Idempotence(t *testing.T) {
	t.Parallel()

	r := require.New(t)

	generator, err := NewGenerator(Options{})
	r.NoError(err)

	for _, size := range []image.Point{{800, 400}, {400, 800}, {333, 333}, {1000, 3}} {
		const maxDimension = 128

		thumbnail, err := generator.Generate(encodePNG(t, newTestImage(size.X, size.Y)), maxDimension)
		r.NoError(err)
		wantCfg, _ := decodeConfig(t, thumbnail)

		again, err := generator.Generate(thumbnail, maxDimension)
		r.NoError(err)
		gotCfg, _ := decodeConfig(t, again)

		r.Equal(wantCfg.Width, gotCfg.Width)
		r.Equal(wantCfg.Height, gotCfg.Height)
	}
}

func TestGenerator_Errors(t *testing.T) {
	t.Parallel()

	generator, err := NewGenerator(Options{})
	require.NoError(t, err)

	validImage := encodePNG(t, newTestImage(10, 10))

	for _, tt := range []struct {
		name         string
		img          imgsch.EncodedImage
		maxDimension imgsch.MaxDimension
		wantErr      error
	}{
		{name: "text", img: imgsch.EncodedImage("hello world"), maxDimension: 100, wantErr: imgsch.ErrDecode},
		{name: "empty", img: nil, maxDimension: 100, wantErr: imgsch.ErrDecode},
		{name: "truncated png", img: validImage[:len(validImage)/2], maxDimension: 100, wantErr: imgsch.ErrDecode},
		{name: "zero max dimension", img: validImage, maxDimension: 0, wantErr: imgsch.ErrInvalidMaxDimension},
		{name: "negative max dimension", img: validImage, maxDimension: -1, wantErr: imgsch.ErrInvalidMaxDimension},
		{name: "huge max dimension", img: encodePNG(t, newTestImage(1, 1)), maxDimension: 1 << 31, wantErr: imgsch.ErrTooLarge},
		{name: "max dimension above side limit", img: validImage, maxDimension: 60000, wantErr: imgsch.ErrTooLarge},
		{name: "area above limit", img: encodePNG(t, newTestImage(1, 1)), maxDimension: imgsch.MaxSurfaceSide, wantErr: imgsch.ErrTooLarge},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := require.New(t)

			thumbnail, err := generator.Generate(tt.img, tt.maxDimension)
			r.ErrorIs(err, tt.wantErr)
			r.Nil(thumbnail)
		})
	}
}

func TestErrorReason(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		err  error
		want string
	}{
		{err: fmt.Errorf("%w: eof", imgsch.ErrDecode), want: metrics.ReasonDecode},
		{err: imgsch.ErrEmptyImage, want: metrics.ReasonEmptyImage},
		{err: imgsch.MaxDimension(0).Validate(), want: metrics.ReasonInvalidDimension},
		{err: imgsch.MaxDimension(1 << 31).Validate(), want: metrics.ReasonTooLarge},
		{err: fmt.Errorf("couldn't encode png: %w", assert.AnError), want: metrics.ReasonEncode},
	} {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, errorReason(tt.err))
		})
	}
}

func TestGenerator_InputFormats(t *testing.T) {
	t.Parallel()

	generator, err := NewGenerator(Options{})
	require.NoError(t, err)

	// 1x1 lossless webp.
	webpImage, err := base64.StdEncoding.DecodeString("UklGRhoAAABXRUJQVlA4TA0AAAAvAAAAEAcQERGIiP4HAA==")
	require.NoError(t, err)

	original := newTestImage(800, 400)

	for _, tt := range []struct {
		name         string
		img          imgsch.EncodedImage
		maxDimension imgsch.MaxDimension
		//
		wantWidth  int
		wantHeight int
	}{
		{name: "gif", img: encodeGIF(t, original), maxDimension: 100, wantWidth: 100, wantHeight: 50},
		{name: "bmp", img: encodeBMP(t, original), maxDimension: 100, wantWidth: 100, wantHeight: 50},
		{name: "tiff", img: encodeTIFF(t, original), maxDimension: 100, wantWidth: 100, wantHeight: 50},
		{name: "webp", img: webpImage, maxDimension: 10, wantWidth: 10, wantHeight: 10},
		{name: "jpeg without rotation", img: withEXIFOrientation(t, encodeJPEG(t, original), 1), maxDimension: 100, wantWidth: 100, wantHeight: 50},
		// Orientation 6 means the image must be rotated 90° clockwise.
		{name: "jpeg rotated", img: withEXIFOrientation(t, encodeJPEG(t, original), 6), maxDimension: 100, wantWidth: 50, wantHeight: 100},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := require.New(t)

			thumbnail, err := generator.Generate(tt.img, tt.maxDimension)
			r.NoError(err)

			cfg, _ := decodeConfig(t, thumbnail)
			r.Equal(tt.wantWidth, cfg.Width)
			r.Equal(tt.wantHeight, cfg.Height)
		})
	}

	t.Run("rotation direction", func(t *testing.T) {
		r := require.New(t)

		thumbnail, err := generator.Generate(withEXIFOrientation(t, encodeJPEG(t, original), 6), 100)
		r.NoError(err)

		img, err := png.Decode(bytes.NewReader(thumbnail))
		r.NoError(err)

		// The left (red) half becomes the top one.
		top := color.NRGBAModel.Convert(img.At(25, 20)).(color.NRGBA)    //nolint:forcetypeassert
		bottom := color.NRGBAModel.Convert(img.At(25, 80)).(color.NRGBA) //nolint:forcetypeassert
		r.Greater(top.R, top.B, "top: %v", top)
		r.Greater(bottom.B, bottom.R, "bottom: %v", bottom)
	})
}

func TestGenerator_GenerateAsync(t *testing.T) {
	t.Parallel()

	generator, err := NewGenerator(Options{})
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		r := require.New(t)

		resCh := generator.GenerateAsync(encodePNG(t, newTestImage(800, 400)), 100)

		res, ok := <-resCh
		r.True(ok)
		r.NoError(res.Err)
		cfg, _ := decodeConfig(t, res.Image)
		r.Equal(100, cfg.Width)
		r.Equal(50, cfg.Height)

		// Must be resolved only once.
		_, ok = <-resCh
		r.False(ok)
	})

	t.Run("decode error", func(t *testing.T) {
		r := require.New(t)

		resCh := generator.GenerateAsync(imgsch.EncodedImage("<html></html>"), 100)

		res, ok := <-resCh
		r.True(ok)
		r.ErrorIs(res.Err, imgsch.ErrDecode)
		r.Nil(res.Image)

		_, ok = <-resCh
		r.False(ok)
	})
}

func TestGenerator_Concurrent(t *testing.T) {
	t.Parallel()

	generator, err := NewGenerator(Options{Format: imgsch.JpegThumbnails})
	require.NoError(t, err)

	const callCount = 20

	original := encodePNG(t, newTestImage(200, 100))

	var wg sync.WaitGroup
	for i := range callCount {
		wg.Add(1)
		go func() {
			defer wg.Done()

			maxDimension := imgsch.MaxDimension(10 + i)
			thumbnail, err := generator.Generate(original, maxDimension)
			if !assert.NoError(t, err) {
				return
			}

			cfg, _, err := image.DecodeConfig(bytes.NewReader(thumbnail))
			if !assert.NoError(t, err) {
				return
			}
			assert.Equal(t, int(maxDimension), cfg.Width)
			assert.Equal(t, int(maxDimension)/2, cfg.Height)
		}()
	}
	wg.Wait()
}

// TestGenerator_Content checks that the whole image is drawn without cropping.
func TestGenerator_Content(t *testing.T) {
	t.Parallel()

	r := require.New(t)

	generator, err := NewGenerator(Options{Interpolator: imgsch.NearestNeighbor})
	r.NoError(err)

	thumbnail, err := generator.Generate(encodePNG(t, newTestImage(800, 400)), 100)
	r.NoError(err)

	img, err := png.Decode(bytes.NewReader(thumbnail))
	r.NoError(err)

	assertColor := func(x, y int, want color.NRGBA) {
		got := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA) //nolint:forcetypeassert
		r.Equal(want, got, "pixel (%d, %d)", x, y)
	}
	assertColor(0, 0, red)
	assertColor(49, 49, red)
	assertColor(50, 0, blue)
	assertColor(99, 49, blue)

	t.Run("transparency", func(t *testing.T) {
		r := require.New(t)

		thumbnail, err := generator.Generate(encodePNG(t, image.NewNRGBA(image.Rect(0, 0, 40, 20))), 20)
		r.NoError(err)

		img, err := png.Decode(bytes.NewReader(thumbnail))
		r.NoError(err)
		_, _, _, a := img.At(5, 5).RGBA()
		r.Equal(uint32(0), a)
	})
}

func TestNewGenerator(t *testing.T) {
	t.Parallel()

	r := require.New(t)

	_, err := NewGenerator(Options{Format: "avif"})
	r.ErrorIs(err, imgsch.ErrUnsupportedFormat)

	_, err = NewGenerator(Options{JPEGQuality: 101})
	r.Error(err)

	_, err = NewGenerator(Options{Interpolator: "lanczos"})
	r.Error(err)

	g, err := NewGenerator(Options{})
	r.NoError(err)
	r.Equal(imgsch.PngThumbnails, g.format)
	r.Equal(70, g.jpegQuality)
}

func TestSurface(t *testing.T) {
	t.Parallel()

	r := require.New(t)

	s := acquireSurface(4, 3)
	r.Equal(image.Rect(0, 0, 4, 3), s.Bounds())
	r.Len(s.img.Pix, 4*4*3)
	for i := range s.img.Pix {
		s.img.Pix[i] = 0xff
	}
	s.release()
	r.Nil(s.img)

	// Double release must be no-op.
	s.release()

	// Reused buffers must be cleared.
	s = acquireSurface(2, 2)
	defer s.release()
	for _, v := range s.img.Pix {
		r.Equal(uint8(0), v)
	}
}

var (
	red  = color.NRGBA{R: 0xff, A: 0xff}
	blue = color.NRGBA{B: 0xff, A: 0xff}
)

// newTestImage returns an image with red left half and blue right half.
func newTestImage(width, height int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			c := red
			if x >= width/2 {
				c = blue
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	buf := bytes.NewBuffer(nil)
	err := png.Encode(buf, img)
	require.NoError(t, err)
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	buf := bytes.NewBuffer(nil)
	err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 90})
	require.NoError(t, err)
	return buf.Bytes()
}

func encodeGIF(t *testing.T, img image.Image) []byte {
	buf := bytes.NewBuffer(nil)
	err := gif.Encode(buf, img, nil)
	require.NoError(t, err)
	return buf.Bytes()
}

func encodeBMP(t *testing.T, img image.Image) []byte {
	buf := bytes.NewBuffer(nil)
	err := bmp.Encode(buf, img)
	require.NoError(t, err)
	return buf.Bytes()
}

func encodeTIFF(t *testing.T, img image.Image) []byte {
	buf := bytes.NewBuffer(nil)
	err := tiff.Encode(buf, img, &tiff.Options{Compression: tiff.Deflate})
	require.NoError(t, err)
	return buf.Bytes()
}

// withEXIFOrientation inserts an APP1 segment with the EXIF orientation tag right
// after the SOI marker.
func withEXIFOrientation(t *testing.T, jpegData []byte, orientation uint16) []byte {
	require.True(t, bytes.HasPrefix(jpegData, []byte{0xff, 0xd8}), "no SOI marker")

	payload := []byte("Exif\x00\x00")
	// Big-endian TIFF header, the first IFD is right after it.
	payload = append(payload, 'M', 'M', 0x00, 0x2a)
	payload = binary.BigEndian.AppendUint32(payload, 8)
	// IFD with the only Orientation (0x0112) entry of type SHORT.
	payload = binary.BigEndian.AppendUint16(payload, 1)
	payload = binary.BigEndian.AppendUint16(payload, 0x0112)
	payload = binary.BigEndian.AppendUint16(payload, 3)
	payload = binary.BigEndian.AppendUint32(payload, 1)
	payload = binary.BigEndian.AppendUint16(payload, orientation)
	payload = append(payload, 0x00, 0x00)
	// No next IFD.
	payload = binary.BigEndian.AppendUint32(payload, 0)

	res := []byte{0xff, 0xd8, 0xff, 0xe1}
	res = binary.BigEndian.AppendUint16(res, uint16(len(payload)+2)) //nolint:gosec
	res = append(res, payload...)
	return append(res, jpegData[2:]...)
}

func decodeConfig(t *testing.T, data []byte) (image.Config, string) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg, format
}
