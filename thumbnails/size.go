package thumbnails

import (
	"fmt"
	"image"

	"github.com/edtenz/imgsch/imgsch"
)

// thumbnailSize calculates new width and height preserving original aspect ratio.
// The longer side always becomes maxDimension, so small images are upscaled. Square
// images are handled as landscape ones.
//
// Fractional sizes are truncated, but every side is at least 1px. Sizes that exceed
// [imgsch.MaxSurfaceSide] or [imgsch.MaxSurfaceArea] are rejected with [imgsch.ErrTooLarge].
func thumbnailSize(bounds image.Rectangle, maxDimension imgsch.MaxDimension) (newWidth, newHeight int, err error) {
	origWidth := bounds.Dx()
	origHeight := bounds.Dy()

	if origWidth <= 0 || origHeight <= 0 {
		return 0, 0, fmt.Errorf("%w: %dx%d", imgsch.ErrEmptyImage, origWidth, origHeight)
	}
	if err := maxDimension.Validate(); err != nil {
		return 0, 0, err
	}

	// maxSize <= MaxSurfaceSide after Validate, so int64 products can't overflow.
	maxSize := int64(maxDimension)
	w, h := int64(origWidth), int64(origHeight)

	// Preserve aspect ratio.
	if h > w {
		newHeight = int(maxSize)
		newWidth = int(maxSize * w / h)
	} else {
		newWidth = int(maxSize)
		newHeight = int(maxSize * h / w)
	}

	newWidth = max(newWidth, 1)
	newHeight = max(newHeight, 1)

	if area := int64(newWidth) * int64(newHeight); area > imgsch.MaxSurfaceArea {
		return 0, 0, fmt.Errorf("%w: %dx%d exceeds %d pixels", imgsch.ErrTooLarge, newWidth, newHeight, imgsch.MaxSurfaceArea)
	}

	return newWidth, newHeight, nil
}
