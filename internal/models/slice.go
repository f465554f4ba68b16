package models

import (
	"image"
)

// Slice represents a single 2D image of a slice stack with metadata
type Slice struct {
	// Image is the decoded slice image
	Image image.Image

	// Index is the position of this slice in the sorted sequence
	Index int

	// Filename is the original filename of the slice
	Filename string

	// Number is the slice number parsed from the filename, used for ordering
	Number int
}

// Size returns the size of the slice image, or zero when it has none.
func (s Slice) Size() (width, height int) {
	if s.Image == nil {
		return 0, 0
	}
	b := s.Image.Bounds()
	return b.Dx(), b.Dy()
}
