package facematch

import "image"

// Detection is a located face region in pixel coordinates of the searched image.
type Detection struct {
	Region    image.Rectangle
	Neighbors int // raw cascade hits merged into this region
}
