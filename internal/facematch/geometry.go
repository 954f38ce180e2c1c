package facematch

import "image"

// ComputeIoU calculates Intersection over Union between two pixel rectangles.
func ComputeIoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0 // No intersection
	}

	intersection := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// SquareAround returns the square of the given side centered on (col, row).
// This is the region a cascade window covers.
func SquareAround(col, row, side int) image.Rectangle {
	half := side / 2
	return image.Rect(col-half, row-half, col-half+side, row-half+side)
}

// MeanRect averages the corners of a group of rectangles.
func MeanRect(rects []image.Rectangle) image.Rectangle {
	if len(rects) == 0 {
		return image.Rectangle{}
	}
	var x0, y0, x1, y1 int
	for _, r := range rects {
		x0 += r.Min.X
		y0 += r.Min.Y
		x1 += r.Max.X
		y1 += r.Max.Y
	}
	n := len(rects)
	return image.Rect(x0/n, y0/n, x1/n, y1/n)
}

// Largest returns the index of the rectangle with the biggest area, or -1 for none.
func Largest(rects []image.Rectangle) int {
	best := -1
	bestArea := 0
	for i, r := range rects {
		if area := r.Dx() * r.Dy(); area > bestArea {
			best = i
			bestArea = area
		}
	}
	return best
}

// FitsMinSize reports whether a rectangle is at least minSize in both dimensions.
func FitsMinSize(r image.Rectangle, minSize image.Point) bool {
	return r.Dx() >= minSize.X && r.Dy() >= minSize.Y
}
