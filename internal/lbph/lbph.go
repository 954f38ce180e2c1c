// Package lbph implements a Local Binary Patterns Histograms face recognizer.
//
// Each training image is turned into a circular LBP code image (radius 1, 8 sampling
// points, bilinear interpolation), split into a GridX x GridY grid, and described by
// the concatenation of per-cell 256-bin histograms normalized by cell area. A query
// is classified as the label of the nearest training histogram under the chi-square
// distance, so lower distances mean stronger matches.
package lbph

import (
	"errors"
	"fmt"
	"image"
	"math"
)

const (
	radius    = 1
	neighbors = 8
	patterns  = 1 << neighbors

	// DefaultGrid is the number of cells along each image axis.
	DefaultGrid = 8
)

// ErrNoSamples is returned when training is attempted without any sample.
var ErrNoSamples = errors.New("no samples to train on")

// Sample is one labeled grayscale training image.
type Sample struct {
	Image *image.Gray
	Label int
}

// Model is a trained LBPH recognizer. The zero value is untrained.
type Model struct {
	GridX      int
	GridY      int
	Labels     []int
	Histograms [][]float32
}

// New returns an untrained model with the default 8x8 grid.
func New() *Model {
	return &Model{GridX: DefaultGrid, GridY: DefaultGrid}
}

// Train replaces the model contents with histograms computed from samples.
func (m *Model) Train(samples []Sample) error {
	if len(samples) == 0 {
		return ErrNoSamples
	}
	if m.GridX <= 0 || m.GridY <= 0 {
		m.GridX, m.GridY = DefaultGrid, DefaultGrid
	}

	labels := make([]int, 0, len(samples))
	histograms := make([][]float32, 0, len(samples))
	for i, s := range samples {
		if s.Image == nil || s.Image.Bounds().Empty() {
			return fmt.Errorf("sample %d has no pixels", i)
		}
		labels = append(labels, s.Label)
		histograms = append(histograms, m.histogram(s.Image))
	}

	m.Labels = labels
	m.Histograms = histograms
	return nil
}

// Trained reports whether the model holds at least one sample.
func (m *Model) Trained() bool {
	return len(m.Histograms) > 0
}

// Predict returns the label of the closest training sample and its chi-square
// distance to img. Ties go to the earliest sample. An untrained model or an empty
// image yields label -1 and an infinite distance.
func (m *Model) Predict(img *image.Gray) (int, float64) {
	if !m.Trained() || img == nil || img.Bounds().Empty() {
		return -1, math.Inf(1)
	}

	query := m.histogram(img)
	bestLabel := -1
	bestDist := math.Inf(1)
	for i, h := range m.Histograms {
		if d := ChiSquare(h, query); d < bestDist {
			bestDist = d
			bestLabel = m.Labels[i]
		}
	}
	return bestLabel, bestDist
}

// ChiSquare returns sum(2*(a-b)^2 / (a+b)) over bins where a+b > 0.
func ChiSquare(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var dist float64
	for i := range a {
		sum := float64(a[i]) + float64(b[i])
		if sum <= 0 {
			continue
		}
		diff := float64(a[i]) - float64(b[i])
		dist += 2 * diff * diff / sum
	}
	return dist
}

func (m *Model) histogram(img *image.Gray) []float32 {
	codes := Codes(img)
	return SpatialHistogram(codes, m.GridX, m.GridY)
}

// Codes computes the circular LBP code image. The result is smaller than img by
// the radius on every side; images too small to hold a neighborhood yield an
// empty code image.
func Codes(img *image.Gray) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx()-2*radius, b.Dy()-2*radius
	if w <= 0 || h <= 0 {
		return image.NewGray(image.Rectangle{})
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	at := func(x, y int) float64 {
		return float64(img.Pix[img.PixOffset(b.Min.X+x, b.Min.Y+y)])
	}

	for n := range neighbors {
		angle := 2 * math.Pi * float64(n) / float64(neighbors)
		sx := snap(radius * math.Cos(angle))
		sy := snap(-radius * math.Sin(angle))

		fx, fy := int(math.Floor(sx)), int(math.Floor(sy))
		cx, cy := int(math.Ceil(sx)), int(math.Ceil(sy))
		tx, ty := sx-float64(fx), sy-float64(fy)
		w1 := (1 - tx) * (1 - ty)
		w2 := tx * (1 - ty)
		w3 := (1 - tx) * ty
		w4 := tx * ty

		for y := radius; y < b.Dy()-radius; y++ {
			for x := radius; x < b.Dx()-radius; x++ {
				t := w1*at(x+fx, y+fy) + w2*at(x+cx, y+fy) + w3*at(x+fx, y+cy) + w4*at(x+cx, y+cy)
				center := at(x, y)
				if t > center || math.Abs(t-center) < 1e-9 {
					dst.Pix[(y-radius)*dst.Stride+(x-radius)] |= 1 << n
				}
			}
		}
	}
	return dst
}

// snap removes floating point noise from the unit circle coordinates so the
// axis-aligned sampling points land exactly on pixel centers.
func snap(v float64) float64 {
	if r := math.Round(v); math.Abs(v-r) < 1e-9 {
		return r
	}
	return v
}

// SpatialHistogram splits codes into a gridX x gridY grid and concatenates the
// per-cell histograms, each normalized by the number of pixels in the cell.
// Trailing rows and columns that do not fill a whole cell are ignored.
func SpatialHistogram(codes *image.Gray, gridX, gridY int) []float32 {
	result := make([]float32, gridX*gridY*patterns)
	b := codes.Bounds()
	cellW, cellH := b.Dx()/gridX, b.Dy()/gridY
	if cellW == 0 || cellH == 0 {
		return result
	}

	area := float32(cellW * cellH)
	for gy := range gridY {
		for gx := range gridX {
			hist := result[(gy*gridX+gx)*patterns : (gy*gridX+gx+1)*patterns]
			for y := gy * cellH; y < (gy+1)*cellH; y++ {
				row := codes.Pix[codes.PixOffset(b.Min.X, b.Min.Y+y):]
				for x := gx * cellW; x < (gx+1)*cellW; x++ {
					hist[row[x]]++
				}
			}
			for i := range hist {
				hist[i] /= area
			}
		}
	}
	return result
}
