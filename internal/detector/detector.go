// Package detector locates face regions in grayscale images with a pixel
// intensity comparison cascade and groups overlapping window hits into faces.
package detector

import (
	_ "embed"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"sort"

	pigo "github.com/esimov/pigo/core"
	"github.com/kozaktomas/class-attendance/internal/constants"
	"github.com/kozaktomas/class-attendance/internal/facematch"
	"github.com/kozaktomas/class-attendance/internal/imaging"
)

// Params tunes a single Locate call.
type Params struct {
	ScaleFactor  float64     // step between successive window sizes, > 1
	MinNeighbors int         // raw hits besides the window itself needed to emit a region
	MinSize      image.Point // smallest emitted region
}

// DefaultParams returns the recognition-run defaults.
func DefaultParams() Params {
	return Params{
		ScaleFactor:  constants.DefaultScaleFactor,
		MinNeighbors: constants.DefaultMinNeighbors,
		MinSize:      image.Pt(constants.DefaultMinSize, constants.DefaultMinSize),
	}
}

// Validate checks the ranges the cascade relies on.
func (p Params) Validate() error {
	if !(p.ScaleFactor > 1) {
		return fmt.Errorf("scale factor must be greater than 1, got %v", p.ScaleFactor)
	}
	if p.MinNeighbors < 1 {
		return fmt.Errorf("min neighbors must be at least 1, got %d", p.MinNeighbors)
	}
	if p.MinSize.X < 1 || p.MinSize.Y < 1 {
		return fmt.Errorf("min size must be positive, got %v", p.MinSize)
	}
	return nil
}

// Locator finds face regions in a grayscale image. Region order carries no meaning.
type Locator interface {
	Locate(img *image.Gray, p Params) []image.Rectangle
}

// Cascade is a Locator backed by a pigo facefinder cascade.
type Cascade struct {
	classifier   *pigo.Pigo
	shiftFactor  float64
	iouThreshold float64
}

//go:embed cascade/facefinder
var facefinder []byte

// DefaultCascade returns the built-in pigo facefinder cascade.
func DefaultCascade(shiftFactor float64) (*Cascade, error) {
	return NewCascade(facefinder, shiftFactor)
}

// NewCascade unpacks a binary pigo cascade.
func NewCascade(data []byte, shiftFactor float64) (*Cascade, error) {
	if len(data) == 0 {
		return nil, errors.New("cascade data is empty")
	}
	if shiftFactor <= 0 || shiftFactor >= 1 {
		shiftFactor = constants.DefaultShiftFactor
	}

	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}

	return &Cascade{
		classifier:   classifier,
		shiftFactor:  shiftFactor,
		iouThreshold: constants.GroupingIoUThreshold,
	}, nil
}

// LoadCascade reads a cascade file from disk.
func LoadCascade(path string, shiftFactor float64) (*Cascade, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}
	return NewCascade(data, shiftFactor)
}

// Locate returns the face regions found in img.
func (c *Cascade) Locate(img *image.Gray, p Params) []image.Rectangle {
	detections := c.Detect(img, p)
	regions := make([]image.Rectangle, len(detections))
	for i, d := range detections {
		regions[i] = d.Region
	}
	return regions
}

// Detect runs the cascade and returns grouped detections with their neighbor counts.
func (c *Cascade) Detect(img *image.Gray, p Params) []facematch.Detection {
	if img == nil || p.Validate() != nil {
		return nil
	}
	if img.Bounds().Min != (image.Point{}) {
		img = imaging.ToGray(img)
	}

	cols, rows := img.Bounds().Dx(), img.Bounds().Dy()
	minSize := minWindow(p.MinSize, p.ScaleFactor)
	maxSize := min(rows, cols)
	if maxSize < minSize {
		return nil
	}

	cParams := pigo.CascadeParams{
		MinSize:     minSize,
		MaxSize:     maxSize,
		ShiftFactor: c.shiftFactor,
		ScaleFactor: p.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: img.Pix,
			Rows:   rows,
			Cols:   cols,
			Dim:    img.Stride,
		},
	}

	// Raw window hits; grouping replaces pigo's own clustering so that
	// minNeighbors can be enforced.
	dets := c.classifier.RunCascade(cParams, 0.0)

	raw := make([]image.Rectangle, 0, len(dets))
	for _, d := range dets {
		raw = append(raw, facematch.SquareAround(d.Col, d.Row, d.Scale).Intersect(img.Bounds()))
	}

	var result []facematch.Detection
	for _, d := range GroupDetections(raw, p.MinNeighbors, c.iouThreshold) {
		if facematch.FitsMinSize(d.Region, p.MinSize) {
			result = append(result, d)
		}
	}
	return result
}

// minWindow returns the smallest cascade window for the requested size. The
// window must grow by at least one pixel per scale step or the scan never ends.
func minWindow(minSize image.Point, scaleFactor float64) int {
	size := max(minSize.X, minSize.Y)
	floor := int(math.Ceil(1/(scaleFactor-1))) + 1
	return max(size, floor)
}

// GroupDetections merges overlapping raw hits. Two hits are neighbors when their
// IoU exceeds iouThreshold; connected hits form one group, and a group is kept when
// it holds more than minNeighbors hits. Each kept group yields its mean rectangle.
// Output is ordered by the first hit of each group, so equal input gives equal output.
func GroupDetections(raw []image.Rectangle, minNeighbors int, iouThreshold float64) []facematch.Detection {
	if len(raw) == 0 {
		return nil
	}

	parent := make([]int, len(raw))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := range raw {
		for j := i + 1; j < len(raw); j++ {
			if facematch.ComputeIoU(raw[i], raw[j]) > iouThreshold {
				ri, rj := find(i), find(j)
				if ri != rj {
					parent[max(ri, rj)] = min(ri, rj)
				}
			}
		}
	}

	groups := make(map[int][]image.Rectangle)
	for i, r := range raw {
		root := find(i)
		groups[root] = append(groups[root], r)
	}

	roots := make([]int, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	var result []facematch.Detection
	for _, root := range roots {
		members := groups[root]
		if len(members) <= minNeighbors {
			continue
		}
		result = append(result, facematch.Detection{
			Region:    facematch.MeanRect(members),
			Neighbors: len(members) - 1,
		})
	}
	return result
}
