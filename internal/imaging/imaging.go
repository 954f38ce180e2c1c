// Package imaging holds the pixel-level helpers shared by enrollment and recognition:
// decoding, grayscale conversion, histogram equalization, cropping and display resizing.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Decode decodes any registered image format.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Load reads and decodes an image file in one attempt.
func Load(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	return Decode(data)
}

// LoadGray reads an image file and converts it to 8-bit grayscale.
func LoadGray(path string) (*image.Gray, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	return ToGray(img), nil
}

// ToGray converts an image to grayscale with its origin moved to (0, 0).
func ToGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := image.NewGray(image.Rect(0, 0, width, height))
	if src, ok := img.(*image.Gray); ok {
		for y := range height {
			copy(gray.Pix[y*gray.Stride:y*gray.Stride+width], src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):])
		}
		return gray
	}

	for y := range height {
		for x := range width {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// ITU-R BT.601 luma formula.
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray.Pix[y*gray.Stride+x] = uint8(luma + 0.5)
		}
	}

	return gray
}

// EqualizeHist spreads the intensity histogram of src over the full 0-255 range.
// A constant image maps to itself.
func EqualizeHist(src *image.Gray) *image.Gray {
	bounds := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return dst
	}

	var hist [256]int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := src.Pix[src.PixOffset(bounds.Min.X, y):]
		for x := range bounds.Dx() {
			hist[row[x]]++
		}
	}

	first := 0
	for hist[first] == 0 {
		first++
	}

	var lut [256]uint8
	if hist[first] == total {
		for i := range lut {
			lut[i] = uint8(first)
		}
	} else {
		scale := 255.0 / float64(total-hist[first])
		sum := 0
		for i := first + 1; i < 256; i++ {
			sum += hist[i]
			v := float64(sum)*scale + 0.5
			if v > 255 {
				v = 255
			}
			lut[i] = uint8(v)
		}
	}

	for y := range bounds.Dy() {
		srcRow := src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		dstRow := dst.Pix[y*dst.Stride:]
		for x := range bounds.Dx() {
			dstRow[x] = lut[srcRow[x]]
		}
	}

	return dst
}

// Crop copies the part of src covered by r, clipped to the image bounds.
// The result has its origin at (0, 0).
func Crop(src *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Intersect(src.Bounds())
	dst := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := range r.Dy() {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+r.Dx()], src.Pix[src.PixOffset(r.Min.X, r.Min.Y+y):])
	}
	return dst
}

// ToRGBA copies any image into a mutable RGBA canvas with origin (0, 0).
func ToRGBA(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}

// resizeImage scales an image to the specified dimensions.
func resizeImage(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// FitSize returns the dimensions of a width x height image scaled down to fit
// within maxWidth x maxHeight while keeping the aspect ratio. Images that already
// fit are returned unchanged.
func FitSize(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= maxWidth && height <= maxHeight {
		return width, height
	}
	scale := min(float64(maxWidth)/float64(width), float64(maxHeight)/float64(height))
	return max(1, int(float64(width)*scale)), max(1, int(float64(height)*scale))
}

// FitWithin resizes an image to fit within maxWidth x maxHeight while keeping aspect ratio.
func FitWithin(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	newWidth, newHeight := FitSize(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)
	if newWidth == bounds.Dx() && newHeight == bounds.Dy() {
		return img
	}
	return resizeImage(img, newWidth, newHeight)
}

// EncodeJPEG writes img as JPEG.
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}

// SaveJPEG encodes img as JPEG at path, creating parent directories as needed.
func SaveJPEG(path string, img image.Image, quality int) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, img, quality); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write image %s: %w", path, err)
	}
	return nil
}
