package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestToGray(t *testing.T) {
	tests := []struct {
		name     string
		color    color.Color
		expected uint8
	}{
		{"white", color.White, 255},
		{"black", color.Black, 0},
		{"pure red", color.RGBA{255, 0, 0, 255}, 76},
		{"pure green", color.RGBA{0, 255, 0, 255}, 150},
		{"pure blue", color.RGBA{0, 0, 255, 255}, 29},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gray := ToGray(createTestImage(4, 3, tc.color))
			if gray.Bounds().Dx() != 4 || gray.Bounds().Dy() != 3 {
				t.Fatalf("unexpected bounds %v", gray.Bounds())
			}
			if got := gray.GrayAt(2, 1).Y; got != tc.expected {
				t.Errorf("ToGray(%v) = %d; want %d", tc.color, got, tc.expected)
			}
		})
	}
}

func TestToGray_MovesOriginToZero(t *testing.T) {
	src := image.NewGray(image.Rect(10, 20, 14, 22))
	src.SetGray(11, 21, color.Gray{Y: 200})

	gray := ToGray(src)

	if gray.Bounds().Min != (image.Point{}) {
		t.Fatalf("expected origin (0,0), got %v", gray.Bounds().Min)
	}
	if got := gray.GrayAt(1, 1).Y; got != 200 {
		t.Errorf("pixel (1,1) = %d; want 200", got)
	}
}

func TestEqualizeHist_SpreadsRange(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 1))
	for x, v := range []uint8{100, 101, 102, 103} {
		src.SetGray(x, 0, color.Gray{Y: v})
	}

	dst := EqualizeHist(src)

	want := []uint8{0, 85, 170, 255}
	for x, w := range want {
		if got := dst.GrayAt(x, 0).Y; got != w {
			t.Errorf("pixel %d = %d; want %d", x, got, w)
		}
	}
}

func TestEqualizeHist_ConstantImage(t *testing.T) {
	src := createGrayImage(8, 8, 42)

	dst := EqualizeHist(src)

	for i, v := range dst.Pix {
		if v != 42 {
			t.Fatalf("pixel %d = %d; constant image should be unchanged", i, v)
		}
	}
}

func TestEqualizeHist_Monotonic(t *testing.T) {
	src := createGradientGray(64, 16)

	dst := EqualizeHist(src)

	for x := 1; x < 64; x++ {
		if dst.GrayAt(x, 0).Y < dst.GrayAt(x-1, 0).Y {
			t.Fatalf("equalization must preserve ordering: x=%d", x)
		}
	}
}

func TestEqualizeHist_Empty(t *testing.T) {
	dst := EqualizeHist(image.NewGray(image.Rect(0, 0, 0, 0)))
	if !dst.Bounds().Empty() {
		t.Errorf("expected empty result, got %v", dst.Bounds())
	}
}

func TestCrop(t *testing.T) {
	src := createGradientGray(20, 10)

	t.Run("inside", func(t *testing.T) {
		crop := Crop(src, image.Rect(5, 2, 9, 6))
		if crop.Bounds() != image.Rect(0, 0, 4, 4) {
			t.Fatalf("unexpected bounds %v", crop.Bounds())
		}
		if crop.GrayAt(0, 0) != src.GrayAt(5, 2) {
			t.Errorf("crop origin should equal source (5,2)")
		}
	})

	t.Run("clipped", func(t *testing.T) {
		crop := Crop(src, image.Rect(15, 5, 30, 30))
		if crop.Bounds() != image.Rect(0, 0, 5, 5) {
			t.Errorf("expected clipped 5x5 crop, got %v", crop.Bounds())
		}
	})

	t.Run("outside", func(t *testing.T) {
		crop := Crop(src, image.Rect(50, 50, 60, 60))
		if !crop.Bounds().Empty() {
			t.Errorf("expected empty crop, got %v", crop.Bounds())
		}
	})
}

func TestFitSize(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		wantW, wantH  int
	}{
		{"already fits", 640, 480, 640, 480},
		{"wide", 1600, 600, 800, 300},
		{"tall", 600, 1200, 300, 600},
		{"both too large", 4000, 3000, 800, 600},
		{"exact bound", 800, 600, 800, 600},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, h := FitSize(tc.width, tc.height, 800, 600)
			if w != tc.wantW || h != tc.wantH {
				t.Errorf("FitSize(%d, %d) = %dx%d; want %dx%d", tc.width, tc.height, w, h, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestFitWithin(t *testing.T) {
	small := createTestImage(100, 50, color.White)
	if got := FitWithin(small, 800, 600); got != image.Image(small) {
		t.Error("image that fits should be returned unchanged")
	}

	large := createTestImage(1600, 800, color.White)
	resized := FitWithin(large, 800, 600)
	if resized.Bounds().Dx() != 800 || resized.Bounds().Dy() != 400 {
		t.Errorf("expected 800x400, got %dx%d", resized.Bounds().Dx(), resized.Bounds().Dy())
	}
}

func TestLoadGray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "face.png")

	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(10, 10, color.White)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	gray, err := LoadGray(path)
	if err != nil {
		t.Fatalf("LoadGray failed: %v", err)
	}
	if gray.GrayAt(5, 5).Y != 255 {
		t.Errorf("expected white pixel, got %d", gray.GrayAt(5, 5).Y)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Error("expected error for missing file")
	}

	corrupt := filepath.Join(dir, "corrupt.jpg")
	if err := os.WriteFile(corrupt, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(corrupt); err == nil {
		t.Error("expected error for corrupt file")
	}
}

func TestSaveJPEG_CreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "sample.jpg")

	if err := SaveJPEG(path, createGradientGray(16, 16), 90); err != nil {
		t.Fatalf("SaveJPEG failed: %v", err)
	}

	img, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if img.Bounds().Dx() != 16 {
		t.Errorf("expected width 16, got %d", img.Bounds().Dx())
	}
}

// Helper functions

func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, c)
		}
	}
	return img
}

func createGrayImage(width, height int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func createGradientGray(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 255 / max(1, width-1))})
		}
	}
	return img
}
