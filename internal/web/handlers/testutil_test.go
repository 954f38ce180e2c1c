package handlers

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/class-attendance/internal/detector"
)

// fakeLocator returns fixed regions regardless of the image
type fakeLocator struct {
	regions []image.Rectangle
}

func (f *fakeLocator) Locate(img *image.Gray, p detector.Params) []image.Rectangle {
	return append([]image.Rectangle(nil), f.regions...)
}

// testImage creates a small gradient picture
func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x * 3), G: uint8(y * 3), B: 100, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// writeSample stores a PNG face sample below dir and returns its relative path
func writeSample(t *testing.T, dir, name string) string {
	t.Helper()
	rel := filepath.Join("dataset", name+".png")
	if err := os.MkdirAll(filepath.Join(dir, "dataset"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, rel), encodePNG(t, testImage(32, 32)), 0644); err != nil {
		t.Fatal(err)
	}
	return rel
}

// multipartRequest builds a POST request with form fields and optional files
func multipartRequest(t *testing.T, path string, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for field, data := range files {
		fw, err := mw.CreateFormFile(field, field+".png")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
