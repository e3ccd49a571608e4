package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
)

type fataler interface {
	Helper()
	Fatalf(string, ...any)
}

func opaque(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 5), B: 120, A: 255})
		}
	}
	return img
}

// TinyPNG returns an opaque PNG with the requested dimensions.
func TinyPNG(t fataler, w, h int) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, opaque(w, h)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// TinyJPEG returns a JPEG with the requested dimensions.
func TinyJPEG(t fataler, w, h int) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, opaque(w, h), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// TinyWebP returns a lossless WebP with the requested dimensions.
func TinyWebP(t fataler, w, h int) []byte {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, opaque(w, h), &webp.Options{Lossless: true}); err != nil {
		t.Fatalf("encode webp: %v", err)
	}
	return buf.Bytes()
}
