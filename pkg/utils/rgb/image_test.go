package rgb

import (
	"image/color"
	"testing"
)

func TestRGBAt(t *testing.T) {
	// 2x1 image with one byte of row padding.
	img := NewRGB([]byte{1, 2, 3, 4, 5, 6, 0}, 2, 1)
	if img.Stride != 7 {
		t.Fatalf("stride: got %d", img.Stride)
	}
	if got := img.At(1, 0); got != (color.RGBA{R: 4, G: 5, B: 6, A: 0xff}) {
		t.Fatalf("got %v", got)
	}
	if got := img.At(2, 0); got != (color.RGBA{}) {
		t.Fatalf("out of bounds pixel: got %v", got)
	}
}
