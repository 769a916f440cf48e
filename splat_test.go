package splat

import "testing"

func TestImagePixelBufferSize(t *testing.T) {
	img := Image{Width: 4, Height: 3, Pixels: make([]uint8, 4*3*4)}
	want := img.Width * img.Height * 4
	if len(img.Pixels) != want {
		t.Errorf("len(Pixels) = %d, want %d", len(img.Pixels), want)
	}
}

func TestSplatZeroValueIsTransparentAtOrigin(t *testing.T) {
	var s Splat
	if s.Centre != ([3]float32{}) {
		t.Errorf("zero Splat.Centre = %v, want origin", s.Centre)
	}
	if s.Opacity != 0 {
		t.Errorf("zero Splat.Opacity = %v, want 0", s.Opacity)
	}
}
