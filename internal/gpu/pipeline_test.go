//go:build !nogpu

package gpu

import "testing"

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	host, err := NewHost()
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	t.Cleanup(host.Close)

	p, err := NewPipeline(host)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	t.Cleanup(p.Destroy)
	return p
}

func identitySettings() RasterSettings {
	return RasterSettings{
		AABBPaddingFactor: 1.5,
		Sigma:             0.5,
		EarlyAlphaCutoff:  0.99,
	}
}

func TestPipeline_RenderFrame_EmptyScene(t *testing.T) {
	p := newTestPipeline(t)

	pixels, err := p.RenderFrame(nil, FrameParams{}, identitySettings(), 32, 32)
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	if len(pixels) != 32*32*4 {
		t.Errorf("len(pixels) = %d, want %d", len(pixels), 32*32*4)
	}
	for i := 0; i < len(pixels); i += 4 {
		if pixels[i+3] != 255 {
			t.Fatalf("pixel %d alpha = %d, want 255 (opaque)", i/4, pixels[i+3])
		}
	}
}

func TestPipeline_RenderFrame_SingleSplat(t *testing.T) {
	p := newTestPipeline(t)

	splats := []SplatInput{{
		Centre: [3]float32{0, 0, 0}, Radius: 0.2,
		Normal: [3]float32{0, 0, 1}, Colour: [3]float32{1, 1, 1}, Opacity: 1,
	}}
	frame := FrameParams{
		ViewProj:  identityViewProj(3),
		CameraPos: [3]float32{0, 0, 3},
	}

	pixels, err := p.RenderFrame(splats, frame, identitySettings(), 64, 64)
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}

	i := (32*64 + 32) * 4
	if pixels[i] < 200 || pixels[i+1] < 200 || pixels[i+2] < 200 {
		t.Errorf("centre pixel = (%d,%d,%d), want bright (lit white splat)", pixels[i], pixels[i+1], pixels[i+2])
	}
}

func TestPipeline_RenderFrame_ViewportResize(t *testing.T) {
	p := newTestPipeline(t)

	if _, err := p.RenderFrame(nil, FrameParams{}, identitySettings(), 16, 16); err != nil {
		t.Fatalf("RenderFrame at 16x16: %v", err)
	}
	pixels, err := p.RenderFrame(nil, FrameParams{}, identitySettings(), 48, 32)
	if err != nil {
		t.Fatalf("RenderFrame at 48x32: %v", err)
	}
	if len(pixels) != 48*32*4 {
		t.Errorf("len(pixels) = %d, want %d after resize", len(pixels), 48*32*4)
	}
}

func TestPipeline_RenderFrame_ManySplatsNoPathologicalOverlap(t *testing.T) {
	p := newTestPipeline(t)

	const n = 512
	splats := make([]SplatInput, n)
	for i := range splats {
		x := float32(i%32-16) * 0.05
		y := float32(i/32-8) * 0.05
		splats[i] = SplatInput{
			Centre: [3]float32{x, y, 0}, Radius: 0.02,
			Normal: [3]float32{0, 0, 1}, Colour: [3]float32{1, 1, 1}, Opacity: 1,
		}
	}
	frame := FrameParams{ViewProj: identityViewProj(3), CameraPos: [3]float32{0, 0, 3}}

	if _, err := p.RenderFrame(splats, frame, identitySettings(), 128, 128); err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
}

// identityViewProj returns a simple orthographic-like view-projection
// matrix for a camera at (0,0,dist) looking down -z, used only to drive
// the pipeline tests without pulling in a full perspective camera helper.
func identityViewProj(dist float32) [16]float32 {
	return [16]float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, -dist, 1,
	}
}
