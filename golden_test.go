package splat

import (
	"errors"
	"math"
	"testing"
)

// newTestRenderer opens a real GPU renderer for an end-to-end scenario,
// skipping the test rather than failing when no compatible adapter is
// present, mirroring the teacher's TestVelloComputeGolden/
// TestVelloComputeSmoke pattern (internal/gpu/golden_test.go).
func newTestRenderer(t *testing.T, width, height int) *Renderer {
	t.Helper()
	r, err := NewRenderer(DefaultConfig(), width, height)
	if err != nil {
		if errors.Is(err, ErrNoGPU) {
			t.Skipf("GPU not available: %v", err)
		}
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

// lookAtPerspective builds a right-handed, column-major view-projection
// matrix, the same construction cmd/splatview/camera.go uses to drive the
// pipeline from a human-readable eye/target pair.
func lookAtPerspective(eye, target, up [3]float32, fovY, aspect, near, far float32) [16]float32 {
	f := normalize3(sub3(target, eye))
	s := normalize3(cross3(f, up))
	u := cross3(s, f)

	view := [16]float32{
		s[0], u[0], -f[0], 0,
		s[1], u[1], -f[1], 0,
		s[2], u[2], -f[2], 0,
		-dot3(s, eye), -dot3(u, eye), dot3(f, eye), 1,
	}

	tanHalf := float32(math.Tan(float64(fovY) / 2))
	proj := [16]float32{}
	proj[0] = 1 / (aspect * tanHalf)
	proj[5] = 1 / tanHalf
	proj[10] = -(far + near) / (far - near)
	proj[11] = -1
	proj[14] = -(2 * far * near) / (far - near)

	return mulMat4(proj, view)
}

func sub3(a, b [3]float32) [3]float32 { return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func dot3(a, b [3]float32) float32    { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
func cross3(a, b [3]float32) [3]float32 {
	return [3]float32{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
}
func normalize3(a [3]float32) [3]float32 {
	l := float32(math.Sqrt(float64(dot3(a, a))))
	if l == 0 {
		return a
	}
	return [3]float32{a[0] / l, a[1] / l, a[2] / l}
}
func mulMat4(a, b [16]float32) [16]float32 {
	var out [16]float32
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += a[k*4+row] * b[col*4+k]
			}
			out[col*4+row] = sum
		}
	}
	return out
}

func pixelAt(img Image, x, y int) (r, g, b, a uint8) {
	i := (y*img.Width + x) * 4
	return img.Pixels[i], img.Pixels[i+1], img.Pixels[i+2], img.Pixels[i+3]
}

func approxEq(a, b uint8, tol int) bool {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return d <= tol
}

// TestGolden_S1_SingleSphereOriginCentred covers spec.md §8's S1: the
// centre pixel of a single opaque splat at the origin should be lit
// white (white scaled by 0.85+0.15*max(n.L,0) ≈ 0.937 for n=(0,0,1),
// about 239), and the far corner should remain background.
func TestGolden_S1_SingleSphereOriginCentred(t *testing.T) {
	const size = 256
	r := newTestRenderer(t, size, size)

	splats := []Splat{{
		Centre:  [3]float32{0, 0, 0},
		Radius:  0.1,
		Normal:  [3]float32{0, 0, 1},
		Colour:  [3]float32{1, 1, 1},
		Opacity: 1,
	}}
	cam := Camera{
		ViewProj: lookAtPerspective([3]float32{0, 0, 3}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0}, math.Pi/3, 1, 0.01, 100),
		Position: [3]float32{0, 0, 3},
	}

	img, err := r.Frame(splats, cam)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}

	cr, cg, cb, ca := pixelAt(img, size/2, size/2)
	const litWhite = 239
	if !approxEq(cr, litWhite, 10) || !approxEq(cg, litWhite, 10) || !approxEq(cb, litWhite, 10) || ca != 255 {
		t.Errorf("centre pixel = (%d,%d,%d,%d), want ~lit white (%d) opaque", cr, cg, cb, ca, litWhite)
	}

	br, bg, bb, _ := pixelAt(img, 2, 2)
	if br != 0 || bg != 0 || bb != 0 {
		t.Errorf("corner pixel = (%d,%d,%d), want background (0,0,0)", br, bg, bb)
	}
}

// TestGolden_S2_TwoOccludingSplats covers spec.md §8's S2: a nearer
// half-opaque red splat composited "over" a farther opaque green one
// should blend their channels 50/50 at the shared centre pixel.
func TestGolden_S2_TwoOccludingSplats(t *testing.T) {
	const size = 64
	r := newTestRenderer(t, size, size)

	splats := []Splat{
		{Centre: [3]float32{0, 0, 0.5}, Radius: 0.3, Normal: [3]float32{0, 0, 1}, Colour: [3]float32{1, 0, 0}, Opacity: 0.5},
		{Centre: [3]float32{0, 0, 0}, Radius: 0.3, Normal: [3]float32{0, 0, 1}, Colour: [3]float32{0, 1, 0}, Opacity: 1},
	}
	cam := Camera{
		ViewProj: lookAtPerspective([3]float32{0, 0, 3}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0}, math.Pi/3, 1, 0.01, 100),
		Position: [3]float32{0, 0, 3},
	}

	img, err := r.Frame(splats, cam)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}

	cr, cg, _, _ := pixelAt(img, size/2, size/2)
	wantHalf := uint8(128)
	if !approxEq(cr, wantHalf, 20) {
		t.Errorf("centre red = %d, want ~%d (0.5*red over green)", cr, wantHalf)
	}
	if !approxEq(cg, wantHalf, 20) {
		t.Errorf("centre green = %d, want ~%d", cg, wantHalf)
	}
}

// TestGolden_S3_EmptyScene covers spec.md §8's S3: zero splats renders a
// uniform background image.
func TestGolden_S3_EmptyScene(t *testing.T) {
	const size = 32
	r := newTestRenderer(t, size, size)

	cam := Camera{ViewProj: lookAtPerspective([3]float32{0, 0, 3}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0}, math.Pi/3, 1, 0.01, 100)}
	img, err := r.Frame(nil, cam)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}

	for _, p := range []struct{ x, y int }{{0, 0}, {size / 2, size / 2}, {size - 1, size - 1}} {
		pr, pg, pb, _ := pixelAt(img, p.x, p.y)
		if pr != 0 || pg != 0 || pb != 0 {
			t.Errorf("pixel (%d,%d) = (%d,%d,%d), want background", p.x, p.y, pr, pg, pb)
		}
	}
}

// TestGolden_S4_OffScreenSplat covers spec.md §8's S4: a splat projected
// entirely outside the viewport contributes no tile segment.
func TestGolden_S4_OffScreenSplat(t *testing.T) {
	const size = 64
	r := newTestRenderer(t, size, size)

	splats := []Splat{{
		Centre: [3]float32{50, 50, 0}, Radius: 0.1,
		Normal: [3]float32{0, 0, 1}, Colour: [3]float32{1, 0, 0}, Opacity: 1,
	}}
	cam := Camera{
		ViewProj: lookAtPerspective([3]float32{0, 0, 3}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0}, math.Pi/3, 1, 0.01, 100),
		Position: [3]float32{0, 0, 3},
	}

	img, err := r.Frame(splats, cam)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	cr, cg, cb, _ := pixelAt(img, size/2, size/2)
	if cr != 0 || cg != 0 || cb != 0 {
		t.Errorf("centre pixel = (%d,%d,%d), want background for an off-screen splat", cr, cg, cb)
	}
}

// TestGolden_S6_BehindCamera covers spec.md §8's S6: a splat whose centre
// is behind the eye contributes no tile segment.
func TestGolden_S6_BehindCamera(t *testing.T) {
	const size = 64
	r := newTestRenderer(t, size, size)

	splats := []Splat{{
		Centre: [3]float32{0, 0, 10}, Radius: 0.1,
		Normal: [3]float32{0, 0, 1}, Colour: [3]float32{1, 1, 1}, Opacity: 1,
	}}
	cam := Camera{
		ViewProj: lookAtPerspective([3]float32{0, 0, 3}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0}, math.Pi/3, 1, 0.01, 100),
		Position: [3]float32{0, 0, 3},
	}

	img, err := r.Frame(splats, cam)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	cr, cg, cb, _ := pixelAt(img, size/2, size/2)
	if cr != 0 || cg != 0 || cb != 0 {
		t.Errorf("centre pixel = (%d,%d,%d), want background for a behind-camera splat", cr, cg, cb)
	}
}

// TestGolden_S5_TileBoundarySeamFree covers spec.md §8's S5: a splat
// whose AABB straddles a 16px tile boundary must render without a visible
// seam at that boundary.
func TestGolden_S5_TileBoundarySeamFree(t *testing.T) {
	const size = 64
	r := newTestRenderer(t, size, size)

	splats := []Splat{{
		Centre: [3]float32{0, 0, 0}, Radius: 0.5,
		Normal: [3]float32{0, 0, 1}, Colour: [3]float32{1, 1, 1}, Opacity: 1,
	}}
	cam := Camera{
		ViewProj: lookAtPerspective([3]float32{0, 0, 3}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0}, math.Pi/3, 1, 0.01, 100),
		Position: [3]float32{0, 0, 3},
	}

	img, err := r.Frame(splats, cam)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}

	boundary := size / 2
	left := []uint8{}
	right := []uint8{}
	for d := -2; d <= 2; d++ {
		lr, _, _, _ := pixelAt(img, boundary-2+d, boundary)
		rr, _, _, _ := pixelAt(img, boundary+2+d, boundary)
		left = append(left, lr)
		right = append(right, rr)
	}
	for i := 1; i < len(left); i++ {
		if !approxEq(left[i], left[i-1], 40) {
			t.Errorf("discontinuity straddling tile boundary on the left side: %v", left)
			break
		}
	}
	for i := 1; i < len(right); i++ {
		if !approxEq(right[i], right[i-1], 40) {
			t.Errorf("discontinuity straddling tile boundary on the right side: %v", right)
			break
		}
	}
}
