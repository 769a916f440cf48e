package gpu

import (
	"math"
	"math/rand"
	"strconv"
	"testing"
)

func TestEncodeDepthKey_Monotonic(t *testing.T) {
	tests := []struct {
		name   string
		d1, d2 float32
	}{
		{"negative to zero", -1.5, 0},
		{"zero to positive", 0, 1.5},
		{"negative to negative", -10, -1},
		{"positive to positive", 1, 100},
		{"large negative to small negative", -1e30, -1e-30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k1 := EncodeDepthKey(tt.d1)
			k2 := EncodeDepthKey(tt.d2)
			if !(k1 < k2) {
				t.Errorf("encode(%v)=%d, encode(%v)=%d; want k1 < k2", tt.d1, k1, tt.d2, k2)
			}
		})
	}
}

func TestEncodeDepthKey_ZeroSignsEqual(t *testing.T) {
	pos := EncodeDepthKey(0)
	neg := EncodeDepthKey(float32(math.Copysign(0, -1)))
	if pos != neg {
		t.Errorf("encode(+0)=%d, encode(-0)=%d; want equal", pos, neg)
	}
}

func TestEncodeDepthKey_NaNSortsToTail(t *testing.T) {
	nan := EncodeDepthKey(float32(math.NaN()))
	maxFinite := EncodeDepthKey(math.MaxFloat32)
	if nan < maxFinite {
		t.Errorf("encode(NaN)=%d should not be less than encode(MaxFloat32)=%d", nan, maxFinite)
	}
}

func TestRadixSortReference(t *testing.T) {
	sizes := []int{0, 1, 63, 64, 65, 4095, 4096}
	for _, n := range sizes {
		n := n
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			rng := rand.New(rand.NewSource(int64(n) + 1))
			keys := make([]uint32, n)
			payload := make([]uint32, n)
			for i := range keys {
				keys[i] = uint32(rng.Intn(1 << 16))
				payload[i] = uint32(i)
			}

			sortedKeys, sortedPayload := RadixSortReference(keys, payload)

			if len(sortedPayload) != n {
				t.Fatalf("len(sortedPayload) = %d, want %d", len(sortedPayload), n)
			}

			seen := make(map[uint32]bool, n)
			for _, p := range sortedPayload {
				if seen[p] {
					t.Fatalf("payload %d appears more than once", p)
				}
				seen[p] = true
			}

			for i := 1; i < len(sortedKeys); i++ {
				if sortedKeys[i-1] > sortedKeys[i] {
					t.Fatalf("not sorted at %d: %d > %d", i, sortedKeys[i-1], sortedKeys[i])
				}
			}
		})
	}
}

func TestRadixSortReference_StableTies(t *testing.T) {
	keys := []uint32{5, 5, 5, 1, 1}
	payload := []uint32{0, 1, 2, 3, 4}

	_, sortedPayload := RadixSortReference(keys, payload)

	want := []uint32{3, 4, 0, 1, 2}
	for i := range want {
		if sortedPayload[i] != want[i] {
			t.Fatalf("sortedPayload = %v, want %v", sortedPayload, want)
		}
	}
}

func TestExclusiveScanReference(t *testing.T) {
	tests := []struct {
		name    string
		counts  []uint32
		offsets []uint32
		total   uint32
	}{
		{"empty", nil, []uint32{}, 0},
		{"single", []uint32{5}, []uint32{0}, 5},
		{"several", []uint32{1, 2, 3, 4}, []uint32{0, 1, 3, 6}, 10},
		{"with zeros", []uint32{0, 0, 3, 0}, []uint32{0, 0, 0, 3}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offsets, total := ExclusiveScanReference(tt.counts)
			if total != tt.total {
				t.Errorf("total = %d, want %d", total, tt.total)
			}
			if len(offsets) != len(tt.offsets) {
				t.Fatalf("len(offsets) = %d, want %d", len(offsets), len(tt.offsets))
			}
			for i := range offsets {
				if offsets[i] != tt.offsets[i] {
					t.Errorf("offsets[%d] = %d, want %d", i, offsets[i], tt.offsets[i])
				}
			}
		})
	}
}

func TestExclusiveScanReference_LargeSizes(t *testing.T) {
	sizes := []int{256, 511, 512, 513, 8192}
	for _, n := range sizes {
		n := n
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			counts := make([]uint32, n)
			rng := rand.New(rand.NewSource(int64(n)))
			var want uint32
			for i := range counts {
				counts[i] = uint32(rng.Intn(8))
				want += counts[i]
			}

			offsets, total := ExclusiveScanReference(counts)
			if total != want {
				t.Fatalf("total = %d, want %d", total, want)
			}
			if n > 0 && offsets[n-1]+counts[n-1] != total {
				t.Fatalf("offsets[n-1]+counts[n-1] = %d, want total %d", offsets[n-1]+counts[n-1], total)
			}
		})
	}
}

func TestTileRange_OffscreenAABB(t *testing.T) {
	_, _, _, _, ok := TileRange([2]float32{10, 10}, [2]float32{5, 5}, 16, 4, 4)
	if ok {
		t.Error("degenerate AABB should report ok=false")
	}
}

func TestTileRange_SingleTile(t *testing.T) {
	minTx, maxTx, minTy, maxTy, ok := TileRange([2]float32{20, 20}, [2]float32{25, 25}, 16, 4, 4)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if minTx != 1 || maxTx != 1 || minTy != 1 || maxTy != 1 {
		t.Errorf("got (%d,%d,%d,%d), want (1,1,1,1)", minTx, maxTx, minTy, maxTy)
	}
}

func TestTileRange_StraddlesFourTiles(t *testing.T) {
	// A splat whose AABB straddles four tiles at the 16-pixel boundary
	// (spec.md S5).
	minTx, maxTx, minTy, maxTy, ok := TileRange([2]float32{12, 12}, [2]float32{20, 20}, 16, 4, 4)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if minTx != 0 || maxTx != 1 || minTy != 0 || maxTy != 1 {
		t.Errorf("got (%d,%d,%d,%d), want (0,1,0,1)", minTx, maxTx, minTy, maxTy)
	}
}

func TestTileRange_ClampsToGrid(t *testing.T) {
	minTx, maxTx, minTy, maxTy, ok := TileRange([2]float32{-100, -100}, [2]float32{1000, 1000}, 16, 4, 4)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if minTx != 0 || maxTx != 3 || minTy != 0 || maxTy != 3 {
		t.Errorf("got (%d,%d,%d,%d), want (0,3,0,3)", minTx, maxTx, minTy, maxTy)
	}
}

func TestTileCountFillReference_CountMatchesSegmentLength(t *testing.T) {
	boundsMin := [][2]float32{{12, 12}, {50, 50}, {100, 100}}
	boundsMax := [][2]float32{{20, 20}, {55, 55}, {105, 105}}
	sortedIndices := []uint32{0, 1, 2}

	counts, segments := TileCountFillReference(boundsMin, boundsMax, sortedIndices, 16, 8, 8)

	var total uint32
	for tile, c := range counts {
		if c != uint32(len(segments[tile])) {
			t.Errorf("tile %d: counts=%d, len(segments)=%d", tile, c, len(segments[tile]))
		}
		total += c
	}

	// Splat 0 straddles 4 tiles; 1 and 2 are each fully within one tile.
	if total != 6 {
		t.Errorf("total entries = %d, want 6", total)
	}
}

