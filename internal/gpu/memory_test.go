package gpu

import (
	"errors"
	"testing"
)

func TestTileIndexAllocator_NoGrowthWithinCapacity(t *testing.T) {
	a := newTileIndexAllocator()
	cap1, grew, err := a.reserve(10, 100)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if grew {
		t.Error("should not grow when under initial capacity")
	}
	if cap1 != tileIndexMinCapacity {
		t.Errorf("capacity = %d, want %d", cap1, tileIndexMinCapacity)
	}
}

func TestTileIndexAllocator_GrowsGeometrically(t *testing.T) {
	a := newTileIndexAllocator()
	target := tileIndexMinCapacity * 3

	cap1, grew, err := a.reserve(target, target)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !grew {
		t.Fatal("expected growth")
	}
	if cap1 < target {
		t.Errorf("capacity %d did not reach target %d", cap1, target)
	}

	// A second reserve for the same total should not grow again.
	cap2, grew2, err := a.reserve(target, target)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if grew2 {
		t.Error("should not grow again for the same total")
	}
	if cap2 != cap1 {
		t.Errorf("capacity changed across idempotent reserve: %d != %d", cap2, cap1)
	}
}

func TestTileIndexAllocator_PathologicalOverlap(t *testing.T) {
	a := newTileIndexAllocator()
	splatCount := 100
	total := splatCount*pathologicalOverlapFactor + 1

	_, _, err := a.reserve(total, splatCount)
	if !errors.Is(err, ErrPathologicalOverlap) {
		t.Fatalf("err = %v, want ErrPathologicalOverlap", err)
	}
}

func TestTileIndexAllocator_ZeroSplatsNeverPathological(t *testing.T) {
	a := newTileIndexAllocator()
	_, _, err := a.reserve(0, 0)
	if err != nil {
		t.Fatalf("reserve with N=0 should never be pathological: %v", err)
	}
}
