package gpu

import (
	"math"
	"sort"
)

// This file holds the CPU reference implementations of the data-parallel
// passes. They exist purely as test oracles (spec.md §9: "the CPU variant
// becomes a test-oracle only") — no rendering path calls them.

// EncodeDepthKey mirrors encode_depth in keyencode.wgsl: flips only the
// sign bit for non-negative values, flips all bits for negative values,
// so unsigned ascending order matches ascending depth. -0 is folded onto
// +0 first, so both zeros encode to the same key.
func EncodeDepthKey(depth float32) uint32 {
	if depth == 0 {
		depth = 0
	}
	bits := math.Float32bits(depth)
	if bits&0x80000000 == 0 {
		return bits | 0x80000000
	}
	return ^bits
}

// RadixSortReference stably sorts payload by key ascending, using Go's
// sort as a reference oracle for the GPU radix sorter's output contract
// (spec.md §8, property 1).
func RadixSortReference(keys, payload []uint32) (sortedKeys, sortedPayload []uint32) {
	n := len(keys)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]] < keys[idx[b]]
	})

	sortedKeys = make([]uint32, n)
	sortedPayload = make([]uint32, n)
	for i, j := range idx {
		sortedKeys[i] = keys[j]
		sortedPayload[i] = payload[j]
	}
	return sortedKeys, sortedPayload
}

// ExclusiveScanReference computes an exclusive prefix sum, the CPU
// oracle for stage F (spec.md §8, property 5).
func ExclusiveScanReference(counts []uint32) (offsets []uint32, total uint32) {
	offsets = make([]uint32, len(counts))
	var running uint32
	for i, c := range counts {
		offsets[i] = running
		running += c
	}
	return offsets, running
}

// TileRange computes the inclusive tile-index range [minTx,maxTx] x
// [minTy,maxTy] that boundsMin/boundsMax overlaps, using the identical
// clamp/floor predicate as tile_count.wgsl and tile_fill.wgsl. ok is
// false when the AABB is empty (off-screen or behind camera).
func TileRange(boundsMin, boundsMax [2]float32, tileSize float32, tileColumns, tileRows int) (minTx, maxTx, minTy, maxTy int, ok bool) {
	if boundsMin[0] >= boundsMax[0] || boundsMin[1] >= boundsMax[1] {
		return 0, 0, 0, 0, false
	}

	maxTxF := float32(tileColumns) - 1
	maxTyF := float32(tileRows) - 1

	minTx = int(clampf(floorf(boundsMin[0]/tileSize), 0, maxTxF))
	maxTx = int(clampf(floorf(boundsMax[0]/tileSize), 0, maxTxF))
	minTy = int(clampf(floorf(boundsMin[1]/tileSize), 0, maxTyF))
	maxTy = int(clampf(floorf(boundsMax[1]/tileSize), 0, maxTyF))

	return minTx, maxTx, minTy, maxTy, true
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func floorf(v float32) float32 {
	return float32(math.Floor(float64(v)))
}

// TileCountFillReference is the CPU reference for stages E+G combined:
// given projected AABBs visited in sorted (ascending-key, ascending
// depth, i.e. near-to-far) order, it produces each tile's segment of
// splat indices, matching the byte-for-byte overlap predicate required
// by spec.md §3's invariant that "the projector and tile-counter/filler
// use the identical tile-overlap predicate". Final far-to-near depth
// order within a tile is restored afterward by the per-tile sort
// (stage G continued), independent of this fill order.
func TileCountFillReference(
	boundsMin, boundsMax [][2]float32,
	sortedIndices []uint32,
	tileSize float32,
	tileColumns, tileRows int,
) (counts []uint32, segments [][]uint32) {
	numTiles := tileColumns * tileRows
	counts = make([]uint32, numTiles)
	segments = make([][]uint32, numTiles)

	for _, i := range sortedIndices {
		minTx, maxTx, minTy, maxTy, ok := TileRange(boundsMin[i], boundsMax[i], tileSize, tileColumns, tileRows)
		if !ok {
			continue
		}
		for ty := minTy; ty <= maxTy; ty++ {
			for tx := minTx; tx <= maxTx; tx++ {
				t := ty*tileColumns + tx
				counts[t]++
				segments[t] = append(segments[t], i)
			}
		}
	}

	return counts, segments
}
