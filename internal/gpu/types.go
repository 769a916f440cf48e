// Package gpu implements the per-frame GPU splat rasterisation pipeline
// (spec.md §4) on top of github.com/gogpu/wgpu/hal.
package gpu

import "unsafe"

// TileSizeDefault mirrors splat.DefaultTileSize; kept independent so this
// package has no import cycle back to the root package.
const TileSizeDefault = 16

// SortBlockSize is the radix sorter's scatter block size: workgroup size
// (256) times rows-per-thread (15), matching spec.md §4.D's stated
// "typical" block of 3840 keys.
const (
	SortWorkgroupSize = 256
	SortRowsPerThread  = 15
	SortBlockSize      = SortWorkgroupSize * SortRowsPerThread
)

// Sentinel is written into padding slots of the key/payload arrays so
// they sort to the tail without renumbering real splats (spec.md §3).
const Sentinel = 0xFFFFFFFF

// splatRecord is the first 16-byte-aligned half of the external splat
// buffer layout (spec.md §6): (cx, cy, cz, radius).
type splatRecord struct {
	CX, CY, CZ, Radius float32
}

// splatColour is the second half of the external splat buffer layout:
// (r, g, b, opacity).
type splatColour struct {
	R, G, B, Opacity float32
}

// normalRecord is the parallel per-splat normal buffer: (nx, ny, nz,
// scale). Scale is carried through from the upstream SDF/curvature
// subsystem but is not otherwise interpreted by the CORE.
type normalRecord struct {
	NX, NY, NZ, Scale float32
}

// ProjectedSplat is the canonical GPU-visible record produced by the
// projector and consumed by every downstream stage (spec.md §3). Fixed at
// 32 bytes so it can be indexed directly from WGSL without padding
// surprises.
type ProjectedSplat struct {
	BoundsMinX, BoundsMinY float32
	BoundsMaxX, BoundsMaxY float32
	Depth                  float32
	ScreenRadius           float32
	OriginalIndex          uint32
	_Padding               uint32
}

const ProjectedSplatSize = 32

// FrameUniform is the per-frame uniform consumed by the projector
// (spec.md §4.B, §6): view-projection matrix, camera position, viewport
// size. 96 bytes, 16-byte aligned throughout for uniform-buffer layout
// rules.
type FrameUniform struct {
	ViewProj      [16]float32
	CameraX       float32
	CameraY       float32
	CameraZ       float32
	_Pad0         float32
	ViewportW     float32
	ViewportH     float32
	AABBPadding   float32
	_Pad1         float32
}

const FrameUniformSize = 96

// TileGridUniform describes the tile grid and splat count, shared by the
// tile counter, tile filler, per-tile sort and rasteriser stages (the scan
// stage uses its own scan uniform) (spec.md §3).
type TileGridUniform struct {
	ViewportWidth  uint32
	ViewportHeight uint32
	TileColumns    uint32
	TileRows       uint32
	NumTiles       uint32
	SplatCount     uint32
	_Pad0          uint32
	_Pad1          uint32
}

const TileGridUniformSize = 32

// RasterUniform carries the fine rasteriser's tunables (spec.md §6).
type RasterUniform struct {
	Sigma            float32
	EarlyAlphaCutoff float32
	EarlyTermination uint32 // 0 or 1; 0 when DisableEarlyTermination is set
	_Pad0            float32
	BackgroundR      float32
	BackgroundG      float32
	BackgroundB      float32
	_Pad1            float32
}

const RasterUniformSize = 32

// structToBytes views an arbitrary fixed-layout struct as a byte slice
// for GPU upload. Callers must only use this on structs composed solely
// of fixed-size numeric fields (no pointers, no slices).
func structToBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v)) //nolint:gosec // fixed-layout numeric struct
}

func packSlice[T any](items []T) []byte {
	if len(items) == 0 {
		return nil
	}
	elemSize := int(unsafe.Sizeof(items[0]))
	return unsafe.Slice((*byte)(unsafe.Pointer(&items[0])), elemSize*len(items)) //nolint:gosec // fixed-layout numeric struct slice
}

func numTilesFor(viewportW, viewportH, tileSize int) (cols, rows, total int) {
	cols = (viewportW + tileSize - 1) / tileSize
	rows = (viewportH + tileSize - 1) / tileSize
	return cols, rows, cols * rows
}
