// Package splat renders solids defined implicitly by a signed-distance
// function as an oriented point-splat cloud, entirely on the GPU.
//
// # Overview
//
// A splat is born on a bounding surface and driven to the SDF's zero set by
// gradient descent performed upstream; this package consumes the converged
// splat buffer (centre, radius, normal, colour, opacity) and owns the
// per-frame GPU rasterisation pipeline that turns it into an image:
//
//	Splat buffer -> Project -> Encode depth key -> Radix sort
//	             -> Tile count -> Exclusive scan -> Tile fill -> Tile sort
//	             -> Fine rasterise -> Present
//
// # Quick Start
//
//	import "github.com/ath92/splat-renderer"
//
//	rs, err := splat.NewRenderer(splat.Config{}, width, height)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rs.Close()
//
//	img, err := rs.Frame(splats, camera)
//
// # Architecture
//
// The library is organized into:
//   - Public API: Splat, Camera, Config, Renderer (this package)
//   - internal/gpu: the nine GPU pipeline stages (projector, key encoder,
//     radix sorter, tile binner, fine rasteriser, presenter) plus a CPU
//     reference oracle used only by tests.
//
// # Coordinate system
//
// World space is right-handed; screen space has its origin at the
// top-left with Y increasing downward, matching spec.md §4.B.
//
// # GPU backend
//
// Rendering uses github.com/gogpu/wgpu/hal, a Pure Go WebGPU
// implementation (zero CGO) over Vulkan/Metal/DX12 depending on platform.
//
// # Error handling
//
// NewRenderer returns an error for initialisation/compilation failures.
// Frame never panics: per-frame anomalies (§7 of spec.md) are logged via
// [SetLogger] and the frame is cleared to the background colour, never
// left as partial garbage.
package splat
