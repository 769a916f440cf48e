package splat

import "errors"

// Initialisation errors: bubble up from NewRenderer, never from Frame.
var (
	// ErrNoGPU is returned when no compatible GPU adapter is available.
	ErrNoGPU = errors.New("splat: no compatible GPU adapter found")

	// ErrRendererClosed is returned when operating on a closed Renderer.
	ErrRendererClosed = errors.New("splat: renderer has been closed")

	// ErrInvalidViewport is returned when width or height is non-positive.
	ErrInvalidViewport = errors.New("splat: viewport width and height must be positive")
)

// Per-frame errors: Frame logs these and clears the frame to the background
// colour rather than propagating a partial image (spec.md §7).
var (
	// ErrPathologicalOverlap is logged when the tile/splat pair count from
	// the scan stage is implausibly large, suggesting mis-projected bounds
	// or NaN centres upstream. The frame is cleared to the background.
	ErrPathologicalOverlap = errors.New("splat: pathological tile overlap, clearing frame")

	// ErrAllocationExceeded is logged when tile_indices must grow to fit
	// the scanned total; the buffer is reallocated and the frame proceeds.
	ErrAllocationExceeded = errors.New("splat: tile_indices capacity exceeded, reallocating")
)
