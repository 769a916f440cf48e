package gpu

import _ "embed"

// Embedded WGSL shader sources for each pipeline stage (spec.md §4).
// These are compiled at build time via go:embed and handed to
// hal.Device.CreateShaderModule as WGSL source directly.

//go:embed shaders/project.wgsl
var projectShaderSource string

//go:embed shaders/keyencode.wgsl
var keyEncodeShaderSource string

//go:embed shaders/radix.wgsl
var radixShaderSource string

//go:embed shaders/tile_count.wgsl
var tileCountShaderSource string

//go:embed shaders/scan.wgsl
var scanShaderSource string

//go:embed shaders/tile_fill.wgsl
var tileFillShaderSource string

//go:embed shaders/tile_sort.wgsl
var tileSortShaderSource string

//go:embed shaders/fine.wgsl
var fineShaderSource string

//go:embed shaders/present.wgsl
var presentShaderSource string
