//go:build !nogpu

package gpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// SplatInput is the GPU-pipeline-facing mirror of the root package's
// Splat, kept as a separate type so this package never imports the root
// package (spec.md §9's package layout keeps internal/gpu a leaf).
type SplatInput struct {
	Centre  [3]float32
	Radius  float32
	Normal  [3]float32
	Colour  [3]float32
	Opacity float32
}

// FrameParams is the GPU-pipeline-facing mirror of the root package's
// Camera.
type FrameParams struct {
	ViewProj  [16]float32
	CameraPos [3]float32
}

// RasterSettings carries the subset of the root package's Config the fine
// rasteriser and projector consume.
type RasterSettings struct {
	AABBPaddingFactor       float32
	Sigma                   float32
	EarlyAlphaCutoff        float32
	Background              [3]float32
	DisableEarlyTermination bool
}

// Pipeline is the single value type owning every GPU resource for the
// per-frame splat rasterisation pipeline (spec.md §9: "the core exposes a
// single value type owning all GPU resources [...] constructed with a
// device handle and viewport, resized on demand, and destroyed
// explicitly. No singletons."). It wires stages B through I in the order
// spec.md §2 lays out: B -> C -> D -> E -> F -> G -> H -> I.
type Pipeline struct {
	host *Host

	project    *projector
	keyEncode  *keyEncoder
	radixSort  *radixSorter
	tileBinner *tileBinner
	fine       *rasteriser
	present    *presenter

	width, height                   int
	tileColumns, tileRows, numTiles int
	numScanBlocks                   int

	tileIndices *tileIndexAllocator

	outputTex  hal.Texture
	outputView hal.TextureView

	presentTex  hal.Texture
	presentView hal.TextureView

	buffers frameBuffers
}

// frameBuffers groups every GPU-resident allocation whose size tracks
// either the splat count or the viewport (spec.md §3's Lifecycle note):
// only tile_indices may grow mid-frame, once the scanned total is known.
type frameBuffers struct {
	splatRecords hal.Buffer
	splatColours hal.Buffer
	splatNormals hal.Buffer
	frameUBO     hal.Buffer
	projected    hal.Buffer

	keysA, payloadA hal.Buffer
	keysB, payloadB hal.Buffer
	blockHist       hal.Buffer
	globalHist      hal.Buffer
	radixParamsUBOs [4]hal.Buffer

	keyEncodeUBO hal.Buffer
	gridUBO      hal.Buffer
	scanUBO      hal.Buffer
	rasterUBO    hal.Buffer

	counts         hal.Buffer
	offsets        hal.Buffer
	currentOffsets hal.Buffer
	tileIndices    hal.Buffer

	blockSums        hal.Buffer
	blockSumsScanned hal.Buffer
	metaScanUBO      hal.Buffer
	metaScratch      hal.Buffer

	splatCapacity  int
	paddedCapacity int
	numBlocks      int
}

// swapchainTargetFormat is the format of the intermediate present target
// this headless pipeline renders into before reading it back into a
// splat.Image; chosen to match Image.Pixels' byte layout exactly so no
// channel swizzle is needed during readback.
const swapchainTargetFormat = gputypes.TextureFormatRGBA8Unorm

const copyPitchAlignment = 256

// NewPipeline builds every stage's pipelines and bind group layouts. The
// returned Pipeline has no frame buffers until the first RenderFrame
// call; they are sized lazily to the frame's viewport and splat count.
func NewPipeline(host *Host) (*Pipeline, error) {
	device := host.Device()

	proj, err := newProjector(device)
	if err != nil {
		return nil, err
	}
	keyEnc, err := newKeyEncoder(device)
	if err != nil {
		proj.destroy()
		return nil, err
	}
	radix, err := newRadixSorter(device)
	if err != nil {
		keyEnc.destroy()
		proj.destroy()
		return nil, err
	}
	binner, err := newTileBinner(device)
	if err != nil {
		radix.destroy()
		keyEnc.destroy()
		proj.destroy()
		return nil, err
	}
	fine, err := newRasteriser(device)
	if err != nil {
		binner.destroy()
		radix.destroy()
		keyEnc.destroy()
		proj.destroy()
		return nil, err
	}
	present, err := newPresenter(device, swapchainTargetFormat)
	if err != nil {
		fine.destroy()
		binner.destroy()
		radix.destroy()
		keyEnc.destroy()
		proj.destroy()
		return nil, err
	}

	logger().Debug("pipeline shader modules compiled", "stages", 9)

	return &Pipeline{
		host:        host,
		project:     proj,
		keyEncode:   keyEnc,
		radixSort:   radix,
		tileBinner:  binner,
		fine:        fine,
		present:     present,
		tileIndices: newTileIndexAllocator(),
	}, nil
}

// Destroy tears down every pipeline and buffer this Pipeline owns. The
// Pipeline must not be used afterward.
func (p *Pipeline) Destroy() {
	device := p.host.Device()
	p.destroyFrameBuffers()
	if p.presentView != nil {
		device.DestroyTextureView(p.presentView)
	}
	if p.presentTex != nil {
		device.DestroyTexture(p.presentTex)
	}
	if p.outputView != nil {
		device.DestroyTextureView(p.outputView)
	}
	if p.outputTex != nil {
		device.DestroyTexture(p.outputTex)
	}
	p.present.destroy()
	p.fine.destroy()
	p.tileBinner.destroy()
	p.radixSort.destroy()
	p.keyEncode.destroy()
	p.project.destroy()
}

func (p *Pipeline) destroyFrameBuffers() {
	device := p.host.Device()
	all := []hal.Buffer{
		p.buffers.splatRecords, p.buffers.splatColours, p.buffers.splatNormals,
		p.buffers.frameUBO, p.buffers.projected,
		p.buffers.keysA, p.buffers.payloadA, p.buffers.keysB, p.buffers.payloadB,
		p.buffers.blockHist, p.buffers.globalHist, p.buffers.keyEncodeUBO,
		p.buffers.gridUBO, p.buffers.scanUBO, p.buffers.rasterUBO,
		p.buffers.counts, p.buffers.offsets, p.buffers.currentOffsets, p.buffers.tileIndices,
		p.buffers.blockSums, p.buffers.blockSumsScanned, p.buffers.metaScanUBO, p.buffers.metaScratch,
	}
	all = append(all, p.buffers.radixParamsUBOs[:]...)
	for _, b := range all {
		if b != nil {
			device.DestroyBuffer(b)
		}
	}
	p.buffers = frameBuffers{}
}

func createBuffer(device hal.Device, label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	if size == 0 {
		size = 4
	}
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return nil, fmt.Errorf("gpu: create buffer %s: %w", label, err)
	}
	return buf, nil
}

// ensureViewport (re)creates the output/present textures and the
// tile-grid-sized buffers when the viewport changes (spec.md §7's
// "Viewport resize" case: rebuilt at the start of the next frame).
func (p *Pipeline) ensureViewport(width, height int) error {
	if p.width == width && p.height == height && p.outputTex != nil {
		return nil
	}
	logger().Debug("resizing viewport buffers", "old_width", p.width, "old_height", p.height, "width", width, "height", height)

	device := p.host.Device()

	if p.presentView != nil {
		device.DestroyTextureView(p.presentView)
		p.presentView = nil
	}
	if p.presentTex != nil {
		device.DestroyTexture(p.presentTex)
		p.presentTex = nil
	}
	if p.outputView != nil {
		device.DestroyTextureView(p.outputView)
		p.outputView = nil
	}
	if p.outputTex != nil {
		device.DestroyTexture(p.outputTex)
		p.outputTex = nil
	}
	if p.buffers.gridUBO != nil {
		device.DestroyBuffer(p.buffers.gridUBO)
		p.buffers.gridUBO = nil
	}
	if p.buffers.counts != nil {
		device.DestroyBuffer(p.buffers.counts)
		p.buffers.counts = nil
	}
	if p.buffers.offsets != nil {
		device.DestroyBuffer(p.buffers.offsets)
		p.buffers.offsets = nil
	}
	if p.buffers.currentOffsets != nil {
		device.DestroyBuffer(p.buffers.currentOffsets)
		p.buffers.currentOffsets = nil
	}
	if p.buffers.blockSums != nil {
		device.DestroyBuffer(p.buffers.blockSums)
		p.buffers.blockSums = nil
	}
	if p.buffers.blockSumsScanned != nil {
		device.DestroyBuffer(p.buffers.blockSumsScanned)
		p.buffers.blockSumsScanned = nil
	}
	if p.buffers.metaScanUBO != nil {
		device.DestroyBuffer(p.buffers.metaScanUBO)
		p.buffers.metaScanUBO = nil
	}
	if p.buffers.metaScratch != nil {
		device.DestroyBuffer(p.buffers.metaScratch)
		p.buffers.metaScratch = nil
	}

	extent := hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1}

	outputTex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label: "splat_output", Size: extent, MipLevelCount: 1, SampleCount: 1,
		Dimension: gputypes.TextureDimension2D,
		Format:    gputypes.TextureFormatRGBA8Unorm,
		Usage:     gputypes.TextureUsageStorageBinding | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return fmt.Errorf("gpu: create output texture: %w", err)
	}
	p.outputTex = outputTex

	outputView, err := device.CreateTextureView(outputTex, &hal.TextureViewDescriptor{Label: "splat_output_view"})
	if err != nil {
		return fmt.Errorf("gpu: create output texture view: %w", err)
	}
	p.outputView = outputView

	presentTex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label: "splat_present", Size: extent, MipLevelCount: 1, SampleCount: 1,
		Dimension: gputypes.TextureDimension2D,
		Format:    swapchainTargetFormat,
		Usage:     gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("gpu: create present texture: %w", err)
	}
	p.presentTex = presentTex

	presentView, err := device.CreateTextureView(presentTex, &hal.TextureViewDescriptor{Label: "splat_present_view"})
	if err != nil {
		return fmt.Errorf("gpu: create present texture view: %w", err)
	}
	p.presentView = presentView

	p.width, p.height = width, height
	cols, rows, total := numTilesFor(width, height, TileSizeDefault)
	p.tileColumns, p.tileRows, p.numTiles = cols, rows, total

	p.buffers.gridUBO, err = createBuffer(device, "tile_grid_ubo", TileGridUniformSize, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	p.buffers.counts, err = createBuffer(device, "tile_counts", uint64(total)*4, gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	p.buffers.offsets, err = createBuffer(device, "tile_offsets", uint64(total)*4, gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	p.buffers.currentOffsets, err = createBuffer(device, "tile_current_offsets", uint64(total)*4, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}

	numScanBlocks := (total + scanBlockElements - 1) / scanBlockElements
	if numScanBlocks < 1 {
		numScanBlocks = 1
	}
	p.numScanBlocks = numScanBlocks

	p.buffers.blockSums, err = createBuffer(device, "scan_block_sums", uint64(numScanBlocks)*4, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	p.buffers.blockSumsScanned, err = createBuffer(device, "scan_block_sums_scanned", uint64(numScanBlocks)*4, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	p.buffers.metaScratch, err = createBuffer(device, "scan_meta_scratch", 4, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	p.buffers.metaScanUBO, err = createBuffer(device, "scan_meta_ubo", scanUniformSize, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	metaParams := scanUniform{N: uint32(numScanBlocks), NumBlocks: 1}
	if err := p.host.Queue().WriteBuffer(p.buffers.metaScanUBO, 0, structToBytes(&metaParams)); err != nil {
		return fmt.Errorf("gpu: write scan meta uniform: %w", err)
	}

	return nil
}

// ensureSplatCapacity (re)creates every buffer whose size tracks the
// splat count when it changes. Splat buffers are exact-sized rather than
// geometrically grown: unlike tile_indices (spec.md §7), their size is
// known up front from len(splats), so there is no benefit to headroom.
func (p *Pipeline) ensureSplatCapacity(n int) error {
	if n == p.buffers.splatCapacity && p.buffers.splatRecords != nil {
		return nil
	}
	logger().Debug("resizing splat buffers", "old_capacity", p.buffers.splatCapacity, "capacity", n)

	device := p.host.Device()
	old := []hal.Buffer{
		p.buffers.splatRecords, p.buffers.splatColours, p.buffers.splatNormals,
		p.buffers.frameUBO, p.buffers.projected,
		p.buffers.keysA, p.buffers.payloadA, p.buffers.keysB, p.buffers.payloadB,
		p.buffers.blockHist, p.buffers.globalHist, p.buffers.keyEncodeUBO, p.buffers.scanUBO, p.buffers.rasterUBO,
	}
	old = append(old, p.buffers.radixParamsUBOs[:]...)
	for _, b := range old {
		if b != nil {
			device.DestroyBuffer(b)
		}
	}
	p.buffers.radixParamsUBOs = [4]hal.Buffer{}

	padded := paddedLength(n)
	if padded == 0 {
		padded = SortBlockSize
	}
	numBlocks := padded / SortBlockSize

	var err error
	p.buffers.splatRecords, err = createBuffer(device, "splat_records", uint64(n)*16, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	p.buffers.splatColours, err = createBuffer(device, "splat_colours", uint64(n)*16, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	p.buffers.splatNormals, err = createBuffer(device, "splat_normals", uint64(n)*16, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	p.buffers.frameUBO, err = createBuffer(device, "frame_ubo", FrameUniformSize, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	p.buffers.projected, err = createBuffer(device, "projected", uint64(n)*ProjectedSplatSize, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}

	sortUsage := gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
	p.buffers.keysA, err = createBuffer(device, "keys_a", uint64(padded)*4, sortUsage)
	if err != nil {
		return err
	}
	p.buffers.payloadA, err = createBuffer(device, "payload_a", uint64(padded)*4, sortUsage)
	if err != nil {
		return err
	}
	p.buffers.keysB, err = createBuffer(device, "keys_b", uint64(padded)*4, sortUsage)
	if err != nil {
		return err
	}
	p.buffers.payloadB, err = createBuffer(device, "payload_b", uint64(padded)*4, sortUsage)
	if err != nil {
		return err
	}
	p.buffers.blockHist, err = createBuffer(device, "block_histograms", uint64(numBlocks)*numRadixBuckets*4, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	p.buffers.globalHist, err = createBuffer(device, "global_histogram", numRadixBuckets*4, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	p.buffers.keyEncodeUBO, err = createBuffer(device, "keyencode_params_ubo", keyEncodeUniformSize, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	keyParams := keyEncodeUniform{SplatCount: uint32(n), PaddedCount: uint32(padded)}
	if err := p.host.Queue().WriteBuffer(p.buffers.keyEncodeUBO, 0, structToBytes(&keyParams)); err != nil {
		return fmt.Errorf("gpu: write keyencode params: %w", err)
	}

	for i := 0; i < 4; i++ {
		p.buffers.radixParamsUBOs[i], err = createBuffer(device, "radix_params_ubo", radixParamsSize, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
		if err != nil {
			return err
		}
		params := radixParams{Shift: uint32(i * 8), NumKeys: uint32(padded), NumBlocks: uint32(numBlocks)}
		if err := p.host.Queue().WriteBuffer(p.buffers.radixParamsUBOs[i], 0, structToBytes(&params)); err != nil {
			return fmt.Errorf("gpu: write radix params %d: %w", i, err)
		}
	}

	p.buffers.scanUBO, err = createBuffer(device, "scan_ubo", scanUniformSize, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	p.buffers.rasterUBO, err = createBuffer(device, "raster_ubo", RasterUniformSize, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}

	p.buffers.splatCapacity = n
	p.buffers.paddedCapacity = padded
	p.buffers.numBlocks = numBlocks
	return nil
}

// ensureTileIndices grows (never shrinks) the tile_indices buffer to hold
// total entries, per the geometric growth policy in memory.go.
func (p *Pipeline) ensureTileIndices(total, splatCount int) (grew bool, err error) {
	capacity, grew, err := p.tileIndices.reserve(total, splatCount)
	if err != nil {
		return false, err
	}
	if !grew && p.buffers.tileIndices != nil {
		return false, nil
	}

	if grew {
		logger().Warn("tile_indices capacity exceeded, reallocating", "capacity", capacity, "total_entries", total)
	} else {
		logger().Debug("allocating tile_indices buffer", "capacity", capacity, "total_entries", total)
	}

	device := p.host.Device()
	if p.buffers.tileIndices != nil {
		device.DestroyBuffer(p.buffers.tileIndices)
	}
	buf, err := createBuffer(device, "tile_indices", uint64(capacity)*4, gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return false, err
	}
	p.buffers.tileIndices = buf
	return true, nil
}

// RenderFrame runs the full B->I pipeline once and returns the rendered
// image as tightly packed RGBA8 rows, top-left origin.
func (p *Pipeline) RenderFrame(splats []SplatInput, frame FrameParams, settings RasterSettings, width, height int) ([]byte, error) {
	if err := p.ensureViewport(width, height); err != nil {
		return nil, err
	}
	n := len(splats)
	if err := p.ensureSplatCapacity(n); err != nil {
		return nil, err
	}

	device := p.host.Device()
	queue := p.host.Queue()

	if n > 0 {
		records := make([]splatRecord, n)
		colours := make([]splatColour, n)
		normals := make([]normalRecord, n)
		for i, s := range splats {
			records[i] = splatRecord{CX: s.Centre[0], CY: s.Centre[1], CZ: s.Centre[2], Radius: s.Radius}
			colours[i] = splatColour{R: s.Colour[0], G: s.Colour[1], B: s.Colour[2], Opacity: s.Opacity}
			normals[i] = normalRecord{NX: s.Normal[0], NY: s.Normal[1], NZ: s.Normal[2], Scale: 1}
		}
		if err := queue.WriteBuffer(p.buffers.splatRecords, 0, packSlice(records)); err != nil {
			return nil, fmt.Errorf("gpu: write splat records: %w", err)
		}
		if err := queue.WriteBuffer(p.buffers.splatColours, 0, packSlice(colours)); err != nil {
			return nil, fmt.Errorf("gpu: write splat colours: %w", err)
		}
		if err := queue.WriteBuffer(p.buffers.splatNormals, 0, packSlice(normals)); err != nil {
			return nil, fmt.Errorf("gpu: write splat normals: %w", err)
		}
	}

	fu := FrameUniform{
		ViewProj:    frame.ViewProj,
		CameraX:     frame.CameraPos[0],
		CameraY:     frame.CameraPos[1],
		CameraZ:     frame.CameraPos[2],
		ViewportW:   float32(width),
		ViewportH:   float32(height),
		AABBPadding: settings.AABBPaddingFactor,
	}
	if err := queue.WriteBuffer(p.buffers.frameUBO, 0, structToBytes(&fu)); err != nil {
		return nil, fmt.Errorf("gpu: write frame uniform: %w", err)
	}

	grid := TileGridUniform{
		ViewportWidth: uint32(width), ViewportHeight: uint32(height),
		TileColumns: uint32(p.tileColumns), TileRows: uint32(p.tileRows),
		NumTiles: uint32(p.numTiles), SplatCount: uint32(n),
	}
	if err := queue.WriteBuffer(p.buffers.gridUBO, 0, structToBytes(&grid)); err != nil {
		return nil, fmt.Errorf("gpu: write tile grid uniform: %w", err)
	}

	scanU := scanUniform{N: uint32(p.numTiles), NumBlocks: uint32(p.numScanBlocks)}
	if err := queue.WriteBuffer(p.buffers.scanUBO, 0, structToBytes(&scanU)); err != nil {
		return nil, fmt.Errorf("gpu: write scan uniform: %w", err)
	}

	earlyTerm := uint32(1)
	if settings.DisableEarlyTermination {
		earlyTerm = 0
	}
	raster := RasterUniform{
		Sigma: settings.Sigma, EarlyAlphaCutoff: settings.EarlyAlphaCutoff, EarlyTermination: earlyTerm,
		BackgroundR: settings.Background[0], BackgroundG: settings.Background[1], BackgroundB: settings.Background[2],
	}
	if err := queue.WriteBuffer(p.buffers.rasterUBO, 0, structToBytes(&raster)); err != nil {
		return nil, fmt.Errorf("gpu: write raster uniform: %w", err)
	}

	if n == 0 {
		return p.clearToBackground(settings, width, height)
	}

	sortedPayload, err := p.encodeAndRunProjectThroughScan(device, queue, n)
	if err != nil {
		return nil, err
	}

	total, err := p.readbackScanTotal()
	if err != nil {
		return nil, err
	}

	if _, err := p.ensureTileIndices(int(total), n); err != nil {
		return nil, err
	}

	return p.encodeAndRunFillThroughPresent(device, queue, n, sortedPayload)
}

// encodeAndRunProjectThroughScan records and submits stages B through F
// (project, key-encode, radix sort, tile count, exclusive scan), the
// first suspension point named in spec.md §5.
func (p *Pipeline) encodeAndRunProjectThroughScan(device hal.Device, queue hal.Queue, n int) (sortPassBuffers, error) {
	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "splat_project_scan_encoder"})
	if err != nil {
		return sortPassBuffers{}, fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("splat_project_scan"); err != nil {
		return sortPassBuffers{}, fmt.Errorf("gpu: begin encoding: %w", err)
	}

	frameBG, outputBG, err := p.project.bindGroups(p.buffers.frameUBO, p.buffers.splatRecords, p.buffers.projected, n)
	if err != nil {
		return sortPassBuffers{}, err
	}
	defer device.DestroyBindGroup(frameBG)
	defer device.DestroyBindGroup(outputBG)
	p.project.encode(encoder, frameBG, outputBG, n)

	padded := p.buffers.paddedCapacity
	keyParamsBG, keyOutBG, err := p.keyEncodeBindGroups(n, padded)
	if err != nil {
		return sortPassBuffers{}, err
	}
	defer device.DestroyBindGroup(keyParamsBG)
	defer device.DestroyBindGroup(keyOutBG)
	p.keyEncode.encode(encoder, keyParamsBG, keyOutBG, padded)

	a := sortPassBuffers{keys: p.buffers.keysA, payload: p.buffers.payloadA}
	b := sortPassBuffers{keys: p.buffers.keysB, payload: p.buffers.payloadB}
	sorted, err := p.radixSort.sort(encoder, a, b, p.buffers.radixParamsUBOs, p.buffers.blockHist, p.buffers.globalHist, padded)
	if err != nil {
		return sortPassBuffers{}, err
	}

	gridBG, countsBG, err := p.tileCountBindGroups(sorted.payload)
	if err != nil {
		return sortPassBuffers{}, err
	}
	defer device.DestroyBindGroup(gridBG)
	defer device.DestroyBindGroup(countsBG)
	p.tileBinner.encodeCount(encoder, gridBG, countsBG, n)

	blockParamsBG, blockOutBG, metaParamsBG, metaOutBG, addOutBG, err := p.scanBindGroups()
	if err != nil {
		return sortPassBuffers{}, err
	}
	defer device.DestroyBindGroup(blockParamsBG)
	defer device.DestroyBindGroup(blockOutBG)
	defer device.DestroyBindGroup(metaParamsBG)
	defer device.DestroyBindGroup(metaOutBG)
	defer device.DestroyBindGroup(addOutBG)
	p.tileBinner.encodeScan(encoder, blockParamsBG, blockOutBG, metaParamsBG, metaOutBG, addOutBG, p.numScanBlocks)

	if err := submitAndWait(device, queue, encoder); err != nil {
		return sortPassBuffers{}, err
	}
	return sorted, nil
}

// readbackScanTotal reads the final tile's offset and count to recover
// the scanned total entry count, the single small readback spec.md §5
// calls for between F and G.
func (p *Pipeline) readbackScanTotal() (uint32, error) {
	device := p.host.Device()
	queue := p.host.Queue()

	staging, err := createBuffer(device, "scan_total_staging", 8, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return 0, err
	}
	defer device.DestroyBuffer(staging)

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "splat_total_readback_encoder"})
	if err != nil {
		return 0, fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("splat_total_readback"); err != nil {
		return 0, fmt.Errorf("gpu: begin encoding: %w", err)
	}

	lastOffset := uint64(p.numTiles-1) * 4
	encoder.CopyBufferToBuffer(p.buffers.offsets, staging, []hal.BufferCopy{{SrcOffset: lastOffset, DstOffset: 0, Size: 4}})
	encoder.CopyBufferToBuffer(p.buffers.counts, staging, []hal.BufferCopy{{SrcOffset: lastOffset, DstOffset: 4, Size: 4}})

	if err := submitAndWait(device, queue, encoder); err != nil {
		return 0, err
	}

	readback := make([]byte, 8)
	if err := queue.ReadBuffer(staging, 0, readback); err != nil {
		return 0, fmt.Errorf("gpu: readback scan total: %w", err)
	}
	lastOffsetVal := le32(readback[0:4])
	lastCountVal := le32(readback[4:8])
	return lastOffsetVal + lastCountVal, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// encodeAndRunFillThroughPresent records and submits stages G through I
// (tile fill, per-tile sort, fine rasterise, present), then reads the
// present target back into an RGBA8 pixel buffer.
func (p *Pipeline) encodeAndRunFillThroughPresent(device hal.Device, queue hal.Queue, n int, sorted sortPassBuffers) ([]byte, error) {
	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "splat_fill_present_encoder"})
	if err != nil {
		return nil, fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("splat_fill_present"); err != nil {
		return nil, fmt.Errorf("gpu: begin encoding: %w", err)
	}

	encoder.CopyBufferToBuffer(p.buffers.offsets, p.buffers.currentOffsets, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: uint64(p.numTiles) * 4},
	})

	gridBG, fillBG, err := p.tileFillBindGroups(sorted.payload)
	if err != nil {
		return nil, err
	}
	defer device.DestroyBindGroup(gridBG)
	defer device.DestroyBindGroup(fillBG)
	p.tileBinner.encodeFill(encoder, gridBG, fillBG, n)

	sortGridBG, sortBG, err := p.tileSortBindGroups(sorted.payload)
	if err != nil {
		return nil, err
	}
	defer device.DestroyBindGroup(sortGridBG)
	defer device.DestroyBindGroup(sortBG)
	p.tileBinner.encodeSort(encoder, sortGridBG, sortBG, p.numTiles)

	uniformBG, splatBG, tileBG, imageBG, err := p.fineBindGroups(n)
	if err != nil {
		return nil, err
	}
	defer device.DestroyBindGroup(uniformBG)
	defer device.DestroyBindGroup(splatBG)
	defer device.DestroyBindGroup(tileBG)
	defer device.DestroyBindGroup(imageBG)
	p.fine.encode(encoder, uniformBG, splatBG, tileBG, imageBG, p.width, p.height)

	if err := p.present.encode(encoder, p.outputView, p.presentView); err != nil {
		return nil, err
	}

	return p.readbackPresentTarget(device, queue, encoder)
}

// readbackPresentTarget transitions the present texture to a copy source,
// copies it into a row-pitch-aligned staging buffer, submits, waits, and
// strips row padding (spec.md §5's end-of-frame suspension point).
func (p *Pipeline) readbackPresentTarget(device hal.Device, queue hal.Queue, encoder hal.CommandEncoder) ([]byte, error) {
	w, h := uint32(p.width), uint32(p.height)

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: p.presentTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})

	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(h)

	staging, err := createBuffer(device, "present_staging", stagingSize, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	defer device.DestroyBuffer(staging)

	encoder.CopyTextureToBuffer(p.presentTex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: int(alignedBytesPerRow), RowsPerImage: int(h)},
		TextureBase:  hal.ImageCopyTexture{Texture: p.presentTex, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: p.presentTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	if err := submitAndWait(device, queue, encoder); err != nil {
		return nil, err
	}

	readback := make([]byte, stagingSize)
	if err := queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("gpu: readback present target: %w", err)
	}

	if uint32(alignedBytesPerRow) == bytesPerRow {
		return readback, nil
	}
	tight := make([]byte, uint64(bytesPerRow)*uint64(h))
	for row := uint32(0); row < h; row++ {
		srcOff := int(row) * int(alignedBytesPerRow)
		dstOff := int(row) * int(bytesPerRow)
		copy(tight[dstOff:dstOff+int(bytesPerRow)], readback[srcOff:srcOff+int(bytesPerRow)])
	}
	return tight, nil
}

// clearToBackground handles the zero-splat edge case (spec.md §8 S3):
// skip every compute stage and present a uniform background-colour frame.
func (p *Pipeline) clearToBackground(settings RasterSettings, width, height int) ([]byte, error) {
	pixels := make([]byte, width*height*4)
	r := uint8(clamp01(settings.Background[0]) * 255)
	g := uint8(clamp01(settings.Background[1]) * 255)
	b := uint8(clamp01(settings.Background[2]) * 255)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = r, g, b, 255
	}
	return pixels, nil
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (p *Pipeline) keyEncodeBindGroups(n, padded int) (hal.BindGroup, hal.BindGroup, error) {
	device := p.host.Device()

	paramsBG, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "keyencode_params_bg",
		Layout: p.keyEncode.paramsLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.buffers.keyEncodeUBO.NativeHandle(), Offset: 0, Size: keyEncodeUniformSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: p.buffers.projected.NativeHandle(), Offset: 0, Size: uint64(n) * ProjectedSplatSize}},
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("gpu: create keyencode params bind group: %w", err)
	}

	outBG, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "keyencode_output_bg",
		Layout: p.keyEncode.outputLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.buffers.keysA.NativeHandle(), Offset: 0, Size: uint64(padded) * 4}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: p.buffers.payloadA.NativeHandle(), Offset: 0, Size: uint64(padded) * 4}},
		},
	})
	if err != nil {
		device.DestroyBindGroup(paramsBG)
		return nil, nil, fmt.Errorf("gpu: create keyencode output bind group: %w", err)
	}

	return paramsBG, outBG, nil
}

// gridBindGroup builds the bind group shared by the tile counter, filler,
// and per-tile sorter (spec.md §4.E-G): the tile grid uniform, the
// projected splat array, and the sorted payload (original splat indices in
// depth order).
func (p *Pipeline) gridBindGroup(label string, sortedPayload hal.Buffer, n int) (hal.BindGroup, error) {
	device := p.host.Device()
	bg, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  label,
		Layout: p.tileBinner.gridLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.buffers.gridUBO.NativeHandle(), Offset: 0, Size: TileGridUniformSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: p.buffers.projected.NativeHandle(), Offset: 0, Size: uint64(n) * ProjectedSplatSize}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: sortedPayload.NativeHandle(), Offset: 0, Size: uint64(p.buffers.paddedCapacity) * 4}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s: %w", label, err)
	}
	return bg, nil
}

// tileCountBindGroups builds the bind groups for stage E (tile counter).
func (p *Pipeline) tileCountBindGroups(sortedPayload hal.Buffer) (hal.BindGroup, hal.BindGroup, error) {
	device := p.host.Device()

	gridBG, err := p.gridBindGroup("tile_count_grid_bg", sortedPayload, p.buffers.splatCapacity)
	if err != nil {
		return nil, nil, err
	}

	countsBG, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "tile_count_counts_bg",
		Layout: p.tileBinner.countsLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.buffers.counts.NativeHandle(), Offset: 0, Size: uint64(p.numTiles) * 4}},
		},
	})
	if err != nil {
		device.DestroyBindGroup(gridBG)
		return nil, nil, fmt.Errorf("gpu: create tile count counts bind group: %w", err)
	}

	return gridBG, countsBG, nil
}

// scanBindGroups builds the bind groups for stage F's three sub-passes: the
// per-block scan, the meta-scan over block_sums (only dispatched when more
// than one block exists), and the add-base pass that distributes scanned
// block bases back into offsets_out.
func (p *Pipeline) scanBindGroups() (blockParamsBG, blockOutBG, metaParamsBG, metaOutBG, addOutBG hal.BindGroup, err error) {
	device := p.host.Device()

	destroyOnErr := func(bgs ...hal.BindGroup) {
		for _, bg := range bgs {
			if bg != nil {
				device.DestroyBindGroup(bg)
			}
		}
	}

	blockParamsBG, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "scan_block_params_bg",
		Layout: p.tileBinner.scanParamsLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.buffers.scanUBO.NativeHandle(), Offset: 0, Size: scanUniformSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: p.buffers.counts.NativeHandle(), Offset: 0, Size: uint64(p.numTiles) * 4}},
		},
	})
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("gpu: create scan block params bind group: %w", err)
	}

	blockOutBG, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "scan_block_out_bg",
		Layout: p.tileBinner.scanOutLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.buffers.offsets.NativeHandle(), Offset: 0, Size: uint64(p.numTiles) * 4}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: p.buffers.blockSums.NativeHandle(), Offset: 0, Size: uint64(p.numScanBlocks) * 4}},
		},
	})
	if err != nil {
		destroyOnErr(blockParamsBG)
		return nil, nil, nil, nil, nil, fmt.Errorf("gpu: create scan block out bind group: %w", err)
	}

	metaParamsBG, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "scan_meta_params_bg",
		Layout: p.tileBinner.scanParamsLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.buffers.metaScanUBO.NativeHandle(), Offset: 0, Size: scanUniformSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: p.buffers.blockSums.NativeHandle(), Offset: 0, Size: uint64(p.numScanBlocks) * 4}},
		},
	})
	if err != nil {
		destroyOnErr(blockParamsBG, blockOutBG)
		return nil, nil, nil, nil, nil, fmt.Errorf("gpu: create scan meta params bind group: %w", err)
	}

	metaOutBG, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "scan_meta_out_bg",
		Layout: p.tileBinner.scanOutLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.buffers.blockSumsScanned.NativeHandle(), Offset: 0, Size: uint64(p.numScanBlocks) * 4}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: p.buffers.metaScratch.NativeHandle(), Offset: 0, Size: 4}},
		},
	})
	if err != nil {
		destroyOnErr(blockParamsBG, blockOutBG, metaParamsBG)
		return nil, nil, nil, nil, nil, fmt.Errorf("gpu: create scan meta out bind group: %w", err)
	}

	addOutBG, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "scan_add_out_bg",
		Layout: p.tileBinner.scanOutLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.buffers.offsets.NativeHandle(), Offset: 0, Size: uint64(p.numTiles) * 4}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: p.buffers.blockSumsScanned.NativeHandle(), Offset: 0, Size: uint64(p.numScanBlocks) * 4}},
		},
	})
	if err != nil {
		destroyOnErr(blockParamsBG, blockOutBG, metaParamsBG, metaOutBG)
		return nil, nil, nil, nil, nil, fmt.Errorf("gpu: create scan add out bind group: %w", err)
	}

	return blockParamsBG, blockOutBG, metaParamsBG, metaOutBG, addOutBG, nil
}

// tileFillBindGroups builds the bind groups for stage G's append pass.
func (p *Pipeline) tileFillBindGroups(sortedPayload hal.Buffer) (hal.BindGroup, hal.BindGroup, error) {
	device := p.host.Device()

	gridBG, err := p.gridBindGroup("tile_fill_grid_bg", sortedPayload, p.buffers.splatCapacity)
	if err != nil {
		return nil, nil, err
	}

	fillBG, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "tile_fill_fill_bg",
		Layout: p.tileBinner.fillLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.buffers.currentOffsets.NativeHandle(), Offset: 0, Size: uint64(p.numTiles) * 4}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: p.buffers.tileIndices.NativeHandle(), Offset: 0, Size: uint64(p.tileIndices.Capacity()) * 4}},
		},
	})
	if err != nil {
		device.DestroyBindGroup(gridBG)
		return nil, nil, fmt.Errorf("gpu: create tile fill fill bind group: %w", err)
	}

	return gridBG, fillBG, nil
}

// tileSortBindGroups builds the bind groups for stage G's mandated per-tile
// sort pass. The grid bind group's sorted_indices slot is bound but unused
// by tile_sort.wgsl, which only reorders within each tile's own segment.
func (p *Pipeline) tileSortBindGroups(sortedPayload hal.Buffer) (hal.BindGroup, hal.BindGroup, error) {
	device := p.host.Device()

	gridBG, err := p.gridBindGroup("tile_sort_grid_bg", sortedPayload, p.buffers.splatCapacity)
	if err != nil {
		return nil, nil, err
	}

	sortBG, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "tile_sort_offsets_bg",
		Layout: p.tileBinner.sortOffsetsLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.buffers.offsets.NativeHandle(), Offset: 0, Size: uint64(p.numTiles) * 4}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: p.buffers.counts.NativeHandle(), Offset: 0, Size: uint64(p.numTiles) * 4}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: p.buffers.tileIndices.NativeHandle(), Offset: 0, Size: uint64(p.tileIndices.Capacity()) * 4}},
		},
	})
	if err != nil {
		device.DestroyBindGroup(gridBG)
		return nil, nil, fmt.Errorf("gpu: create tile sort offsets bind group: %w", err)
	}

	return gridBG, sortBG, nil
}

// fineBindGroups builds the four bind groups for stage H (fine rasteriser).
func (p *Pipeline) fineBindGroups(n int) (uniformBG, splatBG, tileBG, imageBG hal.BindGroup, err error) {
	device := p.host.Device()

	destroyOnErr := func(bgs ...hal.BindGroup) {
		for _, bg := range bgs {
			if bg != nil {
				device.DestroyBindGroup(bg)
			}
		}
	}

	uniformBG, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "fine_uniform_bg",
		Layout: p.fine.uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.buffers.gridUBO.NativeHandle(), Offset: 0, Size: TileGridUniformSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: p.buffers.rasterUBO.NativeHandle(), Offset: 0, Size: RasterUniformSize}},
		},
	})
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("gpu: create fine uniform bind group: %w", err)
	}

	splatBG, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "fine_splat_bg",
		Layout: p.fine.splatLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.buffers.projected.NativeHandle(), Offset: 0, Size: uint64(n) * ProjectedSplatSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: p.buffers.splatColours.NativeHandle(), Offset: 0, Size: uint64(n) * 16}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: p.buffers.splatNormals.NativeHandle(), Offset: 0, Size: uint64(n) * 16}},
		},
	})
	if err != nil {
		destroyOnErr(uniformBG)
		return nil, nil, nil, nil, fmt.Errorf("gpu: create fine splat bind group: %w", err)
	}

	tileBG, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "fine_tile_bg",
		Layout: p.fine.tileLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: p.buffers.offsets.NativeHandle(), Offset: 0, Size: uint64(p.numTiles) * 4}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: p.buffers.counts.NativeHandle(), Offset: 0, Size: uint64(p.numTiles) * 4}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: p.buffers.tileIndices.NativeHandle(), Offset: 0, Size: uint64(p.tileIndices.Capacity()) * 4}},
		},
	})
	if err != nil {
		destroyOnErr(uniformBG, splatBG)
		return nil, nil, nil, nil, fmt.Errorf("gpu: create fine tile bind group: %w", err)
	}

	imageBG, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "fine_image_bg",
		Layout: p.fine.imageLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{View: p.outputView.NativeHandle()}},
		},
	})
	if err != nil {
		destroyOnErr(uniformBG, splatBG, tileBG)
		return nil, nil, nil, nil, fmt.Errorf("gpu: create fine image bind group: %w", err)
	}

	return uniformBG, splatBG, tileBG, imageBG, nil
}

// submitAndWait ends encoding, submits the resulting command buffer, and
// blocks until the GPU has finished executing it, mirroring the teacher's
// encodeMultiPass submit/fence/wait idiom.
func submitAndWait(device hal.Device, queue hal.Queue, encoder hal.CommandEncoder) error {
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	defer device.FreeCommandBuffer(cmdBuf)

	fence, err := device.CreateFence()
	if err != nil {
		return fmt.Errorf("gpu: create fence: %w", err)
	}
	defer device.DestroyFence(fence)

	if err := queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("gpu: submit: %w", err)
	}
	ok, err := device.Wait(fence, 1, 5*time.Second)
	if err != nil || !ok {
		return fmt.Errorf("gpu: wait for GPU: ok=%v err=%w", ok, err)
	}
	return nil
}
