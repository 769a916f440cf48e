//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// scanUniform mirrors ScanUniform in scan.wgsl.
type scanUniform struct {
	N, NumBlocks, _Pad0, _Pad1 uint32
}

const scanUniformSize = 16
const scanBlockElements = 512

// tileBinner implements stages E (counter), F (exclusive scan), G (filler
// plus the mandated per-tile sort) (spec.md §4.E-G).
type tileBinner struct {
	device hal.Device

	countShader hal.ShaderModule
	scanShader  hal.ShaderModule
	fillShader  hal.ShaderModule
	sortShader  hal.ShaderModule

	gridLayout   hal.BindGroupLayout // uniform grid + projected + sorted_indices
	countsLayout hal.BindGroupLayout // read_write counts

	scanParamsLayout hal.BindGroupLayout // uniform + counts_in
	scanOutLayout    hal.BindGroupLayout // offsets_out + block_sums

	fillLayout hal.BindGroupLayout // current_offsets + tile_indices

	sortOffsetsLayout hal.BindGroupLayout // offsets + counts + tile_indices

	countPipeLayout hal.PipelineLayout
	countPipeline   hal.ComputePipeline

	scanPipeLayout       hal.PipelineLayout
	blockScanPipeline    hal.ComputePipeline
	addBlockBasePipeline hal.ComputePipeline

	fillPipeLayout hal.PipelineLayout
	fillPipeline   hal.ComputePipeline

	sortPipeLayout hal.PipelineLayout
	sortPipeline   hal.ComputePipeline
}

const tileBinningWorkgroupSize = 256

func newTileBinner(device hal.Device) (*tileBinner, error) {
	tb := &tileBinner{device: device}

	var err error
	tb.countShader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: "tile_count_shader", Source: hal.ShaderSource{WGSL: tileCountShaderSource}})
	if err != nil {
		return nil, fmt.Errorf("gpu: create tile_count shader: %w", err)
	}
	tb.scanShader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: "scan_shader", Source: hal.ShaderSource{WGSL: scanShaderSource}})
	if err != nil {
		tb.destroy()
		return nil, fmt.Errorf("gpu: create scan shader: %w", err)
	}
	tb.fillShader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: "tile_fill_shader", Source: hal.ShaderSource{WGSL: tileFillShaderSource}})
	if err != nil {
		tb.destroy()
		return nil, fmt.Errorf("gpu: create tile_fill shader: %w", err)
	}
	tb.sortShader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: "tile_sort_shader", Source: hal.ShaderSource{WGSL: tileSortShaderSource}})
	if err != nil {
		tb.destroy()
		return nil, fmt.Errorf("gpu: create tile_sort shader: %w", err)
	}

	tb.gridLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "tile_grid_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, MinBindingSize: TileGridUniformSize}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
		},
	})
	if err != nil {
		tb.destroy()
		return nil, fmt.Errorf("gpu: create tile grid layout: %w", err)
	}

	tb.countsLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "tile_counts_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		tb.destroy()
		return nil, fmt.Errorf("gpu: create tile counts layout: %w", err)
	}

	tb.countPipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "tile_count_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{tb.gridLayout, tb.countsLayout},
	})
	if err != nil {
		tb.destroy()
		return nil, fmt.Errorf("gpu: create tile count pipeline layout: %w", err)
	}
	tb.countPipeline, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "tile_count_pipeline", Layout: tb.countPipeLayout,
		Compute: hal.ComputeState{Module: tb.countShader, EntryPoint: "main"},
	})
	if err != nil {
		tb.destroy()
		return nil, fmt.Errorf("gpu: create tile count pipeline: %w", err)
	}

	tb.scanParamsLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "scan_params_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, MinBindingSize: scanUniformSize}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
		},
	})
	if err != nil {
		tb.destroy()
		return nil, fmt.Errorf("gpu: create scan params layout: %w", err)
	}
	tb.scanOutLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "scan_out_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		tb.destroy()
		return nil, fmt.Errorf("gpu: create scan out layout: %w", err)
	}
	tb.scanPipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "scan_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{tb.scanParamsLayout, tb.scanOutLayout},
	})
	if err != nil {
		tb.destroy()
		return nil, fmt.Errorf("gpu: create scan pipeline layout: %w", err)
	}
	tb.blockScanPipeline, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "scan_block_pipeline", Layout: tb.scanPipeLayout,
		Compute: hal.ComputeState{Module: tb.scanShader, EntryPoint: "cs_block_scan"},
	})
	if err != nil {
		tb.destroy()
		return nil, fmt.Errorf("gpu: create scan block pipeline: %w", err)
	}
	tb.addBlockBasePipeline, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "scan_add_base_pipeline", Layout: tb.scanPipeLayout,
		Compute: hal.ComputeState{Module: tb.scanShader, EntryPoint: "cs_add_block_base"},
	})
	if err != nil {
		tb.destroy()
		return nil, fmt.Errorf("gpu: create scan add-base pipeline: %w", err)
	}

	tb.fillLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "tile_fill_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		tb.destroy()
		return nil, fmt.Errorf("gpu: create tile fill layout: %w", err)
	}
	tb.fillPipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "tile_fill_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{tb.gridLayout, tb.fillLayout},
	})
	if err != nil {
		tb.destroy()
		return nil, fmt.Errorf("gpu: create tile fill pipeline layout: %w", err)
	}
	tb.fillPipeline, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "tile_fill_pipeline", Layout: tb.fillPipeLayout,
		Compute: hal.ComputeState{Module: tb.fillShader, EntryPoint: "main"},
	})
	if err != nil {
		tb.destroy()
		return nil, fmt.Errorf("gpu: create tile fill pipeline: %w", err)
	}

	tb.sortOffsetsLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "tile_sort_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		tb.destroy()
		return nil, fmt.Errorf("gpu: create tile sort layout: %w", err)
	}
	tb.sortPipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "tile_sort_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{tb.gridLayout, tb.sortOffsetsLayout},
	})
	if err != nil {
		tb.destroy()
		return nil, fmt.Errorf("gpu: create tile sort pipeline layout: %w", err)
	}
	tb.sortPipeline, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "tile_sort_pipeline", Layout: tb.sortPipeLayout,
		Compute: hal.ComputeState{Module: tb.sortShader, EntryPoint: "main"},
	})
	if err != nil {
		tb.destroy()
		return nil, fmt.Errorf("gpu: create tile sort pipeline: %w", err)
	}

	return tb, nil
}

// encodeCount records the tile-counter pass (stage E).
func (tb *tileBinner) encodeCount(encoder hal.CommandEncoder, gridBG, countsBG hal.BindGroup, splatCount int) {
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "tile_count_pass"})
	pass.SetPipeline(tb.countPipeline)
	pass.SetBindGroup(0, gridBG, nil)
	pass.SetBindGroup(1, countsBG, nil)
	groups := uint32(splatCount+tileBinningWorkgroupSize-1) / tileBinningWorkgroupSize
	pass.Dispatch(groups, 1, 1)
	pass.End()
}

// encodeScan records the exclusive-scan pass (stage F). For grids larger
// than one 512-element block, block_sums itself needs scanning before the
// add-back pass distributes bases back into offsets_out; the meta-scan
// reuses the same cs_block_scan pipeline over block_sums treated as a
// single-block input (valid while num_blocks <= 512, i.e. up to ~262,000
// tiles — documented as the practical viewport ceiling for this scheme).
func (tb *tileBinner) encodeScan(
	encoder hal.CommandEncoder,
	blockParamsBG, blockOutBG hal.BindGroup,
	metaParamsBG, metaOutBG hal.BindGroup,
	addOutBG hal.BindGroup,
	numBlocks int,
) {
	blockPass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "scan_block_pass"})
	blockPass.SetPipeline(tb.blockScanPipeline)
	blockPass.SetBindGroup(0, blockParamsBG, nil)
	blockPass.SetBindGroup(1, blockOutBG, nil)
	blockPass.Dispatch(uint32(numBlocks), 1, 1)
	blockPass.End()

	if numBlocks <= 1 {
		return
	}

	metaPass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "scan_meta_pass"})
	metaPass.SetPipeline(tb.blockScanPipeline)
	metaPass.SetBindGroup(0, metaParamsBG, nil)
	metaPass.SetBindGroup(1, metaOutBG, nil)
	metaPass.Dispatch(1, 1, 1)
	metaPass.End()

	// Reuses blockParamsBG: cs_add_block_base reads the same (N, num_blocks)
	// uniform and ignores counts_in, only addOutBG differs (block_sums here
	// is the meta-scanned base buffer, not the raw per-block totals).
	addPass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "scan_add_base_pass"})
	addPass.SetPipeline(tb.addBlockBasePipeline)
	addPass.SetBindGroup(0, blockParamsBG, nil)
	addPass.SetBindGroup(1, addOutBG, nil)
	addPass.Dispatch(uint32(numBlocks), 1, 1)
	addPass.End()
}

// encodeFill records the tile-filler pass (stage G's append half).
func (tb *tileBinner) encodeFill(encoder hal.CommandEncoder, gridBG, fillBG hal.BindGroup, splatCount int) {
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "tile_fill_pass"})
	pass.SetPipeline(tb.fillPipeline)
	pass.SetBindGroup(0, gridBG, nil)
	pass.SetBindGroup(1, fillBG, nil)
	groups := uint32(splatCount+tileBinningWorkgroupSize-1) / tileBinningWorkgroupSize
	pass.Dispatch(groups, 1, 1)
	pass.End()
}

// encodeSort records the mandated per-tile sort pass (stage G's
// order-restoring half, spec.md §4.G option (c)).
func (tb *tileBinner) encodeSort(encoder hal.CommandEncoder, gridBG, sortBG hal.BindGroup, numTiles int) {
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "tile_sort_pass"})
	pass.SetPipeline(tb.sortPipeline)
	pass.SetBindGroup(0, gridBG, nil)
	pass.SetBindGroup(1, sortBG, nil)
	pass.Dispatch(uint32(numTiles), 1, 1)
	pass.End()
}

func (tb *tileBinner) destroy() {
	pipelines := []hal.ComputePipeline{tb.countPipeline, tb.blockScanPipeline, tb.addBlockBasePipeline, tb.fillPipeline, tb.sortPipeline}
	for _, p := range pipelines {
		if p != nil {
			tb.device.DestroyComputePipeline(p)
		}
	}
	layouts := []hal.PipelineLayout{tb.countPipeLayout, tb.scanPipeLayout, tb.fillPipeLayout, tb.sortPipeLayout}
	for _, l := range layouts {
		if l != nil {
			tb.device.DestroyPipelineLayout(l)
		}
	}
	bgLayouts := []hal.BindGroupLayout{tb.gridLayout, tb.countsLayout, tb.scanParamsLayout, tb.scanOutLayout, tb.fillLayout, tb.sortOffsetsLayout}
	for _, l := range bgLayouts {
		if l != nil {
			tb.device.DestroyBindGroupLayout(l)
		}
	}
	shaders := []hal.ShaderModule{tb.countShader, tb.scanShader, tb.fillShader, tb.sortShader}
	for _, s := range shaders {
		if s != nil {
			tb.device.DestroyShaderModule(s)
		}
	}
}
