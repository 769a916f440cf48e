//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// rasteriser is stage H: per-pixel traversal of its tile's segment
// back-to-front, Gaussian-weighted alpha compositing with early
// termination (spec.md §4.H). Dispatched as 8x8 workgroups.
type rasteriser struct {
	device hal.Device

	shader hal.ShaderModule

	uniformLayout hal.BindGroupLayout // grid + raster uniforms
	splatLayout   hal.BindGroupLayout // projected, colours, normals
	tileLayout    hal.BindGroupLayout // offsets, counts, tile_indices
	imageLayout   hal.BindGroupLayout // output storage texture

	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

const rasteriserTileThreads = 8

func newRasteriser(device hal.Device) (*rasteriser, error) {
	shader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "fine_shader",
		Source: hal.ShaderSource{WGSL: fineShaderSource},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create fine shader: %w", err)
	}

	uniformLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "fine_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, MinBindingSize: TileGridUniformSize}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, MinBindingSize: RasterUniformSize}},
		},
	})
	if err != nil {
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create fine uniform layout: %w", err)
	}

	splatLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "fine_splat_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
		},
	})
	if err != nil {
		device.DestroyBindGroupLayout(uniformLayout)
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create fine splat layout: %w", err)
	}

	tileLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "fine_tile_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
		},
	})
	if err != nil {
		device.DestroyBindGroupLayout(splatLayout)
		device.DestroyBindGroupLayout(uniformLayout)
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create fine tile layout: %w", err)
	}

	imageLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "fine_image_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageCompute,
				Storage: &gputypes.StorageTextureBindingLayout{
					Access:        gputypes.StorageTextureAccessWriteOnly,
					Format:        gputypes.TextureFormatRGBA8Unorm,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		device.DestroyBindGroupLayout(tileLayout)
		device.DestroyBindGroupLayout(splatLayout)
		device.DestroyBindGroupLayout(uniformLayout)
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create fine image layout: %w", err)
	}

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "fine_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{uniformLayout, splatLayout, tileLayout, imageLayout},
	})
	if err != nil {
		device.DestroyBindGroupLayout(imageLayout)
		device.DestroyBindGroupLayout(tileLayout)
		device.DestroyBindGroupLayout(splatLayout)
		device.DestroyBindGroupLayout(uniformLayout)
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create fine pipeline layout: %w", err)
	}

	pipeline, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   "fine_pipeline",
		Layout:  pipeLayout,
		Compute: hal.ComputeState{Module: shader, EntryPoint: "main"},
	})
	if err != nil {
		device.DestroyPipelineLayout(pipeLayout)
		device.DestroyBindGroupLayout(imageLayout)
		device.DestroyBindGroupLayout(tileLayout)
		device.DestroyBindGroupLayout(splatLayout)
		device.DestroyBindGroupLayout(uniformLayout)
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create fine pipeline: %w", err)
	}

	return &rasteriser{
		device: device, shader: shader,
		uniformLayout: uniformLayout, splatLayout: splatLayout, tileLayout: tileLayout, imageLayout: imageLayout,
		pipeLayout: pipeLayout, pipeline: pipeline,
	}, nil
}

func (r *rasteriser) encode(encoder hal.CommandEncoder, uniformBG, splatBG, tileBG, imageBG hal.BindGroup, width, height int) {
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "fine_pass"})
	pass.SetPipeline(r.pipeline)
	pass.SetBindGroup(0, uniformBG, nil)
	pass.SetBindGroup(1, splatBG, nil)
	pass.SetBindGroup(2, tileBG, nil)
	pass.SetBindGroup(3, imageBG, nil)
	gx := uint32(width+rasteriserTileThreads-1) / rasteriserTileThreads
	gy := uint32(height+rasteriserTileThreads-1) / rasteriserTileThreads
	pass.Dispatch(gx, gy, 1)
	pass.End()
}

func (r *rasteriser) destroy() {
	if r.pipeline != nil {
		r.device.DestroyComputePipeline(r.pipeline)
	}
	if r.pipeLayout != nil {
		r.device.DestroyPipelineLayout(r.pipeLayout)
	}
	for _, l := range []hal.BindGroupLayout{r.imageLayout, r.tileLayout, r.splatLayout, r.uniformLayout} {
		if l != nil {
			r.device.DestroyBindGroupLayout(l)
		}
	}
	if r.shader != nil {
		r.device.DestroyShaderModule(r.shader)
	}
}
