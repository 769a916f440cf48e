//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// projector is stage B: per-splat world-to-screen AABB, depth, and
// screen radius (spec.md §4.B). One thread per splat, workgroup size 64.
type projector struct {
	device hal.Device

	shader       hal.ShaderModule
	frameLayout  hal.BindGroupLayout
	outputLayout hal.BindGroupLayout
	pipeLayout   hal.PipelineLayout
	pipeline     hal.ComputePipeline
}

const projectorWorkgroupSize = 64

func newProjector(device hal.Device) (*projector, error) {
	shader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "project_shader",
		Source: hal.ShaderSource{WGSL: projectShaderSource},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create project shader: %w", err)
	}

	frameLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "project_frame_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageCompute,
				Buffer: &gputypes.BufferBindingLayout{
					Type:           gputypes.BufferBindingTypeUniform,
					MinBindingSize: FrameUniformSize,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
			},
		},
	})
	if err != nil {
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create project frame layout: %w", err)
	}

	outputLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "project_output_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
			},
		},
	})
	if err != nil {
		device.DestroyBindGroupLayout(frameLayout)
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create project output layout: %w", err)
	}

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "project_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{frameLayout, outputLayout},
	})
	if err != nil {
		device.DestroyBindGroupLayout(outputLayout)
		device.DestroyBindGroupLayout(frameLayout)
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create project pipeline layout: %w", err)
	}

	pipeline, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   "project_pipeline",
		Layout:  pipeLayout,
		Compute: hal.ComputeState{Module: shader, EntryPoint: "main"},
	})
	if err != nil {
		device.DestroyPipelineLayout(pipeLayout)
		device.DestroyBindGroupLayout(outputLayout)
		device.DestroyBindGroupLayout(frameLayout)
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create project pipeline: %w", err)
	}

	return &projector{
		device:       device,
		shader:       shader,
		frameLayout:  frameLayout,
		outputLayout: outputLayout,
		pipeLayout:   pipeLayout,
		pipeline:     pipeline,
	}, nil
}

// bindGroups builds the two bind groups this stage reads/writes, given the
// current frame's buffers.
func (p *projector) bindGroups(frameUBO, splatBuf, projectedBuf hal.Buffer, splatCount int) (hal.BindGroup, hal.BindGroup, error) {
	frameBG, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "project_frame_bg",
		Layout: p.frameLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: frameUBO.NativeHandle(), Offset: 0, Size: FrameUniformSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: splatBuf.NativeHandle(), Offset: 0, Size: uint64(splatCount) * 16}},
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("gpu: create project frame bind group: %w", err)
	}

	outputBG, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "project_output_bg",
		Layout: p.outputLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: projectedBuf.NativeHandle(), Offset: 0, Size: uint64(splatCount) * ProjectedSplatSize}},
		},
	})
	if err != nil {
		p.device.DestroyBindGroup(frameBG)
		return nil, nil, fmt.Errorf("gpu: create project output bind group: %w", err)
	}

	return frameBG, outputBG, nil
}

// encode records the projector's compute pass into encoder.
func (p *projector) encode(encoder hal.CommandEncoder, frameBG, outputBG hal.BindGroup, splatCount int) {
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "project_pass"})
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, frameBG, nil)
	pass.SetBindGroup(1, outputBG, nil)
	groups := uint32(splatCount+projectorWorkgroupSize-1) / projectorWorkgroupSize
	pass.Dispatch(groups, 1, 1)
	pass.End()
}

func (p *projector) destroy() {
	if p.pipeline != nil {
		p.device.DestroyComputePipeline(p.pipeline)
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
	}
	if p.outputLayout != nil {
		p.device.DestroyBindGroupLayout(p.outputLayout)
	}
	if p.frameLayout != nil {
		p.device.DestroyBindGroupLayout(p.frameLayout)
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
	}
}
