//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// presenter is stage I: a trivial full-screen-triangle render pass that
// samples the rasteriser's storage image with point filtering into the
// swap-chain image (spec.md §4.I). No vertex buffer; positions and UVs
// are synthesised in the vertex stage from the vertex index.
type presenter struct {
	device hal.Device

	shader        hal.ShaderModule
	bindLayout    hal.BindGroupLayout
	pipeLayout    hal.PipelineLayout
	pipeline      hal.RenderPipeline
	sampler       hal.Sampler
	swapchainFmt  gputypes.TextureFormat
}

func newPresenter(device hal.Device, swapchainFmt gputypes.TextureFormat) (*presenter, error) {
	shader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "present_shader",
		Source: hal.ShaderSource{WGSL: presentShaderSource},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create present shader: %w", err)
	}

	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "present_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture:    &gputypes.TextureBindingLayout{SampleType: gputypes.TextureSampleTypeFloat, ViewDimension: gputypes.TextureViewDimension2D},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeNonFiltering},
			},
		},
	})
	if err != nil {
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create present bind layout: %w", err)
	}

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "present_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		device.DestroyBindGroupLayout(bindLayout)
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create present pipeline layout: %w", err)
	}

	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "present_pipeline",
		Layout: pipeLayout,
		Vertex: hal.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{Format: swapchainFmt, WriteMask: gputypes.ColorWriteMaskAll},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		device.DestroyPipelineLayout(pipeLayout)
		device.DestroyBindGroupLayout(bindLayout)
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create present pipeline: %w", err)
	}

	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "present_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		device.DestroyRenderPipeline(pipeline)
		device.DestroyPipelineLayout(pipeLayout)
		device.DestroyBindGroupLayout(bindLayout)
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create present sampler: %w", err)
	}

	return &presenter{
		device: device, shader: shader, bindLayout: bindLayout,
		pipeLayout: pipeLayout, pipeline: pipeline, sampler: sampler,
		swapchainFmt: swapchainFmt,
	}, nil
}

// encode records the blit render pass, reading sourceView (the
// rasteriser's storage image, sampled as a regular texture) and writing
// to targetView (the swap-chain image view).
func (pr *presenter) encode(encoder hal.CommandEncoder, sourceView hal.TextureView, targetView hal.TextureView) error {
	bindGroup, err := pr.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "present_bg",
		Layout: pr.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{View: sourceView.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: pr.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create present bind group: %w", err)
	}
	defer pr.device.DestroyBindGroup(bindGroup)

	pass := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "present_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       targetView,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	pass.SetPipeline(pr.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()

	return nil
}

func (pr *presenter) destroy() {
	if pr.sampler != nil {
		pr.device.DestroySampler(pr.sampler)
	}
	if pr.pipeline != nil {
		pr.device.DestroyRenderPipeline(pr.pipeline)
	}
	if pr.pipeLayout != nil {
		pr.device.DestroyPipelineLayout(pr.pipeLayout)
	}
	if pr.bindLayout != nil {
		pr.device.DestroyBindGroupLayout(pr.bindLayout)
	}
	if pr.shader != nil {
		pr.device.DestroyShaderModule(pr.shader)
	}
}
