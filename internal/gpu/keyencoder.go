//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// keyEncodeUniform mirrors KeyEncodeUniform in keyencode.wgsl.
type keyEncodeUniform struct {
	SplatCount, PaddedCount, _Pad0, _Pad1 uint32
}

const keyEncodeUniformSize = 16

// keyEncoder is stage C: IEEE-754 depth -> sortable uint32 key, payload =
// original index (spec.md §4.C).
type keyEncoder struct {
	device hal.Device

	shader       hal.ShaderModule
	paramsLayout hal.BindGroupLayout
	outputLayout hal.BindGroupLayout
	pipeLayout   hal.PipelineLayout
	pipeline     hal.ComputePipeline
}

const keyEncoderWorkgroupSize = 256

func newKeyEncoder(device hal.Device) (*keyEncoder, error) {
	shader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "keyencode_shader",
		Source: hal.ShaderSource{WGSL: keyEncodeShaderSource},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create keyencode shader: %w", err)
	}

	paramsLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "keyencode_params_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, MinBindingSize: keyEncodeUniformSize}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
		},
	})
	if err != nil {
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create keyencode params layout: %w", err)
	}

	outputLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "keyencode_output_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		device.DestroyBindGroupLayout(paramsLayout)
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create keyencode output layout: %w", err)
	}

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "keyencode_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{paramsLayout, outputLayout},
	})
	if err != nil {
		device.DestroyBindGroupLayout(outputLayout)
		device.DestroyBindGroupLayout(paramsLayout)
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create keyencode pipeline layout: %w", err)
	}

	pipeline, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   "keyencode_pipeline",
		Layout:  pipeLayout,
		Compute: hal.ComputeState{Module: shader, EntryPoint: "main"},
	})
	if err != nil {
		device.DestroyPipelineLayout(pipeLayout)
		device.DestroyBindGroupLayout(outputLayout)
		device.DestroyBindGroupLayout(paramsLayout)
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create keyencode pipeline: %w", err)
	}

	return &keyEncoder{
		device: device, shader: shader,
		paramsLayout: paramsLayout, outputLayout: outputLayout,
		pipeLayout: pipeLayout, pipeline: pipeline,
	}, nil
}

func (k *keyEncoder) encode(encoder hal.CommandEncoder, paramsBG, outputBG hal.BindGroup, paddedCount int) {
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "keyencode_pass"})
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, paramsBG, nil)
	pass.SetBindGroup(1, outputBG, nil)
	groups := uint32(paddedCount+keyEncoderWorkgroupSize-1) / keyEncoderWorkgroupSize
	pass.Dispatch(groups, 1, 1)
	pass.End()
}

func (k *keyEncoder) destroy() {
	if k.pipeline != nil {
		k.device.DestroyComputePipeline(k.pipeline)
	}
	if k.pipeLayout != nil {
		k.device.DestroyPipelineLayout(k.pipeLayout)
	}
	if k.outputLayout != nil {
		k.device.DestroyBindGroupLayout(k.outputLayout)
	}
	if k.paramsLayout != nil {
		k.device.DestroyBindGroupLayout(k.paramsLayout)
	}
	if k.shader != nil {
		k.device.DestroyShaderModule(k.shader)
	}
}

// paddedLength rounds n up to a multiple of SortBlockSize (spec.md §4.D's
// "padded length must be a multiple of the scatter block size").
func paddedLength(n int) int {
	if n%SortBlockSize == 0 {
		return n
	}
	return (n/SortBlockSize + 1) * SortBlockSize
}
