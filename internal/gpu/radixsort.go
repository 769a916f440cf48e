//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// radixParams mirrors RadixParams in radix.wgsl.
type radixParams struct {
	Shift, NumKeys, NumBlocks, _Pad0 uint32
}

const radixParamsSize = 16

const numRadixBuckets = 256

// radixSorter is stage D: a stable 4-pass 8-bit LSD radix sort over
// (key, payload) pairs, ping-ponging between two buffer pairs by pass
// parity (spec.md §4.D).
type radixSorter struct {
	device hal.Device

	shader hal.ShaderModule

	paramsLayout hal.BindGroupLayout // uniform + 2 read-only storage (keys_in, payload_in)
	outputLayout hal.BindGroupLayout // 2 read_write storage (keys_out, payload_out)
	histLayout   hal.BindGroupLayout // 2 read_write storage (block_histograms, global_histogram)

	pipeLayout hal.PipelineLayout

	zeroPipeline    hal.ComputePipeline
	histPipeline    hal.ComputePipeline
	scanPipeline    hal.ComputePipeline
	scatterPipeline hal.ComputePipeline
}

func newRadixSorter(device hal.Device) (*radixSorter, error) {
	shader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "radix_shader",
		Source: hal.ShaderSource{WGSL: radixShaderSource},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create radix shader: %w", err)
	}

	paramsLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "radix_params_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, MinBindingSize: radixParamsSize}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
		},
	})
	if err != nil {
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create radix params layout: %w", err)
	}

	outputLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "radix_output_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		device.DestroyBindGroupLayout(paramsLayout)
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create radix output layout: %w", err)
	}

	histLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "radix_hist_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		device.DestroyBindGroupLayout(outputLayout)
		device.DestroyBindGroupLayout(paramsLayout)
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create radix hist layout: %w", err)
	}

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "radix_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{paramsLayout, outputLayout, histLayout},
	})
	if err != nil {
		device.DestroyBindGroupLayout(histLayout)
		device.DestroyBindGroupLayout(outputLayout)
		device.DestroyBindGroupLayout(paramsLayout)
		device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("gpu: create radix pipeline layout: %w", err)
	}

	r := &radixSorter{
		device: device, shader: shader,
		paramsLayout: paramsLayout, outputLayout: outputLayout, histLayout: histLayout,
		pipeLayout: pipeLayout,
	}

	entries := []struct {
		name string
		dst  *hal.ComputePipeline
	}{
		{"cs_zero_histograms", &r.zeroPipeline},
		{"cs_histogram", &r.histPipeline},
		{"cs_scan_histograms", &r.scanPipeline},
		{"cs_scatter", &r.scatterPipeline},
	}
	for _, e := range entries {
		p, err := device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:   "radix_" + e.name,
			Layout:  pipeLayout,
			Compute: hal.ComputeState{Module: shader, EntryPoint: e.name},
		})
		if err != nil {
			r.destroy()
			return nil, fmt.Errorf("gpu: create radix pipeline %s: %w", e.name, err)
		}
		*e.dst = p
	}

	return r, nil
}

// sortPassBuffers is one ping-pong side: a (keys, payload) buffer pair.
type sortPassBuffers struct {
	keys, payload hal.Buffer
}

// encodePass records one 8-bit LSD pass reading from src and writing to
// dst. shift is the bit offset of this pass's digit (0, 8, 16, 24).
func (r *radixSorter) encodePass(
	encoder hal.CommandEncoder,
	src, dst sortPassBuffers,
	paramsUBO hal.Buffer,
	blockHistBuf, globalHistBuf hal.Buffer,
	paddedCount, numBlocks int,
) error {
	paramsBG, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "radix_params_bg",
		Layout: r.paramsLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: paramsUBO.NativeHandle(), Offset: 0, Size: radixParamsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: src.keys.NativeHandle(), Offset: 0, Size: uint64(paddedCount) * 4}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: src.payload.NativeHandle(), Offset: 0, Size: uint64(paddedCount) * 4}},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create radix params bind group: %w", err)
	}
	defer r.device.DestroyBindGroup(paramsBG)

	outputBG, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "radix_output_bg",
		Layout: r.outputLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: dst.keys.NativeHandle(), Offset: 0, Size: uint64(paddedCount) * 4}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: dst.payload.NativeHandle(), Offset: 0, Size: uint64(paddedCount) * 4}},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create radix output bind group: %w", err)
	}
	defer r.device.DestroyBindGroup(outputBG)

	histBG, err := r.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "radix_hist_bg",
		Layout: r.histLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: blockHistBuf.NativeHandle(), Offset: 0, Size: uint64(numBlocks) * numRadixBuckets * 4}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: globalHistBuf.NativeHandle(), Offset: 0, Size: numRadixBuckets * 4}},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create radix hist bind group: %w", err)
	}
	defer r.device.DestroyBindGroup(histBG)

	zeroGroups := uint32(numBlocks*numRadixBuckets+255) / 256
	if zeroGroups == 0 {
		zeroGroups = 1
	}

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "radix_zero_pass"})
	pass.SetPipeline(r.zeroPipeline)
	pass.SetBindGroup(0, paramsBG, nil)
	pass.SetBindGroup(1, outputBG, nil)
	pass.SetBindGroup(2, histBG, nil)
	pass.Dispatch(zeroGroups, 1, 1)
	pass.End()

	histPass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "radix_histogram_pass"})
	histPass.SetPipeline(r.histPipeline)
	histPass.SetBindGroup(0, paramsBG, nil)
	histPass.SetBindGroup(1, outputBG, nil)
	histPass.SetBindGroup(2, histBG, nil)
	histPass.Dispatch(uint32(numBlocks), 1, 1)
	histPass.End()

	scanPass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "radix_scan_pass"})
	scanPass.SetPipeline(r.scanPipeline)
	scanPass.SetBindGroup(0, paramsBG, nil)
	scanPass.SetBindGroup(1, outputBG, nil)
	scanPass.SetBindGroup(2, histBG, nil)
	scanPass.Dispatch(1, 1, 1)
	scanPass.End()

	scatterPass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "radix_scatter_pass"})
	scatterPass.SetPipeline(r.scatterPipeline)
	scatterPass.SetBindGroup(0, paramsBG, nil)
	scatterPass.SetBindGroup(1, outputBG, nil)
	scatterPass.SetBindGroup(2, histBG, nil)
	scatterPass.Dispatch(uint32(numBlocks), 1, 1)
	scatterPass.End()

	return nil
}

// sort runs all four 8-bit passes, ping-ponging between a and b. It
// returns which of (a, b) holds the final sorted result; after 4 passes
// parity returns to the original buffer (spec.md §4.D).
func (r *radixSorter) sort(
	encoder hal.CommandEncoder,
	a, b sortPassBuffers,
	paramsUBOs [4]hal.Buffer,
	blockHistBuf, globalHistBuf hal.Buffer,
	paddedCount int,
) (sortPassBuffers, error) {
	numBlocks := paddedCount / SortBlockSize
	src, dst := a, b
	for pass := 0; pass < 4; pass++ {
		if err := r.encodePass(encoder, src, dst, paramsUBOs[pass], blockHistBuf, globalHistBuf, paddedCount, numBlocks); err != nil {
			return sortPassBuffers{}, fmt.Errorf("gpu: radix pass %d: %w", pass, err)
		}
		src, dst = dst, src
	}
	return src, nil
}

func (r *radixSorter) destroy() {
	for _, p := range []hal.ComputePipeline{r.zeroPipeline, r.histPipeline, r.scanPipeline, r.scatterPipeline} {
		if p != nil {
			r.device.DestroyComputePipeline(p)
		}
	}
	if r.pipeLayout != nil {
		r.device.DestroyPipelineLayout(r.pipeLayout)
	}
	for _, l := range []hal.BindGroupLayout{r.histLayout, r.outputLayout, r.paramsLayout} {
		if l != nil {
			r.device.DestroyBindGroupLayout(l)
		}
	}
	if r.shader != nil {
		r.device.DestroyShaderModule(r.shader)
	}
}
