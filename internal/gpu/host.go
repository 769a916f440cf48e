//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import the Vulkan backend so it registers via init(), mirroring
	// the teacher's sdf_gpu.go.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Host owns the single GPU device/queue pair the pipeline stages share.
// It replaces module-global device state: construct with NewHost and
// destroy explicitly with Close. No singletons. The per-frame buffers and
// textures are owned and sized by Pipeline, not by Host.
type Host struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
}

// NewHost opens a GPU adapter (preferring discrete, then integrated, then
// whatever is first) and returns a Host ready to build pipeline stages.
func NewHost() (*Host, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("splat: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("splat: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("splat: no GPU adapters found")
	}

	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	opened, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("splat: open device: %w", err)
	}

	logger().Info("gpu host initialized", "adapter", selected.Info.Name)

	return &Host{
		instance: instance,
		device:   opened.Device,
		queue:    opened.Queue,
	}, nil
}

// Device returns the shared hal.Device.
func (h *Host) Device() hal.Device { return h.device }

// Queue returns the shared hal.Queue.
func (h *Host) Queue() hal.Queue { return h.queue }

// Close releases the device and instance. The Host must not be used
// afterward.
func (h *Host) Close() {
	if h.device != nil {
		h.device.Destroy()
		h.device = nil
	}
	if h.instance != nil {
		h.instance.Destroy()
		h.instance = nil
	}
	logger().Info("gpu host closed")
}
