package xeno

import (
	"context"

	"github.com/exynostools/xeno/internal/config"
	"github.com/exynostools/xeno/internal/driver"
	"github.com/exynostools/xeno/internal/frames"
	"github.com/exynostools/xeno/internal/vk"
)

// GetInstanceProcAddr returns the interposer's own address for intercepted names,
// otherwise the driver's answer. Zero means unknown.
func (w *Wrapper) GetInstanceProcAddr(instance vk.Instance, name string) vk.VoidFunction {
	w.ensureLoaded()
	if addr, ok := w.opts.procs[name]; ok && addr != 0 {
		return addr
	}
	if w.table.GetInstanceProcAddr == nil {
		return 0
	}
	return w.table.GetInstanceProcAddr(instance, name)
}

// GetDeviceProcAddr is GetInstanceProcAddr for device-level names.
func (w *Wrapper) GetDeviceProcAddr(device vk.Device, name string) vk.VoidFunction {
	w.ensureLoaded()
	if addr, ok := w.opts.procs[name]; ok && addr != 0 {
		return addr
	}
	if w.table.GetDeviceProcAddr == nil {
		return 0
	}
	return w.table.GetDeviceProcAddr(device, name)
}

func (w *Wrapper) CreateInstance(info *vk.InstanceCreateInfo, alloc *vk.AllocationCallbacks, out *vk.Instance) vk.Result {
	w.ensureLoaded()
	if w.table.CreateInstance == nil {
		return w.unavailable(driver.CreateInstance)
	}
	return w.result(driver.CreateInstance, w.table.CreateInstance(info, alloc, out))
}

func (w *Wrapper) EnumeratePhysicalDevices(instance vk.Instance, count *uint32, devices []vk.PhysicalDevice) vk.Result {
	w.ensureLoaded()
	if w.table.EnumeratePhysicalDevices == nil {
		return w.unavailable(driver.EnumeratePhysicalDevices)
	}
	return w.result(driver.EnumeratePhysicalDevices, w.table.EnumeratePhysicalDevices(instance, count, devices))
}

// GetPhysicalDeviceProperties leaves props untouched when the driver lacks it.
func (w *Wrapper) GetPhysicalDeviceProperties(pd vk.PhysicalDevice, props *vk.PhysicalDeviceProperties) {
	w.ensureLoaded()
	if w.table.GetPhysicalDeviceProperties != nil {
		w.table.GetPhysicalDeviceProperties(pd, props)
	}
}

// GetPhysicalDeviceFeatures2 forwards the query and applies the feature overrides.
// Without a driver the base features are zeroed before the overrides apply.
func (w *Wrapper) GetPhysicalDeviceFeatures2(pd vk.PhysicalDevice, features *vk.PhysicalDeviceFeatures2) {
	w.ensureLoaded()
	w.augmenter.QueryFeatures(w.table.GetPhysicalDeviceFeatures2, pd, features, w.settings.EmulationEnabled())
}

func (w *Wrapper) CreateDevice(pd vk.PhysicalDevice, info *vk.DeviceCreateInfo, alloc *vk.AllocationCallbacks, out *vk.Device) vk.Result {
	w.ensureLoaded()
	if w.table.CreateDevice == nil {
		return w.unavailable(driver.CreateDevice)
	}
	return w.result(driver.CreateDevice, w.table.CreateDevice(pd, info, alloc, out))
}

// EnumerateDeviceExtensionProperties appends the synthetic extensions to the
// driver's list.
func (w *Wrapper) EnumerateDeviceExtensionProperties(pd vk.PhysicalDevice, layer string, count *uint32, props []vk.ExtensionProperties) vk.Result {
	w.ensureLoaded()
	return w.result(driver.EnumerateDeviceExtensionProperties,
		w.augmenter.EnumerateExtensions(w.table.EnumerateDeviceExtensionProperties, pd, layer, count, props))
}

// CreateSwapchain forwards a tuned copy of info. On the specialized hardware swapchain
// images also allow transfer reads, and in HIGH mode presentation does not wait
// for vblank. The caller's info is never modified.
func (w *Wrapper) CreateSwapchain(device vk.Device, info *vk.SwapchainCreateInfo, alloc *vk.AllocationCallbacks, out *vk.Swapchain) vk.Result {
	w.ensureLoaded()
	if w.table.CreateSwapchain == nil || info == nil {
		return w.unavailable(driver.CreateSwapchain)
	}

	tuned := *info
	if w.specialized {
		tuned.ImageUsage |= vk.ImageUsageTransferSrc
		if w.settings.PerformanceMode() == config.PerformanceHigh {
			tuned.PresentMode = vk.PresentModeImmediate
		}
	}
	w.log.Debug("creating swapchain",
		"usage", uint32(tuned.ImageUsage), "present_mode", int32(tuned.PresentMode), "specialized", w.specialized)

	return w.result(driver.CreateSwapchain, w.table.CreateSwapchain(device, &tuned, alloc, out))
}

// QueuePresent counts the frame and forwards the present unchanged.
func (w *Wrapper) QueuePresent(queue vk.Queue, info *vk.PresentInfo) vk.Result {
	w.ensureLoaded()

	ctx := context.Background()
	w.metrics.Frame(ctx)
	if tick, ok := w.frames.Present(frames.Labels{
		Mode:      w.settings.PerformanceMode().String(),
		Emulation: w.settings.EmulationEnabled(),
	}); ok {
		w.metrics.FrameRate(tick.FPS, tick.Average)
	}

	if w.table.QueuePresent == nil {
		return w.unavailable(driver.QueuePresent)
	}
	return w.result(driver.QueuePresent, w.table.QueuePresent(queue, info))
}

func (w *Wrapper) AllocateMemory(device vk.Device, info *vk.MemoryAllocateInfo, alloc *vk.AllocationCallbacks, out *vk.DeviceMemory) vk.Result {
	w.ensureLoaded()
	if w.table.AllocateMemory == nil {
		return w.unavailable(driver.AllocateMemory)
	}
	return w.result(driver.AllocateMemory, w.table.AllocateMemory(device, info, alloc, out))
}

func (w *Wrapper) CreateBuffer(device vk.Device, info *vk.BufferCreateInfo, alloc *vk.AllocationCallbacks, out *vk.Buffer) vk.Result {
	w.ensureLoaded()
	if w.table.CreateBuffer == nil {
		return w.unavailable(driver.CreateBuffer)
	}
	return w.result(driver.CreateBuffer, w.table.CreateBuffer(device, info, alloc, out))
}

func (w *Wrapper) CreateImage(device vk.Device, info *vk.ImageCreateInfo, alloc *vk.AllocationCallbacks, out *vk.Image) vk.Result {
	w.ensureLoaded()
	if w.table.CreateImage == nil {
		return w.unavailable(driver.CreateImage)
	}
	return w.result(driver.CreateImage, w.table.CreateImage(device, info, alloc, out))
}
