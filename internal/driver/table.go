package driver

import (
	"reflect"

	"github.com/exynostools/xeno/internal/vk"
)

// EntryPoint names one of the driver functions the interposer binds.
type EntryPoint int

const (
	GetInstanceProcAddr EntryPoint = iota
	GetDeviceProcAddr
	CreateInstance
	EnumeratePhysicalDevices
	GetPhysicalDeviceProperties
	GetPhysicalDeviceFeatures2
	CreateDevice
	EnumerateDeviceExtensionProperties
	CreateSwapchain
	QueuePresent
	AllocateMemory
	CreateBuffer
	CreateImage

	numEntryPoints
)

var symbols = [numEntryPoints]string{
	GetInstanceProcAddr:                "vkGetInstanceProcAddr",
	GetDeviceProcAddr:                  "vkGetDeviceProcAddr",
	CreateInstance:                     "vkCreateInstance",
	EnumeratePhysicalDevices:           "vkEnumeratePhysicalDevices",
	GetPhysicalDeviceProperties:        "vkGetPhysicalDeviceProperties",
	GetPhysicalDeviceFeatures2:         "vkGetPhysicalDeviceFeatures2",
	CreateDevice:                       "vkCreateDevice",
	EnumerateDeviceExtensionProperties: "vkEnumerateDeviceExtensionProperties",
	CreateSwapchain:                    "vkCreateSwapchainKHR",
	QueuePresent:                       "vkQueuePresentKHR",
	AllocateMemory:                     "vkAllocateMemory",
	CreateBuffer:                       "vkCreateBuffer",
	CreateImage:                        "vkCreateImage",
}

// String returns the exported C symbol name.
func (e EntryPoint) String() string {
	if e < 0 || e >= numEntryPoints {
		return "unknown"
	}
	return symbols[e]
}

// EntryPoints lists every bound entry point in resolution order.
func EntryPoints() []EntryPoint {
	out := make([]EntryPoint, numEntryPoints)
	for i := range out {
		out[i] = EntryPoint(i)
	}
	return out
}

// Lookup maps a C symbol name back to its entry point.
func Lookup(symbol string) (EntryPoint, bool) {
	for i, s := range symbols {
		if s == symbol {
			return EntryPoint(i), true
		}
	}
	return 0, false
}

// Typed forms of the bound entry points.
type (
	GetInstanceProcAddrFunc                func(instance vk.Instance, name string) vk.VoidFunction
	GetDeviceProcAddrFunc                  func(device vk.Device, name string) vk.VoidFunction
	CreateInstanceFunc                     func(info *vk.InstanceCreateInfo, alloc *vk.AllocationCallbacks, out *vk.Instance) vk.Result
	EnumeratePhysicalDevicesFunc           func(instance vk.Instance, count *uint32, devices []vk.PhysicalDevice) vk.Result
	GetPhysicalDevicePropertiesFunc        func(pd vk.PhysicalDevice, props *vk.PhysicalDeviceProperties)
	GetPhysicalDeviceFeatures2Func         func(pd vk.PhysicalDevice, features *vk.PhysicalDeviceFeatures2)
	CreateDeviceFunc                       func(pd vk.PhysicalDevice, info *vk.DeviceCreateInfo, alloc *vk.AllocationCallbacks, out *vk.Device) vk.Result
	EnumerateDeviceExtensionPropertiesFunc func(pd vk.PhysicalDevice, layer string, count *uint32, props []vk.ExtensionProperties) vk.Result
	CreateSwapchainFunc                    func(device vk.Device, info *vk.SwapchainCreateInfo, alloc *vk.AllocationCallbacks, out *vk.Swapchain) vk.Result
	QueuePresentFunc                       func(queue vk.Queue, info *vk.PresentInfo) vk.Result
	AllocateMemoryFunc                     func(device vk.Device, info *vk.MemoryAllocateInfo, alloc *vk.AllocationCallbacks, out *vk.DeviceMemory) vk.Result
	CreateBufferFunc                       func(device vk.Device, info *vk.BufferCreateInfo, alloc *vk.AllocationCallbacks, out *vk.Buffer) vk.Result
	CreateImageFunc                        func(device vk.Device, info *vk.ImageCreateInfo, alloc *vk.AllocationCallbacks, out *vk.Image) vk.Result
)

// Table holds the resolved driver functions. A nil field is an entry point the
// driver does not provide. It is written once by Resolve and only read afterwards.
type Table struct {
	GetInstanceProcAddr                GetInstanceProcAddrFunc
	GetDeviceProcAddr                  GetDeviceProcAddrFunc
	CreateInstance                     CreateInstanceFunc
	EnumeratePhysicalDevices           EnumeratePhysicalDevicesFunc
	GetPhysicalDeviceProperties        GetPhysicalDevicePropertiesFunc
	GetPhysicalDeviceFeatures2         GetPhysicalDeviceFeatures2Func
	CreateDevice                       CreateDeviceFunc
	EnumerateDeviceExtensionProperties EnumerateDeviceExtensionPropertiesFunc
	CreateSwapchain                    CreateSwapchainFunc
	QueuePresent                       QueuePresentFunc
	AllocateMemory                     AllocateMemoryFunc
	CreateBuffer                       CreateBufferFunc
	CreateImage                        CreateImageFunc
}

// Resolve looks up every entry point on mod and returns the ones that could not be
// bound, either because the symbol is missing or because it has the wrong type.
func (t *Table) Resolve(mod Module) (missing []EntryPoint) {
	for _, ep := range EntryPoints() {
		fn, ok := mod.Lookup(ep.String())
		if !ok || !t.set(ep, fn) {
			missing = append(missing, ep)
		}
	}
	return missing
}

// Has reports whether ep was resolved.
func (t *Table) Has(ep EntryPoint) bool {
	switch ep {
	case GetInstanceProcAddr:
		return t.GetInstanceProcAddr != nil
	case GetDeviceProcAddr:
		return t.GetDeviceProcAddr != nil
	case CreateInstance:
		return t.CreateInstance != nil
	case EnumeratePhysicalDevices:
		return t.EnumeratePhysicalDevices != nil
	case GetPhysicalDeviceProperties:
		return t.GetPhysicalDeviceProperties != nil
	case GetPhysicalDeviceFeatures2:
		return t.GetPhysicalDeviceFeatures2 != nil
	case CreateDevice:
		return t.CreateDevice != nil
	case EnumerateDeviceExtensionProperties:
		return t.EnumerateDeviceExtensionProperties != nil
	case CreateSwapchain:
		return t.CreateSwapchain != nil
	case QueuePresent:
		return t.QueuePresent != nil
	case AllocateMemory:
		return t.AllocateMemory != nil
	case CreateBuffer:
		return t.CreateBuffer != nil
	case CreateImage:
		return t.CreateImage != nil
	default:
		return false
	}
}

func (t *Table) set(ep EntryPoint, fn any) bool {
	var ok bool
	switch ep {
	case GetInstanceProcAddr:
		t.GetInstanceProcAddr, ok = typed[GetInstanceProcAddrFunc](fn)
	case GetDeviceProcAddr:
		t.GetDeviceProcAddr, ok = typed[GetDeviceProcAddrFunc](fn)
	case CreateInstance:
		t.CreateInstance, ok = typed[CreateInstanceFunc](fn)
	case EnumeratePhysicalDevices:
		t.EnumeratePhysicalDevices, ok = typed[EnumeratePhysicalDevicesFunc](fn)
	case GetPhysicalDeviceProperties:
		t.GetPhysicalDeviceProperties, ok = typed[GetPhysicalDevicePropertiesFunc](fn)
	case GetPhysicalDeviceFeatures2:
		t.GetPhysicalDeviceFeatures2, ok = typed[GetPhysicalDeviceFeatures2Func](fn)
	case CreateDevice:
		t.CreateDevice, ok = typed[CreateDeviceFunc](fn)
	case EnumerateDeviceExtensionProperties:
		t.EnumerateDeviceExtensionProperties, ok = typed[EnumerateDeviceExtensionPropertiesFunc](fn)
	case CreateSwapchain:
		t.CreateSwapchain, ok = typed[CreateSwapchainFunc](fn)
	case QueuePresent:
		t.QueuePresent, ok = typed[QueuePresentFunc](fn)
	case AllocateMemory:
		t.AllocateMemory, ok = typed[AllocateMemoryFunc](fn)
	case CreateBuffer:
		t.CreateBuffer, ok = typed[CreateBufferFunc](fn)
	case CreateImage:
		t.CreateImage, ok = typed[CreateImageFunc](fn)
	}
	return ok
}

// typed accepts either the named func type or a plain func literal with the same
// signature. Nil funcs count as unresolved.
func typed[F any](fn any) (F, bool) {
	var zero F
	rv := reflect.ValueOf(fn)
	if !rv.IsValid() || rv.Kind() != reflect.Func || rv.IsNil() {
		return zero, false
	}
	ft := reflect.TypeFor[F]()
	if !rv.Type().ConvertibleTo(ft) {
		return zero, false
	}
	return rv.Convert(ft).Interface().(F), true
}
