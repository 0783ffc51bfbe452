package vk

import (
	"bytes"
	"unsafe"
)

// Dispatchable handles are pointers on the C side; non-dispatchable ones are 64-bit.
type (
	Instance       uintptr
	PhysicalDevice uintptr
	Device         uintptr
	Queue          uintptr

	Swapchain    uint64
	Surface      uint64
	DeviceMemory uint64
	Buffer       uint64
	Image        uint64
)

// VoidFunction is the address returned by the proc-address queries. Zero means absent.
type VoidFunction uintptr

// Bool32 is a VkBool32.
type Bool32 uint32

const (
	False Bool32 = 0
	True  Bool32 = 1
)

// StructureType is a VkStructureType tag.
type StructureType int32

const (
	StructureTypeInstanceCreateInfo                StructureType = 1
	StructureTypeDeviceCreateInfo                  StructureType = 3
	StructureTypeMemoryAllocateInfo                StructureType = 5
	StructureTypeBufferCreateInfo                  StructureType = 12
	StructureTypeImageCreateInfo                   StructureType = 14
	StructureTypeSwapchainCreateInfo               StructureType = 1000001000
	StructureTypePresentInfo                       StructureType = 1000001001
	StructureTypePhysicalDeviceFeatures2           StructureType = 1000059000
	StructureTypePhysicalDeviceShaderFloat16Int8   StructureType = 1000082000
	StructureTypePhysicalDeviceDescriptorIndexing  StructureType = 1000161001
	StructureTypePhysicalDeviceRobustness2Features StructureType = 1000286000
)

// ImageUsageFlags is a VkImageUsageFlags bitmask.
type ImageUsageFlags uint32

const (
	ImageUsageTransferSrc     ImageUsageFlags = 0x00000001
	ImageUsageTransferDst     ImageUsageFlags = 0x00000002
	ImageUsageSampled         ImageUsageFlags = 0x00000004
	ImageUsageStorage         ImageUsageFlags = 0x00000008
	ImageUsageColorAttachment ImageUsageFlags = 0x00000010
)

// PresentMode is a VkPresentModeKHR.
type PresentMode int32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

const (
	MaxExtensionNameSize      = 256
	MaxPhysicalDeviceNameSize = 256
	UUIDSize                  = 16
)

// ExtensionProperties is a VkExtensionProperties.
type ExtensionProperties struct {
	ExtensionName [MaxExtensionNameSize]byte
	SpecVersion   uint32
}

// NewExtensionProperties builds an entry, truncating name to fit with a terminator.
func NewExtensionProperties(name string, specVersion uint32) ExtensionProperties {
	var p ExtensionProperties
	copy(p.ExtensionName[:MaxExtensionNameSize-1], name)
	p.SpecVersion = specVersion
	return p
}

// Name returns the extension name up to the first NUL.
func (p *ExtensionProperties) Name() string {
	return cString(p.ExtensionName[:])
}

// BaseOutStructure is the common header of every extensible structure.
type BaseOutStructure struct {
	SType StructureType
	PNext unsafe.Pointer
}

// AllocationCallbacks is only ever forwarded, never inspected.
type AllocationCallbacks struct {
	UserData unsafe.Pointer
	_        [5]uintptr
}

// The create infos below are forwarded by pointer; only their headers are read.
type (
	InstanceCreateInfo BaseOutStructure
	DeviceCreateInfo   BaseOutStructure
	MemoryAllocateInfo BaseOutStructure
	BufferCreateInfo   BaseOutStructure
	ImageCreateInfo    BaseOutStructure
)

// Extent2D is a VkExtent2D.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// SwapchainCreateInfo is a VkSwapchainCreateInfoKHR.
type SwapchainCreateInfo struct {
	SType                 StructureType
	PNext                 unsafe.Pointer
	Flags                 uint32
	Surface               Surface
	MinImageCount         uint32
	ImageFormat           int32
	ImageColorSpace       int32
	ImageExtent           Extent2D
	ImageArrayLayers      uint32
	ImageUsage            ImageUsageFlags
	ImageSharingMode      int32
	QueueFamilyIndexCount uint32
	QueueFamilyIndices    unsafe.Pointer
	PreTransform          uint32
	CompositeAlpha        uint32
	PresentMode           PresentMode
	Clipped               Bool32
	OldSwapchain          Swapchain
}

// PresentInfo is a VkPresentInfoKHR.
type PresentInfo struct {
	SType              StructureType
	PNext              unsafe.Pointer
	WaitSemaphoreCount uint32
	WaitSemaphores     unsafe.Pointer
	SwapchainCount     uint32
	Swapchains         unsafe.Pointer
	ImageIndices       unsafe.Pointer
	Results            unsafe.Pointer
}

// PhysicalDeviceProperties holds the leading fields of VkPhysicalDeviceProperties.
// The tail is reserved storage large enough for the limits and sparse properties the
// driver writes behind them.
type PhysicalDeviceProperties struct {
	APIVersion        uint32
	DriverVersion     uint32
	VendorID          uint32
	DeviceID          uint32
	DeviceType        int32
	DeviceName        [MaxPhysicalDeviceNameSize]byte
	PipelineCacheUUID [UUIDSize]byte
	_                 [732]byte
}

// Name returns the device name up to the first NUL.
func (p *PhysicalDeviceProperties) Name() string {
	return cString(p.DeviceName[:])
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
