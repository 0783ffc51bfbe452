// Package vk declares the subset of the Vulkan ABI the interposer reads or rewrites.
//
// Struct types are laid out like their C counterparts so that pointers received over
// the C ABI can be viewed in place, and so that copies made in Go can be handed back to
// the vendor driver unchanged.
package vk

import "fmt"

// Result is a VkResult.
type Result int32

const (
	Success                   Result = 0
	NotReady                  Result = 1
	Timeout                   Result = 2
	Incomplete                Result = 5
	ErrorOutOfHostMemory      Result = -1
	ErrorOutOfDeviceMemory    Result = -2
	ErrorInitializationFailed Result = -3
	ErrorDeviceLost           Result = -4
	ErrorLayerNotPresent      Result = -6
	ErrorExtensionNotPresent  Result = -7
	ErrorFeatureNotPresent    Result = -8
	ErrorIncompatibleDriver   Result = -9
	Suboptimal                Result = 1000001003
	ErrorOutOfDate            Result = -1000001004
	ErrorSurfaceLost          Result = -1000000000
)

// Succeeded reports whether r is a success code. Incomplete counts as success.
func (r Result) Succeeded() bool { return r >= 0 }

func (r Result) String() string {
	switch r {
	case Success:
		return "VK_SUCCESS"
	case NotReady:
		return "VK_NOT_READY"
	case Timeout:
		return "VK_TIMEOUT"
	case Incomplete:
		return "VK_INCOMPLETE"
	case ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY"
	case ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY"
	case ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED"
	case ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST"
	case ErrorLayerNotPresent:
		return "VK_ERROR_LAYER_NOT_PRESENT"
	case ErrorExtensionNotPresent:
		return "VK_ERROR_EXTENSION_NOT_PRESENT"
	case ErrorFeatureNotPresent:
		return "VK_ERROR_FEATURE_NOT_PRESENT"
	case ErrorIncompatibleDriver:
		return "VK_ERROR_INCOMPATIBLE_DRIVER"
	case Suboptimal:
		return "VK_SUBOPTIMAL_KHR"
	case ErrorOutOfDate:
		return "VK_ERROR_OUT_OF_DATE_KHR"
	case ErrorSurfaceLost:
		return "VK_ERROR_SURFACE_LOST_KHR"
	default:
		return fmt.Sprintf("VkResult(%d)", int32(r))
	}
}

// Error lets failing results travel as Go errors.
func (r Result) Error() string { return r.String() }
