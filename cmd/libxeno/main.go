//go:build cgo

// Command libxeno builds the interposer as a shared library exporting the Vulkan ICD
// entry points:
//
//	go build -buildmode=c-shared -o libxeno.so ./cmd/libxeno
//
// Logs go to stderr; XENO_LOG_LEVEL selects the level (debug, info, warn, error).
package main

/*
#include <stddef.h>
#include <stdint.h>
#include <stdlib.h>

uintptr_t xeno_self_proc(const char *name);
*/
import "C"

import (
	"log/slog"
	"os"
	"unsafe"

	"github.com/exynostools/xeno"
	"github.com/exynostools/xeno/internal/config"
	"github.com/exynostools/xeno/internal/driver"
	"github.com/exynostools/xeno/internal/vk"
)

var wrapper *xeno.Wrapper

func init() {
	wrapper = xeno.New(
		xeno.WithLogger(newLogger()),
		xeno.WithProcOverrides(selfProcs()),
	)
}

func main() {}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if v := os.Getenv("XENO_LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			level = slog.LevelInfo
		}
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
		With("component", "xeno")
}

// selfProcs maps every intercepted entry point to this library's own export.
func selfProcs() map[string]vk.VoidFunction {
	procs := make(map[string]vk.VoidFunction)
	for _, ep := range driver.EntryPoints() {
		name := C.CString(ep.String())
		if addr := C.xeno_self_proc(name); addr != 0 {
			procs[ep.String()] = vk.VoidFunction(addr)
		}
		C.free(unsafe.Pointer(name))
	}
	return procs
}

func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}

// slice views n elements of C memory at p. A nil p stays nil so the callee sees a
// count query.
func slice[T any](p unsafe.Pointer, count *C.uint32_t) []T {
	if p == nil || count == nil {
		return nil
	}
	return unsafe.Slice((*T)(p), int(*count))
}

//export vkGetInstanceProcAddr
func vkGetInstanceProcAddr(instance C.uintptr_t, name *C.char) C.uintptr_t {
	return C.uintptr_t(wrapper.GetInstanceProcAddr(vk.Instance(instance), goString(name)))
}

//export vkGetDeviceProcAddr
func vkGetDeviceProcAddr(device C.uintptr_t, name *C.char) C.uintptr_t {
	return C.uintptr_t(wrapper.GetDeviceProcAddr(vk.Device(device), goString(name)))
}

//export vkCreateInstance
func vkCreateInstance(info, alloc, out unsafe.Pointer) C.int32_t {
	return C.int32_t(wrapper.CreateInstance(
		(*vk.InstanceCreateInfo)(info), (*vk.AllocationCallbacks)(alloc), (*vk.Instance)(out)))
}

//export vkEnumeratePhysicalDevices
func vkEnumeratePhysicalDevices(instance C.uintptr_t, count *C.uint32_t, devices unsafe.Pointer) C.int32_t {
	return C.int32_t(wrapper.EnumeratePhysicalDevices(
		vk.Instance(instance), (*uint32)(unsafe.Pointer(count)), slice[vk.PhysicalDevice](devices, count)))
}

//export vkGetPhysicalDeviceProperties
func vkGetPhysicalDeviceProperties(pd C.uintptr_t, props unsafe.Pointer) {
	wrapper.GetPhysicalDeviceProperties(vk.PhysicalDevice(pd), (*vk.PhysicalDeviceProperties)(props))
}

//export vkGetPhysicalDeviceFeatures2
func vkGetPhysicalDeviceFeatures2(pd C.uintptr_t, features unsafe.Pointer) {
	if features == nil {
		return
	}
	wrapper.GetPhysicalDeviceFeatures2(vk.PhysicalDevice(pd), (*vk.PhysicalDeviceFeatures2)(features))
}

//export vkCreateDevice
func vkCreateDevice(pd C.uintptr_t, info, alloc, out unsafe.Pointer) C.int32_t {
	return C.int32_t(wrapper.CreateDevice(vk.PhysicalDevice(pd),
		(*vk.DeviceCreateInfo)(info), (*vk.AllocationCallbacks)(alloc), (*vk.Device)(out)))
}

//export vkEnumerateDeviceExtensionProperties
func vkEnumerateDeviceExtensionProperties(pd C.uintptr_t, layer *C.char, count *C.uint32_t, props unsafe.Pointer) C.int32_t {
	return C.int32_t(wrapper.EnumerateDeviceExtensionProperties(vk.PhysicalDevice(pd), goString(layer),
		(*uint32)(unsafe.Pointer(count)), slice[vk.ExtensionProperties](props, count)))
}

//export vkCreateSwapchainKHR
func vkCreateSwapchainKHR(device C.uintptr_t, info, alloc, out unsafe.Pointer) C.int32_t {
	return C.int32_t(wrapper.CreateSwapchain(vk.Device(device),
		(*vk.SwapchainCreateInfo)(info), (*vk.AllocationCallbacks)(alloc), (*vk.Swapchain)(out)))
}

//export vkQueuePresentKHR
func vkQueuePresentKHR(queue C.uintptr_t, info unsafe.Pointer) C.int32_t {
	return C.int32_t(wrapper.QueuePresent(vk.Queue(queue), (*vk.PresentInfo)(info)))
}

//export vkAllocateMemory
func vkAllocateMemory(device C.uintptr_t, info, alloc, out unsafe.Pointer) C.int32_t {
	return C.int32_t(wrapper.AllocateMemory(vk.Device(device),
		(*vk.MemoryAllocateInfo)(info), (*vk.AllocationCallbacks)(alloc), (*vk.DeviceMemory)(out)))
}

//export vkCreateBuffer
func vkCreateBuffer(device C.uintptr_t, info, alloc, out unsafe.Pointer) C.int32_t {
	return C.int32_t(wrapper.CreateBuffer(vk.Device(device),
		(*vk.BufferCreateInfo)(info), (*vk.AllocationCallbacks)(alloc), (*vk.Buffer)(out)))
}

//export vkCreateImage
func vkCreateImage(device C.uintptr_t, info, alloc, out unsafe.Pointer) C.int32_t {
	return C.int32_t(wrapper.CreateImage(vk.Device(device),
		(*vk.ImageCreateInfo)(info), (*vk.AllocationCallbacks)(alloc), (*vk.Image)(out)))
}

//export xclipse_set_performance_mode
func xclipse_set_performance_mode(mode C.int) {
	// Rejected modes are logged by the wrapper.
	_ = wrapper.SetPerformanceMode(config.PerformanceMode(mode))
}

//export xclipse_enable_bc4_emulation
func xclipse_enable_bc4_emulation(enable C.int) {
	wrapper.EnableEmulation(enable != 0)
}

//export xclipse_get_avg_fps
func xclipse_get_avg_fps() C.float {
	return C.float(wrapper.AverageFPS())
}

// real_shader_cache_get returns 1 and a malloc'd copy of the cached blob on a hit.
// The caller frees *outBlob.
//
//export real_shader_cache_get
func real_shader_cache_get(spirv unsafe.Pointer, spirvLen C.size_t, outBlob *unsafe.Pointer, outLen *C.size_t) C.int {
	if spirv == nil || !validLen(uint64(spirvLen)) || outBlob == nil || outLen == nil {
		return 0
	}
	blob, ok := wrapper.ShaderCacheGet(C.GoBytes(spirv, C.int(spirvLen)))
	if !ok || len(blob) == 0 {
		return 0
	}

	buf := C.malloc(C.size_t(len(blob)))
	if buf == nil {
		return 0
	}
	copy(unsafe.Slice((*byte)(buf), len(blob)), blob)
	*outBlob = buf
	*outLen = C.size_t(len(blob))
	return 1
}

//export real_shader_cache_put
func real_shader_cache_put(spirv unsafe.Pointer, spirvLen C.size_t, blob unsafe.Pointer, blobLen C.size_t) {
	if spirv == nil || blob == nil || !validLen(uint64(spirvLen)) || !validLen(uint64(blobLen)) {
		return
	}
	wrapper.ShaderCachePut(C.GoBytes(spirv, C.int(spirvLen)), C.GoBytes(blob, C.int(blobLen)))
}
