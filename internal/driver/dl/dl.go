//go:build cgo && (linux || android || freebsd)

// Package dl binds vendor drivers through the platform dynamic loader.
package dl

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdint.h>
#include <stdlib.h>

typedef void (*xeno_void_fn)(void);
typedef int32_t (*xeno_create_fn)(void*, void*, void*);
typedef int32_t (*xeno_create_on_fn)(uintptr_t, void*, void*, void*);
typedef int32_t (*xeno_enum_fn)(uintptr_t, uint32_t*, void*);
typedef int32_t (*xeno_enum_ext_fn)(uintptr_t, const char*, uint32_t*, void*);
typedef void (*xeno_query_fn)(uintptr_t, void*);
typedef int32_t (*xeno_present_fn)(uintptr_t, void*);
typedef xeno_void_fn (*xeno_proc_fn)(uintptr_t, const char*);

static uintptr_t xeno_call_proc(void *fn, uintptr_t h, const char *name) {
	return (uintptr_t)((xeno_proc_fn)fn)(h, name);
}
static int32_t xeno_call_create(void *fn, void *info, void *alloc, void *out) {
	return ((xeno_create_fn)fn)(info, alloc, out);
}
static int32_t xeno_call_create_on(void *fn, uintptr_t h, void *info, void *alloc, void *out) {
	return ((xeno_create_on_fn)fn)(h, info, alloc, out);
}
static int32_t xeno_call_enum(void *fn, uintptr_t h, uint32_t *count, void *out) {
	return ((xeno_enum_fn)fn)(h, count, out);
}
static int32_t xeno_call_enum_ext(void *fn, uintptr_t h, const char *layer, uint32_t *count, void *out) {
	return ((xeno_enum_ext_fn)fn)(h, layer, count, out);
}
static void xeno_call_query(void *fn, uintptr_t h, void *out) {
	((xeno_query_fn)fn)(h, out);
}
static int32_t xeno_call_present(void *fn, uintptr_t h, void *info) {
	return ((xeno_present_fn)fn)(h, info);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/exynostools/xeno/internal/driver"
	"github.com/exynostools/xeno/internal/vk"
)

// Loader opens shared libraries with dlopen.
type Loader struct {
	// Flags are passed to dlopen. Zero means RTLD_NOW|RTLD_LOCAL.
	Flags int
}

// NewLoader returns a Loader with the default flags.
func NewLoader() *Loader { return &Loader{} }

func (l *Loader) Open(path string) (driver.Module, error) {
	flags := C.int(l.Flags)
	if flags == 0 {
		flags = C.RTLD_NOW | C.RTLD_LOCAL
	}

	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	h := C.dlopen(cpath, flags)
	if h == nil {
		return nil, fmt.Errorf("dlopen: %s", dlerror())
	}
	return &module{path: path, handle: h}, nil
}

func dlerror() string {
	if msg := C.dlerror(); msg != nil {
		return C.GoString(msg)
	}
	return "unknown error"
}

// module is never dlclosed; the driver stays mapped for the life of the process.
type module struct {
	path   string
	handle unsafe.Pointer
}

func (m *module) Path() string { return m.path }

func (m *module) Lookup(symbol string) (any, bool) {
	ep, ok := driver.Lookup(symbol)
	if !ok {
		return nil, false
	}

	csym := C.CString(symbol)
	defer C.free(unsafe.Pointer(csym))

	fn := C.dlsym(m.handle, csym)
	if fn == nil {
		return nil, false
	}
	return trampoline(ep, fn), true
}

// Addr returns the raw address of symbol, for callers that forward it unchanged.
func Addr(mod driver.Module, symbol string) (uintptr, error) {
	m, ok := mod.(*module)
	if !ok {
		return 0, errors.New("dl: not a dynamically loaded module")
	}
	csym := C.CString(symbol)
	defer C.free(unsafe.Pointer(csym))
	fn := C.dlsym(m.handle, csym)
	if fn == nil {
		return 0, fmt.Errorf("dlsym %s: %s", symbol, dlerror())
	}
	return uintptr(fn), nil
}

// trampoline wraps a C function pointer in the typed Go func for ep.
func trampoline(ep driver.EntryPoint, fn unsafe.Pointer) any {
	switch ep {
	case driver.GetInstanceProcAddr:
		return driver.GetInstanceProcAddrFunc(func(instance vk.Instance, name string) vk.VoidFunction {
			return procAddr(fn, uintptr(instance), name)
		})
	case driver.GetDeviceProcAddr:
		return driver.GetDeviceProcAddrFunc(func(device vk.Device, name string) vk.VoidFunction {
			return procAddr(fn, uintptr(device), name)
		})
	case driver.CreateInstance:
		return driver.CreateInstanceFunc(func(info *vk.InstanceCreateInfo, alloc *vk.AllocationCallbacks, out *vk.Instance) vk.Result {
			return vk.Result(C.xeno_call_create(fn, unsafe.Pointer(info), unsafe.Pointer(alloc), unsafe.Pointer(out)))
		})
	case driver.EnumeratePhysicalDevices:
		return driver.EnumeratePhysicalDevicesFunc(func(instance vk.Instance, count *uint32, devices []vk.PhysicalDevice) vk.Result {
			return vk.Result(C.xeno_call_enum(fn, C.uintptr_t(instance), (*C.uint32_t)(unsafe.Pointer(count)), first(devices)))
		})
	case driver.GetPhysicalDeviceProperties:
		return driver.GetPhysicalDevicePropertiesFunc(func(pd vk.PhysicalDevice, props *vk.PhysicalDeviceProperties) {
			C.xeno_call_query(fn, C.uintptr_t(pd), unsafe.Pointer(props))
		})
	case driver.GetPhysicalDeviceFeatures2:
		return driver.GetPhysicalDeviceFeatures2Func(func(pd vk.PhysicalDevice, features *vk.PhysicalDeviceFeatures2) {
			C.xeno_call_query(fn, C.uintptr_t(pd), unsafe.Pointer(features))
		})
	case driver.CreateDevice:
		return driver.CreateDeviceFunc(func(pd vk.PhysicalDevice, info *vk.DeviceCreateInfo, alloc *vk.AllocationCallbacks, out *vk.Device) vk.Result {
			return createOn(fn, uintptr(pd), unsafe.Pointer(info), alloc, unsafe.Pointer(out))
		})
	case driver.EnumerateDeviceExtensionProperties:
		return driver.EnumerateDeviceExtensionPropertiesFunc(func(pd vk.PhysicalDevice, layer string, count *uint32, props []vk.ExtensionProperties) vk.Result {
			var clayer *C.char
			if layer != "" {
				clayer = C.CString(layer)
				defer C.free(unsafe.Pointer(clayer))
			}
			return vk.Result(C.xeno_call_enum_ext(fn, C.uintptr_t(pd), clayer, (*C.uint32_t)(unsafe.Pointer(count)), first(props)))
		})
	case driver.CreateSwapchain:
		return driver.CreateSwapchainFunc(func(device vk.Device, info *vk.SwapchainCreateInfo, alloc *vk.AllocationCallbacks, out *vk.Swapchain) vk.Result {
			return createOn(fn, uintptr(device), unsafe.Pointer(info), alloc, unsafe.Pointer(out))
		})
	case driver.QueuePresent:
		return driver.QueuePresentFunc(func(queue vk.Queue, info *vk.PresentInfo) vk.Result {
			return vk.Result(C.xeno_call_present(fn, C.uintptr_t(queue), unsafe.Pointer(info)))
		})
	case driver.AllocateMemory:
		return driver.AllocateMemoryFunc(func(device vk.Device, info *vk.MemoryAllocateInfo, alloc *vk.AllocationCallbacks, out *vk.DeviceMemory) vk.Result {
			return createOn(fn, uintptr(device), unsafe.Pointer(info), alloc, unsafe.Pointer(out))
		})
	case driver.CreateBuffer:
		return driver.CreateBufferFunc(func(device vk.Device, info *vk.BufferCreateInfo, alloc *vk.AllocationCallbacks, out *vk.Buffer) vk.Result {
			return createOn(fn, uintptr(device), unsafe.Pointer(info), alloc, unsafe.Pointer(out))
		})
	case driver.CreateImage:
		return driver.CreateImageFunc(func(device vk.Device, info *vk.ImageCreateInfo, alloc *vk.AllocationCallbacks, out *vk.Image) vk.Result {
			return createOn(fn, uintptr(device), unsafe.Pointer(info), alloc, unsafe.Pointer(out))
		})
	default:
		return nil
	}
}

func procAddr(fn unsafe.Pointer, handle uintptr, name string) vk.VoidFunction {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return vk.VoidFunction(C.xeno_call_proc(fn, C.uintptr_t(handle), cname))
}

func createOn(fn unsafe.Pointer, handle uintptr, info unsafe.Pointer, alloc *vk.AllocationCallbacks, out unsafe.Pointer) vk.Result {
	return vk.Result(C.xeno_call_create_on(fn, C.uintptr_t(handle), info, unsafe.Pointer(alloc), out))
}

// first returns the address of the first element, or nil for an empty slice so the
// driver sees a count query.
func first[T any](s []T) unsafe.Pointer {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Pointer(&s[0])
}
