// Package drivertest provides an in-process fake vendor driver.
package drivertest

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/exynostools/xeno/internal/driver"
	"github.com/exynostools/xeno/internal/vk"
)

var ErrNotLoadable = errors.New("drivertest: not loadable")

// Loader serves registered modules by path and fails every other path.
type Loader struct {
	mu      sync.Mutex
	modules map[string]driver.Module
	opens   atomic.Int64
	tried   []string
}

// NewLoader returns a loader that knows no paths.
func NewLoader() *Loader {
	return &Loader{modules: make(map[string]driver.Module)}
}

// Register makes path loadable.
func (l *Loader) Register(mod driver.Module) *Loader {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modules[mod.Path()] = mod
	return l
}

func (l *Loader) Open(path string) (driver.Module, error) {
	l.opens.Add(1)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tried = append(l.tried, path)
	if mod, ok := l.modules[path]; ok {
		return mod, nil
	}
	return nil, ErrNotLoadable
}

// Opens counts Open calls.
func (l *Loader) Opens() int64 { return l.opens.Load() }

// Tried returns the paths passed to Open, in order.
func (l *Loader) Tried() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.tried...)
}

// Module is a fake library exporting a fixed symbol set.
type Module struct {
	path    string
	symbols map[string]any
}

// NewModule returns a module exporting symbols.
func NewModule(path string, symbols map[string]any) *Module {
	return &Module{path: path, symbols: symbols}
}

func (m *Module) Path() string { return m.path }

func (m *Module) Lookup(symbol string) (any, bool) {
	fn, ok := m.symbols[symbol]
	return fn, ok
}

// Driver is a scriptable vendor driver. Its zero value reports no extensions and no
// features.
type Driver struct {
	// Extensions is the authoritative extension list.
	Extensions []string
	// Features is applied to every features2 query.
	Features func(*vk.PhysicalDeviceFeatures2)
	// EnumerateResult, when set, replaces the result of extension enumeration.
	EnumerateResult vk.Result
	// ProcAddrs answers proc-address queries.
	ProcAddrs map[string]vk.VoidFunction

	mu            sync.Mutex
	calls         map[driver.EntryPoint]int
	lastSwapchain *vk.SwapchainCreateInfo
	lastInfo      *vk.SwapchainCreateInfo
}

func (d *Driver) record(ep driver.EntryPoint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.calls == nil {
		d.calls = make(map[driver.EntryPoint]int)
	}
	d.calls[ep]++
}

// Calls returns how often ep reached the driver.
func (d *Driver) Calls(ep driver.EntryPoint) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[ep]
}

// LastSwapchain returns a copy of the most recent swapchain create info and the
// pointer the driver received.
func (d *Driver) LastSwapchain() (vk.SwapchainCreateInfo, *vk.SwapchainCreateInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastSwapchain == nil {
		return vk.SwapchainCreateInfo{}, nil
	}
	return *d.lastSwapchain, d.lastInfo
}

// Module exports every entry point of d except omit.
func (d *Driver) Module(path string, omit ...driver.EntryPoint) *Module {
	all := map[driver.EntryPoint]any{
		driver.GetInstanceProcAddr:                driver.GetInstanceProcAddrFunc(d.getInstanceProcAddr),
		driver.GetDeviceProcAddr:                  driver.GetDeviceProcAddrFunc(d.getDeviceProcAddr),
		driver.CreateInstance:                     driver.CreateInstanceFunc(d.createInstance),
		driver.EnumeratePhysicalDevices:           driver.EnumeratePhysicalDevicesFunc(d.enumeratePhysicalDevices),
		driver.GetPhysicalDeviceProperties:        driver.GetPhysicalDevicePropertiesFunc(d.getPhysicalDeviceProperties),
		driver.GetPhysicalDeviceFeatures2:         driver.GetPhysicalDeviceFeatures2Func(d.getPhysicalDeviceFeatures2),
		driver.CreateDevice:                       driver.CreateDeviceFunc(d.createDevice),
		driver.EnumerateDeviceExtensionProperties: driver.EnumerateDeviceExtensionPropertiesFunc(d.enumerateDeviceExtensionProperties),
		driver.CreateSwapchain:                    driver.CreateSwapchainFunc(d.createSwapchain),
		driver.QueuePresent:                       driver.QueuePresentFunc(d.queuePresent),
		driver.AllocateMemory:                     driver.AllocateMemoryFunc(d.allocateMemory),
		driver.CreateBuffer:                       driver.CreateBufferFunc(d.createBuffer),
		driver.CreateImage:                        driver.CreateImageFunc(d.createImage),
	}
	for _, ep := range omit {
		delete(all, ep)
	}

	symbols := make(map[string]any, len(all))
	for ep, fn := range all {
		symbols[ep.String()] = fn
	}
	return NewModule(path, symbols)
}

// Fake handle values returned by the create calls.
const (
	FakeInstance       vk.Instance       = 0x1000
	FakePhysicalDevice vk.PhysicalDevice = 0x2000
	FakeDevice         vk.Device         = 0x3000
	FakeSwapchain      vk.Swapchain      = 0x4000
	FakeMemory         vk.DeviceMemory   = 0x5000
	FakeBuffer         vk.Buffer         = 0x6000
	FakeImage          vk.Image          = 0x7000
)

func (d *Driver) getInstanceProcAddr(_ vk.Instance, name string) vk.VoidFunction {
	d.record(driver.GetInstanceProcAddr)
	return d.ProcAddrs[name]
}

func (d *Driver) getDeviceProcAddr(_ vk.Device, name string) vk.VoidFunction {
	d.record(driver.GetDeviceProcAddr)
	return d.ProcAddrs[name]
}

func (d *Driver) createInstance(_ *vk.InstanceCreateInfo, _ *vk.AllocationCallbacks, out *vk.Instance) vk.Result {
	d.record(driver.CreateInstance)
	*out = FakeInstance
	return vk.Success
}

func (d *Driver) enumeratePhysicalDevices(_ vk.Instance, count *uint32, devices []vk.PhysicalDevice) vk.Result {
	d.record(driver.EnumeratePhysicalDevices)
	if devices == nil {
		*count = 1
		return vk.Success
	}
	if *count < 1 {
		return vk.Incomplete
	}
	devices[0] = FakePhysicalDevice
	*count = 1
	return vk.Success
}

func (d *Driver) getPhysicalDeviceProperties(_ vk.PhysicalDevice, props *vk.PhysicalDeviceProperties) {
	d.record(driver.GetPhysicalDeviceProperties)
	props.VendorID = 0x144d
	copy(props.DeviceName[:], "Samsung Xclipse 940")
}

func (d *Driver) getPhysicalDeviceFeatures2(_ vk.PhysicalDevice, f *vk.PhysicalDeviceFeatures2) {
	d.record(driver.GetPhysicalDeviceFeatures2)
	f.Features = vk.PhysicalDeviceFeatures{}
	if d.Features != nil {
		d.Features(f)
	}
}

func (d *Driver) createDevice(_ vk.PhysicalDevice, _ *vk.DeviceCreateInfo, _ *vk.AllocationCallbacks, out *vk.Device) vk.Result {
	d.record(driver.CreateDevice)
	*out = FakeDevice
	return vk.Success
}

// enumerateDeviceExtensionProperties follows the Vulkan two-call idiom.
func (d *Driver) enumerateDeviceExtensionProperties(_ vk.PhysicalDevice, _ string, count *uint32, props []vk.ExtensionProperties) vk.Result {
	d.record(driver.EnumerateDeviceExtensionProperties)
	if d.EnumerateResult != vk.Success {
		return d.EnumerateResult
	}
	n := uint32(len(d.Extensions))
	if props == nil {
		*count = n
		return vk.Success
	}
	written := min(n, *count)
	for i := range written {
		props[i] = vk.NewExtensionProperties(d.Extensions[i], 7)
	}
	*count = written
	if written < n {
		return vk.Incomplete
	}
	return vk.Success
}

func (d *Driver) createSwapchain(_ vk.Device, info *vk.SwapchainCreateInfo, _ *vk.AllocationCallbacks, out *vk.Swapchain) vk.Result {
	d.record(driver.CreateSwapchain)
	d.mu.Lock()
	cp := *info
	d.lastSwapchain = &cp
	d.lastInfo = info
	d.mu.Unlock()
	*out = FakeSwapchain
	return vk.Success
}

func (d *Driver) queuePresent(_ vk.Queue, _ *vk.PresentInfo) vk.Result {
	d.record(driver.QueuePresent)
	return vk.Success
}

func (d *Driver) allocateMemory(_ vk.Device, _ *vk.MemoryAllocateInfo, _ *vk.AllocationCallbacks, out *vk.DeviceMemory) vk.Result {
	d.record(driver.AllocateMemory)
	*out = FakeMemory
	return vk.Success
}

func (d *Driver) createBuffer(_ vk.Device, _ *vk.BufferCreateInfo, _ *vk.AllocationCallbacks, out *vk.Buffer) vk.Result {
	d.record(driver.CreateBuffer)
	*out = FakeBuffer
	return vk.Success
}

func (d *Driver) createImage(_ vk.Device, _ *vk.ImageCreateInfo, _ *vk.AllocationCallbacks, out *vk.Image) vk.Result {
	d.record(driver.CreateImage)
	*out = FakeImage
	return vk.Success
}

// Table returns d's entry points resolved as a bound driver would see them.
func (d *Driver) Table(omit ...driver.EntryPoint) driver.Table {
	var t driver.Table
	t.Resolve(d.Module("drivertest", omit...))
	return t
}
