package xeno

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/exynostools/xeno/internal/augment"
	"github.com/exynostools/xeno/internal/config"
	"github.com/exynostools/xeno/internal/driver"
	"github.com/exynostools/xeno/internal/driver/drivertest"
	"github.com/exynostools/xeno/internal/frames"
	"github.com/exynostools/xeno/internal/host"
	"github.com/exynostools/xeno/internal/vk"
)

const fakePath = "/vendor/lib64/libvkdriver.so"

type harness struct {
	fake   *drivertest.Driver
	loader *drivertest.Loader
	probes atomic.Int64
	tunes  atomic.Int64
}

func newHarness() *harness {
	h := &harness{fake: &drivertest.Driver{Extensions: []string{"VK_KHR_swapchain"}}}
	h.loader = drivertest.NewLoader().Register(h.fake.Module(fakePath))
	return h
}

func (h *harness) options(t *testing.T, specialized bool, extra ...Option) []Option {
	t.Helper()
	opts := []Option{
		WithLoader(h.loader),
		WithDriverCandidates(fakePath, ""),
		WithConfigPaths(),
		WithCacheDir(filepath.Join(t.TempDir(), "cache")),
		WithProber(host.ProberFunc(func() bool {
			h.probes.Add(1)
			return specialized
		})),
		WithTuner(host.TunerFunc(func() error {
			h.tunes.Add(1)
			return nil
		})),
	}
	return append(opts, extra...)
}

func TestEnsureLoadedRunsOnce(t *testing.T) {
	h := newHarness()
	w := New(h.options(t, true)...)

	var wg sync.WaitGroup
	for i := range 64 {
		wg.Go(func() {
			switch i % 4 {
			case 0:
				var count uint32
				w.EnumerateDeviceExtensionProperties(drivertest.FakePhysicalDevice, "", &count, nil)
			case 1:
				w.QueuePresent(0, &vk.PresentInfo{})
			case 2:
				w.ShaderCacheGet([]byte("key"))
			default:
				w.Status()
			}
		})
	}
	wg.Wait()

	if n := h.probes.Load(); n != 1 {
		t.Errorf("host probed %d times, want 1", n)
	}
	if n := h.loader.Opens(); n != 1 {
		t.Errorf("driver opened %d times, want 1", n)
	}
	if n := h.tunes.Load(); n != 1 {
		t.Errorf("tuning applied %d times, want 1", n)
	}
}

func TestTuningOnlyOnSpecializedHardware(t *testing.T) {
	h := newHarness()
	w := New(h.options(t, false)...)
	w.Status()

	if n := h.tunes.Load(); n != 0 {
		t.Errorf("tuning applied %d times on generic hardware", n)
	}
	if w.Specialized() {
		t.Error("Specialized() = true")
	}
}

func TestDegradedWithoutDriver(t *testing.T) {
	h := newHarness()
	w := New(h.options(t, false, WithDriverCandidates("/missing.so", ""))...)

	results := map[string]vk.Result{
		"CreateInstance":           w.CreateInstance(&vk.InstanceCreateInfo{}, nil, new(vk.Instance)),
		"EnumeratePhysicalDevices": w.EnumeratePhysicalDevices(0, new(uint32), nil),
		"CreateDevice":             w.CreateDevice(0, &vk.DeviceCreateInfo{}, nil, new(vk.Device)),
		"EnumerateDeviceExtension": w.EnumerateDeviceExtensionProperties(0, "", new(uint32), nil),
		"CreateSwapchain":          w.CreateSwapchain(0, &vk.SwapchainCreateInfo{}, nil, new(vk.Swapchain)),
		"QueuePresent":             w.QueuePresent(0, &vk.PresentInfo{}),
		"AllocateMemory":           w.AllocateMemory(0, &vk.MemoryAllocateInfo{}, nil, new(vk.DeviceMemory)),
		"CreateBuffer":             w.CreateBuffer(0, &vk.BufferCreateInfo{}, nil, new(vk.Buffer)),
		"CreateImage":              w.CreateImage(0, &vk.ImageCreateInfo{}, nil, new(vk.Image)),
	}
	for name, res := range results {
		if res != vk.ErrorInitializationFailed {
			t.Errorf("%s = %v, want %v", name, res, vk.ErrorInitializationFailed)
		}
	}

	if addr := w.GetInstanceProcAddr(0, "vkCreateDevice"); addr != 0 {
		t.Errorf("GetInstanceProcAddr() = %#x without a driver", addr)
	}
	if addr := w.GetDeviceProcAddr(0, "vkCreateImage"); addr != 0 {
		t.Errorf("GetDeviceProcAddr() = %#x without a driver", addr)
	}

	var props vk.PhysicalDeviceProperties
	w.GetPhysicalDeviceProperties(0, &props)
	if props.Name() != "" {
		t.Error("properties written without a driver")
	}

	features := vk.PhysicalDeviceFeatures2{Features: vk.PhysicalDeviceFeatures{GeometryShader: vk.True}}
	w.GetPhysicalDeviceFeatures2(0, &features)
	if features.Features.GeometryShader != vk.False {
		t.Error("base features not zeroed without a driver")
	}

	st := w.Status()
	if !st.Degraded() || st.BindError == nil {
		t.Errorf("Status() = %+v, want degraded", st)
	}
	for _, ep := range st.EntryPoints {
		if ep.Available {
			t.Errorf("%s available without a driver", ep.Symbol)
		}
	}
}

func TestPassthrough(t *testing.T) {
	h := newHarness()
	w := New(h.options(t, false)...)

	var instance vk.Instance
	if res := w.CreateInstance(&vk.InstanceCreateInfo{}, nil, &instance); res != vk.Success || instance != drivertest.FakeInstance {
		t.Errorf("CreateInstance() = %v, %#x", res, instance)
	}

	var count uint32
	w.EnumeratePhysicalDevices(instance, &count, nil)
	devices := make([]vk.PhysicalDevice, count)
	if res := w.EnumeratePhysicalDevices(instance, &count, devices); res != vk.Success || devices[0] != drivertest.FakePhysicalDevice {
		t.Errorf("EnumeratePhysicalDevices() = %v, %v", res, devices)
	}

	var props vk.PhysicalDeviceProperties
	w.GetPhysicalDeviceProperties(devices[0], &props)
	if props.Name() != "Samsung Xclipse 940" {
		t.Errorf("device name = %q", props.Name())
	}

	var device vk.Device
	w.CreateDevice(devices[0], &vk.DeviceCreateInfo{}, nil, &device)
	var mem vk.DeviceMemory
	w.AllocateMemory(device, &vk.MemoryAllocateInfo{}, nil, &mem)
	var buf vk.Buffer
	w.CreateBuffer(device, &vk.BufferCreateInfo{}, nil, &buf)
	var img vk.Image
	w.CreateImage(device, &vk.ImageCreateInfo{}, nil, &img)

	if device != drivertest.FakeDevice || mem != drivertest.FakeMemory || buf != drivertest.FakeBuffer || img != drivertest.FakeImage {
		t.Errorf("handles = %#x %#x %#x %#x", device, mem, buf, img)
	}

	st := w.Status()
	if st.Degraded() || st.DriverPath != fakePath {
		t.Errorf("Status() driver = %q", st.DriverPath)
	}
	for _, ep := range st.EntryPoints {
		if !ep.Available {
			t.Errorf("%s not available", ep.Symbol)
		}
	}
}

func TestProcAddrOverrides(t *testing.T) {
	h := newHarness()
	h.fake.ProcAddrs = map[string]vk.VoidFunction{
		"vkQueuePresentKHR": 0xd1,
		"vkCmdDraw":         0xd2,
	}
	w := New(h.options(t, false, WithProcOverrides(map[string]vk.VoidFunction{
		"vkQueuePresentKHR": 0x1234,
	}))...)

	if got := w.GetInstanceProcAddr(drivertest.FakeInstance, "vkQueuePresentKHR"); got != 0x1234 {
		t.Errorf("intercepted name = %#x, want override", got)
	}
	if got := w.GetDeviceProcAddr(drivertest.FakeDevice, "vkQueuePresentKHR"); got != 0x1234 {
		t.Errorf("device intercepted name = %#x, want override", got)
	}
	if got := w.GetDeviceProcAddr(drivertest.FakeDevice, "vkCmdDraw"); got != 0xd2 {
		t.Errorf("other name = %#x, want driver's", got)
	}
	if got := w.GetInstanceProcAddr(0, "vkUnknown"); got != 0 {
		t.Errorf("unknown name = %#x", got)
	}
}

func TestCreateSwapchain(t *testing.T) {
	base := vk.SwapchainCreateInfo{
		SType:       vk.StructureTypeSwapchainCreateInfo,
		ImageUsage:  vk.ImageUsageColorAttachment,
		PresentMode: vk.PresentModeFifo,
	}

	tests := []struct {
		name        string
		specialized bool
		mode        config.PerformanceMode
		wantUsage   vk.ImageUsageFlags
		wantPresent vk.PresentMode
	}{
		{"generic high", false, config.PerformanceHigh, vk.ImageUsageColorAttachment, vk.PresentModeFifo},
		{"specialized balanced", true, config.PerformanceBalanced, vk.ImageUsageColorAttachment | vk.ImageUsageTransferSrc, vk.PresentModeFifo},
		{"specialized high", true, config.PerformanceHigh, vk.ImageUsageColorAttachment | vk.ImageUsageTransferSrc, vk.PresentModeImmediate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			s := config.Default()
			s.PerformanceMode = tt.mode
			w := New(h.options(t, tt.specialized, WithSettings(s))...)

			info := base
			var sc vk.Swapchain
			if res := w.CreateSwapchain(drivertest.FakeDevice, &info, nil, &sc); res != vk.Success {
				t.Fatalf("CreateSwapchain() = %v", res)
			}
			if info != base {
				t.Error("caller's create info was modified")
			}

			got, ptr := h.fake.LastSwapchain()
			if ptr == &info {
				t.Error("driver received the caller's struct instead of a copy")
			}
			if got.ImageUsage != tt.wantUsage || got.PresentMode != tt.wantPresent {
				t.Errorf("driver saw usage %#x mode %d, want %#x mode %d",
					got.ImageUsage, got.PresentMode, tt.wantUsage, tt.wantPresent)
			}
		})
	}
}

func TestSwapchainFollowsLiveMode(t *testing.T) {
	h := newHarness()
	w := New(h.options(t, true)...)

	if err := w.SetPerformanceMode(config.PerformanceHigh); err != nil {
		t.Fatalf("SetPerformanceMode() error = %v", err)
	}
	info := vk.SwapchainCreateInfo{PresentMode: vk.PresentModeMailbox}
	w.CreateSwapchain(0, &info, nil, new(vk.Swapchain))
	if got, _ := h.fake.LastSwapchain(); got.PresentMode != vk.PresentModeImmediate {
		t.Errorf("present mode = %d after switching to HIGH", got.PresentMode)
	}

	if err := w.SetPerformanceMode(config.PerformanceMode(7)); err == nil {
		t.Error("unknown mode accepted")
	}
	if w.Settings().PerformanceMode != config.PerformanceHigh {
		t.Error("rejected mode replaced the current one")
	}
}

func TestQueuePresentFrameRate(t *testing.T) {
	h := newHarness()
	var mu sync.Mutex
	now := time.Unix(1_700_000_000, 0)
	clock := frames.ClockFunc(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})
	w := New(h.options(t, false, WithClock(clock))...)

	for range 10 {
		if res := w.QueuePresent(0, &vk.PresentInfo{}); res != vk.Success {
			t.Fatalf("QueuePresent() = %v", res)
		}
	}
	if w.AverageFPS() != 0 {
		t.Errorf("AverageFPS() = %v before the first tick", w.AverageFPS())
	}

	mu.Lock()
	now = now.Add(time.Second)
	mu.Unlock()
	w.QueuePresent(0, &vk.PresentInfo{})

	if got := w.AverageFPS(); got < 0.999 || got > 1.001 {
		t.Errorf("AverageFPS() = %v, want 1", got)
	}
	if n := h.fake.Calls(driver.QueuePresent); n != 11 {
		t.Errorf("driver saw %d presents, want 11", n)
	}
}

func TestEnumerateThroughWrapper(t *testing.T) {
	tests := []struct {
		name      string
		synthetic bool
		want      int
	}{
		{"synthetic on", true, 1 + len(augment.DefaultExtensions)},
		{"synthetic off", false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			s := config.Default()
			s.SyntheticExtensions = tt.synthetic
			w := New(h.options(t, false, WithSettings(s))...)

			var count uint32
			w.EnumerateDeviceExtensionProperties(0, "", &count, nil)
			if int(count) != tt.want {
				t.Errorf("count = %d, want %d", count, tt.want)
			}
		})
	}
}

func TestFeaturesEmulationToggle(t *testing.T) {
	h := newHarness()
	w := New(h.options(t, false)...)

	var f vk.PhysicalDeviceFeatures2
	w.GetPhysicalDeviceFeatures2(0, &f)
	if f.Features.TextureCompressionBC != vk.True {
		t.Error("BC compression not reported with emulation on by default")
	}

	w.EnableEmulation(false)
	f = vk.PhysicalDeviceFeatures2{}
	w.GetPhysicalDeviceFeatures2(0, &f)
	if f.Features.TextureCompressionBC != vk.False {
		t.Error("BC compression reported with emulation off")
	}
}

func TestShaderCacheRoundTrip(t *testing.T) {
	h := newHarness()
	dir := filepath.Join(t.TempDir(), "cache")
	w := New(h.options(t, false, WithCacheDir(dir))...)
	defer w.Close()

	key := []byte("\x03\x02\x23\x07 spirv module")
	blob := []byte("compiled pipeline blob")

	if _, ok := w.ShaderCacheGet(key); ok {
		t.Fatal("hit before any put")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("cache dir created by a miss: %v", err)
	}

	w.ShaderCachePut(key, blob)
	got, ok := w.ShaderCacheGet(key)
	if !ok || string(got) != string(blob) {
		t.Fatalf("ShaderCacheGet() = %q, %v", got, ok)
	}
	if _, err := os.Stat(filepath.Join(dir, Fingerprint(key)+".bin")); err != nil {
		t.Errorf("blob file missing: %v", err)
	}

	w.ShaderCachePut(nil, blob)
	w.ShaderCachePut(key, nil)
	if got, _ := w.ShaderCacheGet(key); string(got) != string(blob) {
		t.Error("empty put replaced the blob")
	}
}

func TestConfigDisablesShaderCache(t *testing.T) {
	tmp := t.TempDir()
	conf := filepath.Join(tmp, "xclipse_tools.conf")
	if err := os.WriteFile(conf, []byte("# tuned\nperformance_mode=1\nshader_cache_enabled=0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cacheDir := filepath.Join(tmp, "cache")

	h := newHarness()
	w := New(h.options(t, false, WithConfigPaths(filepath.Join(tmp, "missing.conf"), conf), WithCacheDir(cacheDir))...)

	key := []byte("spirv")
	w.ShaderCachePut(key, []byte("blob"))
	if _, ok := w.ShaderCacheGet(key); ok {
		t.Error("get hit with the shader cache disabled")
	}
	if _, err := os.Stat(cacheDir); !os.IsNotExist(err) {
		t.Errorf("put wrote to a disabled cache: %v", err)
	}

	st := w.Status()
	if st.ConfigSource != conf {
		t.Errorf("config source = %q, want %q", st.ConfigSource, conf)
	}
	if st.Settings.PerformanceMode != config.PerformanceHigh {
		t.Errorf("performance mode = %v, want HIGH", st.Settings.PerformanceMode)
	}
}

func TestCloseUnusedWrapperBindsNothing(t *testing.T) {
	h := newHarness()
	w := New(h.options(t, true)...)

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if n := h.loader.Opens(); n != 0 {
		t.Errorf("driver opened %d times by Close", n)
	}
	if n := h.probes.Load(); n != 0 {
		t.Errorf("host probed %d times by Close", n)
	}
	if n := h.tunes.Load(); n != 0 {
		t.Errorf("tuning applied %d times by Close", n)
	}

	// A used Wrapper still closes its cache.
	w.Status()
	if err := w.Close(); err != nil {
		t.Errorf("Close() after use error = %v", err)
	}
}

func TestShaderCacheIsolatedFromCallerBuffers(t *testing.T) {
	h := newHarness()
	w := New(h.options(t, false)...)
	defer w.Close()

	key := []byte("spirv")
	blob := []byte("original-blob")
	w.ShaderCachePut(key, blob)
	blob[0] = 'X'

	got, ok := w.ShaderCacheGet(key)
	if !ok || string(got) != "original-blob" {
		t.Fatalf("ShaderCacheGet() = %q, %v", got, ok)
	}
	got[0] = 'Y'
	if again, _ := w.ShaderCacheGet(key); string(again) != "original-blob" {
		t.Errorf("cached blob changed through a returned slice: %q", again)
	}
}
