// Package xeno is a Vulkan driver interposer with a persistent shader blob cache.
//
// A Wrapper sits between the Vulkan loader and a vendor driver. The first call
// into any entry point binds the driver exactly once: settings are loaded, the host
// is probed, the first loadable candidate library is opened and its entry points are
// resolved. Every later call is forwarded through the resolved table, with a few
// results rewritten on the way back:
//
//   - device extension enumeration gains a fixed list of synthetic extensions
//   - features2 queries have selected feature fields forced on
//   - swapchain creation is tuned on the specialized hardware
//   - queue present maintains a smoothed frame rate
//
// Basic usage:
//
//	w := xeno.New(xeno.WithLogger(slog.Default()))
//
//	var count uint32
//	w.EnumerateDeviceExtensionProperties(pd, "", &count, nil)
//
//	// Shader cache, keyed by SPIR-V
//	w.ShaderCachePut(spirv, blob)
//	blob, ok := w.ShaderCacheGet(spirv)
//
//	// Management
//	w.SetPerformanceMode(xeno.PerformanceHigh)
//	w.EnableEmulation(false)
//	fmt.Println(w.AverageFPS())
//
// With remote sync of the shader cache:
//
//	s, _ := xeno.OpenSync("ghcr.io/org/shaders:main", xeno.WithCacheDir(dir))
//	s.Push(ctx)
//	s.Pull(ctx)
//
// Without a loadable driver the Wrapper runs degraded: driver-dependent entry points
// return VK_ERROR_INITIALIZATION_FAILED and void entry points do nothing.
package xeno
