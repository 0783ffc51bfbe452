// Package augment rewrites capability queries so the application sees the driver's
// answer plus a fixed set of synthetic capabilities.
package augment

import (
	"log/slog"
	"slices"
	"unsafe"

	"github.com/exynostools/xeno/internal/driver"
	"github.com/exynostools/xeno/internal/vk"
)

// DefaultExtensions are advertised after the driver's own extensions.
var DefaultExtensions = []string{
	"VK_EXT_descriptor_indexing",
	"VK_EXT_robustness2",
	"VK_KHR_shader_float16_int8",
	"VK_KHR_synchronization2",
	"VK_EXT_memory_priority",
	"VK_KHR_buffer_device_address",
	"VK_EXT_conditional_rendering",
	"VK_KHR_multiview",
	"VK_EXT_transform_feedback",
}

// SyntheticSpecVersion is reported for every synthetic extension.
const SyntheticSpecVersion = 1

// Policy selects which capabilities are asserted on top of the driver.
//
// The overrides claim support the driver has not reported. Turning them off gives a
// truthful passthrough.
type Policy struct {
	// Extensions are appended to every device extension enumeration.
	Extensions []string
	// FeatureOverrides forces the known feature fields on.
	FeatureOverrides bool
}

// DefaultPolicy advertises DefaultExtensions and applies the feature overrides.
func DefaultPolicy() Policy {
	return Policy{
		Extensions:       slices.Clone(DefaultExtensions),
		FeatureOverrides: true,
	}
}

// PolicyFor builds the policy selected by the two config switches.
func PolicyFor(syntheticExtensions, featureOverrides bool) Policy {
	p := Policy{FeatureOverrides: featureOverrides}
	if syntheticExtensions {
		p.Extensions = slices.Clone(DefaultExtensions)
	}
	return p
}

// Augmenter applies a Policy to driver results.
type Augmenter struct {
	policy Policy
	log    *slog.Logger
}

// New returns an Augmenter. A nil logger discards output.
func New(policy Policy, log *slog.Logger) *Augmenter {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Augmenter{policy: policy, log: log}
}

// Policy returns the policy in effect.
func (a *Augmenter) Policy() Policy { return a.policy }

// EnumerateExtensions forwards a device extension enumeration and appends the
// synthetic extensions.
//
// A count query (props == nil) reports the driver count plus the synthetic count.
// Otherwise *count is the buffer capacity on entry and the number of entries written on
// return. Driver entries always come first and are never altered. When the driver
// itself runs out of room its Incomplete result is returned and nothing is appended;
// when synthetic entries are cut short the result is Incomplete.
func (a *Augmenter) EnumerateExtensions(fn driver.EnumerateDeviceExtensionPropertiesFunc, pd vk.PhysicalDevice, layer string, count *uint32, props []vk.ExtensionProperties) vk.Result {
	if fn == nil {
		return vk.ErrorInitializationFailed
	}
	if count == nil {
		return fn(pd, layer, count, props)
	}

	synthetic := a.policy.Extensions
	if props == nil {
		res := fn(pd, layer, count, nil)
		if !forwardable(res) {
			return res
		}
		*count += uint32(len(synthetic))
		return res
	}

	capacity := min(*count, uint32(len(props)))
	props = props[:capacity]
	*count = capacity

	res := fn(pd, layer, count, props)
	if !forwardable(res) {
		return res
	}
	n := min(*count, capacity)
	*count = n
	if res == vk.Incomplete {
		return res
	}

	driverCount := n
	for _, name := range synthetic {
		if n >= capacity {
			res = vk.Incomplete
			break
		}
		props[n] = vk.NewExtensionProperties(name, SyntheticSpecVersion)
		n++
	}
	*count = n

	a.log.Debug("advertised extensions", "total", n, "synthetic", n-driverCount)
	return res
}

func forwardable(res vk.Result) bool {
	return res == vk.Success || res == vk.Incomplete
}

// QueryFeatures fills f from fn, or zeroes the base features and every recognized
// chained record when fn is absent, and then applies the overrides. It returns the number of chained records patched.
func (a *Augmenter) QueryFeatures(fn driver.GetPhysicalDeviceFeatures2Func, pd vk.PhysicalDevice, f *vk.PhysicalDeviceFeatures2, emulation bool) int {
	if f == nil {
		return 0
	}
	if fn != nil {
		fn(pd, f)
	} else {
		f.Features = vk.PhysicalDeviceFeatures{}
		clearChain(f.PNext)
	}
	return a.PatchFeatures(f, emulation)
}

// clearChain resets the feature fields of recognized records, keeping their headers
// so the chain stays linked. Unknown records are left alone.
func clearChain(next unsafe.Pointer) {
	for _, ext := range vk.Chain(next) {
		switch s := ext.(type) {
		case *vk.DescriptorIndexingFeatures:
			*s = vk.DescriptorIndexingFeatures{SType: s.SType, PNext: s.PNext}
		case *vk.ShaderFloat16Int8Features:
			*s = vk.ShaderFloat16Int8Features{SType: s.SType, PNext: s.PNext}
		case *vk.Robustness2Features:
			*s = vk.Robustness2Features{SType: s.SType, PNext: s.PNext}
		}
	}
}

// PatchFeatures applies the overrides to a filled features query. Fields are only
// ever set, never cleared. With emulation on, BC texture compression is reported
// regardless of the feature override switch.
func (a *Augmenter) PatchFeatures(f *vk.PhysicalDeviceFeatures2, emulation bool) int {
	if emulation {
		f.Features.TextureCompressionBC = vk.True
	}
	if !a.policy.FeatureOverrides {
		return 0
	}

	patched := 0
	for _, ext := range vk.Chain(f.PNext) {
		switch s := ext.(type) {
		case *vk.DescriptorIndexingFeatures:
			s.DescriptorBindingPartiallyBound = vk.True
			s.DescriptorBindingSampledImageUpdateAfterBind = vk.True
			s.DescriptorBindingStorageImageUpdateAfterBind = vk.True
			s.DescriptorBindingStorageBufferUpdateAfterBind = vk.True
			s.DescriptorBindingUniformBufferUpdateAfterBind = vk.True
		case *vk.ShaderFloat16Int8Features:
			s.ShaderFloat16 = vk.True
			s.ShaderInt8 = vk.True
		case *vk.Robustness2Features:
			s.RobustBufferAccess2 = vk.True
			s.RobustImageAccess2 = vk.True
			s.NullDescriptor = vk.True
		default:
			continue
		}
		patched++
	}

	a.log.Debug("applied feature overrides", "records", patched)
	return patched
}
