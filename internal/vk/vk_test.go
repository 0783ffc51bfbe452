package vk

import (
	"testing"
	"unsafe"
)

func TestLayoutMatchesC(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("layout table is for 64-bit targets")
	}

	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"ExtensionProperties", unsafe.Sizeof(ExtensionProperties{}), 260},
		{"PhysicalDeviceFeatures", unsafe.Sizeof(PhysicalDeviceFeatures{}), 220},
		{"PhysicalDeviceFeatures2", unsafe.Sizeof(PhysicalDeviceFeatures2{}), 240},
		{"DescriptorIndexingFeatures", unsafe.Sizeof(DescriptorIndexingFeatures{}), 96},
		{"ShaderFloat16Int8Features", unsafe.Sizeof(ShaderFloat16Int8Features{}), 24},
		{"Robustness2Features", unsafe.Sizeof(Robustness2Features{}), 32},
		{"SwapchainCreateInfo", unsafe.Sizeof(SwapchainCreateInfo{}), 104},
		{"PresentInfo", unsafe.Sizeof(PresentInfo{}), 64},
		{"SwapchainCreateInfo.PresentMode", unsafe.Offsetof(SwapchainCreateInfo{}.PresentMode), 88},
		{"SwapchainCreateInfo.ImageUsage", unsafe.Offsetof(SwapchainCreateInfo{}.ImageUsage), 56},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %d, want %d", tt.got, tt.want)
			}
		})
	}

	if unsafe.Sizeof(PhysicalDeviceProperties{}) < 824 {
		t.Errorf("PhysicalDeviceProperties is %d bytes, the driver writes 824", unsafe.Sizeof(PhysicalDeviceProperties{}))
	}
}

func TestChain(t *testing.T) {
	robust := Robustness2Features{SType: StructureTypePhysicalDeviceRobustness2Features}
	unknown := BaseOutStructure{SType: 1000099999, PNext: unsafe.Pointer(&robust)}
	indexing := DescriptorIndexingFeatures{SType: StructureTypePhysicalDeviceDescriptorIndexing, PNext: unsafe.Pointer(&unknown)}
	f16 := ShaderFloat16Int8Features{SType: StructureTypePhysicalDeviceShaderFloat16Int8, PNext: unsafe.Pointer(&indexing)}

	chain := Chain(unsafe.Pointer(&f16))
	if len(chain) != 4 {
		t.Fatalf("chain length = %d, want 4", len(chain))
	}
	if got, ok := chain[0].(*ShaderFloat16Int8Features); !ok || got != &f16 {
		t.Errorf("chain[0] = %T, want *ShaderFloat16Int8Features viewing f16", chain[0])
	}
	if got, ok := chain[1].(*DescriptorIndexingFeatures); !ok || got != &indexing {
		t.Errorf("chain[1] = %T, want *DescriptorIndexingFeatures", chain[1])
	}
	if got, ok := chain[2].(*BaseOutStructure); !ok || got.StructureType() != 1000099999 {
		t.Errorf("chain[2] = %T, want unknown *BaseOutStructure", chain[2])
	}
	if _, ok := chain[3].(*Robustness2Features); !ok {
		t.Errorf("chain[3] = %T, want *Robustness2Features", chain[3])
	}
}

func TestChainEmptyAndCyclic(t *testing.T) {
	if got := Chain(nil); len(got) != 0 {
		t.Errorf("Chain(nil) = %d records, want 0", len(got))
	}

	loop := BaseOutStructure{SType: 42}
	loop.PNext = unsafe.Pointer(&loop)
	if got := Chain(unsafe.Pointer(&loop)); len(got) != maxChainLength {
		t.Errorf("cyclic chain walked %d records, want cap %d", len(got), maxChainLength)
	}
}

func TestExtensionPropertiesName(t *testing.T) {
	p := NewExtensionProperties("VK_KHR_multiview", 1)
	if p.Name() != "VK_KHR_multiview" {
		t.Errorf("Name() = %q", p.Name())
	}
	if p.SpecVersion != 1 {
		t.Errorf("SpecVersion = %d", p.SpecVersion)
	}

	long := make([]byte, 400)
	for i := range long {
		long[i] = 'x'
	}
	p = NewExtensionProperties(string(long), 1)
	if len(p.Name()) != MaxExtensionNameSize-1 {
		t.Errorf("truncated name length = %d, want %d", len(p.Name()), MaxExtensionNameSize-1)
	}
}

func TestResultString(t *testing.T) {
	if ErrorInitializationFailed.String() != "VK_ERROR_INITIALIZATION_FAILED" {
		t.Errorf("String() = %q", ErrorInitializationFailed.String())
	}
	if !Incomplete.Succeeded() || ErrorDeviceLost.Succeeded() {
		t.Error("Succeeded() misclassifies codes")
	}
	if Result(-77).String() != "VkResult(-77)" {
		t.Errorf("unknown String() = %q", Result(-77).String())
	}
}
