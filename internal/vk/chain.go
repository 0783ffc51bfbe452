package vk

import "unsafe"

// maxChainLength bounds a walk so a malformed, cyclic chain cannot hang the caller.
const maxChainLength = 256

// Extension is one record of a pNext chain, viewed in place.
//
// Recognized records are returned as their concrete type; anything else is returned
// as *BaseOutStructure so it can be skipped without being touched.
type Extension interface {
	StructureType() StructureType
}

func (s *BaseOutStructure) StructureType() StructureType           { return s.SType }
func (s *DescriptorIndexingFeatures) StructureType() StructureType { return s.SType }
func (s *ShaderFloat16Int8Features) StructureType() StructureType  { return s.SType }
func (s *Robustness2Features) StructureType() StructureType        { return s.SType }

// Chain returns the records linked from next, in chain order.
func Chain(next unsafe.Pointer) []Extension {
	var out []Extension
	for p := next; p != nil && len(out) < maxChainLength; {
		base := (*BaseOutStructure)(p)
		out = append(out, view(base.SType, p))
		p = base.PNext
	}
	return out
}

func view(t StructureType, p unsafe.Pointer) Extension {
	switch t {
	case StructureTypePhysicalDeviceDescriptorIndexing:
		return (*DescriptorIndexingFeatures)(p)
	case StructureTypePhysicalDeviceShaderFloat16Int8:
		return (*ShaderFloat16Int8Features)(p)
	case StructureTypePhysicalDeviceRobustness2Features:
		return (*Robustness2Features)(p)
	default:
		return (*BaseOutStructure)(p)
	}
}
