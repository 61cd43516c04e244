// Package resource implements the tagged-handle resource registries: a
// reader-writer-locked persistent registry, a per-frame-slot transient
// arena, and heap sub-allocation, covering the
// {Buffer, Texture, ArgumentBuffer, Heap, Sampler, AccelerationStructure}
// resource kinds with full generation-checked handle validation.
package resource

import "github.com/gogpu/rendergraph/backend"

// BufferDescriptor is immutable once a buffer is allocated.
type BufferDescriptor struct {
	Length      uint64
	StorageMode backend.StorageMode
	CacheMode   backend.CacheMode
	UsageHint   backend.UsageHint
}

// TextureDescriptor is immutable once a texture is allocated.
type TextureDescriptor struct {
	Type        backend.TextureType
	PixelFormat backend.PixelFormat
	Width       uint32
	Height      uint32
	Depth       uint32
	MipLevels   uint32
	ArrayLength uint32
	SampleCount uint32
	UsageHint   backend.UsageHint
	StorageMode backend.StorageMode
}

// HeapDescriptor is immutable once a heap is allocated.
type HeapDescriptor struct {
	Size        uint64
	StorageMode backend.StorageMode
	CacheMode   backend.CacheMode
}

// SamplerDescriptor is immutable once a sampler is allocated. Samplers
// have no backing memory of their own; they still flow through the
// registry so they get a generation-checked Handle like every other
// resource kind.
type SamplerDescriptor struct {
	Label string
}

// AccelerationStructureDescriptor is immutable once allocated.
type AccelerationStructureDescriptor struct {
	Size uint64
}

// ArgumentBufferDescriptor describes a bindless/argument buffer backed by
// a range of an existing buffer.
type ArgumentBufferDescriptor struct {
	EncodedLength uint64
}

// validateBuffer enforces the minimal invariants a buffer descriptor must
// satisfy before it reaches a backend.
func validateBuffer(d BufferDescriptor) error {
	if d.Length == 0 {
		return &DescriptorError{Resource: "Buffer", Field: "Length", Message: "must be non-zero"}
	}
	if d.StorageMode == backend.StorageMemoryless {
		return &DescriptorError{Resource: "Buffer", Field: "StorageMode", Message: "memoryless storage is only legal for textures"}
	}
	return nil
}

func validateTexture(d TextureDescriptor) error {
	if d.Width == 0 || d.Height == 0 {
		return &DescriptorError{Resource: "Texture", Field: "Width/Height", Message: "must be non-zero"}
	}
	if d.MipLevels == 0 {
		return &DescriptorError{Resource: "Texture", Field: "MipLevels", Message: "must be at least 1"}
	}
	if d.ArrayLength == 0 {
		return &DescriptorError{Resource: "Texture", Field: "ArrayLength", Message: "must be at least 1"}
	}
	return nil
}

func validateHeap(d HeapDescriptor) error {
	if d.Size == 0 {
		return &DescriptorError{Resource: "Heap", Field: "Size", Message: "must be non-zero"}
	}
	return nil
}

// DescriptorError reports a descriptor that failed validation before any
// backend call was made.
type DescriptorError struct {
	Resource string
	Field    string
	Message  string
}

func (e *DescriptorError) Error() string {
	return e.Resource + "." + e.Field + ": " + e.Message
}
