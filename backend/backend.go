// Package backend defines the capability interface the render graph core
// consumes from a concrete graphics API implementation. The core never
// imports a specific backend; it is handed one that satisfies Capability
// and treats it as an opaque collaborator.
package backend

import "fmt"

// ResourceKind mirrors rendergraph.Kind without importing the root
// package, keeping backend free of a dependency cycle.
type ResourceKind uint8

const (
	Buffer ResourceKind = iota
	Texture
	ArgumentBuffer
	Heap
	Sampler
	AccelerationStructure
)

// BufferDescriptor is the immutable shape of a buffer resource.
type BufferDescriptor struct {
	Length      uint64
	StorageMode StorageMode
	CacheMode   CacheMode
	UsageHint   UsageHint
}

// TextureDescriptor is the immutable shape of a texture resource.
type TextureDescriptor struct {
	Type        TextureType
	PixelFormat PixelFormat
	Width       uint32
	Height      uint32
	Depth       uint32
	MipLevels   uint32
	ArrayLength uint32
	SampleCount uint32
	UsageHint   UsageHint
	StorageMode StorageMode
}

// HeapDescriptor is the immutable shape of a heap's backing allocation.
type HeapDescriptor struct {
	Size        uint64
	StorageMode StorageMode
	CacheMode   CacheMode
}

// StorageMode controls where and how backing memory is kept.
type StorageMode uint8

const (
	StoragePrivate StorageMode = iota
	StorageManaged
	StorageShared
	StorageMemoryless
)

// CacheMode controls CPU cache behavior for mapped memory.
type CacheMode uint8

const (
	CacheDefaultCache CacheMode = iota
	CacheWriteCombined
)

// UsageHint is a bitset describing intended resource usage.
type UsageHint uint32

const (
	UsageShaderRead UsageHint = 1 << iota
	UsageShaderWrite
	UsageRenderTarget
	UsageBlitSource
	UsageBlitDestination
	UsageInputAttachment
	UsagePixelFormatView
)

// TextureType distinguishes texture dimensionality.
type TextureType uint8

const (
	Texture1D TextureType = iota
	Texture2D
	Texture2DArray
	Texture3D
	TextureCube
)

// PixelFormat is an opaque backend-assigned format identifier. The core
// never interprets its value; it only passes it through to the backend
// in texture descriptors.
type PixelFormat uint32

// BackingID identifies a backend-owned allocation. It is opaque to the
// core; backends mint and interpret their own values.
type BackingID uint64

// QueueID identifies a backend queue.
type QueueID uint32

// FenceID identifies a backend synchronization primitive (semaphore or
// timeline fence).
type FenceID uint64

// CommandBufferID identifies a backend-encoded command buffer.
type CommandBufferID uint64

// SubmissionID identifies a backend submission for completion tracking.
type SubmissionID uint64

// EncoderKind tags the kind of work an encoder (and the command buffer it
// becomes) carries.
type EncoderKind uint8

const (
	EncoderDraw EncoderKind = iota
	EncoderCompute
	EncoderBlit
	EncoderExternal
	EncoderAccelerationStructure
)

func (k EncoderKind) String() string {
	switch k {
	case EncoderDraw:
		return "Draw"
	case EncoderCompute:
		return "Compute"
	case EncoderBlit:
		return "Blit"
	case EncoderExternal:
		return "External"
	case EncoderAccelerationStructure:
		return "AccelerationStructure"
	default:
		return "Unknown"
	}
}

// QueueSpec requests a queue with the given capabilities from the
// backend; it is analogous to vkQueueFamilyProperties or a Metal
// MTLCommandQueue descriptor, kept abstract here.
type QueueSpec struct {
	SupportsGraphics bool
	SupportsCompute  bool
	SupportsTransfer bool
}

// Capability is the full surface the core requires from a concrete
// graphics API backend. A concrete backend package implements it once
// per API; constructing one is outside this module's scope.
type Capability interface {
	MaterializeBuffer(desc BufferDescriptor) (BackingID, error)
	MaterializeTexture(desc TextureDescriptor) (BackingID, error)
	MaterializeHeap(desc HeapDescriptor) (BackingID, error)
	ReleaseBacking(id BackingID)

	SizeAndAlignmentForBuffer(desc BufferDescriptor) (size, align uint64)
	SizeAndAlignmentForTexture(desc TextureDescriptor) (size, align uint64)

	SupportsPixelFormat(format PixelFormat, usage UsageHint) bool
	HasUnifiedMemory() bool
	SupportsMemorylessAttachments() bool
	IsTileBased() bool

	MakeQueue(spec QueueSpec) QueueID
	MakeSyncEvent(queue QueueID) FenceID

	EncodePass(kind EncoderKind, passIDs []uint32, commands []CompactedCommand) (CommandBufferID, error)
	Submit(cb CommandBufferID, waitFences, signalFences []FenceID) (SubmissionID, error)
	CompletionCallback(sub SubmissionID, fn func())
}

// CompactedCommand is the backend-facing projection of
// graph.CompactedCommand: enough for a backend to replay residency,
// barrier, and layout-transition calls in order around the pass's own
// recorded commands. Kept as a distinct type (rather than reusing
// graph.CompactedCommand directly) so backend has no import on graph,
// matching the one-way dependency the capability boundary requires.
type CompactedCommand struct {
	Kind      string
	Index     uint32
	Before    bool
	Resources []uint64
}

func (c CompactedCommand) String() string {
	order := "After"
	if c.Before {
		order = "Before"
	}
	return fmt.Sprintf("%s@%d[%s](%d resources)", c.Kind, c.Index, order, len(c.Resources))
}
