package rendergraph

import "github.com/gogpu/rendergraph/handle"

// Handle and its supporting types live in package handle so that the
// resource, track, graph, and submit packages can all depend on them
// without importing this root package (which depends on all of them).
// These aliases keep the ergonomic rendergraph.Handle / rendergraph.Kind
// spelling at the public API surface.
type (
	Handle   = handle.Handle
	Kind     = handle.Kind
	Registry = handle.Registry
)

const (
	KindBuffer                = handle.KindBuffer
	KindTexture               = handle.KindTexture
	KindArgumentBuffer        = handle.KindArgumentBuffer
	KindHeap                  = handle.KindHeap
	KindSampler               = handle.KindSampler
	KindAccelerationStructure = handle.KindAccelerationStructure

	RegistryPersistent = handle.RegistryPersistent
	RegistryTransient  = handle.RegistryTransient
)
