package rendergraph

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/graph"
	"github.com/gogpu/rendergraph/handle"
	"github.com/gogpu/rendergraph/resource"
	"github.com/gogpu/rendergraph/submit"
	"github.com/gogpu/rendergraph/worker"
)

// Context is the public entry point: it owns the resource registries,
// the worker pool, and the submission driver, and wires recording,
// scheduling, dependency analysis, and submission together once per
// CommitFrame call. Callers thread one Context explicitly rather than
// reaching for global state.
type Context struct {
	backend backend.Capability
	opts    Options

	Persistent *resource.PersistentRegistry

	mu         sync.Mutex
	transients []*resource.TransientRegistry
	frameIndex uint64
	passes     []*graph.Pass
	sinks      graph.SinkSet
	queues     map[uint32]backend.QueueID
	deviceLost bool

	worker       *worker.Pool
	submitDriver *submit.Driver
	fencePool    *graph.FencePool

	pipelineCache sync.Map
}

// New constructs a Context over cap with the given options applied on
// top of the package defaults.
func New(cap backend.Capability, opts ...Option) (*Context, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	transients := make([]*resource.TransientRegistry, o.InFlightFrames)
	for i := range transients {
		tr, err := resource.NewTransientRegistry(cap, uint8(i), o.ArenaSize)
		if err != nil {
			return nil, fmt.Errorf("rendergraph: create transient registry for slot %d: %w", i, err)
		}
		transients[i] = tr
	}

	driver := submit.NewDriver(cap)
	driver.PurgeDelay = o.PurgeDelay

	c := &Context{
		backend:      cap,
		opts:         o,
		Persistent:   resource.NewPersistentRegistry(cap),
		transients:   transients,
		sinks:        make(graph.SinkSet),
		queues:       make(map[uint32]backend.QueueID),
		worker:       worker.New(o.WorkerCount),
		submitDriver: driver,
	}
	c.fencePool = driver.FencePool(c.queueFor(0))
	return c, nil
}

// PassOption adjusts a just-created Pass before it joins the frame.
type PassOption func(*graph.Pass)

// WithQueue assigns the pass to a caller-defined logical queue. Passes
// on different queues never share an encoder; cross-queue hazards
// become fence waits instead of in-stream barriers.
func WithQueue(queue uint32) PassOption {
	return func(p *graph.Pass) { p.QueueAffinity = queue }
}

// WithRenderTarget tags a draw pass with its render-target descriptor
// key; draw passes with identical keys coalesce into one encoder.
func WithRenderTarget(key string) PassOption {
	return func(p *graph.Pass) { p.RenderTargetKey = key }
}

// WithKeepAlive exempts the pass from culling regardless of whether its
// writes reach a declared sink. Useful for any pass kind with
// externally-unknowable side effects, not just External passes (which
// set it automatically).
func WithKeepAlive() PassOption {
	return func(p *graph.Pass) { p.KeepAlive = true }
}

// AddPass registers a pass to run in the next CommitFrame. executor
// records the pass's bindings into a track.Scope; it runs on the
// worker pool, concurrently with other passes' executors, so it must
// not touch state shared with another pass outside the registries.
func (c *Context) AddPass(kind graph.PassKind, name string, executor graph.Executor, opts ...PassOption) *graph.Pass {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := graph.NewPass(uint32(len(c.passes)), kind, 0, name, executor)
	for _, opt := range opts {
		opt(p)
	}
	c.passes = append(c.passes, p)
	return p
}

// MarkSink declares h a persistent-with-external-consumer resource:
// swapchain images, persistent buffers the next frame reads, blit
// destinations externally held. A pass survives culling only if one of
// its writes transitively reaches a marked sink or the pass itself is
// KeepAlive.
func (c *Context) MarkSink(h handle.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks[h] = true
}

// currentTransient returns the in-flight transient registry for the
// frame about to be committed.
func (c *Context) currentTransient() *resource.TransientRegistry {
	return c.transients[c.frameIndex%uint64(len(c.transients))]
}

func (c *Context) queueFor(logical uint32) backend.QueueID {
	if id, ok := c.queues[logical]; ok {
		return id
	}
	id := c.backend.MakeQueue(backend.QueueSpec{SupportsGraphics: true, SupportsCompute: true, SupportsTransfer: true})
	c.queues[logical] = id
	return id
}

// CommitFrame runs the full pipeline over every pass added since the
// last call: parallel recording, culling, encoder assignment, dependency
// analysis, transitive reduction, fence planning, command compaction,
// and submission. A frame with zero passes is a no-op: zero submissions,
// zero fence allocations.
func (c *Context) CommitFrame(ctx context.Context) error {
	c.mu.Lock()
	if c.deviceLost {
		c.mu.Unlock()
		return ErrDeviceLost
	}
	passes := c.passes
	sinks := c.sinks
	c.passes = nil
	c.sinks = make(graph.SinkSet)
	c.mu.Unlock()

	if len(passes) == 0 {
		Logger().Debug("commit_frame: no passes registered, nothing to submit")
		return nil
	}

	if err := c.worker.RecordPasses(ctx, passes); err != nil {
		return &BackendError{Pass: "record", Cause: err}
	}

	graph.Cull(passes, sinks)
	encoders := graph.AssignEncoders(passes, graph.SchedulerOptions{SoftCommandCap: c.opts.SoftCommandCap})
	if len(encoders) == 0 {
		Logger().Debug("commit_frame: every pass was culled, nothing to submit")
		c.advanceFrame()
		return nil
	}

	transient := c.currentTransient()
	for _, p := range passes {
		if p.Culled {
			continue
		}
		for _, u := range p.Usages {
			if u.Resource.Registry() == handle.RegistryTransient {
				_ = transient.RecordUse(u.Resource, p.EncoderIndex)
			}
		}
	}
	sizes := c.transientSizes(passes, transient)
	aliasPairs := graph.BuildAliasPairs(passes, sizes)
	if err := transient.AssignOffsets(aliasPairs); err != nil {
		return err
	}

	matrix := graph.BuildMatrix(passes)
	graph.Reduce(matrix, uint32(len(encoders)))

	encoderByIndex := make(map[uint32]*graph.Encoder, len(encoders))
	for _, e := range encoders {
		encoderByIndex[e.Index] = e
	}
	queueOf := func(enc uint32) uint32 { return encoderByIndex[enc].Queue }
	cmdBufOf := func(enc uint32) uint32 { return enc }
	fenceActions := graph.PlanFences(matrix, queueOf, cmdBufOf, c.fencePool)

	compacted := graph.Compact(passes, encoders, fenceActions)
	fencePlan := submit.BuildFencePlan(fenceActions)

	for _, enc := range encoders {
		passIDs := make([]uint32, len(enc.PassIndices))
		for i, idx := range enc.PassIndices {
			passIDs[i] = passes[idx].ID
		}

		var wait, signal []backend.FenceID
		if ef, ok := fencePlan[enc.Index]; ok {
			wait, signal = ef.Wait, ef.Signal
		}

		retire := submit.RetireWork{}
		for _, fa := range fenceActions {
			if !fa.SameQueue && fa.DstEncoder == enc.Index {
				retire.Fences = append(retire.Fences, submit.FenceRelease{Pool: c.fencePool, Stages: fa.BeforeStages, Fence: fa.Fence})
			}
		}
		if enc.Index == encoders[len(encoders)-1].Index {
			retire.Persistent = c.Persistent
			retire.Transient = transient
		}

		if _, err := c.submitDriver.SubmitEncoder(enc, passIDs, compacted[enc.Index], wait, signal, retire); err != nil {
			return &BackendError{Pass: enc.Kind.String(), Cause: err}
		}
	}

	c.advanceFrame()
	return nil
}

func (c *Context) advanceFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frameIndex++
}

// transientSizes resolves the byte size of every transient resource used
// this frame, needed by the Dependency Builder to pick alias candidates
// before offsets are assigned.
func (c *Context) transientSizes(passes []*graph.Pass, transient *resource.TransientRegistry) map[handle.Handle]uint64 {
	sizes := make(map[handle.Handle]uint64)
	for _, p := range passes {
		for _, u := range p.Usages {
			if u.Resource.Registry() != handle.RegistryTransient {
				continue
			}
			if _, ok := sizes[u.Resource]; ok {
				continue
			}
			if sz, err := transient.Size(u.Resource); err == nil {
				sizes[u.Resource] = sz
			}
		}
	}
	return sizes
}

// PipelineState returns the cached value for key, computing it via
// compute only the first time the key is seen. Intended for
// reflection/pipeline-object results keyed by shader signature, supplied
// by a caller-owned shader-tooling layer outside this package; compute
// may run more than once under concurrent first access but only one
// result is ever kept.
func (c *Context) PipelineState(key string, compute func() any) any {
	if v, ok := c.pipelineCache.Load(key); ok {
		return v
	}
	v, _ := c.pipelineCache.LoadOrStore(key, compute())
	return v
}

// RecoverDeviceLost runs the device-lost recovery policy: it drops all
// pending passes and sinks and clears the lost flag, so the caller's next
// CommitFrame starts from scratch. It then applies every staged
// purgeability transition and returns the handles FlushPurgeability
// reports as emptied. Persistent resources are not marked or
// rematerialized here.
func (c *Context) RecoverDeviceLost() []handle.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.passes = nil
	c.sinks = make(graph.SinkSet)
	c.deviceLost = false
	Logger().Warn("device lost: flushed pending frame, caller must rematerialize persistent resources")
	return c.Persistent.FlushPurgeability()
}

// MarkDeviceLost records that the backend reported a fence-wait timeout.
// Every CommitFrame call returns ErrDeviceLost until RecoverDeviceLost
// runs.
func (c *Context) MarkDeviceLost() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deviceLost = true
}
