// Package rendergraph implements the core of a GPU render graph runtime:
// resource and pass registration, per-frame dependency analysis, transitive
// reduction of the resulting dependency matrix into a minimal set of fences,
// and compaction of residency/barrier/layout-transition commands around the
// passes' own encoded commands.
//
// The package never talks to a concrete graphics API. It consumes one
// through the backend.Capability interface and produces an ordered,
// synchronized command stream that a backend can submit. Shader
// compilation, swapchain management, and CPU-side image decoding are
// likewise out of scope; they are referenced only through the interfaces
// that expose their results.
//
// # Quick start
//
//	ctx, err := rendergraph.New(myBackend)
//	if err != nil {
//	        return err
//	}
//	ctx.AddPass(graph.PassCompute, "downsample", func(scope *track.Scope) {
//	        scope.UseResource(src, track.AccessRead, track.StageCompute, true)
//	        scope.UseResource(dst, track.AccessWrite, track.StageCompute, true)
//	})
//	if err := ctx.CommitFrame(context.Background()); err != nil {
//	        // handle OutOfMemory / BackendError / DeviceLost
//	}
package rendergraph
