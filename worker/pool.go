// Package worker implements a parallel pass-executor pool: up to N
// passes record their commands into independent track.Scopes
// concurrently, since recording one pass never touches another pass's
// state. Built on golang.org/x/sync/errgroup for fan-out and error
// aggregation.
package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/rendergraph/graph"
)

// Pool bounds how many passes record concurrently. It owns no
// persistent goroutines between frames; it spins up an errgroup per call
// to RecordPasses and lets it drain.
type Pool struct {
	size int
}

// New creates a pool that runs up to size passes concurrently. size < 1
// is treated as 1 (fully serial recording, useful for deterministic
// tests).
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{size: size}
}

// Size returns the pool's concurrency limit.
func (p *Pool) Size() int { return p.size }

// RecordPasses runs Record on every pass, fanned out across the pool.
// A panicking executor is recovered and reported as an error for that
// pass alone rather than crashing the whole frame, so one misbehaving
// pass cannot take down recording for its unrelated siblings; the first
// such error is returned once every pass has had a chance to run.
func (p *Pool) RecordPasses(ctx context.Context, passes []*graph.Pass) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(p.size)

	for _, pass := range passes {
		pass := pass
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("worker: pass %q panicked while recording: %v", pass.Name, r)
				}
			}()
			pass.Record()
			return nil
		})
	}
	return g.Wait()
}
