package worker

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gogpu/rendergraph/graph"
	"github.com/gogpu/rendergraph/handle"
	"github.com/gogpu/rendergraph/track"
)

func TestPool_RecordPassesRunsEveryExecutor(t *testing.T) {
	var ran atomic.Int32
	passes := make([]*graph.Pass, 8)
	for i := range passes {
		passes[i] = graph.NewPass(uint32(i), graph.PassCompute, 0, "p", func(s *track.Scope) {
			ran.Add(1)
			s.UseResource(handle.NewHandle(handle.KindBuffer, handle.RegistryPersistent, 0, 1, 0), track.AccessRead, track.StageCompute, true)
		})
	}

	pool := New(4)
	if err := pool.RecordPasses(context.Background(), passes); err != nil {
		t.Fatalf("RecordPasses: %v", err)
	}
	if int(ran.Load()) != len(passes) {
		t.Fatalf("expected all %d executors to run, got %d", len(passes), ran.Load())
	}
	for _, p := range passes {
		if p.CommandCount == 0 {
			t.Fatalf("pass %d was not recorded: %+v", p.ID, p)
		}
	}
}

func TestPool_RecordPassesRecoversPanicAsError(t *testing.T) {
	passes := []*graph.Pass{
		graph.NewPass(0, graph.PassCompute, 0, "boom", func(*track.Scope) {
			panic("bad pipeline state")
		}),
		graph.NewPass(1, graph.PassCompute, 0, "fine", func(s *track.Scope) {
			s.SetBytes(4)
		}),
	}

	pool := New(2)
	err := pool.RecordPasses(context.Background(), passes)
	if err == nil {
		t.Fatalf("expected an error from the panicking pass")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected the error to name the panicking pass, got %v", err)
	}
	if passes[1].CommandCount == 0 {
		t.Fatalf("fine pass's SetBytes call should still advance the command index")
	}
}

func TestNew_ClampsSizeToOne(t *testing.T) {
	if New(0).Size() != 1 {
		t.Fatalf("expected size 0 to clamp to 1")
	}
	if New(-3).Size() != 1 {
		t.Fatalf("expected negative size to clamp to 1")
	}
}
