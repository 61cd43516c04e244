package graph

import (
	"sort"

	"gonum.org/v1/gonum/graph/topo"

	"github.com/gogpu/rendergraph/bitset"
)

// Reduce computes the transitive reduction of m in place: an edge
// src→dst is removed when some other predecessor of dst already reaches
// src through surviving edges AND the surviving indirect path's
// signal.stages at dst is a superset of the removed edge's signal.stages.
// Otherwise the edge is NOT reducible and is retained.
//
// Encoder indices are visited in registration order, which is already
// topological since passes are scheduled in the order they were
// registered; gonum's topo.Sort runs only as a cross-check that the
// matrix has no cycle, never to pick the iteration order.
func Reduce(m *Matrix, encoderCount uint32) {
	if encoderCount == 0 {
		return
	}
	if _, err := topo.Sort(m.Graph); err != nil {
		return // cyclic dependency matrix: not reducible, leave as-is.
	}

	reach := make([]*bitset.Set, encoderCount)
	for i := range reach {
		reach[i] = bitset.New(int(encoderCount))
		reach[i].SetBit(i)
	}

	for dst := uint32(0); dst < encoderCount; dst++ {
		preds := predecessorsOf(m, dst)

		for _, src := range preds {
			dep, ok := m.Dep(dst, src)
			if !ok {
				continue
			}
			for _, other := range preds {
				if other == src || !reach[other].Test(int(src)) {
					continue
				}
				indirect, ok := m.Dep(dst, other)
				if !ok || !indirect.Signal.Stages.Contains(dep.Signal.Stages) {
					continue
				}
				delete(m.Deps, edgeKey{src: src, dst: dst})
				m.Graph.RemoveEdge(int64(src), int64(dst))
				break
			}
		}

		for _, src := range predecessorsOf(m, dst) {
			reach[dst].Union(reach[src])
		}
	}
}

func predecessorsOf(m *Matrix, dst uint32) []uint32 {
	var out []uint32
	for k := range m.Deps {
		if k.dst == dst {
			out = append(out, k.src)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
