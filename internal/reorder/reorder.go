// Package reorder implements the front-end reorderer (spec §4.6): it turns
// the reduced graph's tree-layout bit positions into MPI-rank order using
// the topology plan from C5. Coloring and export are left to the caller.
package reorder

import (
	"fmt"

	"github.com/statgo/stat/internal/topology"
	"github.com/statgo/stat/pkg/bitvector"
	"github.com/statgo/stat/pkg/graph"
)

// Reorder implements spec §4.6 steps 1-2: build a zero-filled copy of in
// with width WordsForRanks(totalRanks) words, then for every edge and every daemon in the plan,
// copy set bits from their tree-layout position to their MPI-rank
// position. Step 3 (color + export) is left to the caller so it can choose
// the output path and accumulation mode (2D vs 3D).
func Reorder(in *graph.Graph, plan *topology.Plan) (*graph.Graph, error) {
	if in.Variant != bitvector.VariantBitvector {
		return nil, fmt.Errorf("reorder: requires the bitvector variant, got %s", in.Variant)
	}

	totalRanks := 0
	for _, d := range plan.Order {
		totalRanks += d.RankCount
	}
	outWidth := bitvector.WordsForRanks(totalRanks)

	out, err := in.EmptyEdgesCopy(outWidth)
	if err != nil {
		return nil, err
	}

	for _, e := range in.Edges() {
		outEdge := out.GetEdge(e.Parent, e.Child)
		for _, d := range plan.Order {
			baseBit := d.OffsetWords * bitvector.BitsPerWord
			for i, rank := range d.RankList {
				if e.Label.Vec.Test(baseBit + i) {
					outEdge.Label.Vec.Set(rank)
				}
			}
		}
	}

	return out, nil
}

// Permutation returns the layout-position -> rank mapping the plan
// describes, for callers (and tests) that want to verify it is a bijection
// over [0, N_ranks) as required by spec §8.
func Permutation(plan *topology.Plan) map[int]int {
	perm := make(map[int]int)
	for _, d := range plan.Order {
		baseBit := d.OffsetWords * bitvector.BitsPerWord
		for i, rank := range d.RankList {
			perm[baseBit+i] = rank
		}
	}
	return perm
}
