package reorder

import (
	"testing"

	"github.com/statgo/stat/internal/topology"
	"github.com/statgo/stat/pkg/bitvector"
	"github.com/statgo/stat/pkg/graph"
)

func buildReducedGraph(t *testing.T, widthWords int, bits []int) *graph.Graph {
	t.Helper()
	g := graph.New(bitvector.VariantBitvector)
	g.AddNode(&graph.Node{ID: 1, Name: "main"})
	v := bitvector.NewWords(widthWords)
	for _, b := range bits {
		v.Set(b)
	}
	if err := g.AddEdge(graph.RootID, 1, bitvector.NewBitvectorLabel(v)); err != nil {
		t.Fatalf("add edge: %v", err)
	}
	return g
}

// TestReorderIdentityEightRanks reproduces §8 scenario 1's identity
// rank-list case: the output is unchanged from the reduced layout.
func TestReorderIdentityEightRanks(t *testing.T) {
	reduced := buildReducedGraph(t, 2, []int{0, 1, 2, 3, 64, 65, 66, 67})
	plan := &topology.Plan{Order: []topology.DaemonPlacement{
		{Host: "d0", OffsetWords: 0, RankCount: 4, RankList: []int{0, 1, 2, 3}},
		{Host: "d1", OffsetWords: 1, RankCount: 4, RankList: []int{4, 5, 6, 7}},
	}, WidthWords: 2}

	out, err := Reorder(reduced, plan)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	e := out.GetEdge(graph.RootID, 1)
	if e.Label.Vec.PrettyPrint() != "[0-7]" {
		t.Fatalf("expected [0-7], got %s", e.Label.Vec.PrettyPrint())
	}
}

// TestReorderNonContiguousAssignment reproduces §8 scenario 2: layout bits
// {0,1,2,3} (D0 slice) and {64,66} (D1 slice, bits 0 and 2 of its local
// range) map to ranks {0,2,4,6, 1,5}, pretty-printed "[0,1,2,4,5,6]".
func TestReorderNonContiguousAssignment(t *testing.T) {
	reduced := buildReducedGraph(t, 2, []int{0, 1, 2, 3, 64, 66})
	plan := &topology.Plan{Order: []topology.DaemonPlacement{
		{Host: "d0", OffsetWords: 0, RankCount: 4, RankList: []int{0, 2, 4, 6}},
		{Host: "d1", OffsetWords: 1, RankCount: 4, RankList: []int{1, 3, 5, 7}},
	}, WidthWords: 2}

	out, err := Reorder(reduced, plan)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	e := out.GetEdge(graph.RootID, 1)
	if got := e.Label.Vec.PrettyPrint(); got != "[0,1,2,4,5,6]" {
		t.Fatalf("expected [0,1,2,4,5,6], got %s", got)
	}
}

func TestPermutationIsBijection(t *testing.T) {
	plan := &topology.Plan{Order: []topology.DaemonPlacement{
		{Host: "d0", OffsetWords: 0, RankCount: 4, RankList: []int{0, 2, 4, 6}},
		{Host: "d1", OffsetWords: 1, RankCount: 4, RankList: []int{1, 3, 5, 7}},
	}, WidthWords: 2}

	perm := Permutation(plan)
	seen := make(map[int]bool)
	for pos, rank := range perm {
		if seen[rank] {
			t.Fatalf("rank %d assigned twice (layout position %d)", rank, pos)
		}
		seen[rank] = true
	}
	for r := 0; r < 8; r++ {
		if !seen[r] {
			t.Fatalf("rank %d never assigned a layout position", r)
		}
	}
}
