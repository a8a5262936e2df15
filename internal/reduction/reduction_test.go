package reduction

import (
	"context"
	"testing"

	"github.com/statgo/stat/internal/transport"
	"github.com/statgo/stat/pkg/bitvector"
	"github.com/statgo/stat/pkg/graph"
)

func daemonPayload(t *testing.T, lowestRank int, bits []int) transport.GraphPayload {
	t.Helper()
	g := graph.New(bitvector.VariantBitvector)
	g.AddNode(&graph.Node{ID: 1, Name: "main"})
	g.AddNode(&graph.Node{ID: 2, Name: "foo"})
	v := bitvector.NewWords(1)
	for _, b := range bits {
		v.Set(b)
	}
	for _, e := range [][2]uint64{{graph.RootID, 1}, {1, 2}} {
		if err := g.AddEdge(e[0], e[1], bitvector.NewBitvectorLabel(v.Clone())); err != nil {
			t.Fatalf("add edge: %v", err)
		}
	}
	buf, err := graph.Serialize(g)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return transport.GraphPayload{GraphBytes: buf, ChildWidthWords: 1, ChildLowestGlobalRank: lowestRank}
}

// TestReduceTwoDaemonsEightRanks reproduces §8 scenario 1.
func TestReduceTwoDaemonsEightRanks(t *testing.T) {
	d0 := daemonPayload(t, 0, []int{0, 1, 2, 3})
	d1 := daemonPayload(t, 4, []int{0, 1, 2, 3})

	f := New()
	out, err := f.Reduce(context.Background(), []transport.GraphPayload{d1, d0})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if out.ChildWidthWords != 2 {
		t.Fatalf("expected output width 2, got %d", out.ChildWidthWords)
	}
	if out.ChildLowestGlobalRank != 0 {
		t.Fatalf("expected lowest global rank 0, got %d", out.ChildLowestGlobalRank)
	}

	got, err := graph.Deserialize(out.GraphBytes, graph.BasicBitvectorDecoder())
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	e := got.GetEdge(1, 2)
	words := e.Label.Vec.Words()
	if words[0] != 0x0F || words[1] != 0x0F {
		t.Fatalf("expected word0=0x0F word1=0x0F, got %#x %#x", words[0], words[1])
	}
	if e.Label.Vec.PrettyPrint() != "[0-3,64-67]" {
		t.Fatalf("expected pretty-print [0-3,64-67], got %s", e.Label.Vec.PrettyPrint())
	}
}

// TestReduceNonContiguousAssignment reproduces §8 scenario 2.
func TestReduceNonContiguousAssignment(t *testing.T) {
	d0 := daemonPayload(t, 0, []int{0, 1, 2, 3})
	d1 := daemonPayload(t, 1, []int{0, 2})

	f := New()
	out, err := f.Reduce(context.Background(), []transport.GraphPayload{d0, d1})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	got, err := graph.Deserialize(out.GraphBytes, graph.BasicBitvectorDecoder())
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	e := got.GetEdge(1, 2)
	words := e.Label.Vec.Words()
	if words[0] != 0x0F {
		t.Fatalf("expected D0 slice 0x0F, got %#x", words[0])
	}
	if words[1] != 0x05 {
		t.Fatalf("expected D1 slice 0x05 (bits 0 and 2), got %#x", words[1])
	}
}

func TestReduceCountRepBypassesWidth(t *testing.T) {
	g1 := graph.New(bitvector.VariantCountAndRepresentative)
	g1.AddNode(&graph.Node{ID: 1, Name: "main"})
	if err := g1.AddEdge(graph.RootID, 1, bitvector.NewCountRepLabel(bitvector.CountRep{Count: 3, Representative: 0})); err != nil {
		t.Fatalf("add edge: %v", err)
	}
	buf1, err := graph.Serialize(g1)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	g2 := graph.New(bitvector.VariantCountAndRepresentative)
	g2.AddNode(&graph.Node{ID: 1, Name: "main"})
	if err := g2.AddEdge(graph.RootID, 1, bitvector.NewCountRepLabel(bitvector.CountRep{Count: 2, Representative: 5})); err != nil {
		t.Fatalf("add edge: %v", err)
	}
	buf2, err := graph.Serialize(g2)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	f := New()
	out, err := f.Reduce(context.Background(), []transport.GraphPayload{
		{GraphBytes: buf1, Flags: transport.FlagCountRep, ChildLowestGlobalRank: 0},
		{GraphBytes: buf2, Flags: transport.FlagCountRep, ChildLowestGlobalRank: 5},
	})
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	got, err := graph.Deserialize(out.GraphBytes, graph.CountRepDecoder())
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	e := got.GetEdge(graph.RootID, 1)
	if e.Label.CountRep.Count != 5 {
		t.Fatalf("expected merged count 5, got %d", e.Label.CountRep.Count)
	}
	if e.Label.CountRep.Representative != 0 {
		t.Fatalf("expected representative 0 (lowest rank), got %d", e.Label.CountRep.Representative)
	}
}
