// Package advisor groups the ranks of a merged call-tree graph into
// equivalence classes by their leading-edge divergence (spec §8 scenario 3:
// "where callers agree", ranks whose stacks diverge at the call tree's
// first branch are reported as distinct groups rather than flattened).
package advisor

import (
	"sort"

	"github.com/statgo/stat/pkg/graph"
)

// RankRange is an inclusive [Lo, Hi] span of MPI ranks sharing one
// equivalence class.
type RankRange struct {
	Lo, Hi int
}

// EquivalenceClass is one group of ranks that share the same leading edge
// out of the root, reported in the merged graph's "where processes agree,
// where they diverge" output (spec §8 scenario 3).
type EquivalenceClass struct {
	Label      string
	RankRanges []RankRange
	Count      int
}

// Advise groups g's ranks by ColorByLeadingEdge and returns one
// EquivalenceClass per color, sorted by Count descending (largest group of
// agreeing ranks first) with ties broken by the lowest rank in the group.
func Advise(g *graph.Graph) ([]EquivalenceClass, error) {
	colors, err := graph.ColorByLeadingEdge(g)
	if err != nil {
		return nil, err
	}

	type accum struct {
		label  string
		ranges []RankRange
		count  int
		lowest int
	}
	byColor := make(map[int]*accum)

	for _, e := range g.ChildrenOf(graph.RootID) {
		key := graph.EdgeKey{Parent: e.Parent, Child: e.Child}
		color, ok := colors[key]
		if !ok {
			continue
		}
		a, ok := byColor[color]
		if !ok {
			a = &accum{label: e.Label.ToText(), lowest: -1}
			byColor[color] = a
		}
		for _, r := range e.Label.Vec.Ranges() {
			a.ranges = append(a.ranges, RankRange{Lo: r[0], Hi: r[1]})
			a.count += r[1] - r[0] + 1
			if a.lowest == -1 || r[0] < a.lowest {
				a.lowest = r[0]
			}
		}
	}

	classes := make([]EquivalenceClass, 0, len(byColor))
	for _, a := range byColor {
		sort.Slice(a.ranges, func(i, j int) bool { return a.ranges[i].Lo < a.ranges[j].Lo })
		classes = append(classes, EquivalenceClass{Label: a.label, RankRanges: a.ranges, Count: a.count})
	}
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].Count != classes[j].Count {
			return classes[i].Count > classes[j].Count
		}
		return classes[i].RankRanges[0].Lo < classes[j].RankRanges[0].Lo
	})
	return classes, nil
}
