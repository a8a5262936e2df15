package graph

import (
	"sort"

	"github.com/statgo/stat/pkg/bitvector"
)

// ColorByLeadingEdge assigns a stable color index per distinct "leading
// edge" bitvector value (§4.2, §8 scenario 3: ranks that diverge at the
// call tree's first branch get distinct colors). The leading edge of a
// rank is the first edge below the root on that rank's path; ties (ranks
// sharing the exact same leading-edge label) always share a color.
//
// Colors are assigned in ascending order of the leading edge's lowest set
// bit so that color 0 always covers the lowest-ranked group, keeping the
// assignment deterministic across runs.
func ColorByLeadingEdge(g *Graph) (map[EdgeKey]int, error) {
	leading := g.ChildrenOf(RootID)

	type group struct {
		key     EdgeKey
		lowest  int
		pretty  string
	}
	groups := make([]group, 0, len(leading))
	for _, e := range leading {
		if e.Label.Variant != bitvector.VariantBitvector {
			continue
		}
		lowest := e.Label.Vec.Width() * bitvector.BitsPerWord
		for _, r := range e.Label.Vec.Ranges() {
			if r[0] < lowest {
				lowest = r[0]
			}
		}
		groups = append(groups, group{key: EdgeKey{Parent: e.Parent, Child: e.Child}, lowest: lowest, pretty: e.Label.ToText()})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].lowest < groups[j].lowest })

	colors := make(map[EdgeKey]int, len(groups))
	for i, gr := range groups {
		colors[gr.key] = i
	}
	return colors, nil
}
