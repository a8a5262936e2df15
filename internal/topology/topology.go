// Package topology implements the topology planner (spec §4.5): it turns
// the overlay tree's leaf/daemon structure into a merge-ordered rank list,
// per-daemon word-aligned offsets, and the final vector width, which the
// front-end reorderer (C6) uses to turn tree-layout bit positions back
// into MPI-rank order.
package topology

import (
	"fmt"
	"sort"

	"github.com/statgo/stat/pkg/bitvector"
)

// Daemon is one leaf's daemon: the global MPI ranks it owns, in their
// original ascending order (not necessarily contiguous — spec §8 scenario
// 2 assigns D0 the non-contiguous set {0,2,4,6}).
type Daemon struct {
	Host        string
	GlobalRanks []int
}

// LowestGlobalRank is the daemon's lowest-numbered rank, used for
// depth-first child ordering (spec §4.5).
func (d Daemon) LowestGlobalRank() int {
	lowest := -1
	for _, r := range d.GlobalRanks {
		if lowest == -1 || r < lowest {
			lowest = r
		}
	}
	return lowest
}

// Leaf is one overlay-tree leaf, carrying the daemons attached to it.
type Leaf struct {
	Host    string
	Daemons []Daemon
}

// Node is one node of the overlay tree: interior nodes have Children,
// leaves have Leaf set.
type Node struct {
	Children []*Node
	Leaf     *Leaf
}

// subtreeLowestRank is the child ordering key (spec §4.5: "ascending
// order of their subtree's lowest contained rank").
func subtreeLowestRank(n *Node) int {
	if n.Leaf != nil {
		lowest := -1
		for _, d := range n.Leaf.Daemons {
			if l := d.LowestGlobalRank(); lowest == -1 || l < lowest {
				lowest = l
			}
		}
		return lowest
	}
	lowest := -1
	for _, c := range n.Children {
		l := subtreeLowestRank(c)
		if lowest == -1 || l < lowest {
			lowest = l
		}
	}
	return lowest
}

// DaemonPlacement is the per-daemon slice of the final vector.
type DaemonPlacement struct {
	Host             string
	LowestGlobalRank int
	OffsetWords      int
	RankCount        int
	// RankList is the daemon's local ranks in original ascending order,
	// i.e. RankList[i] is the global rank occupying local bit i.
	RankList []int
}

// Plan is the output of Plan: the merge order, the per-daemon placements,
// and the final width in words.
type Plan struct {
	Order       []DaemonPlacement
	WidthWords  int
}

// Plan performs the depth-first traversal of root described in spec §4.5:
// children visited in ascending order of their subtree's lowest contained
// rank, local ranks within a daemon kept in ascending order, and offsets
// accumulated in whole words so each daemon's slice is word-aligned.
func Plan(root *Node) (*Plan, error) {
	if root == nil {
		return nil, fmt.Errorf("topology: nil tree")
	}

	var daemons []Daemon
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Leaf != nil {
			ds := make([]Daemon, len(n.Leaf.Daemons))
			copy(ds, n.Leaf.Daemons)
			sort.SliceStable(ds, func(i, j int) bool { return ds[i].LowestGlobalRank() < ds[j].LowestGlobalRank() })
			daemons = append(daemons, ds...)
			return
		}
		children := make([]*Node, len(n.Children))
		copy(children, n.Children)
		sort.SliceStable(children, func(i, j int) bool {
			return subtreeLowestRank(children[i]) < subtreeLowestRank(children[j])
		})
		for _, c := range children {
			walk(c)
		}
	}
	walk(root)

	plan := &Plan{Order: make([]DaemonPlacement, 0, len(daemons))}
	offset := 0
	for _, d := range daemons {
		if len(d.GlobalRanks) == 0 {
			return nil, fmt.Errorf("topology: daemon %s has no ranks", d.Host)
		}
		rankList := make([]int, len(d.GlobalRanks))
		copy(rankList, d.GlobalRanks)
		sort.Ints(rankList)

		plan.Order = append(plan.Order, DaemonPlacement{
			Host:             d.Host,
			LowestGlobalRank: rankList[0],
			OffsetWords:      offset,
			RankCount:        len(rankList),
			RankList:         rankList,
		})
		offset += bitvector.WordsForRanks(len(rankList))
	}
	plan.WidthWords = offset

	return plan, nil
}
