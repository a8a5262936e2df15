// Package graph implements the directed, node-and-edge-attributed prefix
// tree that the aggregation engine merges samples into (§3, §4.2). Every
// node is a call-path prefix; every edge is labeled with a bitvector.Label
// recording which ranks traversed it.
package graph

import "github.com/cespare/xxhash/v2"

// RootID is the reserved node ID for the synthetic "/" root (§3).
const RootID uint64 = 0

// RootName is the display name of the root node.
const RootName = "/"

// Node carries a call-path's attributes: the frame's displayed name and,
// when available, its source location.
type Node struct {
	ID     uint64
	Name   string
	Source string
	Line   int
}

// HashPath computes the 64-bit node-identity hash of a root-to-node call
// path string ("/frame0/frame1/.../frameK"), per §3's node-identity
// invariant. xxhash64 is used rather than a hand-rolled hash: per §9's
// "Graph node identity" note, the redesign treats collisions as defects to
// be logged rather than silently merged, which calls for a hash with a
// well-studied, low collision rate at this width.
func HashPath(path string) uint64 {
	return xxhash.Sum64String(path)
}
