package graph

import (
	"fmt"
	"sort"

	"github.com/statgo/stat/pkg/bitvector"
)

// Graph is a mapping from node ID to node attributes, plus a set of directed
// edges keyed by (parent ID, child ID), all edges sharing one
// bitvector.Variant (§3).
type Graph struct {
	Variant bitvector.Variant
	nodes   map[uint64]*Node
	edges   map[EdgeKey]*Edge
}

// New creates an empty graph of the given variant with a root "/" node
// (§4.2 new_graph).
func New(variant bitvector.Variant) *Graph {
	g := &Graph{
		Variant: variant,
		nodes:   make(map[uint64]*Node),
		edges:   make(map[EdgeKey]*Edge),
	}
	g.nodes[RootID] = &Node{ID: RootID, Name: RootName}
	return g
}

// AddNode adds a node if absent. Idempotent: the first writer's attributes
// win on repeat calls with the same ID (§4.2).
func (g *Graph) AddNode(n *Node) *Node {
	if existing, ok := g.nodes[n.ID]; ok {
		return existing
	}
	cp := *n
	g.nodes[n.ID] = &cp
	return &cp
}

// GetNode returns the node with the given ID, or nil.
func (g *Graph) GetNode(id uint64) *Node {
	return g.nodes[id]
}

// Nodes returns all nodes, sorted by ID for deterministic iteration
// (serialization, DOT export).
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// AddEdge adds an edge, or merges attrs into an existing edge's label using
// the graph's variant merge rule (§4.2 add_edge). Both endpoint nodes must
// already exist; AddEdge does not implicitly create nodes.
func (g *Graph) AddEdge(parent, child uint64, attrs bitvector.Label) error {
	if attrs.Variant != g.Variant {
		return fmt.Errorf("graph: edge variant %s does not match graph variant %s", attrs.Variant, g.Variant)
	}
	key := EdgeKey{Parent: parent, Child: child}
	existing, ok := g.edges[key]
	if !ok {
		g.edges[key] = &Edge{Parent: parent, Child: child, Label: attrs}
		return nil
	}
	merged, err := existing.Label.Merge(attrs)
	if err != nil {
		return fmt.Errorf("graph: merging edge %d->%d: %w", parent, child, err)
	}
	existing.Label = merged
	return nil
}

// GetEdge returns the edge (parent, child), or nil if absent.
func (g *Graph) GetEdge(parent, child uint64) *Edge {
	return g.edges[EdgeKey{Parent: parent, Child: child}]
}

// Edges returns all edges, sorted by (parent, child) for determinism.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Parent != out[j].Parent {
			return out[i].Parent < out[j].Parent
		}
		return out[i].Child < out[j].Child
	})
	return out
}

// ChildrenOf returns the edges whose parent is id, sorted by child ID.
func (g *Graph) ChildrenOf(id uint64) []*Edge {
	var out []*Edge
	for _, e := range g.edges {
		if e.Parent == id {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Child < out[j].Child })
	return out
}

// Merge merges from into into: every node in from is added to into, every
// edge in from is added-or-merged into into (§3, §4.2 merge). Both graphs
// must share a variant.
func Merge(into, from *Graph) error {
	if into.Variant != from.Variant {
		return fmt.Errorf("graph: cannot merge graphs of differing variants %s and %s", into.Variant, from.Variant)
	}
	for _, n := range from.Nodes() {
		into.AddNode(n)
	}
	for _, e := range from.Edges() {
		if err := into.AddEdge(e.Parent, e.Child, e.Label); err != nil {
			return err
		}
	}
	return nil
}

// EmptyEdgesCopy returns a new graph with the same nodes and edges as g, but
// with every edge's Bitvector label replaced by a zero-filled vector of the
// given width (§4.6 step 1, the "empty-edges copy" primitive the front-end
// reorderer builds on). g must be the Bitvector variant.
func (g *Graph) EmptyEdgesCopy(width int) (*Graph, error) {
	if g.Variant != bitvector.VariantBitvector {
		return nil, fmt.Errorf("graph: EmptyEdgesCopy requires the bitvector variant, got %s", g.Variant)
	}
	out := &Graph{
		Variant: g.Variant,
		nodes:   make(map[uint64]*Node, len(g.nodes)),
		edges:   make(map[EdgeKey]*Edge, len(g.edges)),
	}
	for id, n := range g.nodes {
		cp := *n
		out.nodes[id] = &cp
	}
	for key := range g.edges {
		out.edges[key] = &Edge{
			Parent: key.Parent,
			Child:  key.Child,
			Label:  bitvector.NewBitvectorLabel(bitvector.NewWords(width)),
		}
	}
	return out, nil
}
