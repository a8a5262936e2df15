package graph

import "github.com/statgo/stat/pkg/bitvector"

// EdgeKey identifies a directed edge by its endpoints.
type EdgeKey struct {
	Parent uint64
	Child  uint64
}

// Edge is a directed, labeled edge from Parent to Child.
type Edge struct {
	Parent uint64
	Child  uint64
	Label  bitvector.Label
}
