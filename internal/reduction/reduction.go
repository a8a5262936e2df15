// Package reduction implements the overlay-tree reduction filter (spec
// §4.4): at every interior node it merges a batch of child payloads into
// one payload for the parent, placing each child's bits into a disjoint,
// word-aligned slice of the output vector.
package reduction

import (
	"context"
	"sort"

	"github.com/statgo/stat/internal/transport"
	"github.com/statgo/stat/pkg/bitvector"
	"github.com/statgo/stat/pkg/errors"
	"github.com/statgo/stat/pkg/graph"
)

// Filter holds the one scoped output buffer for a single stream. Per
// spec §9's "filter buffer ownership" note and §5's shared-resources list,
// that buffer is owned exclusively by this instance and is replaced (never
// mutated in place) on each Reduce call, so concurrent Filter instances on
// different streams never share state.
type Filter struct {
	lastOutput []byte
}

// New creates a Filter for one reduction stream.
func New() *Filter {
	return &Filter{}
}

// Reduce implements transport.ReductionFunc: order the batch by ascending
// lowest_global_rank, compute per-child offsets, width-expand-decode each
// child into the shared output graph, and serialize the result (spec
// §4.4 steps 1-5).
func (f *Filter) Reduce(ctx context.Context, batch []transport.GraphPayload) (transport.GraphPayload, error) {
	if len(batch) == 0 {
		return transport.GraphPayload{}, errors.New(errors.CodeFatalInternal, "reduction: empty batch")
	}

	ordered := make([]transport.GraphPayload, len(batch))
	copy(ordered, batch)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ChildLowestGlobalRank < ordered[j].ChildLowestGlobalRank
	})

	countRep := ordered[0].Flags&transport.FlagCountRep != 0
	variant := bitvector.VariantBitvector
	if countRep {
		variant = bitvector.VariantCountAndRepresentative
	}
	out := graph.New(variant)
	outWidth := 0

	if countRep {
		for _, child := range ordered {
			g, err := graph.Deserialize(child.GraphBytes, graph.CountRepDecoder())
			if err != nil {
				return transport.GraphPayload{}, errors.Wrap(errors.CodeFatalInternal, "deserializing count-rep child", err)
			}
			if err := graph.Merge(out, g); err != nil {
				return transport.GraphPayload{}, errors.Wrap(errors.CodeFatalInternal, "merging count-rep child", err)
			}
		}
	} else {
		widths := make([]int, len(ordered))
		for i, child := range ordered {
			widths[i] = child.ChildWidthWords
			outWidth += child.ChildWidthWords
		}
		offset := 0
		for i, child := range ordered {
			dec := graph.ExpandingBitvectorDecoder(outWidth, offset, widths[i])
			g, err := graph.Deserialize(child.GraphBytes, dec)
			if err != nil {
				return transport.GraphPayload{}, errors.Wrap(errors.CodeFatalInternal, "width-expanding deserialize", err)
			}
			if err := graph.Merge(out, g); err != nil {
				return transport.GraphPayload{}, errors.Wrap(errors.CodeFatalInternal, "merging child into output", err)
			}
			offset += widths[i]
		}
	}

	buf, err := graph.Serialize(out)
	if err != nil {
		return transport.GraphPayload{}, errors.Wrap(errors.CodeFatalInternal, "serializing reduced graph", err)
	}
	f.lastOutput = buf
	lowest := ordered[0].ChildLowestGlobalRank

	return transport.GraphPayload{
		GraphBytes:            f.lastOutput,
		ChildWidthWords:       outWidth,
		ChildLowestGlobalRank: lowest,
		Flags:                 ordered[0].Flags,
	}, nil
}
