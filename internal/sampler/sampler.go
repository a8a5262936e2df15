// Package sampler implements the per-daemon sampler adapter (spec §4.3):
// it walks target process call stacks through the procctl.Controller
// collaborator interface and builds per-process graphs, then aggregates
// them into one daemon graph per gather round.
package sampler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/statgo/stat/internal/procctl"
	"github.com/statgo/stat/internal/transport"
	"github.com/statgo/stat/pkg/bitvector"
	"github.com/statgo/stat/pkg/errors"
	"github.com/statgo/stat/pkg/graph"
	"github.com/statgo/stat/pkg/utils"
)

// RetryBudget bounds how hard the sampler retries a failed stack walk
// before surfacing a SampleFailed error (spec §4.3, §7).
type RetryBudget struct {
	MaxRetries int
	Delay      time.Duration
}

// DefaultRetryBudget matches the teacher's conservative defaults for
// transient-failure retries elsewhere in the codebase (pkg/parallel).
func DefaultRetryBudget() RetryBudget {
	return RetryBudget{MaxRetries: 3, Delay: 50 * time.Millisecond}
}

// Sampler walks target process stacks via a procctl.Controller and turns
// them into graphs whose leaf edges carry a single set bit at the
// process's local rank index.
type Sampler struct {
	controller procctl.Controller
	logger     utils.Logger
}

// New creates a Sampler bound to the given process-control collaborator.
func New(controller procctl.Controller, logger utils.Logger) *Sampler {
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}
	return &Sampler{controller: controller, logger: logger}
}

func renderFrame(f procctl.Frame, flags transport.Flags, getFileLine func(pc uint64) (string, int, error)) (string, error) {
	switch {
	case flags&transport.FlagLine != 0:
		if getFileLine == nil {
			return f.Function, nil
		}
		file, line, err := getFileLine(f.PC)
		if err != nil {
			return f.Function, nil
		}
		return fmt.Sprintf("%s@%s:%d", f.Function, file, line), nil
	case flags&transport.FlagPC != 0:
		return fmt.Sprintf("%s@0x%x", f.Function, f.PC), nil
	default:
		return f.Function, nil
	}
}

// SampleProcess walks every thread in threads and merges their call paths
// into one graph whose edge vectors are bitvector.New(numLocalRanks) wide
// (numLocalRanks rounded up to whole 64-bit words), bit localRank set on
// every traversed edge (spec §4.3). getFileLine is used only when flags
// requests line-level rendering; pass nil to skip it.
func (s *Sampler) SampleProcess(
	ctx context.Context,
	threads []procctl.ProcThread,
	localRank int,
	numLocalRanks int,
	flags transport.Flags,
	budget RetryBudget,
	getFileLine func(pc uint64) (string, int, error),
) (*graph.Graph, error) {
	g := graph.New(bitvector.VariantBitvector)

	for _, th := range threads {
		frames, err := s.walkStackWithRetry(ctx, th, budget)
		if err != nil {
			s.logger.Warn("sampler: stack walk failed for %s pid=%d tid=%d after %d retries: %v",
				th.Host, th.PID, th.TID, budget.MaxRetries, err)
			return nil, errors.Wrap(errors.CodeSampleFailed, "stack walk failed after retry budget", err)
		}

		var pathParts []string
		if flags&transport.FlagThreads != 0 {
			pathParts = append(pathParts, "tid:"+strconv.Itoa(th.TID))
		}

		parentID := graph.RootID
		for _, f := range frames {
			rendered, err := renderFrame(f, flags, getFileLine)
			if err != nil {
				return nil, err
			}
			pathParts = append(pathParts, rendered)
			path := "/" + strings.Join(pathParts, "/")
			childID := graph.HashPath(path)

			g.AddNode(&graph.Node{ID: childID, Name: rendered})
			label := bitvector.NewBitvectorLabel(bitvector.New(numLocalRanks))
			label.Vec.Set(localRank)
			if err := g.AddEdge(parentID, childID, label); err != nil {
				return nil, errors.Wrap(errors.CodeFatalInternal, "adding sampled edge", err)
			}
			parentID = childID
		}
	}

	return g, nil
}

func (s *Sampler) walkStackWithRetry(ctx context.Context, th procctl.ProcThread, budget RetryBudget) ([]procctl.Frame, error) {
	var lastErr error
	attempts := budget.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		frames, err := s.controller.WalkStack(ctx, th)
		if err == nil {
			return frames, nil
		}
		lastErr = err
		if i < attempts-1 && budget.Delay > 0 {
			select {
			case <-time.After(budget.Delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// DaemonResult is what a daemon hands to the transport for reduction
// (spec §4.3 "Aggregation at the daemon"): the merged per-process graphs,
// tagged with the width and lowest global rank the topology planner needs.
type DaemonResult struct {
	Graph              *graph.Graph
	WidthWords         int
	LowestGlobalRank   int
}

// AggregateDaemon merges per-process graphs sampled at local ranks
// [0, numLocalRanks) into one daemon graph of width ceil(numLocalRanks/64)
// words (spec §4.3).
func AggregateDaemon(graphs []*graph.Graph, numLocalRanks int, lowestGlobalRank int) (DaemonResult, error) {
	out := graph.New(bitvector.VariantBitvector)
	for _, g := range graphs {
		if g == nil {
			continue
		}
		if err := graph.Merge(out, g); err != nil {
			return DaemonResult{}, errors.Wrap(errors.CodeFatalInternal, "merging per-process graphs", err)
		}
	}
	return DaemonResult{
		Graph:            out,
		WidthWords:       bitvector.WordsForRanks(numLocalRanks),
		LowestGlobalRank: lowestGlobalRank,
	}, nil
}
